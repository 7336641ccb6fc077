// Command import loads signals and candles from CSV files into storage.
// Signal files go to Postgres, candle files to ClickHouse. Files may be
// UTF-8 or UTF-16, with or without a BOM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"signal-sweep-lab/internal/csvload"
	"signal-sweep-lab/internal/storage"
	"signal-sweep-lab/internal/storage/clickhouse"
	"signal-sweep-lab/internal/storage/migrations"
	"signal-sweep-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	migrate := flag.Bool("migrate", false, "Run schema migrations before importing")

	signalsCSV := flag.String("signals-csv", "", "Signal CSV file to import into Postgres")
	candlesCSV := flag.String("candles-csv", "", "Candle CSV file to import into ClickHouse")
	symbol := flag.String("symbol", "", "Instrument for --candles-csv (required with it)")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *signalsCSV == "" && *candlesCSV == "" {
		logger.Fatal("nothing to import: pass --signals-csv and/or --candles-csv")
	}
	if *candlesCSV != "" && *symbol == "" {
		logger.Fatal("--symbol is required with --candles-csv")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *signalsCSV != "" {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn or POSTGRES_DSN is required for signal import")
		}
		if err := importSignals(ctx, *postgresDSN, *signalsCSV, *migrate, logger); err != nil {
			logger.Fatal("signal import failed", zap.Error(err))
		}
	}

	if *candlesCSV != "" {
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn or CLICKHOUSE_DSN is required for candle import")
		}
		if err := importCandles(ctx, *clickhouseDSN, *candlesCSV, *symbol, *migrate, logger); err != nil {
			logger.Fatal("candle import failed", zap.Error(err))
		}
	}
}

// importSignals loads a signal CSV into Postgres. Rows whose id already
// exists are counted and skipped, so re-importing a file is safe.
func importSignals(ctx context.Context, dsn, path string, migrate bool, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	signals, err := csvload.ReadSignals(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	if migrate {
		if err := migrations.RunPostgres(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
	}

	store := postgres.NewSignalStore(pool)
	inserted, duplicates := 0, 0
	for _, sig := range signals {
		switch err := store.Insert(ctx, sig); {
		case err == nil:
			inserted++
		case errors.Is(err, storage.ErrDuplicateKey):
			duplicates++
		default:
			return fmt.Errorf("insert signal %d: %w", sig.ID, err)
		}
	}

	logger.Info("signals imported",
		zap.String("file", path),
		zap.Int("inserted", inserted),
		zap.Int("duplicates", duplicates),
	)
	return nil
}

// importCandles loads a candle CSV into ClickHouse for one instrument.
func importCandles(ctx context.Context, dsn, path, symbol string, migrate bool, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	candles, err := csvload.ReadCandles(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	conn, err := clickhouse.NewConn(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	if migrate {
		if err := migrations.RunClickhouse(ctx, conn); err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
	}

	if err := clickhouse.NewCandleStore(conn).InsertBulk(ctx, symbol, candles); err != nil {
		return fmt.Errorf("insert candles: %w", err)
	}

	logger.Info("candles imported",
		zap.String("file", path),
		zap.String("symbol", symbol),
		zap.Int("candles", len(candles)),
	)
	return nil
}
