// Command fetch pulls 1m candles from Binance futures into ClickHouse.
// It backfills over REST, resuming from the newest stored bar, and can
// optionally follow the live kline stream afterwards.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"signal-sweep-lab/internal/binance"
	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/observability"
	"signal-sweep-lab/internal/storage"
	"signal-sweep-lab/internal/storage/clickhouse"
	"signal-sweep-lab/internal/storage/migrations"
)

const insertChunkSize = 5000

func main() {
	_ = godotenv.Load()

	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	migrate := flag.Bool("migrate", false, "Run schema migrations before fetching")

	symbolsFlag := flag.String("symbols", "", "Instruments to fetch, comma separated (required)")
	interval := flag.String("interval", "1m", "Kline interval")
	startStr := flag.String("start", "", "Backfill start, RFC3339 (default: 30 days ago)")
	restURL := flag.String("rest-url", "", "Binance REST base URL (default: production futures API)")

	stream := flag.Bool("stream", false, "Follow the live kline stream after backfill")
	streamURL := flag.String("stream-url", binance.DefaultStreamURL, "Binance WebSocket endpoint")

	metricsAddr := flag.String("metrics-addr", "", "Address for the Prometheus /metrics endpoint (empty: disabled)")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn or CLICKHOUSE_DSN is required")
	}
	symbols := splitSymbols(*symbolsFlag)
	if len(symbols) == 0 {
		logger.Fatal("--symbols is required")
	}

	defaultStart := time.Now().UTC().Add(-30 * 24 * time.Hour)
	if *startStr != "" {
		defaultStart, err = time.Parse(time.RFC3339, *startStr)
		if err != nil {
			logger.Fatal("parse --start", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := clickhouse.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatal("connect to clickhouse", zap.Error(err))
	}
	defer conn.Close()

	if *migrate {
		if err := migrations.RunClickhouse(ctx, conn); err != nil {
			logger.Fatal("clickhouse migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Info("serving metrics", zap.String("addr", *metricsAddr))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	store := clickhouse.NewCandleStore(conn)
	client := binance.NewClient(*restURL)

	for _, symbol := range symbols {
		if err := backfill(ctx, client, store, symbol, *interval, defaultStart, logger); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Fatal("backfill failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	if *stream {
		if err := followStream(ctx, *streamURL, symbols, *interval, store, logger); err != nil {
			logger.Fatal("stream failed", zap.Error(err))
		}
	}
}

// backfill fetches candles from the newest stored bar (or start) up to now.
func backfill(ctx context.Context, client *binance.Client, store storage.CandleStore, symbol, interval string, start time.Time, logger *zap.Logger) error {
	from := start.UnixMilli()
	latest, err := store.LatestOpenTime(ctx, symbol)
	switch {
	case err == nil:
		if next := latest + 1; next > from {
			from = next
		}
	case errors.Is(err, storage.ErrNotFound):
		// Empty table, backfill from the requested start.
	default:
		return fmt.Errorf("latest open time: %w", err)
	}

	now := time.Now().UTC().UnixMilli()
	if from >= now {
		logger.Info("backfill already current", zap.String("symbol", symbol))
		return nil
	}

	logger.Info("backfilling",
		zap.String("symbol", symbol),
		zap.Time("from", time.UnixMilli(from).UTC()),
	)

	candles, err := client.Klines(ctx, symbol, interval, from, now)
	if err != nil {
		return fmt.Errorf("fetch klines: %w", err)
	}

	for i := 0; i < len(candles); i += insertChunkSize {
		chunk := candles[i:min(i+insertChunkSize, len(candles))]
		if err := store.InsertBulk(ctx, symbol, chunk); err != nil {
			return fmt.Errorf("insert candles: %w", err)
		}
	}
	observability.DefaultMetrics.CandlesFetched.Add(float64(len(candles)))

	logger.Info("backfill complete",
		zap.String("symbol", symbol),
		zap.Int("candles", len(candles)),
	)
	return nil
}

// followStream writes closed bars from the live stream until the
// context is cancelled.
func followStream(ctx context.Context, endpoint string, symbols []string, interval string, store storage.CandleStore, logger *zap.Logger) error {
	ks, err := binance.NewKlineStream(ctx, endpoint, symbols, interval, nil)
	if err != nil {
		return fmt.Errorf("open kline stream: %w", err)
	}
	defer ks.Close()

	logger.Info("following live stream", zap.Strings("symbols", symbols))

	for {
		select {
		case <-ctx.Done():
			return nil
		case closed, ok := <-ks.C():
			if !ok {
				return nil
			}
			if err := store.InsertBulk(ctx, closed.Symbol, []domain.Candle{closed.Candle}); err != nil {
				logger.Error("insert streamed candle",
					zap.String("symbol", closed.Symbol),
					zap.Error(err),
				)
				continue
			}
			observability.DefaultMetrics.CandlesStreamed.Inc()
			logger.Debug("stored candle",
				zap.String("symbol", closed.Symbol),
				zap.Int64("open_time", closed.Candle.OpenTime),
			)
		}
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.ToUpper(strings.TrimSpace(part)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
