// Command sweep runs the full parameter sweep over stored signals:
// overlap admission, entry resolution, exit simulation per grid point,
// and outcome persistence.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/observability"
	"signal-sweep-lab/internal/orchestrator"
	"signal-sweep-lab/internal/simulation"
	"signal-sweep-lab/internal/storage/clickhouse"
	"signal-sweep-lab/internal/storage/migrations"
	"signal-sweep-lab/internal/storage/postgres"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (signals, outcomes)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (candles)")
	migrate := flag.Bool("migrate", false, "Run schema migrations before the sweep")

	startStr := flag.String("start", "", "Signal range start, RFC3339 (default: end minus 7 days)")
	endStr := flag.String("end", "", "Signal range end, RFC3339 (default: now)")
	workers := flag.Int("workers", 4, "Concurrent signal workers")

	slRange := flag.String("sl-range", "", "Stop-loss percentages, comma separated (default: production grid)")
	actRange := flag.String("act-range", "", "Trailing activation percentages, comma separated")
	cbRange := flag.String("cb-range", "", "Trailing callback percentages, comma separated")

	takeProfit := flag.Float64("take-profit", 0, "Take-profit percentage (default: 3)")
	graduated := flag.Bool("graduated", true, "Enable the graduated de-risking ladder near the horizon")

	metricsAddr := flag.String("metrics-addr", "", "Address for the Prometheus /metrics endpoint (empty: disabled)")
	outputJSON := flag.Bool("json", false, "Print the run summary as JSON")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn or POSTGRES_DSN is required")
	}
	if *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn or CLICKHOUSE_DSN is required")
	}

	end := time.Now().UTC()
	if *endStr != "" {
		end, err = time.Parse(time.RFC3339, *endStr)
		if err != nil {
			logger.Fatal("parse --end", zap.Error(err))
		}
	}
	start := end.Add(-7 * 24 * time.Hour)
	if *startStr != "" {
		start, err = time.Parse(time.RFC3339, *startStr)
		if err != nil {
			logger.Fatal("parse --start", zap.Error(err))
		}
	}
	if !start.Before(end) {
		logger.Fatal("--start must precede --end")
	}

	grid, err := buildGrid(*slRange, *actRange, *cbRange)
	if err != nil {
		logger.Fatal("parse grid ranges", zap.Error(err))
	}

	cfg := simulation.DefaultConfig()
	if *takeProfit > 0 {
		cfg.TakeProfitPct = *takeProfit
	}
	var policy simulation.TimeoutPolicy = simulation.HorizonOnlyPolicy{}
	if *graduated {
		policy = simulation.GraduatedPolicy{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	conn, err := clickhouse.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatal("connect to clickhouse", zap.Error(err))
	}
	defer conn.Close()

	if *migrate {
		if err := migrations.RunPostgres(ctx, pool); err != nil {
			logger.Fatal("postgres migrations", zap.Error(err))
		}
		if err := migrations.RunClickhouse(ctx, conn); err != nil {
			logger.Fatal("clickhouse migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		SignalStore:  postgres.NewSignalStore(pool),
		CandleStore:  clickhouse.NewCandleStore(conn),
		OutcomeStore: postgres.NewOutcomeStore(pool),
		Config:       cfg,
		Grid:         grid,
		Policy:       policy,
		Workers:      *workers,
		Logger:       logger,
		Metrics:      observability.DefaultMetrics,
	})
	if err != nil {
		logger.Fatal("build orchestrator", zap.Error(err))
	}

	logger.Info("starting sweep",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("workers", *workers),
		zap.Int("parameter_sets", len(grid.Combinations())),
	)

	result, err := orch.Run(ctx, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		logger.Fatal("sweep failed", zap.Error(err))
	}

	if *outputJSON {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Println()
	fmt.Println("=== Sweep Summary ===")
	fmt.Printf("Signals processed:  %d\n", result.SignalsProcessed)
	fmt.Printf("Signals skipped:    %d\n", result.SignalsSkipped)
	fmt.Printf("Signals rejected:   %d\n", result.SignalsRejected)
	fmt.Printf("Outcomes stored:    %d\n", result.OutcomesStored)
	fmt.Printf("Outcomes skipped:   %d\n", result.OutcomesSkipped)
	if len(result.Errors) > 0 {
		fmt.Printf("Errors:             %d\n", len(result.Errors))
		for _, msg := range result.Errors {
			fmt.Printf("  - %s\n", msg)
		}
		os.Exit(1)
	}
}

// buildGrid parses the three range flags. Empty flags select the
// production grid for that dimension.
func buildGrid(sl, act, cb string) (domain.GridConfig, error) {
	grid := domain.DefaultGrid

	var err error
	if sl != "" {
		if grid.StopLossRange, err = parseFloatList(sl); err != nil {
			return domain.GridConfig{}, fmt.Errorf("--sl-range: %w", err)
		}
	}
	if act != "" {
		if grid.TrailingActivationRange, err = parseFloatList(act); err != nil {
			return domain.GridConfig{}, fmt.Errorf("--act-range: %w", err)
		}
	}
	if cb != "" {
		if grid.TrailingCallbackRange, err = parseFloatList(cb); err != nil {
			return domain.GridConfig{}, fmt.Errorf("--cb-range: %w", err)
		}
	}
	return grid, grid.Validate()
}

func parseFloatList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	logger.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server", zap.Error(err))
	}
}
