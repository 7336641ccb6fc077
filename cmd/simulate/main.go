// Command simulate runs the exit simulation for a single signal and a
// single parameter set, either from stored data or from a candle CSV.
// Intended for debugging an individual trade path.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"signal-sweep-lab/internal/csvload"
	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/entry"
	"signal-sweep-lab/internal/lookup"
	"signal-sweep-lab/internal/simulation"
	"signal-sweep-lab/internal/storage/clickhouse"
	"signal-sweep-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	signalID := flag.Int64("signal-id", 0, "Signal ID to simulate (DSN mode)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")

	candlesCSV := flag.String("candles-csv", "", "Candle CSV file (CSV mode, replaces both DSNs)")
	symbol := flag.String("symbol", "", "Signal symbol (CSV mode)")
	timestamp := flag.Int64("timestamp", 0, "Signal detection time, Unix ms (CSV mode)")
	direction := flag.String("direction", "LONG", "Signal direction: LONG or SHORT (CSV mode)")

	stopLoss := flag.Float64("sl", 2.0, "Stop-loss percentage")
	activation := flag.Float64("act", 4.0, "Trailing activation percentage")
	callback := flag.Float64("cb", 1.0, "Trailing callback percentage")
	graduated := flag.Bool("graduated", true, "Enable the graduated de-risking ladder near the horizon")

	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params := domain.ParameterSet{
		StopLossPct:           *stopLoss,
		TrailingActivationPct: *activation,
		TrailingCallbackPct:   *callback,
	}
	if err := params.Validate(); err != nil {
		logger.Fatal("invalid parameters", zap.Error(err))
	}

	var sig *domain.Signal
	var candles []domain.Candle

	if *candlesCSV != "" {
		sig, candles, err = loadFromCSV(*candlesCSV, *symbol, *timestamp, *direction)
	} else {
		sig, candles, err = loadFromStores(ctx, *postgresDSN, *clickhouseDSN, *signalID)
	}
	if err != nil {
		logger.Fatal("load inputs", zap.Error(err))
	}

	cfg := simulation.DefaultConfig()
	var policy simulation.TimeoutPolicy = simulation.HorizonOnlyPolicy{}
	if *graduated {
		policy = simulation.GraduatedPolicy{}
	}

	entryTarget := sig.Timestamp + cfg.EntryDelay.Milliseconds()
	entryBar, err := lookup.FirstBarAt(entryTarget, candles)
	if err != nil {
		logger.Fatal("no candle at entry time", zap.Error(err))
	}

	fill, err := entry.NewModel(cfg.MaxSpreadPct).Resolve(sig.Direction, entryBar)
	if err != nil {
		logger.Fatal("resolve entry price", zap.Error(err))
	}

	sim := simulation.NewSimulator(cfg, policy)
	outcome, err := sim.Simulate(simulation.Input{
		Signal:  *sig,
		Params:  params,
		Entry:   fill,
		Candles: candles,
	})
	if err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}

	if *outputJSON {
		out, _ := json.MarshalIndent(outcome, "", "  ")
		fmt.Println(string(out))
		return
	}
	printOutcome(&outcome)
}

// loadFromCSV builds the signal from flags and candles from a file.
func loadFromCSV(path, symbol string, timestamp int64, direction string) (*domain.Signal, []domain.Candle, error) {
	if symbol == "" {
		return nil, nil, fmt.Errorf("--symbol is required in CSV mode")
	}

	sig := &domain.Signal{
		ID:        1,
		Symbol:    symbol,
		Timestamp: timestamp,
		Direction: domain.Direction(strings.ToUpper(direction)),
	}
	if err := sig.Validate(); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	candles, err := csvload.ReadCandles(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return sig, candles, nil
}

// loadFromStores loads the signal from Postgres and its holding-window
// candles from ClickHouse.
func loadFromStores(ctx context.Context, postgresDSN, clickhouseDSN string, signalID int64) (*domain.Signal, []domain.Candle, error) {
	if signalID == 0 {
		return nil, nil, fmt.Errorf("--signal-id is required in DSN mode")
	}
	if postgresDSN == "" || clickhouseDSN == "" {
		return nil, nil, fmt.Errorf("--postgres-dsn and --clickhouse-dsn are required in DSN mode")
	}

	pool, err := postgres.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Close()

	sig, err := postgres.NewSignalStore(pool).GetByID(ctx, signalID)
	if err != nil {
		return nil, nil, fmt.Errorf("load signal %d: %w", signalID, err)
	}

	conn, err := clickhouse.NewConn(ctx, clickhouseDSN)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Close()

	cfg := simulation.DefaultConfig()
	start := sig.Timestamp + cfg.EntryDelay.Milliseconds()
	end := start + cfg.Horizon.Milliseconds()

	candles, err := clickhouse.NewCandleStore(conn).GetByTimeRange(ctx, sig.Symbol, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("load candles for %s: %w", sig.Symbol, err)
	}
	return sig, candles, nil
}

// printOutcome outputs a human-readable trade outcome.
func printOutcome(o *domain.TradeOutcome) {
	fmt.Println()
	fmt.Println("=== Simulation Result ===")
	fmt.Printf("Outcome ID:         %s\n", o.OutcomeID)
	fmt.Printf("Signal:             %d (%s %s)\n", o.SignalID, o.Symbol, o.Direction)
	fmt.Printf("Parameters:         %s\n", o.Params.Key())
	fmt.Println()

	fmt.Println("Entry:")
	fmt.Printf("  Time:             %s\n", time.UnixMilli(o.EntryTime).UTC().Format(time.RFC3339))
	fmt.Printf("  Price:            %.8f\n", o.EntryPrice)
	fmt.Println()

	fmt.Println("Exit:")
	fmt.Printf("  Time:             %s\n", time.UnixMilli(o.ExitTime).UTC().Format(time.RFC3339))
	fmt.Printf("  Price:            %.8f\n", o.ExitPrice)
	fmt.Printf("  Reason:           %s\n", o.ExitReason)
	fmt.Printf("  PnL:              %.4f%%\n", o.PnlPct)
	fmt.Println()

	fmt.Println("Excursion:")
	fmt.Printf("  Max Run-up:       %.4f%%\n", o.MaxRunUpPct)
	fmt.Printf("  Max Drawdown:     %.4f%%\n", o.MaxDrawdownPct)
	fmt.Printf("  Absolute Max:     %.8f (t+%s)\n", o.AbsoluteMaxPrice, time.Duration(o.TimeToMaxMs)*time.Millisecond)
	fmt.Printf("  Absolute Min:     %.8f (t+%s)\n", o.AbsoluteMinPrice, time.Duration(o.TimeToMinMs)*time.Millisecond)
	fmt.Printf("  Bars Held:        %d\n", o.HoldBars)
}
