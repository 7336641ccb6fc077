// Command report summarizes stored sweep outcomes into Markdown and CSV
// files: per-parameter-set exit counts, the exit reason breakdown, and
// the skipped-signal list, plus an optional raw outcome export.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"signal-sweep-lab/internal/reporting"
	"signal-sweep-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	withOutcomes := flag.Bool("outcomes-csv", false, "Also export every raw outcome as CSV")

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	outcomeStore := postgres.NewOutcomeStore(pool)

	report, err := reporting.NewGenerator(outcomeStore).Generate(ctx)
	if err != nil {
		logger.Fatal("generate report", zap.Error(err))
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatal("create output dir", zap.Error(err))
	}

	mdPath := filepath.Join(*outputDir, "SWEEP_REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		logger.Fatal("write markdown", zap.Error(err))
	}

	csvPath := filepath.Join(*outputDir, "PARAMETER_BREAKDOWN.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderBreakdownCSV(report.ParameterBreakdown)), 0o644); err != nil {
		logger.Fatal("write csv", zap.Error(err))
	}

	fmt.Println("Sweep report generated successfully:")
	fmt.Printf("  - %s\n", mdPath)
	fmt.Printf("  - %s\n", csvPath)

	if *withOutcomes {
		outcomes, err := outcomeStore.GetAll(ctx)
		if err != nil {
			logger.Fatal("load outcomes", zap.Error(err))
		}
		outcomesPath := filepath.Join(*outputDir, "OUTCOMES.csv")
		if err := os.WriteFile(outcomesPath, []byte(reporting.RenderOutcomesCSV(outcomes)), 0o644); err != nil {
			logger.Fatal("write outcomes csv", zap.Error(err))
		}
		fmt.Printf("  - %s\n", outcomesPath)
	}
}
