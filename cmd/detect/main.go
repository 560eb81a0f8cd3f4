package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vanshika/ringtrace/internal/config"
	"github.com/vanshika/ringtrace/internal/detection"
	"github.com/vanshika/ringtrace/internal/domain"
	"github.com/vanshika/ringtrace/internal/graph"
	"github.com/vanshika/ringtrace/internal/ingest"
	"github.com/vanshika/ringtrace/internal/logging"
	"github.com/vanshika/ringtrace/internal/repository"
	"github.com/vanshika/ringtrace/internal/service"
)

func main() {
	var (
		inputPath = flag.String("input", "", "Path to the transactions CSV (reads stdin when empty)")
		export    = flag.Bool("export", false, "Export the run to the graph database configured by GRAPH_URI")
		pretty    = flag.Bool("pretty", false, "Indent the JSON output")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "detect")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	txs, err := readTransactions(*inputPath)
	if err != nil {
		logger.Error("failed to read transactions", "error", err, "path", *inputPath)
		os.Exit(1)
	}

	engine, err := detection.NewEngine(service.ParamsFromConfig(cfg.Detection), logger)
	if err != nil {
		logger.Error("invalid detection parameters", "error", err)
		os.Exit(1)
	}

	opts := []service.Option{service.WithMaxAccounts(cfg.Detection.MaxAccounts)}
	if *export {
		client, err := buildGraphClient(ctx, logger, cfg)
		if err != nil {
			logger.Error("failed to create graph client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}()
		exporter := service.NewGraphExporter(repository.New(client), service.ExportOptionsFromConfig(cfg.Export), logger)
		opts = append(opts, service.WithExporter(exporter))
	}
	svc := service.NewDetectionService(engine, logger, opts...)

	var result domain.DetectionResult
	if *export {
		outcome, err := svc.DetectAndExport(ctx, txs)
		var exportErr *domain.ExportError
		switch {
		case errors.As(err, &exportErr):
			logger.Error("export failed, printing result only", "error", err, "run_id", exportErr.RunID)
		case err != nil:
			logger.Error("detection failed", "error", err)
			os.Exit(1)
		default:
			logger.Info("run exported", "run_id", outcome.RunID)
		}
		result = outcome.Result
	} else {
		result, err = svc.Detect(ctx, txs)
		if err != nil {
			logger.Error("detection failed", "error", err)
			os.Exit(1)
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	if *pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(result); err != nil {
		logger.Error("failed to write result", "error", err)
		os.Exit(1)
	}
}

func readTransactions(path string) ([]domain.Transaction, error) {
	if path == "" {
		return ingest.ParseCSV(os.Stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return ingest.ParseCSV(file)
}

func buildGraphClient(ctx context.Context, logger *slog.Logger, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, fmt.Errorf("GRAPH_URI is required for -export: %w", graph.ErrMissingURI)
	}
	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	client, err := graph.NewNeo4jClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	logger.Info("connected to graph", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
	return client, nil
}
