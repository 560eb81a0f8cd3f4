package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vanshika/ringtrace/internal/config"
	"github.com/vanshika/ringtrace/internal/detection"
	"github.com/vanshika/ringtrace/internal/graph"
	"github.com/vanshika/ringtrace/internal/logging"
	"github.com/vanshika/ringtrace/internal/observability"
	"github.com/vanshika/ringtrace/internal/repository"
	"github.com/vanshika/ringtrace/internal/server"
	"github.com/vanshika/ringtrace/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Observability)
	if err != nil {
		logger.Error("failed to initialise tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	engine, err := detection.NewEngine(service.ParamsFromConfig(cfg.Detection), logger.With("component", "detection"))
	if err != nil {
		logger.Error("invalid detection parameters", "error", err)
		os.Exit(1)
	}

	var metrics *observability.Metrics
	if cfg.HTTP.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	opts := []service.Option{
		service.WithMaxAccounts(cfg.Detection.MaxAccounts),
	}
	if metrics != nil {
		opts = append(opts, service.WithMetrics(metrics))
	}

	graphClient, err := buildGraphClient(ctx, logger, cfg)
	switch {
	case errors.Is(err, graph.ErrMissingURI):
		logger.Info("graph export disabled", "reason", "GRAPH_URI not set")
	case err != nil:
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	default:
		defer func() {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}()
		exporter := service.NewGraphExporter(
			repository.New(graphClient),
			service.ExportOptionsFromConfig(cfg.Export),
			logger.With("component", "exporter"),
		)
		opts = append(opts, service.WithExporter(exporter))
	}

	detector := service.NewDetectionService(engine, logger.With("component", "service"), opts...)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.GraphHealthService{Client: graphClient},
		Detection:        server.NewDetectionHandlers(logger, detector, cfg.HTTP.MaxUploadBytes),
		Metrics:          metrics,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins(),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped unexpectedly", "error", err)
		os.Exit(1)
	}
}

func buildGraphClient(ctx context.Context, logger *slog.Logger, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, graph.ErrMissingURI
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
	logger.Info("graph export enabled", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
	return client, nil
}
