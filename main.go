package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-analyst/pkg/cache"
	"github.com/ekaya-inc/ekaya-analyst/pkg/config"
	"github.com/ekaya-inc/ekaya-analyst/pkg/database"
	"github.com/ekaya-inc/ekaya-analyst/pkg/handlers"
	"github.com/ekaya-inc/ekaya-analyst/pkg/llm"
	"github.com/ekaya-inc/ekaya-analyst/pkg/logging"
	"github.com/ekaya-inc/ekaya-analyst/pkg/middleware"
	"github.com/ekaya-inc/ekaya-analyst/pkg/services"
	"github.com/ekaya-inc/ekaya-analyst/pkg/workerpool"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

// app holds the wired pipeline and what must be released on exit.
type app struct {
	adapter    datasource.Adapter
	classifier services.IntentClassifier
	reflector  services.SchemaReflector
	forecasts  services.ForecastService
	assistant  services.Assistant
	closers    []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start", zap.Error(err))
	}
	defer a.close()

	if len(os.Args) > 1 && os.Args[1] == "ask" {
		question := strings.TrimSpace(strings.Join(os.Args[2:], " "))
		if question == "" {
			fmt.Fprintln(os.Stderr, `usage: ekaya-analyst ask "<pergunta>"`)
			os.Exit(2)
		}
		fmt.Println(a.assistant.Answer(ctx, question))
		return
	}

	if err := serve(ctx, cfg, a, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// build connects the datasource and cache backend and wires the pipeline.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("datasource", cfg.Datasource.Type),
		zap.String("datasource_host", cfg.Datasource.Host),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("semantic_fallback", cfg.Embedding.IsAvailable()))

	a := &app{}

	adapter, err := datasource.NewAdapter(ctx, cfg.Datasource.Type, cfg.Datasource.AsMap(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect datasource: %w", err)
	}
	a.adapter = adapter
	a.closers = append(a.closers, func() {
		if err := adapter.Close(); err != nil {
			logger.Warn("Failed to close datasource", zap.Error(err))
		}
	})

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		a.close()
		return nil, err
	}
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}

	store, releaseStore, err := cache.NewStore(ctx, cfg, redisClient, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open forecast cache: %w", err)
	}
	a.closers = append(a.closers, releaseStore)

	var embedder llm.Embedder
	if cfg.Embedding.IsAvailable() {
		client, err := llm.NewClient(&llm.Config{
			Endpoint: cfg.Embedding.BaseURL,
			Model:    cfg.Embedding.Model,
			APIKey:   cfg.Embedding.APIKey,
			Timeout:  cfg.Embedding.Timeout,
			Circuit: llm.CircuitBreakerConfig{
				Threshold:  cfg.Embedding.CircuitThreshold,
				ResetAfter: cfg.Embedding.CircuitReset,
			},
		}, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("embedding client: %w", err)
		}
		embedder = client
	}

	a.classifier, err = services.NewIntentClassifier(embedder, cfg.Classifier, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	pool := workerpool.New(workerpool.Config{MaxConcurrent: cfg.Forecast.MaxWorkers}, logger)
	a.reflector = services.NewSchemaReflector(adapter, logger)
	a.forecasts = services.NewForecastService(
		adapter, adapter.Dialect(), a.reflector,
		cache.NewForecastCache(store, logger), pool, cfg.Forecast, logger)
	synthesizer := services.NewQuerySynthesizer(adapter, adapter.Dialect(), a.reflector, a.forecasts, logger)
	generator := services.NewResponseGenerator(services.RandomSelector{}, logger)
	a.assistant = services.NewAssistant(a.classifier, synthesizer, generator, cfg.Assistant, logger)

	return a, nil
}

// serve runs the HTTP API until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, cfg *config.Config, a *app, logger *zap.Logger) error {
	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, a.adapter, a.classifier, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(a.assistant, a.forecasts, a.reflector, logger).RegisterRoutes(mux)

	handler := middleware.Recoverer(logger)(middleware.RequestLogger(logger)(mux))

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Assistant.RequestTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-analyst",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
