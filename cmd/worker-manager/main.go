// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclients "priorauth-engine/internal/common/aws"
	"priorauth-engine/internal/common/camunda"
	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/database"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/common/observability"
	"priorauth-engine/internal/connectors"
	"priorauth-engine/internal/engine"
	"priorauth-engine/internal/normalizer"
	"priorauth-engine/internal/orchestrator"
	"priorauth-engine/internal/store"

	no "priorauth-engine/internal/workers/priorauth/notify-outcome"
	ra "priorauth-engine/internal/workers/priorauth/run-assessment"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, cfg.Observability.JaegerURL)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Build the Assessment Pipeline ---
	cacheTTL := time.Duration(cfg.Connectors.CacheTTL) * time.Second
	conns := []connectors.Connector{
		connectors.NewCachedProviderRegistry(
			connectors.NewProviderRegistryConnector(cfg.Connectors.ProviderRegistry, log),
			redis.Client, cacheTTL, log,
		),
		connectors.NewCachedCodeValidation(
			connectors.NewCodeValidationConnector(cfg.Connectors.CodeValidation, log),
			redis.Client, cacheTTL, log,
		),
		connectors.NewPolicySearchConnector(
			esClient.Client, cfg.Database.Elasticsearch.PolicyIndex,
			cfg.Connectors.PolicySearch, log,
		),
		connectors.NewFeeScheduleConnector(pg.DB, cfg.Connectors.FeeSchedule, log),
		connectors.NewLiteratureSearchConnector(cfg.Connectors.LiteratureSearch, log),
	}

	norm, err := normalizer.New(log)
	if err != nil {
		zapLog.Fatal("normalizer initialization failed", zap.Error(err))
	}

	orch := orchestrator.New(conns, config.GetDuration(cfg.Connectors.OptionalGrace), log)
	waypoints := store.NewWaypointStore(pg.DB, log)
	assessmentEngine := engine.New(norm, orch, cfg.Rubric, log,
		engine.WithWaypointSaver(waypoints),
		engine.WithObservability(obs),
	)

	zapLog.Info("Assessment pipeline initialized",
		zap.Int("connectors", len(conns)),
		zap.String("rubricVersion", cfg.Rubric.Version),
	)

	// --- Register Workers ---
	var workers []*camunda.CamundaWorker

	if cfg.Workers[ra.TaskType].Enabled {
		handler := ra.NewHandler(
			&ra.Config{
				Timeout: config.GetDuration(cfg.Workers[ra.TaskType].Timeout),
			},
			assessmentEngine, log,
		)
		w := camunda.NewWorker(camundaClient.GetClient(), ra.TaskType,
			cfg.Workers[ra.TaskType].MaxJobsActive, handler, zapLog)
		w.Start()
		workers = append(workers, w)
	}

	if cfg.Workers[no.TaskType].Enabled {
		sesClient, err := awsclients.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("SES client initialization failed", zap.Error(err))
		}
		snsClient, err := awsclients.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("SNS client initialization failed", zap.Error(err))
		}

		noCfg := no.FromNotifications(cfg.Notifications)
		noCfg.Timeout = config.GetDuration(cfg.Workers[no.TaskType].Timeout)
		handler := no.NewHandler(noCfg, sesClient, snsClient, log)
		w := camunda.NewWorker(camundaClient.GetClient(), no.TaskType,
			cfg.Workers[no.TaskType].MaxJobsActive, handler, zapLog)
		w.Start()
		workers = append(workers, w)
	}

	zapLog.Info("All workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}
