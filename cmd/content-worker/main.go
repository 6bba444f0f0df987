package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"workflow-content/internal/common/camunda"
	"workflow-content/internal/common/config"
	"workflow-content/internal/common/database"
	commonhttp "workflow-content/internal/common/http"
	"workflow-content/internal/common/logger"
	"workflow-content/internal/common/observability"
	"workflow-content/internal/content/controls"
	"workflow-content/internal/content/document"
	"workflow-content/internal/content/liquid"
	"workflow-content/internal/content/pipeline"
	"workflow-content/internal/content/placeholders"
	"workflow-content/internal/content/preview"
	"workflow-content/internal/content/schema"
	"workflow-content/internal/content/variables"
	"workflow-content/internal/store"
	gsp "workflow-content/internal/workers/content/generate-step-preview"
	vsc "workflow-content/internal/workers/content/validate-step-content"
	"workflow-content/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})
	log.Info("Starting content worker...", nil)

	obs := observability.New(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
	}, log)
	defer obs.Shutdown()

	ctx := context.Background()

	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		RetryConfig:            &camunda.RetryConfig{MaxRetries: 10, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second},
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	log.Info("Zeebe client connected successfully", nil)

	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		if pg, err = database.NewPostgres(cfg.Database.Postgres); err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	log.Info("PostgreSQL connected successfully", nil)

	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		if rdb, err = database.NewRedis(cfg.Database.Redis); err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("Redis connected successfully", nil)

	steps, err := registry.LoadRegistry(cfg.Content.RegistryPath)
	if err != nil {
		zapLog.Fatal("step registry load failed", zap.Error(err))
	}

	workflows := store.NewWorkflowStore(pg.DB)
	organizations := store.NewOrganizationStore(pg.DB, rdb.Client, config.GetDuration(cfg.Database.Redis.CacheTTL), log)

	engine := liquid.NewEngine()
	collector := placeholders.NewCollector(variables.NewParser(engine))
	resolver := schema.NewResolver(steps, collector)
	orchestrator := pipeline.NewOrchestrator(
		collector,
		controls.NewTierChecker(organizations, cfg.Tiers.TierLimits()),
		log,
	)
	bridgeTimeout := config.GetDuration(cfg.Bridge.Timeout)
	bridge := preview.NewBridgeClient(preview.BridgeConfig{
		URL:     cfg.Bridge.URL,
		Secret:  cfg.Bridge.Secret,
		Timeout: bridgeTimeout,
	}, commonhttp.NewClient(bridgeTimeout), log)
	previews := preview.NewService(orchestrator, resolver, steps, document.NewExpander(engine), bridge, log)

	pool := camunda.NewPool(zeebe.GetClient(), obs, log)

	validateCfg := config.GetWorkerConfig(cfg, vsc.TaskType)
	pool.Start(vsc.TaskType, validateCfg, vsc.NewHandler(
		&vsc.Config{Timeout: config.GetDuration(validateCfg.Timeout)},
		workflows, steps, resolver, orchestrator, log,
	))

	previewCfg := config.GetWorkerConfig(cfg, gsp.TaskType)
	pool.Start(gsp.TaskType, previewCfg, gsp.NewHandler(
		&gsp.Config{Timeout: config.GetDuration(previewCfg.Timeout)},
		workflows, previews, log,
	))
	log.Info("Workers registered", map[string]interface{}{"running": pool.Running()})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		readyCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pg.Ping(readyCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "postgres unavailable")
			return
		}
		if err := rdb.Ping(readyCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Observability.MetricsAddress, Handler: mux}
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping health server", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Content worker stopped gracefully", nil)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
