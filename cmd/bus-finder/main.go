// cmd/bus-finder/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"bus-finder/internal/common/camunda"
	"bus-finder/internal/common/config"
	"bus-finder/internal/common/database"
	"bus-finder/internal/common/logger"
	"bus-finder/internal/common/observability"
	"bus-finder/internal/common/retry"
	"bus-finder/internal/server"
	"bus-finder/pkg/registry"

	lrc "bus-finder/internal/workers/catalog/load-route-catalog"
	fb "bus-finder/internal/workers/search/find-buses"
)

// startupPolicy is used for dependencies that may still be booting.
var startupPolicy = retry.Policy{
	MaxAttempts:  15,
	InitialDelay: 2 * time.Second,
	MaxDelay:     30 * time.Second,
	Multiplier:   2,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("starting bus finder", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retry.Do(ctx, startupPolicy, log, "PostgreSQL connection", func(ctx context.Context) error {
		var err error
		if pg == nil {
			if pg, err = database.NewPostgres(cfg.Database.Postgres); err != nil {
				return err
			}
		}
		return pg.Ping(ctx)
	})
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	log.Info("PostgreSQL connected successfully", nil)

	// --- Redis (optional) ---
	redisClient := database.NewRedis(cfg.Database.Redis)
	if redisClient == nil {
		log.Info("redis not configured, search result cache disabled", nil)
	} else if err := redisClient.Ping(ctx); err != nil {
		log.Warn("redis unreachable, searches will query the database until it recovers", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer redisClient.Close()

	// --- Route catalog ---
	reg := registry.Default()
	if cfg.Catalog.ManifestPath != "" {
		loaded, err := registry.LoadRegistry(cfg.Catalog.ManifestPath)
		if err != nil {
			log.Warn("state manifest unusable, using built-in table", map[string]interface{}{
				"path":  cfg.Catalog.ManifestPath,
				"error": err.Error(),
			})
		} else {
			reg = loaded
		}
	}

	catalogCfg := &lrc.Config{
		DataDir:  cfg.Catalog.DataDir,
		CacheTTL: config.GetDuration(cfg.Catalog.CacheTTL),
		Timeout:  config.GetDuration(config.GetWorkerConfig(cfg, lrc.TaskType).Timeout),
	}
	catalog := lrc.NewCachedLoader(lrc.NewLoader(catalogCfg, reg, obs, log), catalogCfg.CacheTTL)
	if _, err := catalog.Catalog(ctx); err != nil {
		zapLog.Fatal("route catalog load interrupted", zap.Error(err))
	}

	// --- Search ---
	searchCfg := &fb.Config{
		Timeout:  config.GetDuration(cfg.Search.Timeout),
		CacheTTL: config.GetDuration(cfg.Search.CacheTTL),
		Retry: retry.Policy{
			MaxAttempts:  cfg.Search.Retry.MaxAttempts,
			InitialDelay: config.GetDuration(cfg.Search.Retry.InitialDelay),
			MaxDelay:     config.GetDuration(cfg.Search.Retry.MaxDelay),
			Multiplier:   2,
		},
	}
	search := fb.NewService(fb.ServiceOptions{
		Config:        searchCfg,
		DB:            pg.DB,
		Redis:         redisClient.GetClient(),
		Routes:        catalog,
		Observability: obs,
		Logger:        log,
	})

	// --- Zeebe workers (optional) ---
	var zeebeClient zbc.Client
	var workers []worker.JobWorker
	if cfg.Camunda.Enabled {
		zeebeClient, err = camunda.Connect(ctx, cfg.Camunda, startupPolicy, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		log.Info("Zeebe client connected successfully", nil)

		catalogHandler := lrc.NewHandler(catalogCfg, catalog, log)
		if jw := camunda.StartWorker(zeebeClient, lrc.TaskType, config.GetWorkerConfig(cfg, lrc.TaskType), catalogHandler, log); jw != nil {
			workers = append(workers, jw)
		}

		findCfg := *searchCfg
		findCfg.Timeout = config.GetDuration(config.GetWorkerConfig(cfg, fb.TaskType).Timeout)
		findHandler := fb.NewHandler(&findCfg, search, log)
		if jw := camunda.StartWorker(zeebeClient, fb.TaskType, config.GetWorkerConfig(cfg, fb.TaskType), findHandler, log); jw != nil {
			workers = append(workers, jw)
		}
	}

	// --- HTTP API ---
	pingers := map[string]server.Pinger{"postgres": pg}
	if redisClient != nil {
		pingers["redis"] = redisClient
	}
	srv := server.New(server.Options{
		Config:   cfg.Server,
		Searcher: search,
		Catalog:  catalog,
		Pingers:  pingers,
		Logger:   log,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	// --- Graceful Shutdown ---
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received", nil)
	case err := <-serverErrors:
		if err != nil {
			log.Error("http server failed", map[string]interface{}{"error": err})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during http shutdown", map[string]interface{}{"error": err})
	}

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
	if zeebeClient != nil {
		if err := zeebeClient.Close(); err != nil {
			log.Error("error closing Zeebe client", map[string]interface{}{"error": err})
		}
	}

	log.Info("bus finder stopped gracefully", nil)
}
