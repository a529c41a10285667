package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"github.com/fawkesdbs/app-dt-lesira/config"
	"github.com/fawkesdbs/app-dt-lesira/internal/api"
	"github.com/fawkesdbs/app-dt-lesira/internal/clock"
	"github.com/fawkesdbs/app-dt-lesira/internal/db"
	"github.com/fawkesdbs/app-dt-lesira/internal/event"
	"github.com/fawkesdbs/app-dt-lesira/internal/movement"
	"github.com/fawkesdbs/app-dt-lesira/internal/notify"
	"github.com/fawkesdbs/app-dt-lesira/internal/stationmap"
	"github.com/fawkesdbs/app-dt-lesira/internal/store"
	"github.com/fawkesdbs/app-dt-lesira/internal/tracker"
)

func main() {
	logger := log.New(os.Stdout, "downtime-backend ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Clock source: wall clock, or synchronized against the time authority.
	var clk clock.Clock = clock.System{}
	if cfg.Clock.Synced {
		synced := clock.NewSynced(cfg.Clock.AuthorityURL, cfg.Clock.ResyncInterval)
		go synced.Run(ctx)
		clk = synced
	}

	var gormDB *gorm.DB
	if cfg.NeedsDatabase() {
		gormDB, err = db.Init(&cfg.Database)
		if err != nil {
			logger.Fatalf("failed to initialize database: %v", err)
		}
		logger.Println("database initialized successfully")
	}

	catalog, err := buildCatalog(cfg, gormDB)
	if err != nil {
		logger.Fatalf("failed to load catalog: %v", err)
	}
	logger.Printf("catalog loaded: %d stations, %d operators, %d reasons",
		len(catalog.Stations), len(catalog.Operators), len(catalog.Reasons))

	backend, err := buildBackend(cfg, gormDB)
	if err != nil {
		logger.Fatalf("failed to initialize event log store: %v", err)
	}

	eventLog := store.NewLog(backend, clk, catalog.Reasons)
	downtimes := tracker.New(eventLog)
	downtimes.RestoreFromLog()

	stations, err := stationmap.New(cfg.Store.LogDir, clk)
	if err != nil {
		logger.Fatalf("failed to initialize station map: %v", err)
	}
	if err := stations.ClearIfNewDay(); err != nil {
		logger.Printf("daily station map clear failed: %v", err)
	}

	movements, err := buildMovement(cfg, gormDB, clk)
	if err != nil {
		logger.Fatalf("failed to initialize movement log: %v", err)
	}

	handler := api.NewHandler(downtimes, stations, movements, catalog)

	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			logger.Fatalf("VAPID keys must be configured when push alerts are enabled")
		}
		options := &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notify.NewWorkerPool(cfg.WorkerPool.Size, gormDB, options)
		pool.Start(ctx)
		handler.WithPush(gormDB, pool, options)
		logger.Println("supervisor push alerts enabled")
	}

	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

// buildCatalog assembles the lookup tables from the config file, overriding
// operators and reasons from the database tables when configured.
func buildCatalog(cfg *config.Config, gormDB *gorm.DB) (api.Catalog, error) {
	catalog := api.Catalog{
		Stations:  cfg.Catalog.Stations,
		Operators: cfg.Catalog.Operators,
		Reasons:   event.CategoryMap(cfg.Catalog.Reasons),
	}

	if cfg.Catalog.FromDatabase {
		operators, err := db.LoadOperators(gormDB)
		if err != nil {
			return api.Catalog{}, err
		}
		reasons, err := db.LoadReasons(gormDB)
		if err != nil {
			return api.Catalog{}, err
		}
		if len(operators) > 0 {
			catalog.Operators = operators
		}
		if len(reasons) > 0 {
			catalog.Reasons = reasons
		}
	}

	if len(catalog.Stations) == 0 {
		catalog.Stations = []string{"Unknown"}
	}
	return catalog, nil
}

// buildBackend selects the event log store backend from configuration.
func buildBackend(cfg *config.Config, gormDB *gorm.DB) (store.Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendFile:
		return store.NewFileBackend(cfg.Store.LogDir, cfg.Store.LockFiles)
	case config.BackendHTTP:
		var fallback store.Backend
		if cfg.Store.FileFallback {
			fileBackend, err := store.NewFileBackend(cfg.Store.LogDir, cfg.Store.LockFiles)
			if err != nil {
				return nil, err
			}
			fallback = fileBackend
		}
		return store.NewHTTPBackend(cfg.Store.ServiceURL, fallback), nil
	case config.BackendDatabase:
		return store.NewDBBackend(gormDB), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildMovement selects the movement log backend from configuration.
func buildMovement(cfg *config.Config, gormDB *gorm.DB, clk clock.Clock) (movement.Recorder, error) {
	switch cfg.Movement.Backend {
	case config.BackendFile:
		return movement.NewFileLog(cfg.Movement.LogDir, clk)
	case config.BackendDatabase:
		return movement.NewDBLog(gormDB, clk), nil
	default:
		return nil, fmt.Errorf("unknown movement backend %q", cfg.Movement.Backend)
	}
}
