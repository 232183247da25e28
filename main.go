package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agrisync/agrisync/internal/api"
	"github.com/agrisync/agrisync/internal/cache"
	"github.com/agrisync/agrisync/internal/config"
	"github.com/agrisync/agrisync/internal/connectivity"
	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/events"
	"github.com/agrisync/agrisync/internal/http"
	"github.com/agrisync/agrisync/internal/kv"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/agrisync/agrisync/internal/scheduler"
	"github.com/agrisync/agrisync/internal/server"
	"github.com/agrisync/agrisync/internal/store"
	"github.com/agrisync/agrisync/internal/syncqueue"
	"github.com/asaskevich/EventBus"
	"github.com/r3labs/sse/v2"
	"github.com/spf13/pflag"
)

var version = "dev"

func main() {
	var configPath string
	pflag.StringVar(&configPath, "config", "", "path to configuration file")
	pflag.Parse()

	// read config
	cfg := config.New(configPath, version)

	// init new logger
	log := logger.New(cfg.Config)

	// init dynamic config
	cfg.DynamicReload(log)

	// setup server-sent-events
	serverEvents := sse.New()
	serverEvents.CreateStreamWithOpts("logs", sse.StreamOpts{MaxEntries: 1000, AutoReplay: true})

	// register SSE writer
	log.RegisterSSEWriter(serverEvents)

	// setup internal eventbus
	bus := EventBus.New()

	// open the key-value store backing the cache and the sync queue
	db, err := kv.NewStore(cfg.Config, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create store")
	}

	if err := db.Open(); err != nil {
		log.Fatal().Err(err).Msg("could not open store")
	}

	log.Info().Msgf("Starting AgriSync agent")
	log.Info().Msgf("Version: %s", version)
	log.Info().Msgf("Log-level: %s", cfg.Config.Logging.Level)
	log.Info().Msgf("Using database: %s", db.Driver)

	// backend client
	apiClient, err := api.NewClient(log, cfg.Config.Remote)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create backend client")
	}

	// setup services
	var (
		monitor  = connectivity.NewMonitor(log, cfg.Config, bus)
		cacheSvc = cache.NewService(log, db, monitor)
		queueSvc = syncqueue.NewService(log, db, monitor, bus, domain.RetryPolicy{
			MaxAttempts: cfg.Config.Sync.MaxAttempts,
			Delay:       time.Duration(cfg.Config.Sync.ReplayDelayMs) * time.Millisecond,
		})
		schedulingService = scheduler.NewService(log, cfg.Config, queueSvc)
		storeSvc          = store.NewService(log, cacheSvc, queueSvc, apiClient, monitor, cfg.Config.Cache)
	)

	// bind replay writers to the backend endpoints
	apiClient.RegisterWriters(queueSvc)

	// register event subscribers
	events.NewSubscribers(log, bus)

	errorChannel := make(chan error)

	go func() {
		httpServer := http.NewServer(
			log,
			cfg,
			serverEvents,
			version,
			db,
			monitor,
			cacheSvc,
			queueSvc,
			storeSvc,
		)
		errorChannel <- httpServer.Open()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	srv := server.NewServer(log, cfg.Config, monitor, queueSvc, schedulingService)
	if err := srv.Start(); err != nil {
		log.Fatal().Stack().Err(err).Msg("could not start server")
		return
	}

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			log.Log().Msg("shutting down server sighup")
			srv.Shutdown()
			if err := db.Close(); err != nil {
				log.Error().Stack().Err(err).Msg("could not close store")
			}
			os.Exit(1)
		case syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM:
			log.Info().Msg("Shutting down...")
			srv.Shutdown()
			if err := db.Close(); err != nil {
				log.Error().Stack().Err(err).Msg("could not close store")
			}
			os.Exit(0)
		}
	}
}
