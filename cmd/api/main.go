// @title        Pet Custody API
// @version      1.0
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pet-custody/internal/adapters/auth/odin"
	"pet-custody/internal/adapters/notify/kafka"
	"pet-custody/internal/adapters/notify/logsender"
	mem "pet-custody/internal/adapters/storage/memory"
	pg "pet-custody/internal/adapters/storage/postgres"
	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/dispatch"
	"pet-custody/internal/domain/pets"
	"pet-custody/internal/domain/placement"
	"pet-custody/internal/platform/config"
	"pet-custody/internal/platform/logger"
	"pet-custody/internal/ports/auth"
	"pet-custody/internal/ports/notifications"
	"pet-custody/internal/router"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewFromEnv().Error("config error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres si hay DSN, si no in-memory.
	var (
		store   custody.Store
		petRepo pets.Repository
	)
	if cfg.DatabaseDSN != "" {
		db, err := pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Error("postgres open failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		defer db.Close()

		if err := pg.Migrate(ctx, db); err != nil {
			log.Error("postgres migrate failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		store = pg.NewStore(db)
		petRepo = pg.NewPetsRepo(db)
		log.Info("storage: postgres", nil)
	} else {
		m := mem.NewStore()
		store = m
		petRepo = m.Pets()
		log.Info("storage: memory", nil)
	}

	// Notificaciones
	var sender notifications.Sender
	if len(cfg.KafkaBrokers) > 0 {
		ks := kafka.NewSender(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer func() { _ = ks.Close() }()
		sender = ks
		log.Info("notifications: kafka", map[string]any{"brokers": cfg.KafkaBrokers, "topic": cfg.KafkaTopic})
	} else {
		sender = logsender.New(log)
	}
	dispatcher := dispatch.New(sender, log)

	// Auth: sin Odin => modo dev (X-Debug-User-ID)
	var verifier auth.AuthVerifier
	if cfg.OdinBaseURL != "" {
		client, err := odin.NewClient(odin.Config{BaseURL: cfg.OdinBaseURL, APIKey: cfg.OdinAPIKey})
		if err != nil {
			log.Error("odin client error", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		verifier = odin.NewVerifier(client)
	} else {
		log.Warn("auth verifier not configured, using debug headers", nil)
	}

	expirer := placement.NewExpirer(placement.NewService(store, dispatcher), cfg.PlacementExpiryInterval, log)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.NewRouter(router.Options{
			AuthVerifier: verifier,
			Store:        store,
			Pets:         petRepo,
			Dispatcher:   dispatcher,
			Logger:       log,
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Si el server cae, el grupo cancela el expirer y viceversa.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		expirer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("starting server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	log.Info("server stopped", nil)
}
