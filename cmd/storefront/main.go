package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/checkout"
	"github.com/boutique/storefront/internal/config"
	"github.com/boutique/storefront/internal/events"
	h "github.com/boutique/storefront/internal/http"
	"github.com/boutique/storefront/internal/journal"
	"github.com/boutique/storefront/internal/logging"
	"github.com/boutique/storefront/internal/metrics"
	"github.com/boutique/storefront/internal/session"
	"github.com/boutique/storefront/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log, err := logging.New(cfg.Logging.Level)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))

	m := metrics.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	kv, err := store.Open(ctx, store.Options{
		Driver:        cfg.Store.Driver,
		Prefix:        cfg.Store.Prefix,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
		MongoURI:      cfg.Store.MongoURI,
		MongoDatabase: cfg.Store.MongoDatabase,
		BoltPath:      cfg.Store.BoltPath,
	})
	if err != nil {
		log.WithError(err).WithField("driver", cfg.Store.Driver).Fatal("failed to open session store")
	}
	defer kv.Close()
	log.WithField("driver", cfg.Store.Driver).Info("session store ready")

	api, err := backend.New(backend.Config{
		BaseURL:         cfg.Backend.BaseURL,
		Timeout:         cfg.Backend.Timeout,
		BreakerFailures: cfg.Backend.BreakerFailures,
		BreakerCooldown: cfg.Backend.BreakerCooldown,
	}, log, m)
	if err != nil {
		log.WithError(err).Fatal("failed to create backend client")
	}

	deps := session.Deps{
		Backend:     api,
		Store:       kv,
		StepTimeout: cfg.Checkout.StepTimeout,
		MarkerTTL:   cfg.Checkout.MarkerTTL,
		Log:         log,
		Metrics:     m,
	}

	if cfg.Postgres.Enabled() {
		creds := &journal.Credentials{
			Host:              cfg.Postgres.Host,
			Port:              cfg.Postgres.Port,
			User:              cfg.Postgres.User,
			Password:          cfg.Postgres.Password,
			DBName:            cfg.Postgres.DBName,
			SSLMode:           cfg.Postgres.SSLMode,
			MigrationsDirPath: cfg.Postgres.MigrationsDirPath,
		}
		repo, err := journal.NewRepository(creds, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to checkout journal")
		}
		defer repo.Close()

		if err := repo.RunMigrations(creds); err != nil {
			log.WithError(err).Fatal("failed to run migrations")
		}
		log.Info("checkout journal migrations completed")
		deps.Journal = repo

		if cfg.Kafka.Enabled() {
			poller := events.NewOutboxPoller(repo, log, cfg.Kafka.Topic, cfg.Kafka.Brokers...)
			wg.Add(1)
			go func() {
				defer wg.Done()
				poller.Run(ctx)
			}()
			log.WithField("topic", cfg.Kafka.Topic).Info("outbox poller started")
		}
	} else {
		log.Info("checkout journal disabled")
	}

	if cfg.Stripe.SecretKey != "" {
		deps.Verifier = checkout.NewStripeVerifier(cfg.Stripe.SecretKey)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, hosted payments are confirmed without verification")
	}

	registry := session.NewRegistry(session.NewFactory(deps), cfg.Session.IdleTimeout, cfg.Session.CleanupInterval, log, m)
	defer registry.Close()

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
		Session: h.SessionOptions{
			CookieName: cfg.Session.CookieName,
			Secure:     cfg.HTTP.CookieSecure,
		},
	}, h.RouterDeps{
		Sessions: registry,
		Account:  api,
		Orders:   api,
		Metrics:  m.Handler(),
		Log:      log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infof("storefront starting on :%s", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	cancel()
	wg.Wait()
	log.Info("server exited")
}
