// Package main wires together the scrape service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Dev-pucci/webscraping-app/internal/api"
	"github.com/Dev-pucci/webscraping-app/internal/archive"
	"github.com/Dev-pucci/webscraping-app/internal/clock/system"
	"github.com/Dev-pucci/webscraping-app/internal/config"
	"github.com/Dev-pucci/webscraping-app/internal/dispatcher"
	headlessextractor "github.com/Dev-pucci/webscraping-app/internal/extractor/headless"
	jumiaextractor "github.com/Dev-pucci/webscraping-app/internal/extractor/jumia"
	"github.com/Dev-pucci/webscraping-app/internal/hash/sha256"
	"github.com/Dev-pucci/webscraping-app/internal/id/uuid"
	"github.com/Dev-pucci/webscraping-app/internal/logging"
	"github.com/Dev-pucci/webscraping-app/internal/progress"
	"github.com/Dev-pucci/webscraping-app/internal/progress/sinks"
	"github.com/Dev-pucci/webscraping-app/internal/publisher"
	"github.com/Dev-pucci/webscraping-app/internal/runner"
	"github.com/Dev-pucci/webscraping-app/internal/scrape"
	"github.com/Dev-pucci/webscraping-app/internal/session"
	"github.com/Dev-pucci/webscraping-app/internal/taskstore"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions, closeSessions, err := buildSessions(ctx, cfg)
	if err != nil {
		logger.Fatal("session store init failed", zap.Error(err))
	}
	defer closeSessions()

	resultArchive, closeArchive, err := buildArchive(ctx, cfg)
	if err != nil {
		logger.Fatal("result archive init failed", zap.Error(err))
	}
	defer closeArchive(logger)

	pub, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer closePublisher(logger)

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("prometheus sink init failed", zap.Error(err))
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("events")),
		promSink,
	)

	store := taskstore.New(
		taskstore.Config{
			Retention:     cfg.Retention(),
			HistoryLimit:  cfg.Scraper.HistoryLimit,
			ArchivePrefix: cfg.Archive.Prefix,
			PublishTopic:  cfg.Publisher.Topic,
		},
		sessions,
		resultArchive,
		pub,
		hub,
		sha256.New(),
		system.New(),
		uuid.NewGenerator(),
		logger.Named("taskstore"),
	)

	factory := buildExtractorFactory(cfg, logger)

	run := runner.New(factory, store, runner.Config{
		PageTimeout: cfg.PageTimeout(),
		PageRetries: cfg.Scraper.PageRetries,
		DelayMin:    cfg.DelayMin(),
		DelayMax:    cfg.DelayMax(),
	}, logger.Named("runner"))

	dispatch := dispatcher.New(store, run, dispatcher.Config{
		MaxPagesCap:  cfg.Scraper.MaxPagesCap,
		DefaultPages: cfg.Scraper.DefaultPages,
	}, logger.Named("dispatcher"))

	apiServer := api.NewServer(store, dispatch, prometheus.DefaultGatherer, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := dispatch.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown error", zap.Error(err))
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("progress hub close error", zap.Error(err))
	}
	store.Close()
	logger.Info("shutdown complete")
}

func buildSessions(ctx context.Context, cfg config.Config) (scrape.SessionStore, func(), error) {
	switch cfg.Sessions.Provider {
	case "postgres":
		pg, err := session.NewPostgresStore(ctx, session.PostgresConfig{DSN: cfg.Sessions.DSN})
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case "memory":
		return session.NewMemoryStore(), func() {}, nil
	default:
		return session.NewNoOpStore(), func() {}, nil
	}
}

func buildArchive(ctx context.Context, cfg config.Config) (scrape.ResultArchive, func(*zap.Logger), error) {
	if cfg.Archive.Provider == "gcs" {
		gcs, err := archive.NewGCSArchive(ctx, cfg.Archive.GCSBucket)
		if err != nil {
			return nil, nil, err
		}
		closer := func(logger *zap.Logger) {
			if err := gcs.Close(); err != nil {
				logger.Warn("gcs archive close error", zap.Error(err))
			}
		}
		return gcs, closer, nil
	}
	return archive.NewMemoryArchive(), func(*zap.Logger) {}, nil
}

func buildPublisher(ctx context.Context, cfg config.Config) (scrape.Publisher, func(*zap.Logger), error) {
	if cfg.Publisher.Provider == "pubsub" {
		ps, err := publisher.NewPubSubPublisher(ctx, cfg.Publisher.ProjectID, cfg.Publisher.Topic)
		if err != nil {
			return nil, nil, err
		}
		closer := func(logger *zap.Logger) {
			if err := ps.Close(); err != nil {
				logger.Warn("pubsub publisher close error", zap.Error(err))
			}
		}
		return ps, closer, nil
	}
	return publisher.NewMemoryPublisher(), func(*zap.Logger) {}, nil
}

func buildExtractorFactory(cfg config.Config, logger *zap.Logger) scrape.ExtractorFactory {
	if cfg.Headless.Enabled {
		return headlessextractor.NewFactory(headlessextractor.Config{
			BaseURL:           cfg.Scraper.BaseURL,
			UserAgent:         cfg.Scraper.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
			MaxParallel:       cfg.Headless.MaxParallel,
		}, logger.Named("headless"))
	}
	shared := jumiaextractor.New(jumiaextractor.Config{
		BaseURL:   cfg.Scraper.BaseURL,
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.PageTimeout(),
	}, logger.Named("jumia"))
	return jumiaextractor.NewFactory(shared)
}
