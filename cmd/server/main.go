package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/newsletter-engine/internal/api"
	"github.com/ignite/newsletter-engine/internal/compiler"
	"github.com/ignite/newsletter-engine/internal/config"
	"github.com/ignite/newsletter-engine/internal/dispatch"
	"github.com/ignite/newsletter-engine/internal/personalize"
	"github.com/ignite/newsletter-engine/internal/pkg/distlock"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
	"github.com/ignite/newsletter-engine/internal/service/compile"
	"github.com/ignite/newsletter-engine/internal/store"
	"github.com/ignite/newsletter-engine/internal/store/directus"
	"github.com/ignite/newsletter-engine/internal/store/postgres"
	"github.com/ignite/newsletter-engine/internal/template"
	"github.com/ignite/newsletter-engine/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	switch cfg.Log.Level {
	case "debug":
		logger.SetLevel(logger.DEBUG)
	case "warn":
		logger.SetLevel(logger.WARN)
	case "error":
		logger.SetLevel(logger.ERROR)
	default:
		logger.SetLevel(logger.INFO)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo store.Repository
	var db *sql.DB
	switch cfg.Store.Backend {
	case "postgres":
		db, err = postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			logger.Error("postgres connection failed", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		repo = postgres.NewRepository(db)
	default:
		repo = directus.New(cfg.Store.DirectusURL, cfg.Store.DirectusToken)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, compile locks degrade to local",
				"addr", cfg.Redis.Addr, "error", err.Error())
			redisClient = nil
		}
	}

	locks := distlock.NewFactory(redisClient, db, cfg.Compile.LockTTL())
	comp := compiler.New(template.NewEngine(), cfg.Site.AssetBaseURL)
	compileSvc := compile.NewService(repo, comp, locks)

	var tr transport.Transport
	switch cfg.Transport.Provider {
	case "ses":
		tr, err = transport.NewSESTransport(
			cfg.Transport.SES.AccessKey, cfg.Transport.SES.SecretKey, cfg.Transport.SES.Region)
		if err != nil {
			logger.Error("ses transport init failed", "error", err.Error())
			os.Exit(1)
		}
	default:
		tr = transport.NewSendGridTransport(
			cfg.Transport.SendGrid.APIKey, cfg.Transport.SendGrid.BaseURL,
			cfg.Transport.SendGrid.TrackOpens, cfg.Transport.SendGrid.TrackClicks)
	}

	policies := dispatch.PolicySet{
		Normal: dispatch.Policy{BatchSize: cfg.Dispatch.NormalBatchSize, BatchDelay: cfg.Dispatch.NormalDelay()},
		Urgent: dispatch.Policy{BatchSize: cfg.Dispatch.UrgentBatchSize, BatchDelay: cfg.Dispatch.UrgentDelay()},
	}
	if err := policies.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid dispatch config: %v\n", err)
		os.Exit(1)
	}

	personalizer := personalize.New(cfg.Site.BaseURL, cfg.Auth.TokenSecret)
	dispatcher := dispatch.NewDispatcher(repo, tr, personalizer, policies)

	handlers := api.NewHandlers(compileSvc, dispatcher)
	server := api.NewServer(cfg.Server, handlers, cfg.Auth.WebhookSecret)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", cfg.Server.Addr(),
			"store", cfg.Store.Backend,
			"transport", tr.Name())
		errCh <- server.ListenAndServe()
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server stopped", "error", err.Error())
		os.Exit(1)
	case sig := <-done:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err.Error())
	}
}
