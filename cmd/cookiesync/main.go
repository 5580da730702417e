package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	httphandler "github.com/ericfisherdev/cookiesync/internal/adapter/driving/http"
	"github.com/ericfisherdev/cookiesync/internal/adapter/driving/watch"
	"github.com/ericfisherdev/cookiesync/internal/application"
	"github.com/ericfisherdev/cookiesync/internal/bootstrap"
	"github.com/ericfisherdev/cookiesync/internal/config"
	"github.com/ericfisherdev/cookiesync/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"watch", cfg.Watch,
		"sync_interval", cfg.SyncInterval,
		"token_sealing", cfg.HasSecretKey(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database, migrate and load every record store.
	stack, err := bootstrap.Open(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := stack.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	registry := stack.Registry
	slog.Info("record stores loaded",
		"storage_key", registry.Keys.LastKnownKey(),
		"domains", len(registry.DomainConfigs.Get()),
	)

	// 4. Log commits so operators can follow what the extension and CLI change.
	defer logCommits(registry)()

	// 5. Wire the HTTP API.
	apiHandler := httphandler.NewHandler(registry, slog.Default())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 6. Keep the stores in step with other processes sharing the database.
	syncSvc := application.NewSyncService(registry, cfg.SyncInterval, slog.Default())

	var watcher *watch.Watcher
	if cfg.Watch {
		watcher, err = watch.New(stack.DB.Path(), cfg.WatchDebounce, syncSvc, slog.Default())
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		syncSvc.Start(gctx)
		return nil
	})

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("cookiesync started", "listen_addr", cfg.ListenAddr)

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("shutdown complete")
	return nil
}

// logCommits subscribes a logger to every record store and returns a
// function that removes the subscriptions. Token values are never logged.
func logCommits(registry *application.Registry) func() {
	logger := slog.Default().With("component", "records")

	unsubs := []func(){
		registry.Credentials.Subscribe(func(c model.Credential) {
			logger.Info("credential committed",
				"account_id", c.AccountID,
				"namespace_id", c.NamespaceID,
				"token_set", c.Token != "",
			)
		}),
		registry.Settings.Subscribe(func(s model.Settings) {
			logger.Info("settings committed",
				"storage_key", s.EffectiveStorageKey(),
				"protobuf_encoding", s.ProtobufEncoding,
			)
		}),
		registry.DomainConfigs.Subscribe(func(d model.DomainConfigs) {
			logger.Info("domain configs committed", "domains", len(d))
		}),
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
