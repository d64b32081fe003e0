package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/viewtube/backend/internal/config"
	"github.com/viewtube/backend/internal/db"
	"github.com/viewtube/backend/internal/docstore"
	"github.com/viewtube/backend/internal/handlers"
	"github.com/viewtube/backend/internal/httpserver"
	"github.com/viewtube/backend/internal/keys"
	"github.com/viewtube/backend/internal/metrics"
	"github.com/viewtube/backend/internal/middleware"
	"github.com/viewtube/backend/internal/repositories"
	"github.com/viewtube/backend/internal/storage"
	"github.com/viewtube/backend/internal/token"
)

// Run bootstraps the ViewTube backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or rotate-keys")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return migrate(ctx)
	case "rotate-keys":
		return rotateKeys(args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := docstore.NewPostgresStore(pool)

	keyRepo, err := keys.NewFSRepository(cfg.KeyDir)
	if err != nil {
		return err
	}
	tokens, err := token.NewService(keyRepo, cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}

	assets, err := storageFromConfig(ctx, cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewCollector(registry)

	deps := buildDependencies(store, tokens, assets, recorder, cfg)

	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics(recorder))
	handlers.RegisterRoutes(router, deps)
	router.Handle("/metrics", metrics.Handler(registry))

	srv := httpserver.New(cfg.AppPort, router)

	logger.Info("starting http server", "port", cfg.AppPort)

	if cfg.KeyRotateInterval > 0 {
		go rotateKeysLoop(ctx, logger, tokens, cfg)
	}

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// migrate ensures the document collections and their unique indexes exist.
func migrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := docstore.NewPostgresStore(pool)
	if err := store.Ensure(ctx, repositories.Schemas()); err != nil {
		return fmt.Errorf("ensure collections: %w", err)
	}

	fmt.Println("collections ensured")
	return nil
}

// rotateKeys generates fresh signing keypairs. With no arguments both token
// classes rotate; otherwise each argument names a class to rotate.
func rotateKeys(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	keyRepo, err := keys.NewFSRepository(cfg.KeyDir)
	if err != nil {
		return err
	}
	tokens, err := token.NewService(keyRepo, cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}

	classes := []keys.Class{keys.ClassAccess, keys.ClassRefresh}
	if len(args) > 0 {
		classes = classes[:0]
		for _, arg := range args {
			switch arg {
			case string(keys.ClassAccess):
				classes = append(classes, keys.ClassAccess)
			case string(keys.ClassRefresh):
				classes = append(classes, keys.ClassRefresh)
			default:
				return fmt.Errorf("unknown token class %q", arg)
			}
		}
	}

	for _, class := range classes {
		if err := tokens.Rotate(class); err != nil {
			return fmt.Errorf("rotate %s keypair: %w", class, err)
		}
		fmt.Printf("rotated %s keypair\n", class)
	}
	return nil
}

func rotateKeysLoop(ctx context.Context, logger *slog.Logger, tokens *token.Service, cfg config.Config) {
	ticker := time.NewTicker(cfg.KeyRotateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, class := range []keys.Class{keys.ClassAccess, keys.ClassRefresh} {
				if err := tokens.Rotate(class); err != nil {
					logger.Error("scheduled key rotation failed", "class", class, "error", err)
					continue
				}
				logger.Info("rotated signing keypair", "class", class)
			}
		}
	}
}

func storageFromConfig(ctx context.Context, cfg config.Config) (storage.AssetStore, error) {
	if cfg.ObjectStore.Bucket == "" {
		return nil, errors.New("VIEWTUBE_S3_BUCKET must be set")
	}
	return storage.NewS3Store(ctx, cfg.ObjectStore)
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
