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

	"github.com/CrowderSoup/taskpulse/database"
	"github.com/CrowderSoup/taskpulse/handlers"
	"github.com/CrowderSoup/taskpulse/services"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	backend, err := database.Open(database.Options{
		Backend: cfg.Storage.Backend,
		Driver:  cfg.Storage.Driver,
		Path:    cfg.Storage.Path,
		DataDir: cfg.Storage.DataDir,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	store := database.NewStore(backend)
	defer store.Close()

	if cfg.Storage.Seed {
		if err := services.Seed(ctx, store, logger); err != nil {
			return fmt.Errorf("failed to seed data: %w", err)
		}
	}

	// Initialize WebSocket hub
	hub := services.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	// Initialize services
	users := services.NewUserService(store, logger)
	notifications := services.NewNotificationService(store, hub, logger)
	auth := services.NewAuthService(users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)

	router, err := handlers.NewRouter(handlers.Deps{
		Auth:           auth,
		Users:          users,
		Tasks:          services.NewTaskService(store, notifications, logger),
		Projects:       services.NewProjectService(store, notifications, logger),
		Clients:        services.NewClientService(store, logger),
		Notifications:  notifications,
		Hub:            hub,
		Store:          store,
		Limiter:        handlers.NewIPRateLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst, cfg.Server.TrustProxy, logger),
		Logger:         logger.Named("http"),
		UploadDir:      cfg.Uploads.Dir,
		MaxUploadBytes: int64(cfg.Uploads.MaxSizeMB) << 20,
		AllowedOrigins: cfg.Server.CORSOrigins,
		StaticDir:      cfg.Server.StaticDir,
	})
	if err != nil {
		return err
	}

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      c.Handler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("storage", cfg.Storage.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
