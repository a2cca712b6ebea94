package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"castlink/internal/config"
	"castlink/internal/httpserver"
	"castlink/internal/security"
	"castlink/internal/store/postgres"
	"castlink/internal/store/sqlite"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var (
		db     *sql.DB
		stores httpserver.Stores
	)
	switch cfg.DBDriver {
	case "sqlite":
		db, err = sqlite.Open(cfg.SQLitePath)
		if err == nil {
			err = sqlite.Migrate(db)
		}
		if err != nil {
			logger.Error("failed to init sqlite", "error", err)
			os.Exit(1)
		}
		stores = httpserver.Stores{
			Profiles:      sqlite.NewProfileRepo(db),
			Applications:  sqlite.NewApplicationRepo(db),
			Conversations: sqlite.NewConversationRepo(db),
			Messages:      sqlite.NewMessageRepo(db),
		}
	default:
		db, err = postgres.Open(cfg.DatabaseURL)
		if err == nil {
			err = postgres.Migrate(db)
		}
		if err != nil {
			logger.Error("failed to init postgres", "error", err)
			os.Exit(1)
		}
		stores = httpserver.Stores{
			Profiles:      postgres.NewProfileRepo(db),
			Applications:  postgres.NewApplicationRepo(db),
			Conversations: postgres.NewConversationRepo(db),
			Messages:      postgres.NewMessageRepo(db),
		}
	}
	defer db.Close()

	tokens := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)

	router := httpserver.NewRouter(cfg, stores, tokens, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting castlink messaging server", "addr", cfg.HTTPAddr(), "driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
