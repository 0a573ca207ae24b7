package devserver

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/devmode"
	"github.com/mycelian/mycelian-desk/devserver/storage"
	"github.com/mycelian/mycelian-desk/internal/logger"
)

const healthInterval = 15 * time.Second

// Run starts the dev backend and blocks until SIGINT/SIGTERM or a server error.
func Run() error {
	lg := logger.New("desk-devserver")
	log.Logger = lg

	cfg, err := NewConfig()
	if err != nil {
		lg.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		lg.Error().Stack().Err(err).Msg("Store unavailable")
		return err
	}
	defer st.Close()

	if err := SeedAdmin(ctx, st, cfg.SeedAdminToken); err != nil {
		return err
	}

	health := NewStoreHealthChecker(st, lg, 2*time.Second)
	go health.Start(ctx, healthInterval)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           NewRouter(st, health),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		lg.Info().Int("port", cfg.HTTPPort).Str("api", APIPrefix).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		lg.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		lg.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		lg.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// OpenStore opens the configured database and applies the schema.
func OpenStore(ctx context.Context, cfg *Config) (*storage.Store, error) {
	var (
		db      *sql.DB
		dialect storage.Dialect
		err     error
	)
	switch cfg.DBDriver {
	case "postgres":
		db, err = storage.OpenPostgres(cfg.PostgresDSN)
		dialect = storage.Postgres
	default:
		db, err = storage.OpenSQLite(cfg.SQLitePath)
		dialect = storage.SQLite
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if err := storage.Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return storage.New(db, dialect), nil
}

// SeedAdmin ensures the admin user exists with the given token.
func SeedAdmin(ctx context.Context, st *storage.Store, token string) error {
	admin := client.User{
		ID:     devmode.AdminUserID,
		Name:   "Dev Admin",
		Email:  "admin@localhost",
		Role:   client.RoleAdmin,
		Active: true,
	}
	if err := st.UpsertUser(ctx, admin, token); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if token == devmode.Token {
		log.Warn().Msg("admin seeded with the dev-mode token; never expose this server")
	}
	return nil
}
