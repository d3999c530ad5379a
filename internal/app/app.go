package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/castfold/casting-server/internal/assets"
	"github.com/castfold/casting-server/internal/auth"
	"github.com/castfold/casting-server/internal/config"
	"github.com/castfold/casting-server/internal/core"
	"github.com/castfold/casting-server/internal/service/characters"
	"github.com/castfold/casting-server/internal/service/messages"
	"github.com/castfold/casting-server/internal/service/rooms"
	"github.com/castfold/casting-server/internal/store"
	"github.com/castfold/casting-server/internal/store/sqlite"
	transporthttp "github.com/castfold/casting-server/internal/transport/http"
)

// App wires together storage, domain services, the session hub and the
// transport layer.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	if cfg.AvatarUploadURL == "" {
		logger.Warn().Msg("no avatar upload endpoint configured, inline avatars fall back to the placeholder")
	}
	avatarResolver := assets.NewHTTPUploader(cfg.AvatarUploadURL, cfg.AvatarAPIKey)

	directory := rooms.New(st)
	registry := characters.New(st, avatarResolver, logger)
	ledger := messages.New(st)

	hub := core.NewHub(directory, registry, ledger, logger)
	server := transporthttp.NewServer(hub, authService, directory, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
