package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/app"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/auth"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/config"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/database"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/events"
	redisEvents "github.com/pontocomjunior2/startt-voice-studio-sub000/internal/events/redis"
	studioHttp "github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	loc, err := cfg.ImportLocation()
	if err != nil {
		return err
	}

	db, err := database.New(cfg.ConnectionString(), cfg.DB.MaxOpenConns)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	var publisher events.Publisher = events.NewLogPublisher(slog.Default())

	if cfg.Redis.URL != "" {
		rp, err := redisEvents.New(ctx, cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rp.Close()

		publisher = rp
	}

	services := app.NewServices(postgres.New(db), app.Options{
		Publisher:       publisher,
		DefaultValidity: cfg.DefaultValidity(),
		ImportLocation:  loc,
	})

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	router := studioHttp.New(verifier, cfg.Server.CORSOrigins, services.Handlers())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "name", cfg.App.Name, "addr", srv.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
