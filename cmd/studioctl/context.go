package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/app"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/auth"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/config"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/database"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/events"
	redisEvents "github.com/pontocomjunior2/startt-voice-studio-sub000/internal/events/redis"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/store/postgres"
)

// feedPublisher is a change-feed publisher holding a connection.
type feedPublisher interface {
	events.Publisher
	io.Closer
}

// commandContext lazily opens what a command needs. Tests replace the
// loaders to run commands against the memory store.
type commandContext struct {
	loadConfig func() (*config.Config, error)
	openDB     func(cfg *config.Config) (*sql.DB, error)
	openStore  func(cfg *config.Config) (app.Store, io.Closer, error)
	dialRedis  func(ctx context.Context, url, channel string) (feedPublisher, error)

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext() *commandContext {
	c := &commandContext{loadConfig: config.Load}

	c.openDB = func(cfg *config.Config) (*sql.DB, error) {
		return database.New(cfg.ConnectionString(), cfg.DB.MaxOpenConns)
	}

	c.openStore = func(cfg *config.Config) (app.Store, io.Closer, error) {
		db, err := c.openDB(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}

		return postgres.New(db), db, nil
	}

	c.dialRedis = func(ctx context.Context, url, channel string) (feedPublisher, error) {
		p, err := redisEvents.New(ctx, url, channel)
		if err != nil {
			return nil, err
		}

		return p, nil
	}

	return c
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = c.loadConfig()
	})

	return c.config, c.configErr
}

// services wires the application over the configured store and change feed.
// The returned func releases both and must be called when the command ends.
func (c *commandContext) services(ctx context.Context) (*app.Services, func() error, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}

	loc, err := cfg.ImportLocation()
	if err != nil {
		return nil, nil, err
	}

	store, storeCloser, err := c.openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	var (
		publisher events.Publisher = events.NewLogPublisher(slog.Default())
		closers                    = []io.Closer{storeCloser}
	)

	if cfg.Redis.URL != "" {
		feed, err := c.dialRedis(ctx, cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			_ = storeCloser.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}

		publisher = feed
		closers = append(closers, feed)
	}

	svc := app.NewServices(store, app.Options{
		Publisher:       publisher,
		DefaultValidity: cfg.DefaultValidity(),
		ImportLocation:  loc,
	})

	closeAll := func() error {
		var errs []error
		for _, cl := range closers {
			errs = append(errs, cl.Close())
		}

		return errors.Join(errs...)
	}

	return svc, closeAll, nil
}

func (c *commandContext) verifier() (*auth.Verifier, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	return auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer), nil
}
