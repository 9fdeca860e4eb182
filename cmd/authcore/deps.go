// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/samber/oops"

	"github.com/clinicore/authcore/internal/auth"
	"github.com/clinicore/authcore/internal/auth/memstore"
	"github.com/clinicore/authcore/internal/auth/postgres"
	"github.com/clinicore/authcore/internal/config"
	"github.com/clinicore/authcore/internal/observability"
	"github.com/clinicore/authcore/internal/store"
	"github.com/clinicore/authcore/internal/stream"
)

// StoreHandle is an opened account store.
type StoreHandle struct {
	Store auth.AccountStore
	// Ready reports whether the backing database answers. Nil means always ready.
	Ready observability.ReadinessChecker
	Close func()
}

// Migrator is the subset of *store.Migrator used by the migrate command.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// RedisClient publishes stream entries and can be closed.
type RedisClient interface {
	stream.Adder
	Close() error
}

// Deps contains injectable dependencies for the commands. Nil fields use
// the production implementations.
type Deps struct {
	// OpenStore opens the configured account store.
	// Default: openStore (memstore or PostgreSQL).
	OpenStore func(ctx context.Context, cfg config.File, logger *slog.Logger) (*StoreHandle, error)

	// OpenMigrator creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	OpenMigrator func(databaseURL string) (Migrator, error)

	// OpenRedis connects to Redis for the notification and audit streams.
	// Default: stream.Connect
	OpenRedis func(ctx context.Context, url string) (RedisClient, error)

	// Notifier replaces the configured notifier.
	Notifier auth.Notifier

	// LogOutput receives log records. Default: the command's stderr.
	LogOutput io.Writer
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.OpenStore == nil {
		out.OpenStore = openStore
	}
	if out.OpenMigrator == nil {
		out.OpenMigrator = func(databaseURL string) (Migrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.OpenRedis == nil {
		out.OpenRedis = func(ctx context.Context, url string) (RedisClient, error) {
			c, err := stream.Connect(ctx, url)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	return &out
}

// openStore opens the store selected by cfg.Store.Driver.
func openStore(ctx context.Context, cfg config.File, logger *slog.Logger) (*StoreHandle, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory account store; data is lost on exit")
		return &StoreHandle{Store: memstore.New(), Close: func() {}}, nil
	case config.DriverPostgres:
		pool, err := store.Connect(ctx, cfg.Store.DatabaseURL, store.ConnectOptions{Logger: logger})
		if err != nil {
			return nil, err
		}
		return &StoreHandle{
			Store: postgres.NewAccountRepository(pool),
			Ready: pool.Ping,
			Close: pool.Close,
		}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("store.driver", cfg.Store.Driver).Errorf("unknown store driver")
	}
}
