// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package store owns the PostgreSQL connection pool and schema migrations
// shared by the repository adapters.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 500 * time.Millisecond
	maxConnectBackoff      = 5 * time.Second
)

// ConnectOptions controls how Connect reaches the database.
type ConnectOptions struct {
	// Attempts is the maximum number of ping attempts. Zero uses the default.
	Attempts uint64
	// Backoff is the initial delay between attempts. Zero uses the default.
	Backoff time.Duration
	// Logger receives retry notices. Nil uses slog.Default().
	Logger *slog.Logger
}

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pgx pool for dsn and waits until the database answers a
// ping, retrying with exponential backoff. The caller owns the pool.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse dsn").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := waitForDatabase(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForDatabase(ctx context.Context, db pinger, opts ConnectOptions) error {
	attempts := opts.Attempts
	if attempts == 0 {
		attempts = DefaultConnectAttempts
	}
	backoff := opts.Backoff
	if backoff == 0 {
		backoff = DefaultConnectBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := retry.NewExponential(backoff)
	b = retry.WithCappedDuration(maxConnectBackoff, b)
	b = retry.WithMaxRetries(attempts-1, b)

	var attempt uint64
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
