// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/clinicore/authcore/internal/audit"
	"github.com/clinicore/authcore/internal/auth"
	"github.com/clinicore/authcore/internal/config"
	"github.com/clinicore/authcore/internal/logging"
	"github.com/clinicore/authcore/internal/notify"
	"github.com/clinicore/authcore/internal/observability"
	"github.com/clinicore/authcore/internal/stream"
	"github.com/clinicore/authcore/internal/xdg"
	"github.com/clinicore/authcore/pkg/errutil"
)

// pushTimeout bounds the Pushgateway request made when a command ends.
const pushTimeout = 5 * time.Second

// runtime holds the collaborators one command invocation needs.
type runtime struct {
	cfg      config.File
	authCfg  auth.Config
	logger   *slog.Logger
	store    *StoreHandle
	hasher   auth.PasswordHasher
	notifier auth.Notifier
	audit    auth.AuditSink
	metrics  *observability.Metrics
	closers  []func()
}

// loadConfig reads the configuration and builds the logger.
func loadConfig(cmd *cobra.Command, deps *Deps) (config.File, *slog.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.File{}, nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if path == "" {
		if path, err = xdg.ConfigFile(); err != nil {
			return config.File{}, nil, err
		}
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return config.File{}, nil, err
	}
	out := deps.LogOutput
	if out == nil {
		out = cmd.ErrOrStderr()
	}
	logger, err := logging.Setup(logging.Options{
		Service: "authcore",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	}, out)
	if err != nil {
		return config.File{}, nil, err
	}
	return cfg, logger, nil
}

// openRuntime loads configuration and opens the store, hasher, notifier
// and audit sinks. Recovery codes are only delivered through a configured
// channel: the Redis stream, or the log when notify.driver is "log".
func openRuntime(cmd *cobra.Command, deps *Deps) (*runtime, error) {
	ctx := cmd.Context()
	cfg, logger, err := loadConfig(cmd, deps)
	if err != nil {
		return nil, err
	}
	authCfg, err := cfg.Auth()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateNotify(); err != nil {
		return nil, err
	}
	hasher, err := auth.NewPasswordHasher(authCfg.HashAlgorithm, authCfg.HashCost)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, authCfg: authCfg, logger: logger, hasher: hasher}
	if cfg.Metrics.Pushgateway != "" {
		pusher := observability.NewPusher(cfg.Metrics.Pushgateway, observability.DefaultPushJob)
		rt.metrics = pusher.Metrics()
		command := cmd.Name()
		rt.closers = append(rt.closers, func() { rt.push(ctx, pusher, command) })
	}

	handle, err := deps.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.store = handle
	rt.closers = append(rt.closers, handle.Close)

	logSink := audit.NewLogSink(logger)
	rt.audit = logSink
	rt.notifier = notify.Unconfigured{}
	if cfg.Notify.Driver == config.NotifyLog {
		logger.WarnContext(ctx, "log notifier enabled, recovery codes are written to the log")
		rt.notifier = notify.NewLogNotifier(logger)
	}
	if cfg.Redis.URL != "" {
		client, err := deps.OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		if cfg.Notify.Driver != config.NotifyLog {
			rt.notifier = notify.NewStreamNotifier(stream.NewProducer(client, cfg.Redis.NotifyStream, cfg.Redis.MaxLen))
		}
		rt.audit = audit.Multi{logSink, audit.NewStreamSink(stream.NewProducer(client, cfg.Redis.AuditStream, cfg.Redis.MaxLen))}
	}
	if deps.Notifier != nil {
		rt.notifier = deps.Notifier
	}
	return rt, nil
}

// Close releases everything opened by openRuntime, newest first.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// push sends the command's counters to the Pushgateway. A failed push is
// logged and does not change the command's result.
func (rt *runtime) push(ctx context.Context, pusher *observability.Pusher, command string) {
	if rt.metrics != pusher.Metrics() {
		// serve-metrics swapped in the server's registry.
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := pusher.Push(ctx, command); err != nil {
		errutil.LogErrorContext(ctx, rt.logger, "metrics push failed", err)
	}
}

func (rt *runtime) options() []auth.Option {
	return []auth.Option{
		auth.WithLogger(rt.logger),
		auth.WithAuditSink(rt.audit),
		auth.WithMetrics(rt.metrics),
	}
}

func (rt *runtime) provisioning() (*auth.ProvisioningService, error) {
	return auth.NewProvisioningService(rt.store.Store, rt.hasher, rt.options()...)
}

func (rt *runtime) recovery() (*auth.RecoveryService, error) {
	return auth.NewRecoveryService(rt.store.Store, rt.hasher, rt.notifier, rt.authCfg, rt.options()...)
}

func (rt *runtime) sessions() (*auth.SessionService, error) {
	key, err := rt.cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	codec, err := auth.NewJWTCodec(key, rt.cfg.Token.Issuer)
	if err != nil {
		return nil, err
	}
	return auth.NewSessionService(codec, rt.store.Store, rt.authCfg, rt.options()...)
}

func (rt *runtime) authentication() (*auth.AuthenticationService, error) {
	sessions, err := rt.sessions()
	if err != nil {
		return nil, err
	}
	return auth.NewAuthenticationService(rt.store.Store, rt.hasher, sessions, rt.authCfg, rt.options()...)
}

// readSecret reads one line from r. Secrets are never taken from flags so
// they stay out of shell history and process listings.
func readSecret(r io.Reader) (string, error) {
	secrets, err := readSecrets(r, 1)
	if err != nil {
		return "", err
	}
	return secrets[0], nil
}

// readSecrets reads n secrets from consecutive lines of r.
func readSecrets(r io.Reader, n int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	secrets := make([]string, 0, n)
	for len(secrets) < n {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, oops.Code(auth.CodeInvalidRequest).With("operation", "read secret").Wrap(err)
			}
			if n == 1 {
				return nil, oops.Code(auth.CodeInvalidRequest).Errorf("secret must be provided on stdin")
			}
			return nil, oops.Code(auth.CodeInvalidRequest).
				With("expected", n).
				Errorf("expected %d secrets on stdin, got %d", n, len(secrets))
		}
		secret := strings.TrimRight(scanner.Text(), "\r\n")
		if secret == "" {
			return nil, oops.Code(auth.CodeInvalidRequest).Errorf("secret must not be empty")
		}
		secrets = append(secrets, secret)
	}
	return secrets, nil
}

// withRuntime opens a runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, deps *Deps, fn func(rt *runtime) error) error {
	rt, err := openRuntime(cmd, deps)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}
