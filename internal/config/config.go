// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package config loads authcore settings from defaults, a YAML file, the
// environment and command-line flags, in increasing precedence.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/clinicore/authcore/internal/auth"
)

// Environment variables carrying secrets. They override the file.
const (
	EnvSigningKey  = "AUTHCORE_SIGNING_KEY"
	EnvDatabaseURL = "DATABASE_URL"
	EnvRedisURL    = "AUTHCORE_REDIS_URL"
)

// envKeys maps the supported environment variables to configuration keys.
var envKeys = map[string]string{
	EnvSigningKey:  "token.signing_key",
	EnvDatabaseURL: "store.database_url",
	EnvRedisURL:    "redis.url",
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Notifier drivers. An empty driver selects the stream when Redis is
// configured and otherwise leaves notifications unconfigured.
const (
	NotifyLog    = "log"
	NotifyStream = "stream"
)

// File is the on-disk configuration layout.
type File struct {
	Log      Log      `koanf:"log"`
	Store    Store    `koanf:"store"`
	Redis    Redis    `koanf:"redis"`
	Notify   Notify   `koanf:"notify"`
	Lockout  Lockout  `koanf:"lockout"`
	Token    Token    `koanf:"token"`
	Recovery Recovery `koanf:"recovery"`
	Hash     Hash     `koanf:"hash"`
	Metrics  Metrics  `koanf:"metrics"`
}

// Log configures the process logger.
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Store selects the account store.
type Store struct {
	Driver      string `koanf:"driver"`
	DatabaseURL string `koanf:"database_url"`
}

// Redis configures the notification and audit streams. An empty URL keeps
// audit events on the logger.
type Redis struct {
	URL          string `koanf:"url"`
	NotifyStream string `koanf:"notify_stream"`
	AuditStream  string `koanf:"audit_stream"`
	MaxLen       int64  `koanf:"max_len"`
}

// Notify selects how recovery codes are delivered. The log driver writes
// codes in plaintext and is meant for local development only.
type Notify struct {
	Driver string `koanf:"driver"`
}

// Lockout mirrors auth.LockoutPolicy.
type Lockout struct {
	Threshold int           `koanf:"threshold"`
	Duration  time.Duration `koanf:"duration"`
}

// Token configures bearer token signing.
type Token struct {
	Issuer     string        `koanf:"issuer"`
	SigningKey string        `koanf:"signing_key"`
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
}

// Recovery configures recovery codes.
type Recovery struct {
	CodeTTL time.Duration `koanf:"code_ttl"`
}

// Hash selects the secret hashing algorithm.
type Hash struct {
	Algorithm string `koanf:"algorithm"`
	Cost      int    `koanf:"cost"`
}

// Metrics configures the observability listener and, for one-shot
// commands, the Prometheus Pushgateway that receives their counters.
type Metrics struct {
	Addr        string `koanf:"addr"`
	Pushgateway string `koanf:"pushgateway"`
}

// Default returns the built-in configuration.
func Default() File {
	d := auth.DefaultConfig()
	return File{
		Log:   Log{Level: "info", Format: "json"},
		Store: Store{Driver: DriverPostgres},
		Redis: Redis{
			NotifyStream: "authcore:notifications",
			AuditStream:  "authcore:audit",
		},
		Lockout: Lockout{Threshold: d.Lockout.Threshold, Duration: d.Lockout.Duration},
		Token: Token{
			Issuer:     "authcore",
			AccessTTL:  d.AccessTokenTTL,
			RefreshTTL: d.RefreshTokenTTL,
		},
		Recovery: Recovery{CodeTTL: d.RecoveryCodeTTL},
		Hash:     Hash{Algorithm: d.HashAlgorithm, Cost: d.HashCost},
		Metrics:  Metrics{Addr: "127.0.0.1:9100"},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"store":        "store.driver",
	"database-url": "store.database_url",
	"redis-url":    "redis.url",
	"notify":       "notify.driver",
	"metrics-addr": "metrics.addr",
	"pushgateway":  "metrics.pushgateway",
}

// RegisterFlags adds the override flags to fs with defaults from Default().
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("store", d.Store.Driver, "account store (postgres, memory)")
	fs.String("database-url", "", "PostgreSQL connection string (overrides "+EnvDatabaseURL+")")
	fs.String("redis-url", "", "Redis URL for notification and audit streams")
	fs.String("notify", "", "recovery code notifier (stream, log)")
	fs.String("metrics-addr", d.Metrics.Addr, "observability listen address")
	fs.String("pushgateway", "", "Prometheus Pushgateway URL for one-shot command metrics")
}

// Load builds a File from defaults, the optional YAML file at path, the
// environment and the changed flags in fs. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (File, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return File{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		TransformFunc: func(name, value string) (string, any) {
			key, ok := envKeys[name]
			if !ok || value == "" {
				return "", nil
			}
			return key, value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return File{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			if !f.Changed && f.Value.String() == "" {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return File{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return File{}, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}
	return cfg, nil
}

// Auth converts the file into the validated auth.Config.
func (f File) Auth() (auth.Config, error) {
	cfg := auth.Config{
		Lockout: auth.LockoutPolicy{
			Threshold: f.Lockout.Threshold,
			Duration:  f.Lockout.Duration,
		},
		AccessTokenTTL:  f.Token.AccessTTL,
		RefreshTokenTTL: f.Token.RefreshTTL,
		RecoveryCodeTTL: f.Recovery.CodeTTL,
		HashAlgorithm:   f.Hash.Algorithm,
		HashCost:        f.Hash.Cost,
	}
	if err := cfg.Validate(); err != nil {
		return auth.Config{}, err
	}
	return cfg, nil
}

// ValidateStore checks that the selected store can be opened.
func (f File) ValidateStore() error {
	switch f.Store.Driver {
	case DriverMemory:
		return nil
	case DriverPostgres:
		if f.Store.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").
				With("store.driver", f.Store.Driver).
				Errorf("%s or --database-url is required for the postgres store", EnvDatabaseURL)
		}
		return nil
	default:
		return oops.Code("CONFIG_INVALID").
			With("store.driver", f.Store.Driver).
			Errorf("store driver must be %q or %q", DriverPostgres, DriverMemory)
	}
}

// ValidateNotify checks the notifier driver against the Redis settings.
func (f File) ValidateNotify() error {
	switch f.Notify.Driver {
	case "", NotifyLog:
		return nil
	case NotifyStream:
		if f.Redis.URL == "" {
			return oops.Code("CONFIG_INVALID").
				With("notify.driver", f.Notify.Driver).
				Errorf("%s or --redis-url is required for the stream notifier", EnvRedisURL)
		}
		return nil
	default:
		return oops.Code("CONFIG_INVALID").
			With("notify.driver", f.Notify.Driver).
			Errorf("notify driver must be %q or %q", NotifyStream, NotifyLog)
	}
}

// SigningKey returns the token signing key, failing when it is too short.
func (f File) SigningKey() ([]byte, error) {
	if len(f.Token.SigningKey) < auth.MinSigningKeyLength {
		return nil, oops.Code("CONFIG_INVALID").
			With("min", auth.MinSigningKeyLength).
			Errorf("%s must be at least %d bytes", EnvSigningKey, auth.MinSigningKeyLength)
	}
	return []byte(f.Token.SigningKey), nil
}
