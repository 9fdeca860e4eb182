// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Default security configuration.
const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 30 * time.Minute
	DefaultAccessTokenTTL   = 24 * time.Hour
	DefaultRefreshTokenTTL  = 7 * 24 * time.Hour
	DefaultRecoveryCodeTTL  = 30 * time.Minute
	DefaultHashCost         = 10
)

// Config is the process-wide security configuration. It is built once at
// startup and shared read-only by all services.
type Config struct {
	Lockout         LockoutPolicy
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	RecoveryCodeTTL time.Duration
	HashAlgorithm   string
	HashCost        int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Lockout: LockoutPolicy{
			Threshold: DefaultLockoutThreshold,
			Duration:  DefaultLockoutDuration,
		},
		AccessTokenTTL:  DefaultAccessTokenTTL,
		RefreshTokenTTL: DefaultRefreshTokenTTL,
		RecoveryCodeTTL: DefaultRecoveryCodeTTL,
		HashAlgorithm:   HashBcrypt,
		HashCost:        DefaultHashCost,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Lockout.Threshold < 1 {
		return oops.Code("CONFIG_INVALID").With("lockout.threshold", c.Lockout.Threshold).
			Errorf("lockout threshold must be at least 1")
	}
	if c.Lockout.Duration <= 0 {
		return oops.Code("CONFIG_INVALID").With("lockout.duration", c.Lockout.Duration).
			Errorf("lockout duration must be positive")
	}
	if c.AccessTokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("token.access_ttl", c.AccessTokenTTL).
			Errorf("access token ttl must be positive")
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		return oops.Code("CONFIG_INVALID").With("token.refresh_ttl", c.RefreshTokenTTL).
			Errorf("refresh token ttl must not be shorter than the access token ttl")
	}
	if c.RecoveryCodeTTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("recovery.code_ttl", c.RecoveryCodeTTL).
			Errorf("recovery code ttl must be positive")
	}
	switch c.HashAlgorithm {
	case HashBcrypt, HashArgon2id:
	default:
		return oops.Code("CONFIG_INVALID").With("hash.algorithm", c.HashAlgorithm).
			Errorf("hash algorithm must be %q or %q", HashBcrypt, HashArgon2id)
	}
	if c.HashCost < 0 {
		return oops.Code("CONFIG_INVALID").With("hash.cost", c.HashCost).
			Errorf("hash cost must not be negative")
	}
	return nil
}
