// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported hash algorithms.
const (
	HashBcrypt   = "bcrypt"
	HashArgon2id = "argon2id"
)

// OWASP-recommended argon2id parameters; the time cost is configurable.
const (
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptySecret is returned when attempting to hash an empty secret.
var ErrEmptySecret = oops.Code(CodeInvalidRequest).Errorf("secret cannot be empty")

// PasswordHasher provides one-way secret hashing and verification.
type PasswordHasher interface {
	// Hash produces a hash of the secret using the configured cost.
	Hash(secret string) (string, error)

	// Verify checks if the secret matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(secret, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash was produced by another
	// algorithm or a lower cost than currently configured.
	NeedsUpgrade(hash string) bool
}

// NewPasswordHasher returns the hasher for algorithm with the given cost.
// For bcrypt the cost is the bcrypt work factor; for argon2id it is the
// number of iterations.
func NewPasswordHasher(algorithm string, cost int) (PasswordHasher, error) {
	switch algorithm {
	case "", HashBcrypt:
		return NewBcryptHasher(cost)
	case HashArgon2id:
		return NewArgon2idHasher(cost)
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("algorithm", algorithm).
			Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A zero cost selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("CONFIG_INVALID").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt hash of the secret.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("algorithm", HashBcrypt).Wrap(err)
	}
	return string(hashed), nil
}

// Verify checks if the secret matches the hash.
func (h *BcryptHasher) Verify(secret, hash string) (bool, error) {
	return verifyHash(secret, hash)
}

// NeedsUpgrade returns true for non-bcrypt hashes or hashes below the configured cost.
func (h *BcryptHasher) NeedsUpgrade(hash string) bool {
	if !isBcryptHash(hash) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < h.cost
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	time uint32
}

// NewArgon2idHasher creates an Argon2idHasher. A zero cost selects one iteration.
func NewArgon2idHasher(iterations int) (*Argon2idHasher, error) {
	if iterations == 0 {
		iterations = 1
	}
	if iterations < 1 || iterations > 16 {
		return nil, oops.Code("CONFIG_INVALID").
			With("cost", iterations).
			Errorf("argon2id iterations must be between 1 and 16")
	}
	return &Argon2idHasher{time: uint32(iterations)}, nil
}

// Hash produces an argon2id hash of the secret.
func (h *Argon2idHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(secret), salt, h.time, argon2Memory, argon2Threads, argon2KeyLen)

	// PHC string format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		h.time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks if the secret matches the hash.
func (h *Argon2idHasher) Verify(secret, hash string) (bool, error) {
	return verifyHash(secret, hash)
}

// NeedsUpgrade returns true for non-argon2id hashes or hashes with fewer iterations.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	if !strings.HasPrefix(hash, "$argon2id$") {
		return true
	}
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		return true
	}
	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return true
	}
	return iterations < h.time
}

// verifyHash dispatches on the hash prefix so either hasher can verify
// credentials stored before an algorithm change.
func verifyHash(secret, hash string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return verifyArgon2id(secret, hash)
	case isBcryptHash(hash):
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, oops.Code("AUTH_INVALID_HASH").With("algorithm", HashBcrypt).Wrap(err)
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unrecognized hash format")
	}
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func verifyArgon2id(secret, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	if threads > 255 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d exceeds uint8 max", threads)
	}

	keyLen := len(expectedHash)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	computedHash := argon2.IDKey([]byte(secret), salt, iterations, memory, uint8(threads), uint32(keyLen))

	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1, nil
}
