// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"time"
)

// LockoutPolicy controls progressive lockout after failed attempts.
type LockoutPolicy struct {
	// Threshold is the number of consecutive failures that triggers a lockout.
	Threshold int

	// Duration is how long the account stays locked.
	Duration time.Duration
}

// LockoutStatus describes the lockout state of an account at a point in time.
type LockoutStatus struct {
	// IsLockedOut indicates the account is temporarily locked.
	IsLockedOut bool

	// Remaining is the time until the lockout expires.
	Remaining time.Duration

	// AttemptsLeft is the number of failures allowed before the next lockout.
	AttemptsLeft int
}

// Status evaluates the lockout state of an account at now.
func (p LockoutPolicy) Status(failures int, lockedUntil *time.Time, now time.Time) LockoutStatus {
	if IsLockedOut(lockedUntil, now) {
		return LockoutStatus{
			IsLockedOut: true,
			Remaining:   lockedUntil.Sub(now),
		}
	}
	left := p.Threshold - failures
	if left < 1 {
		// An expired lockout leaves the counter in place; the next failure relocks.
		left = 1
	}
	return LockoutStatus{AttemptsLeft: left}
}

// LockUntil returns the lockout deadline for a lockout triggered at now.
func (p LockoutPolicy) LockUntil(now time.Time) time.Time {
	return now.Add(p.Duration)
}

// Triggered returns true if the failure count reached the threshold.
func (p LockoutPolicy) Triggered(failures int) bool {
	return failures >= p.Threshold
}

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}
