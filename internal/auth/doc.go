// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package auth provides account authentication and security-state management.
//
// # Domain Types
//
// Account is the authenticatable identity record. New accounts should be
// created with NewAccount, which validates the identifier and requires a
// pre-computed secret hash. Direct struct initialization bypasses validation.
//
// # Services
//
// Service types coordinate the store, hasher and token codec:
//   - AuthenticationService - credential checks, lockout, login/logout
//   - SessionService - bearer token issue, refresh and validation
//   - RecoveryService - recovery codes, reset and change of secret
//   - ProvisioningService - initial account setup, provisioning, unlock
//
// All mutations of lockout counters and recovery fields are delegated to
// AccountStore methods that must execute atomically per account.
//
// # Errors
//
// Every error returned by a service is an oops error carrying one of the
// Code* constants. Store failures surface as CodeUnavailable so an outage is
// never reported as a failed login.
package auth
