// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicore/authcore/internal/observability"
)

// TokenTypeBearer is the token type reported to clients.
const TokenTypeBearer = "Bearer"

// TokenPair is the result of issuing a session.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        time.Duration
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AccessToken is the result of a refresh.
type AccessToken struct {
	Token     string
	TokenType string
	ExpiresIn time.Duration
	ExpiresAt time.Time
}

// SessionService issues, refreshes and validates bearer tokens.
type SessionService struct {
	codec TokenCodec
	store AccountStore
	cfg   Config
	opts  serviceOptions
}

// NewSessionService creates a new SessionService.
func NewSessionService(codec TokenCodec, store AccountStore, cfg Config, opts ...Option) (*SessionService, error) {
	if codec == nil {
		return nil, oops.Errorf("token codec is required")
	}
	if store == nil {
		return nil, oops.Errorf("account store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SessionService{
		codec: codec,
		store: store,
		cfg:   cfg,
		opts:  applyOptions(opts),
	}, nil
}

func claimsFor(account *Account, kind TokenKind) Claims {
	return Claims{
		Subject:     account.ID,
		Identifier:  account.Identifier,
		DisplayName: account.DisplayName,
		Kind:        kind,
	}
}

// Issue signs an access token and a refresh token for account.
// It does not touch the store.
func (s *SessionService) Issue(account *Account) (*TokenPair, error) {
	if account == nil {
		return nil, oops.Code(CodeInvalidRequest).Errorf("account is required")
	}

	access, accessExp, err := s.codec.Sign(claimsFor(account, TokenAccess), s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, oops.With("account_id", account.ID.String()).Wrapf(err, "sign access token")
	}
	refresh, refreshExp, err := s.codec.Sign(claimsFor(account, TokenRefresh), s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, oops.With("account_id", account.ID.String()).Wrapf(err, "sign refresh token")
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        s.cfg.AccessTokenTTL,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh exchanges a refresh token for a new access token.
//
// Every token problem, and a subject that no longer exists or is disabled
// or locked, fails with CodeInvalidToken. The refresh token is not rotated.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*AccessToken, error) {
	ctx, span := tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		s.opts.logger.DebugContext(ctx, "refresh token rejected", "error", err.Error())
		s.opts.metrics.RecordRefresh(observability.OutcomeRejected)
		return nil, errInvalidToken("verification failed")
	}
	if claims.Kind != TokenRefresh {
		s.opts.metrics.RecordRefresh(observability.OutcomeRejected)
		return nil, errInvalidToken("not a refresh token")
	}
	span.SetAttributes(attribute.String("account.id", claims.Subject.String()))

	account, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.opts.metrics.RecordRefresh(observability.OutcomeRejected)
			return nil, errInvalidToken("unknown subject")
		}
		s.opts.metrics.RecordRefresh(observability.OutcomeError)
		return nil, unavailable("find account by id", err)
	}
	if !account.Active {
		s.opts.metrics.RecordRefresh(observability.OutcomeDisabled)
		return nil, errInvalidToken("account disabled")
	}
	if account.IsLockedAt(s.opts.now()) {
		s.opts.metrics.RecordRefresh(observability.OutcomeLocked)
		return nil, errInvalidToken("account locked")
	}

	token, expiresAt, err := s.codec.Sign(claimsFor(account, TokenAccess), s.cfg.AccessTokenTTL)
	if err != nil {
		s.opts.metrics.RecordRefresh(observability.OutcomeError)
		return nil, oops.With("account_id", account.ID.String()).Wrapf(err, "sign access token")
	}

	s.opts.metrics.RecordRefresh(observability.OutcomeSuccess)
	s.opts.record(ctx, AuditEvent{
		Type:       EventTokenRefreshed,
		AccountID:  &account.ID,
		Identifier: account.Identifier,
		Outcome:    observability.OutcomeSuccess,
	})

	return &AccessToken{
		Token:     token,
		TokenType: TokenTypeBearer,
		ExpiresIn: s.cfg.AccessTokenTTL,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate reports whether token has a valid signature and is unexpired.
// Either token kind is accepted.
func (s *SessionService) Validate(token string) bool {
	if token == "" {
		return false
	}
	_, err := s.codec.Verify(token)
	return err == nil
}
