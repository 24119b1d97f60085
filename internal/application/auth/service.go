// Package auth implements refresh-token issuance and single-use rotation.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainAuth "github.com/lpsaring/lpsaring/internal/domain/auth"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
	"github.com/lpsaring/lpsaring/internal/shared/id"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

const rawTokenLength = 48

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service owns the refresh-token lifecycle. Rotation is single-transaction:
// the current row is locked, the replacement inserted, and the current row
// revoked with a link to its replacement. A second rotation of the same raw
// token observes the revocation and fails.
type Service struct {
	tokens domainAuth.RefreshTokenRepository
	tx     TxRunner
	ttl    time.Duration
	log    logger.Interface
	now    func() time.Time
}

func NewService(
	tokens domainAuth.RefreshTokenRepository,
	tx TxRunner,
	cfg *sharedConfig.AuthConfig,
	log logger.Interface,
) *Service {
	hours := cfg.RefreshTokenTTLHours
	if hours <= 0 {
		hours = 720
	}
	return &Service{
		tokens: tokens,
		tx:     tx,
		ttl:    time.Duration(hours) * time.Hour,
		log:    log.Named("auth"),
		now:    biztime.NowUTC,
	}
}

// Issue creates a fresh refresh token and returns its raw value. Only the
// hash is stored.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID, fingerprint string) (string, error) {
	raw, err := id.Generate(rawTokenLength)
	if err != nil {
		return "", errors.NewInternal("failed to generate refresh token", err)
	}

	token, err := domainAuth.NewRefreshToken(userID, raw, fingerprint, s.ttl, s.now())
	if err != nil {
		return "", err
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", err
	}
	return raw, nil
}

// Rotate exchanges a live refresh token for a new one. Reuse of an already
// rotated token revokes every session of the owning user.
func (s *Service) Rotate(ctx context.Context, rawToken, fingerprint string) (string, error) {
	newRaw, err := id.Generate(rawTokenLength)
	if err != nil {
		return "", errors.NewInternal("failed to generate refresh token", err)
	}

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.tokens.GetByHashForUpdate(ctx, domainAuth.HashToken(rawToken))
		if err != nil {
			return err
		}
		now := s.now()

		if current.IsRevoked() {
			s.log.Warnw("refresh token reuse detected, revoking all sessions",
				"user_id", current.UserID())
			if err := s.tokens.RevokeAllForUser(ctx, current.UserID()); err != nil {
				return err
			}
			return errors.NewConflict("refresh token already rotated")
		}
		if current.IsExpired(now) {
			return errors.NewValidation("refresh token expired")
		}
		if current.Fingerprint() != "" && fingerprint != "" && current.Fingerprint() != fingerprint {
			return errors.NewConflict("refresh token fingerprint mismatch")
		}

		replacement, err := domainAuth.NewRefreshToken(current.UserID(), newRaw, fingerprint, s.ttl, now)
		if err != nil {
			return err
		}
		if err := s.tokens.Create(ctx, replacement); err != nil {
			return err
		}
		if err := current.RevokeAndLink(replacement.ID(), now); err != nil {
			return err
		}
		return s.tokens.Update(ctx, current)
	})
	if err != nil {
		return "", err
	}
	return newRaw, nil
}

// RevokeAll terminates every session of a user.
func (s *Service) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}
