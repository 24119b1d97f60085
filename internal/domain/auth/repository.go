package auth

import (
	"context"

	"github.com/google/uuid"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, t *RefreshToken) error
	Update(ctx context.Context, t *RefreshToken) error

	// GetByHashForUpdate locks the row (SELECT ... FOR UPDATE) so that
	// concurrent rotations of the same raw token serialize; callers must run
	// inside a transaction.
	GetByHashForUpdate(ctx context.Context, tokenHash string) (*RefreshToken, error)

	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}
