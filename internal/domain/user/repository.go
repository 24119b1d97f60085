package user

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByPhone(ctx context.Context, phone Phone) (*User, error)
	Update(ctx context.Context, u *User) error

	// ListQuotaManaged returns approved, active users with role USER or
	// KOMANDAN, the population subject to the quota sync loop.
	ListQuotaManaged(ctx context.Context) ([]*User, error)
}
