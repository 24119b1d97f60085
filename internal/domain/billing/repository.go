package billing

import (
	"context"

	"github.com/google/uuid"
)

type PackageRepository interface {
	Create(ctx context.Context, p *Package) error
	GetByID(ctx context.Context, id uint) (*Package, error)
	List(ctx context.Context) ([]*Package, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, t *Transaction) error
	Update(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uint) (*Transaction, error)
	GetByProviderRef(ctx context.Context, ref string) (*Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Transaction, error)
}
