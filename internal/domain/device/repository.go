package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Device) error
	Update(ctx context.Context, d *Device) error
	Delete(ctx context.Context, id uint) error

	GetByUserAndMAC(ctx context.Context, userID uuid.UUID, mac MAC) (*Device, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Device, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// GetAuthorizedOwner returns the device row holding an authorization for
	// this MAC under a different user, if any. Used for cross-user conflict
	// detection.
	GetAuthorizedOwner(ctx context.Context, mac MAC, excludeUserID uuid.UUID) (*Device, error)

	// ListStale returns devices not seen since the cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]*Device, error)

	// ListRecentIPs returns distinct last-known IPs of devices seen most
	// recently, for MAC-cache warming.
	ListRecentIPs(ctx context.Context, limit int) ([]string, error)
}
