package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// AddDelta upserts the (user, date) row and increments it by deltaMB
	// atomically.
	AddDelta(ctx context.Context, userID uuid.UUID, date time.Time, deltaMB float64) error

	GetByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*DailyUsageLog, error)
	ListByUserRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*DailyUsageLog, error)

	// ResetDay zeroes the (user, date) row. Admin use only.
	ResetDay(ctx context.Context, userID uuid.UUID, date time.Time) error
}
