package usage

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// DailyUsageLog accumulates a user's metered traffic for one business-day.
// It only grows within a day, except by explicit admin reset.
type DailyUsageLog struct {
	id        uint
	userID    uuid.UUID
	date      time.Time
	usedMB    float64
	createdAt time.Time
	updatedAt time.Time
}

func NewDailyUsageLog(userID uuid.UUID, date time.Time, usedMB float64) (*DailyUsageLog, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user ID is required")
	}
	if usedMB < 0 {
		return nil, fmt.Errorf("usage cannot be negative")
	}

	now := time.Now()
	return &DailyUsageLog{
		userID:    userID,
		date:      date,
		usedMB:    roundMB(usedMB),
		createdAt: now,
		updatedAt: now,
	}, nil
}

func ReconstructDailyUsageLog(
	id uint,
	userID uuid.UUID,
	date time.Time,
	usedMB float64,
	createdAt, updatedAt time.Time,
) (*DailyUsageLog, error) {
	if id == 0 {
		return nil, fmt.Errorf("daily usage log ID cannot be zero")
	}
	return &DailyUsageLog{
		id:        id,
		userID:    userID,
		date:      date,
		usedMB:    usedMB,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

func (l *DailyUsageLog) ID() uint             { return l.id }
func (l *DailyUsageLog) UserID() uuid.UUID    { return l.userID }
func (l *DailyUsageLog) Date() time.Time      { return l.date }
func (l *DailyUsageLog) UsedMB() float64      { return l.usedMB }
func (l *DailyUsageLog) CreatedAt() time.Time { return l.createdAt }
func (l *DailyUsageLog) UpdatedAt() time.Time { return l.updatedAt }

// AddDelta appends metered traffic for the day.
func (l *DailyUsageLog) AddDelta(deltaMB float64) error {
	if deltaMB < 0 {
		return fmt.Errorf("usage delta cannot be negative")
	}
	l.usedMB = roundMB(l.usedMB + deltaMB)
	l.updatedAt = time.Now()
	return nil
}

// Reset zeroes the day. Admin use only.
func (l *DailyUsageLog) Reset() {
	l.usedMB = 0
	l.updatedAt = time.Now()
}

func roundMB(mb float64) float64 {
	return math.Round(mb*100) / 100
}
