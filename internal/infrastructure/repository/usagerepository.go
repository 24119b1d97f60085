package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lpsaring/lpsaring/internal/domain/usage"
	"github.com/lpsaring/lpsaring/internal/infrastructure/persistence/models"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	"github.com/lpsaring/lpsaring/internal/shared/db"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(gdb *gorm.DB) usage.Repository {
	return &UsageRepository{db: gdb}
}

func (r *UsageRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db).WithContext(ctx)
}

// AddDelta upserts the (user, date) row and increments used_mb atomically
// in one statement, so concurrent ticks never lose increments.
func (r *UsageRepository) AddDelta(ctx context.Context, userID uuid.UUID, date time.Time, deltaMB float64) error {
	if deltaMB < 0 {
		return errors.NewValidation("negative usage delta")
	}
	if deltaMB == 0 {
		return nil
	}

	now := biztime.NowUTC()
	model := models.DailyUsageLogModel{
		UserID:    userID.String(),
		Date:      biztime.StartOfDayUTC(date),
		UsedMB:    deltaMB,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"used_mb":    gorm.Expr("used_mb + ?", deltaMB),
			"updated_at": now,
		}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to add usage delta: %w", err)
	}
	return nil
}

func (r *UsageRepository) GetByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*usage.DailyUsageLog, error) {
	var model models.DailyUsageLogModel
	err := r.conn(ctx).
		Where("user_id = ? AND date = ?", userID.String(), biztime.StartOfDayUTC(date)).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("usage log not found")
		}
		return nil, fmt.Errorf("failed to get usage log: %w", err)
	}
	return usageToDomain(&model)
}

func (r *UsageRepository) ListByUserRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*usage.DailyUsageLog, error) {
	var usageModels []models.DailyUsageLogModel
	err := r.conn(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?",
			userID.String(), biztime.StartOfDayUTC(from), biztime.StartOfDayUTC(to)).
		Order("date ASC").
		Find(&usageModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list usage logs: %w", err)
	}

	logs := make([]*usage.DailyUsageLog, 0, len(usageModels))
	for i := range usageModels {
		l, err := usageToDomain(&usageModels[i])
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func (r *UsageRepository) ResetDay(ctx context.Context, userID uuid.UUID, date time.Time) error {
	err := r.conn(ctx).
		Model(&models.DailyUsageLogModel{}).
		Where("user_id = ? AND date = ?", userID.String(), biztime.StartOfDayUTC(date)).
		Updates(map[string]interface{}{
			"used_mb":    0,
			"updated_at": biztime.NowUTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reset usage day: %w", err)
	}
	return nil
}

func usageToDomain(m *models.DailyUsageLogModel) (*usage.DailyUsageLog, error) {
	userID, err := uuid.Parse(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid usage log user id %q: %w", m.UserID, err)
	}
	return usage.ReconstructDailyUsageLog(
		m.ID,
		userID,
		m.Date,
		m.UsedMB,
		m.CreatedAt, m.UpdatedAt,
	)
}
