package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lpsaring/lpsaring/internal/domain/user"
	"github.com/lpsaring/lpsaring/internal/infrastructure/persistence/models"
	"github.com/lpsaring/lpsaring/internal/shared/db"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(gdb *gorm.DB) user.Repository {
	return &UserRepository{db: gdb}
}

func (r *UserRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db).WithContext(ctx)
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	model := userToModel(u)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var model models.UserModel
	err := r.conn(ctx).Where("id = ?", id.String()).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("user not found")
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return userToDomain(&model)
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone user.Phone) (*user.User, error) {
	var model models.UserModel
	err := r.conn(ctx).Where("phone = ?", string(phone)).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("user not found")
		}
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}
	return userToDomain(&model)
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	model := userToModel(u)
	result := r.conn(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFound("user not found")
	}
	return nil
}

func (r *UserRepository) ListQuotaManaged(ctx context.Context) ([]*user.User, error) {
	var userModels []models.UserModel
	err := r.conn(ctx).
		Where("role IN ? AND approval_status = ? AND active = ?",
			[]string{user.RoleUser.String(), user.RoleKomandan.String()},
			string(user.ApprovalApproved), true).
		Find(&userModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list quota-managed users: %w", err)
	}

	users := make([]*user.User, 0, len(userModels))
	for i := range userModels {
		u, err := userToDomain(&userModels[i])
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func userToModel(u *user.User) *models.UserModel {
	return &models.UserModel{
		ID:                  u.ID().String(),
		Phone:               string(u.Phone()),
		Role:                u.Role().String(),
		Active:              u.IsActive(),
		ApprovalStatus:      string(u.Approval()),
		Blocked:             u.IsBlocked(),
		BlockReason:         u.BlockReason(),
		Unlimited:           u.IsUnlimited(),
		TotalPurchasedMB:    u.TotalPurchasedMB(),
		TotalUsedMB:         u.TotalUsedMB(),
		AutoDebtOffsetMB:    u.AutoDebtOffsetMB(),
		ManualDebtMB:        u.ManualDebtMB(),
		QuotaExpiresAt:      u.QuotaExpiresAt(),
		LastLoginAt:         u.LastLoginAt(),
		LastNotifiedPercent: u.LastNotifiedPercent(),
		LastNotifiedDays:    u.LastNotifiedDays(),
		CreatedAt:           u.CreatedAt(),
		UpdatedAt:           u.UpdatedAt(),
	}
}

func userToDomain(m *models.UserModel) (*user.User, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", m.ID, err)
	}
	return user.ReconstructUser(
		id,
		user.Phone(m.Phone),
		user.Role(m.Role),
		m.Active,
		user.ApprovalStatus(m.ApprovalStatus),
		m.Blocked,
		m.BlockReason,
		m.Unlimited,
		m.TotalPurchasedMB, m.TotalUsedMB, m.AutoDebtOffsetMB, m.ManualDebtMB,
		m.QuotaExpiresAt, m.LastLoginAt,
		m.LastNotifiedPercent,
		m.LastNotifiedDays,
		m.CreatedAt, m.UpdatedAt,
	)
}
