package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lpsaring/lpsaring/internal/domain/auth"
	"github.com/lpsaring/lpsaring/internal/infrastructure/persistence/models"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	"github.com/lpsaring/lpsaring/internal/shared/db"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
)

type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(gdb *gorm.DB) auth.RefreshTokenRepository {
	return &RefreshTokenRepository{db: gdb}
}

func (r *RefreshTokenRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db).WithContext(ctx)
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *auth.RefreshToken) error {
	model := refreshTokenToModel(t)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	if t.ID() == 0 {
		if err := t.SetID(model.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *RefreshTokenRepository) Update(ctx context.Context, t *auth.RefreshToken) error {
	model := refreshTokenToModel(t)
	result := r.conn(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update refresh token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFound("refresh token not found")
	}
	return nil
}

// GetByHashForUpdate locks the token row for the remainder of the enclosing
// transaction. Callers must run inside TransactionManager.RunInTransaction.
func (r *RefreshTokenRepository) GetByHashForUpdate(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	var model models.RefreshTokenModel
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token_hash = ?", tokenHash).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("refresh token not found")
		}
		return nil, fmt.Errorf("failed to lock refresh token: %w", err)
	}
	return refreshTokenToDomain(&model)
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	var model models.RefreshTokenModel
	err := r.conn(ctx).Where("token_hash = ?", tokenHash).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("refresh token not found")
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return refreshTokenToDomain(&model)
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	err := r.conn(ctx).
		Model(&models.RefreshTokenModel{}).
		Where("user_id = ? AND revoked_at IS NULL", userID.String()).
		Update("revoked_at", biztime.NowUTC()).Error
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}

func refreshTokenToModel(t *auth.RefreshToken) *models.RefreshTokenModel {
	return &models.RefreshTokenModel{
		ID:           t.ID(),
		UserID:       t.UserID().String(),
		TokenHash:    t.TokenHash(),
		IssuedAt:     t.IssuedAt(),
		ExpiresAt:    t.ExpiresAt(),
		RevokedAt:    t.RevokedAt(),
		ReplacedByID: t.ReplacedByID(),
		Fingerprint:  t.Fingerprint(),
	}
}

func refreshTokenToDomain(m *models.RefreshTokenModel) (*auth.RefreshToken, error) {
	userID, err := uuid.Parse(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token user id %q: %w", m.UserID, err)
	}
	return auth.ReconstructRefreshToken(
		m.ID,
		userID,
		m.TokenHash,
		m.IssuedAt, m.ExpiresAt,
		m.RevokedAt,
		m.ReplacedByID,
		m.Fingerprint,
	)
}
