package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lpsaring/lpsaring/internal/domain/billing"
	"github.com/lpsaring/lpsaring/internal/infrastructure/persistence/models"
	"github.com/lpsaring/lpsaring/internal/shared/db"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
)

type PackageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(gdb *gorm.DB) billing.PackageRepository {
	return &PackageRepository{db: gdb}
}

func (r *PackageRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db).WithContext(ctx)
}

func (r *PackageRepository) Create(ctx context.Context, p *billing.Package) error {
	model := packageToModel(p)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create package: %w", err)
	}
	return nil
}

func (r *PackageRepository) GetByID(ctx context.Context, id uint) (*billing.Package, error) {
	var model models.PackageModel
	err := r.conn(ctx).First(&model, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("package not found")
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return packageToDomain(&model)
}

func (r *PackageRepository) List(ctx context.Context) ([]*billing.Package, error) {
	var packageModels []models.PackageModel
	if err := r.conn(ctx).Order("price_idr ASC").Find(&packageModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}

	packages := make([]*billing.Package, 0, len(packageModels))
	for i := range packageModels {
		p, err := packageToDomain(&packageModels[i])
		if err != nil {
			return nil, err
		}
		packages = append(packages, p)
	}
	return packages, nil
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(gdb *gorm.DB) billing.TransactionRepository {
	return &TransactionRepository{db: gdb}
}

func (r *TransactionRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db).WithContext(ctx)
}

func (r *TransactionRepository) Create(ctx context.Context, t *billing.Transaction) error {
	model := transactionToModel(t)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	if t.ID() == 0 {
		if err := t.SetID(model.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *billing.Transaction) error {
	model := transactionToModel(t)
	result := r.conn(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFound("transaction not found")
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uint) (*billing.Transaction, error) {
	var model models.TransactionModel
	err := r.conn(ctx).First(&model, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("transaction not found")
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return transactionToDomain(&model)
}

func (r *TransactionRepository) GetByProviderRef(ctx context.Context, ref string) (*billing.Transaction, error) {
	var model models.TransactionModel
	err := r.conn(ctx).Where("provider_ref = ?", ref).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("transaction not found")
		}
		return nil, fmt.Errorf("failed to get transaction by provider ref: %w", err)
	}
	return transactionToDomain(&model)
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*billing.Transaction, error) {
	var transactionModels []models.TransactionModel
	err := r.conn(ctx).
		Where("user_id = ?", userID.String()).
		Order("created_at DESC").
		Find(&transactionModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	transactions := make([]*billing.Transaction, 0, len(transactionModels))
	for i := range transactionModels {
		t, err := transactionToDomain(&transactionModels[i])
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, nil
}

func packageToModel(p *billing.Package) *models.PackageModel {
	return &models.PackageModel{
		ID:            p.ID(),
		Name:          p.Name(),
		PriceIDR:      p.PriceIDR(),
		DataQuotaGB:   p.DataQuotaGB(),
		DurationDays:  p.DurationDays(),
		RouterProfile: p.RouterProfile(),
		CreatedAt:     p.CreatedAt(),
		UpdatedAt:     p.UpdatedAt(),
	}
}

func packageToDomain(m *models.PackageModel) (*billing.Package, error) {
	return billing.ReconstructPackage(
		m.ID,
		m.Name,
		m.PriceIDR,
		m.DataQuotaGB,
		m.DurationDays,
		m.RouterProfile,
		m.CreatedAt, m.UpdatedAt,
	)
}

func transactionToModel(t *billing.Transaction) *models.TransactionModel {
	return &models.TransactionModel{
		ID:            t.ID(),
		UserID:        t.UserID().String(),
		PackageID:     t.PackageID(),
		AmountIDR:     t.AmountIDR(),
		Status:        string(t.Status()),
		PaymentMethod: t.PaymentMethod(),
		ProviderRef:   t.ProviderRef(),
		PaidAt:        t.PaidAt(),
		CreatedAt:     t.CreatedAt(),
		UpdatedAt:     t.UpdatedAt(),
	}
}

func transactionToDomain(m *models.TransactionModel) (*billing.Transaction, error) {
	userID, err := uuid.Parse(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction user id %q: %w", m.UserID, err)
	}
	return billing.ReconstructTransaction(
		m.ID,
		userID,
		m.PackageID,
		m.AmountIDR,
		billing.TransactionStatus(m.Status),
		m.PaymentMethod, m.ProviderRef,
		m.PaidAt,
		m.CreatedAt, m.UpdatedAt,
	)
}
