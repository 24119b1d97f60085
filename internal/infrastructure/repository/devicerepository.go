package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/infrastructure/persistence/models"
	"github.com/lpsaring/lpsaring/internal/shared/db"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(gdb *gorm.DB) device.Repository {
	return &DeviceRepository{db: gdb}
}

func (r *DeviceRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db).WithContext(ctx)
}

func (r *DeviceRepository) Create(ctx context.Context, d *device.Device) error {
	model := deviceToModel(d)
	if err := r.conn(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	if d.ID() == 0 {
		if err := d.SetID(model.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *DeviceRepository) Update(ctx context.Context, d *device.Device) error {
	model := deviceToModel(d)
	result := r.conn(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFound("device not found")
	}
	return nil
}

func (r *DeviceRepository) Delete(ctx context.Context, id uint) error {
	result := r.conn(ctx).Delete(&models.DeviceModel{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete device: %w", result.Error)
	}
	return nil
}

func (r *DeviceRepository) GetByUserAndMAC(ctx context.Context, userID uuid.UUID, mac device.MAC) (*device.Device, error) {
	var model models.DeviceModel
	err := r.conn(ctx).
		Where("user_id = ? AND mac_address = ?", userID.String(), mac.String()).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("device not found")
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return deviceToDomain(&model)
}

func (r *DeviceRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*device.Device, error) {
	var deviceModels []models.DeviceModel
	err := r.conn(ctx).
		Where("user_id = ?", userID.String()).
		Order("last_seen DESC").
		Find(&deviceModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devicesToDomain(deviceModels)
}

func (r *DeviceRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.conn(ctx).
		Model(&models.DeviceModel{}).
		Where("user_id = ?", userID.String()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

func (r *DeviceRepository) GetAuthorizedOwner(ctx context.Context, mac device.MAC, excludeUserID uuid.UUID) (*device.Device, error) {
	var model models.DeviceModel
	err := r.conn(ctx).
		Where("mac_address = ? AND is_authorized = ? AND user_id <> ?",
			mac.String(), true, excludeUserID.String()).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("no other owner")
		}
		return nil, fmt.Errorf("failed to check device ownership: %w", err)
	}
	return deviceToDomain(&model)
}

func (r *DeviceRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*device.Device, error) {
	var deviceModels []models.DeviceModel
	err := r.conn(ctx).
		Where("last_seen < ?", cutoff).
		Find(&deviceModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale devices: %w", err)
	}
	return devicesToDomain(deviceModels)
}

func (r *DeviceRepository) ListRecentIPs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	var ips []string
	err := r.conn(ctx).
		Model(&models.DeviceModel{}).
		Where("ip_address <> ''").
		Order("last_seen DESC").
		Limit(limit).
		Distinct().
		Pluck("ip_address", &ips).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent ips: %w", err)
	}
	return ips, nil
}

func devicesToDomain(deviceModels []models.DeviceModel) ([]*device.Device, error) {
	devices := make([]*device.Device, 0, len(deviceModels))
	for i := range deviceModels {
		d, err := deviceToDomain(&deviceModels[i])
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func deviceToModel(d *device.Device) *models.DeviceModel {
	return &models.DeviceModel{
		ID:             d.ID(),
		UserID:         d.UserID().String(),
		MACAddress:     d.MAC().String(),
		IPAddress:      d.IPAddress(),
		IsAuthorized:   d.IsAuthorized(),
		AuthorizedAt:   d.AuthorizedAt(),
		FirstSeen:      d.FirstSeen(),
		LastSeen:       d.LastSeen(),
		LastBytesTotal: d.LastBytesTotal(),
		UserAgent:      d.UserAgent(),
		CreatedAt:      d.CreatedAt(),
		UpdatedAt:      d.UpdatedAt(),
	}
}

func deviceToDomain(m *models.DeviceModel) (*device.Device, error) {
	userID, err := uuid.Parse(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid device user id %q: %w", m.UserID, err)
	}
	return device.ReconstructDevice(
		m.ID,
		userID,
		device.MAC(m.MACAddress),
		m.IPAddress,
		m.IsAuthorized,
		m.AuthorizedAt,
		m.FirstSeen, m.LastSeen,
		m.LastBytesTotal,
		m.UserAgent,
		m.CreatedAt, m.UpdatedAt,
	)
}
