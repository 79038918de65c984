package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
)

// deviceRepository implements DeviceRepository.
type deviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

// Touch records a heartbeat, creating the device on first contact.
func (r *deviceRepository) Touch(ctx context.Context, tenantID, deviceID, deviceType string, seenAt time.Time) (*entities.Device, error) {
	var device entities.Device
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("tenant_id = ? AND device_id = ?", tenantID, deviceID).First(&device).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			device = entities.Device{
				ID:         uuid.NewString(),
				TenantID:   tenantID,
				DeviceID:   deviceID,
				Name:       deviceID,
				DeviceType: deviceType,
				Status:     entities.DeviceStatusOnline,
				LastSeenAt: seenAt,
			}
			if err := tx.Create(&device).Error; err != nil {
				return fmt.Errorf("failed to provision device %s: %w", deviceID, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get device %s: %w", deviceID, err)
		}

		updates := map[string]any{
			"last_seen_at": seenAt,
			"status":       entities.DeviceStatusOnline,
		}
		// A device may be re-registered under a different type.
		if deviceType != "" && deviceType != device.DeviceType {
			updates["device_type"] = deviceType
			device.DeviceType = deviceType
		}
		if err := tx.Model(&device).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update device %s: %w", deviceID, err)
		}
		device.LastSeenAt = seenAt
		device.Status = entities.DeviceStatusOnline
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// Get returns a device scoped to the tenant.
func (r *deviceRepository) Get(ctx context.Context, tenantID, deviceID string) (*entities.Device, error) {
	var device entities.Device
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND device_id = ?", tenantID, deviceID).
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device %s: %w", deviceID, err)
	}
	return &device, nil
}

// ListByTenant returns the tenant's devices, most recently seen first.
func (r *deviceRepository) ListByTenant(ctx context.Context, tenantID string) ([]entities.Device, error) {
	var devices []entities.Device
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("last_seen_at DESC").
		Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

// CountOffline returns the number of devices currently offline.
func (r *deviceRepository) CountOffline(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.Device{}).
		Where("status = ?", entities.DeviceStatusOffline).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count offline devices: %w", err)
	}
	return count, nil
}

// MarkOffline flips silent devices to offline and returns the changed rows.
func (r *deviceRepository) MarkOffline(ctx context.Context, cutoff time.Time) ([]entities.Device, error) {
	var stale []entities.Device
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("status = ? AND last_seen_at < ?", entities.DeviceStatusOnline, cutoff).
			Find(&stale).Error
		if err != nil {
			return fmt.Errorf("failed to find stale devices: %w", err)
		}
		if len(stale) == 0 {
			return nil
		}
		ids := make([]string, 0, len(stale))
		for i := range stale {
			ids = append(ids, stale[i].ID)
			stale[i].Status = entities.DeviceStatusOffline
		}
		err = tx.Model(&entities.Device{}).
			Where("id IN ?", ids).
			Update("status", entities.DeviceStatusOffline).Error
		if err != nil {
			return fmt.Errorf("failed to mark devices offline: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}
