package repository

import (
	"context"
	"time"

	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
)

// DeviceRepository handles device provisioning and liveness tracking.
type DeviceRepository interface {
	// Touch records a heartbeat for the device, auto-provisioning it on
	// first contact. The returned row reflects the updated state.
	Touch(ctx context.Context, tenantID, deviceID, deviceType string, seenAt time.Time) (*entities.Device, error)

	// Get returns a device scoped to the tenant.
	Get(ctx context.Context, tenantID, deviceID string) (*entities.Device, error)

	// ListByTenant returns the tenant's devices, most recently seen first.
	ListByTenant(ctx context.Context, tenantID string) ([]entities.Device, error)

	// MarkOffline flips devices silent since cutoff to offline and returns
	// the rows that changed in this sweep. Devices already offline are not
	// returned again.
	MarkOffline(ctx context.Context, cutoff time.Time) ([]entities.Device, error)

	// CountOffline returns the number of devices currently offline.
	CountOffline(ctx context.Context) (int64, error)
}
