package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=ON"), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "failed to get sql.DB")
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&entities.Tenant{},
		&entities.Device{},
		&entities.Alert{},
		&entities.TelemetryEvent{},
	)
	require.NoError(t, err, "failed to migrate schema")
	return db
}

func newTestAlert(tenantID, deviceID, ruleID string) *entities.Alert {
	return &entities.Alert{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		DeviceID:   deviceID,
		DeviceName: deviceID,
		RuleID:     ruleID,
		Metric:     "temperature",
		Value:      95.5,
		Severity:   4,
		Message:    "temperature is 95.5, above threshold 90",
		State:      entities.AlertStateOpen,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestAlertRepository_CreateAndFindOpen(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := context.Background()

	alert := newTestAlert("tenant-a", "sensor-01", "temp-critical")
	require.NoError(t, repo.Create(ctx, alert))

	found, err := repo.FindOpen(ctx, "tenant-a", "sensor-01", "temp-critical")
	require.NoError(t, err)
	assert.Equal(t, alert.ID, found.ID)
	assert.Equal(t, entities.AlertStateOpen, found.State)
	assert.Nil(t, found.AcknowledgedAt)
}

func TestAlertRepository_FindOpenNoMatch(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.FindOpen(ctx, "tenant-a", "sensor-01", "temp-critical")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestAlertRepository_FindOpenIgnoresAcknowledged(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := context.Background()

	alert := newTestAlert("tenant-a", "sensor-01", "temp-critical")
	require.NoError(t, repo.Create(ctx, alert))
	_, err := repo.Acknowledge(ctx, "tenant-a", alert.ID, time.Now().UTC())
	require.NoError(t, err)

	_, err = repo.FindOpen(ctx, "tenant-a", "sensor-01", "temp-critical")
	assert.ErrorIs(t, err, ErrAlertNotFound, "acknowledged alert must free the dedup key")
}

func TestAlertRepository_GetByIDScopedToTenant(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := context.Background()

	alert := newTestAlert("tenant-a", "sensor-01", "temp-critical")
	require.NoError(t, repo.Create(ctx, alert))

	found, err := repo.GetByID(ctx, "tenant-a", alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, found.ID)

	// Another tenant sees not-found, not forbidden.
	_, err = repo.GetByID(ctx, "tenant-b", alert.ID)
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestAlertRepository_ListOpen(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := context.Background()

	first := newTestAlert("tenant-a", "sensor-01", "temp-high")
	first.Severity = 3
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, first))

	second := newTestAlert("tenant-a", "sensor-02", "temp-critical")
	second.Severity = 4
	require.NoError(t, repo.Create(ctx, second))

	other := newTestAlert("tenant-b", "sensor-01", "temp-high")
	require.NoError(t, repo.Create(ctx, other))

	alerts, err := repo.ListOpen(ctx, "tenant-a", AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, second.ID, alerts[0].ID, "newest first")

	severity := 4
	alerts, err = repo.ListOpen(ctx, "tenant-a", AlertFilter{Severity: &severity})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, second.ID, alerts[0].ID)

	alerts, err = repo.ListOpen(ctx, "tenant-a", AlertFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestAlertRepository_Acknowledge(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := context.Background()

	alert := newTestAlert("tenant-a", "sensor-01", "temp-critical")
	require.NoError(t, repo.Create(ctx, alert))

	at := time.Now().UTC().Truncate(time.Second)
	acked, err := repo.Acknowledge(ctx, "tenant-a", alert.ID, at)
	require.NoError(t, err)
	assert.Equal(t, entities.AlertStateAcknowledged, acked.State)
	require.NotNil(t, acked.AcknowledgedAt)
	assert.True(t, acked.AcknowledgedAt.Equal(at))
}

func TestAlertRepository_AcknowledgeTwice(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := context.Background()

	alert := newTestAlert("tenant-a", "sensor-01", "temp-critical")
	require.NoError(t, repo.Create(ctx, alert))

	first := time.Now().UTC().Truncate(time.Second)
	_, err := repo.Acknowledge(ctx, "tenant-a", alert.ID, first)
	require.NoError(t, err)

	_, err = repo.Acknowledge(ctx, "tenant-a", alert.ID, first.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyAcknowledged)

	// The original acknowledgment timestamp survives.
	stored, err := repo.GetByID(ctx, "tenant-a", alert.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AcknowledgedAt)
	assert.True(t, stored.AcknowledgedAt.Equal(first))
}

func TestAlertRepository_AcknowledgeForeignTenant(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := context.Background()

	alert := newTestAlert("tenant-a", "sensor-01", "temp-critical")
	require.NoError(t, repo.Create(ctx, alert))

	_, err := repo.Acknowledge(ctx, "tenant-b", alert.ID, time.Now().UTC())
	assert.ErrorIs(t, err, ErrAlertNotFound)

	stored, err := repo.GetByID(ctx, "tenant-a", alert.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AlertStateOpen, stored.State)
}

func TestAlertRepository_ReopenAfterAcknowledge(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	ctx := context.Background()

	alert := newTestAlert("tenant-a", "sensor-01", "temp-critical")
	require.NoError(t, repo.Create(ctx, alert))
	_, err := repo.Acknowledge(ctx, "tenant-a", alert.ID, time.Now().UTC())
	require.NoError(t, err)

	// Same dedup key can hold a fresh open alert once the old one is closed.
	fresh := newTestAlert("tenant-a", "sensor-01", "temp-critical")
	require.NoError(t, repo.Create(ctx, fresh))

	found, err := repo.FindOpen(ctx, "tenant-a", "sensor-01", "temp-critical")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, found.ID)
}
