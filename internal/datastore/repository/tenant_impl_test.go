package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
)

func TestTenantRepository_SeedAndResolve(t *testing.T) {
	repo := NewTenantRepository(setupTestDB(t))
	ctx := context.Background()

	err := repo.Seed(ctx, []entities.Tenant{
		{ID: "tenant-a", Name: "Acme", APIKey: "key-acme", Active: true},
		{ID: "tenant-b", Name: "Globex", APIKey: "key-globex", Active: true},
	})
	require.NoError(t, err)

	tenant, err := repo.GetByAPIKey(ctx, "key-acme")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", tenant.ID)
	assert.Equal(t, "Acme", tenant.Name)
}

func TestTenantRepository_SeedUpsert(t *testing.T) {
	repo := NewTenantRepository(setupTestDB(t))
	ctx := context.Background()

	err := repo.Seed(ctx, []entities.Tenant{
		{ID: "tenant-a", Name: "Acme", APIKey: "key-old", Active: true},
	})
	require.NoError(t, err)

	// Re-seeding with a rotated key keeps the same tenant row.
	err = repo.Seed(ctx, []entities.Tenant{
		{ID: "tenant-a", Name: "Acme Corp", APIKey: "key-new", Active: true},
	})
	require.NoError(t, err)

	_, err = repo.GetByAPIKey(ctx, "key-old")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	tenant, err := repo.GetByAPIKey(ctx, "key-new")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", tenant.ID)
	assert.Equal(t, "Acme Corp", tenant.Name)

	tenants, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tenants, 1)
}

func TestTenantRepository_InactiveKeyRejected(t *testing.T) {
	repo := NewTenantRepository(setupTestDB(t))
	ctx := context.Background()

	err := repo.Seed(ctx, []entities.Tenant{
		{ID: "tenant-a", Name: "Acme", APIKey: "key-acme", Active: false},
	})
	require.NoError(t, err)

	_, err = repo.GetByAPIKey(ctx, "key-acme")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	// The row still exists and is reachable by ID.
	tenant, err := repo.GetByID(ctx, "tenant-a")
	require.NoError(t, err)
	assert.False(t, tenant.Active)
}

func TestTenantRepository_UnknownKey(t *testing.T) {
	repo := NewTenantRepository(setupTestDB(t))

	_, err := repo.GetByAPIKey(context.Background(), "no-such-key")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}
