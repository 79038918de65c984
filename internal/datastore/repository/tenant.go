package repository

import (
	"context"

	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
)

// TenantRepository handles tenant persistence and API-key resolution.
type TenantRepository interface {
	// Seed upserts the configured tenants. Existing rows keep their ID;
	// name, API key, and active flag follow the configuration.
	Seed(ctx context.Context, tenants []entities.Tenant) error

	// GetByAPIKey resolves an API key to its active tenant. Unknown keys
	// and keys of deactivated tenants both return ErrTenantNotFound.
	GetByAPIKey(ctx context.Context, apiKey string) (*entities.Tenant, error)

	// GetByID returns the tenant with the given ID.
	GetByID(ctx context.Context, tenantID string) (*entities.Tenant, error)

	// List returns all tenants.
	List(ctx context.Context) ([]entities.Tenant, error)
}
