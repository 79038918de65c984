package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
)

// tenantRepository implements TenantRepository.
type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

// Seed upserts the configured tenants by primary key.
func (r *tenantRepository) Seed(ctx context.Context, tenants []entities.Tenant) error {
	if len(tenants) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "api_key", "active"}),
	}).Create(&tenants).Error
	if err != nil {
		return fmt.Errorf("failed to seed tenants: %w", err)
	}
	return nil
}

// GetByAPIKey resolves an API key to its active tenant.
func (r *tenantRepository) GetByAPIKey(ctx context.Context, apiKey string) (*entities.Tenant, error) {
	var tenant entities.Tenant
	err := r.db.WithContext(ctx).
		Where("api_key = ? AND active = ?", apiKey, true).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to resolve API key: %w", err)
	}
	return &tenant, nil
}

// GetByID returns the tenant with the given ID.
func (r *tenantRepository) GetByID(ctx context.Context, tenantID string) (*entities.Tenant, error) {
	var tenant entities.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", tenantID).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant %s: %w", tenantID, err)
	}
	return &tenant, nil
}

// List returns all tenants.
func (r *tenantRepository) List(ctx context.Context) ([]entities.Tenant, error) {
	var tenants []entities.Tenant
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}
