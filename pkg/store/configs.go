package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fincore/gateway/pkg/config"
)

// ConfigRepository stores connector configurations by unique name.
type ConfigRepository struct {
	db *gorm.DB
}

// NewConfigRepository creates a ConfigRepository.
func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Create inserts cfg. A config with the same name yields ErrAlreadyExists.
func (r *ConfigRepository) Create(ctx context.Context, cfg *config.ConnectorConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := encodeValues(cfg.Data)
	if err != nil {
		return fmt.Errorf("failed to encode config for %s: %w", cfg.Name, err)
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&ConnectorConfigModel{}).
		Where("name = ?", cfg.Name).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("connector config %s: %w", cfg.Name, ErrAlreadyExists)
	}

	model := ConnectorConfigModel{
		ID:         uuid.NewString(),
		Name:       cfg.Name,
		Type:       cfg.Type,
		ConfigJSON: data,
		IsActive:   cfg.Active,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("connector config %s: %w", cfg.Name, ErrAlreadyExists)
		}
		return err
	}
	return nil
}

// Get finds a config by name.
func (r *ConfigRepository) Get(ctx context.Context, name string) (*config.ConnectorConfig, error) {
	var model ConnectorConfigModel
	if err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToConfig(), nil
}

// List returns configs ordered by name, optionally only active ones.
func (r *ConfigRepository) List(ctx context.Context, activeOnly bool) ([]*config.ConnectorConfig, error) {
	query := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var models []ConnectorConfigModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*config.ConnectorConfig, len(models))
	for i := range models {
		out[i] = models[i].ToConfig()
	}
	return out, nil
}

// Update replaces the type, data and active flag of the config named
// cfg.Name.
func (r *ConfigRepository) Update(ctx context.Context, cfg *config.ConnectorConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := encodeValues(cfg.Data)
	if err != nil {
		return fmt.Errorf("failed to encode config for %s: %w", cfg.Name, err)
	}

	result := r.db.WithContext(ctx).Model(&ConnectorConfigModel{}).
		Where("name = ?", cfg.Name).
		Updates(map[string]any{
			"type":        cfg.Type,
			"config_data": data,
			"is_active":   cfg.Active,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Upsert creates cfg or updates the existing config of the same name.
func (r *ConfigRepository) Upsert(ctx context.Context, cfg *config.ConnectorConfig) (created bool, err error) {
	err = r.Update(ctx, cfg)
	if errors.Is(err, ErrNotFound) {
		return true, r.Create(ctx, cfg)
	}
	return false, err
}

// Delete removes the config named name.
func (r *ConfigRepository) Delete(ctx context.Context, name string) error {
	result := r.db.WithContext(ctx).Where("name = ?", name).Delete(&ConnectorConfigModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
