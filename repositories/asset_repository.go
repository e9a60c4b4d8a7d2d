package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/WeMakeGood/mg-asset-download/models"
)

type AssetRepository interface {
	FindByOriginURL(url string) (*models.Asset, error)
	StorageKeyExists(key string) (bool, error)
	Create(asset *models.Asset) error
}

type PostgresAssetRepository struct {
	DB *gorm.DB
}

func NewAssetRepository(db *gorm.DB) *PostgresAssetRepository {
	return &PostgresAssetRepository{DB: db}
}

// FindByOriginURL looks up the local asset fetched from the given external
// URL. Returns nil when no asset exists for it yet.
func (repo *PostgresAssetRepository) FindByOriginURL(url string) (*models.Asset, error) {
	var asset models.Asset
	err := repo.DB.Where("origin_url = ?", url).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up asset by origin url: %w", err)
	}
	return &asset, nil
}

// StorageKeyExists reports whether a storage key is already taken in the
// asset namespace. Used for filename collision avoidance.
func (repo *PostgresAssetRepository) StorageKeyExists(key string) (bool, error) {
	var count int64
	err := repo.DB.
		Model(&models.Asset{}).
		Where("storage_key = ?", key).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check storage key: %w", err)
	}
	return count > 0, nil
}

func (repo *PostgresAssetRepository) Create(asset *models.Asset) error {
	if err := repo.DB.Create(asset).Error; err != nil {
		return fmt.Errorf("failed to create asset record: %w", err)
	}
	return nil
}
