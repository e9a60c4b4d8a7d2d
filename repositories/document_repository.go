package repositories

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/WeMakeGood/mg-asset-download/domain"
	"github.com/WeMakeGood/mg-asset-download/models"
)

type DocumentRepository interface {
	SelectEligible(limit int) ([]models.Document, error)
	MarkInProgress(id uint) error
	MarkCompleted(id uint) error
	MarkFailed(id uint) error
	UpdateBody(id uint, body string) error
	Counts() (total int64, completed int64, err error)
}

type PostgresDocumentRepository struct {
	DB *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{DB: db}
}

// SelectEligible returns up to limit documents whose status is unprocessed
// or failed, in repository-default order.
func (repo *PostgresDocumentRepository) SelectEligible(limit int) ([]models.Document, error) {
	var docs []models.Document
	err := repo.DB.
		Where("status IN ?", []string{domain.StatusUnprocessed, domain.StatusFailed}).
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select eligible documents: %w", err)
	}
	return docs, nil
}

func (repo *PostgresDocumentRepository) MarkInProgress(id uint) error {
	return repo.setStatus(id, domain.StatusInProgress)
}

func (repo *PostgresDocumentRepository) MarkCompleted(id uint) error {
	return repo.setStatus(id, domain.StatusCompleted)
}

func (repo *PostgresDocumentRepository) MarkFailed(id uint) error {
	return repo.setStatus(id, domain.StatusFailed)
}

func (repo *PostgresDocumentRepository) setStatus(id uint, status string) error {
	res := repo.DB.
		Model(&models.Document{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update status for document %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no document found to update status: %d", id)
	}
	return nil
}

// UpdateBody persists a rewritten document body.
func (repo *PostgresDocumentRepository) UpdateBody(id uint, body string) error {
	res := repo.DB.
		Model(&models.Document{}).
		Where("id = ?", id).
		Update("body", body)
	if res.Error != nil {
		return fmt.Errorf("failed to update body for document %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no document found to update body: %d", id)
	}
	return nil
}

// Counts returns the size of the tracked corpus and how much of it is
// localized. The total counts every document regardless of status, so the
// progress denominator never shrinks as work completes.
func (repo *PostgresDocumentRepository) Counts() (int64, int64, error) {
	var total, completed int64

	if err := repo.DB.Model(&models.Document{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count documents: %w", err)
	}
	if err := repo.DB.
		Model(&models.Document{}).
		Where("status = ?", domain.StatusCompleted).
		Count(&completed).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count completed documents: %w", err)
	}

	return total, completed, nil
}
