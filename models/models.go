package models

import (
	"time"
)

// Document is a content item whose body may reference external assets.
// The localizer mutates the body and processing status; document lifecycle
// is owned by the content system.
type Document struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Title     string    `gorm:"type:text"`
	Body      string    `gorm:"type:text;not null"`
	Status    string    `gorm:"type:text;not null;default:unprocessed;index:idx_documents_status"`
	CreatedAt time.Time `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Document) TableName() string {
	return "documents"
}

// Asset is a locally stored copy of a previously external resource.
// OriginURL is the dedup key: each external URL is fetched at most once.
type Asset struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	OriginURL   string    `gorm:"column:origin_url;type:text;not null;uniqueIndex:idx_assets_origin_url"`
	StorageKey  string    `gorm:"column:storage_key;type:text;not null;uniqueIndex:idx_assets_storage_key"`
	LocalURL    string    `gorm:"column:local_url;type:text;not null"`
	ContentType string    `gorm:"column:content_type;type:text"`
	SizeBytes   int64     `gorm:"column:size_bytes"`
	CreatedAt   time.Time `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Asset) TableName() string {
	return "assets"
}
