package models

import (
	"time"
)

// StoreDocument is one node of the billing document tree. Path is a
// slash-separated key such as "clients/client_1712345678901" or
// "billingData/client_1712345678901/widgets". Value holds the whole
// document as JSON; writes replace it in full.
type StoreDocument struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Path      string `gorm:"size:512;uniqueIndex:idx_store_documents_path;not null"`
	Value     JSON   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name
func (StoreDocument) TableName() string {
	return "store_documents"
}
