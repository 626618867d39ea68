package models

import (
	"time"
)

// StockRecord is the current quantity for one material. Exactly one row
// per material exists (upsert keyed by material); quantity never goes
// negative (adjustments clamp at zero).
type StockRecord struct {
	Material  MaterialType `gorm:"primaryKey;size:16" json:"material"`
	Quantity  int          `gorm:"not null;default:0" json:"quantity"`
	CreatedAt time.Time    `json:"-"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TableName overrides the table name for StockRecord
func (StockRecord) TableName() string {
	return "stock"
}
