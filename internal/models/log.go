package models

import (
	"time"
)

// StockLogEntry is one append-only audit row per adjustment. The delta
// is the originally requested signed change, NOT the clamped effect:
// the log records intent, the stock table records fact.
type StockLogEntry struct {
	ID        string       `gorm:"primaryKey;type:char(36)" json:"id"`
	CreatedAt time.Time    `gorm:"index:idx_stock_log_created_at" json:"created_at"`
	Material  MaterialType `gorm:"size:16;not null;index" json:"material"`
	Delta     int          `gorm:"not null" json:"delta"`
	Reason    StockReason  `gorm:"size:32;not null" json:"reason"`
	Note      string       `gorm:"size:512" json:"note,omitempty"`
	UserEmail string       `gorm:"size:255;not null" json:"user_email"`
}

// TableName overrides the table name for StockLogEntry
func (StockLogEntry) TableName() string {
	return "stock_log"
}
