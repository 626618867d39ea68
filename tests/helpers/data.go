package helpers

import (
	"testing"
	"time"

	"github.com/fited/stocktrack/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SetStockLevel writes a quantity for a material directly, bypassing the
// adjustment engine
func SetStockLevel(t *testing.T, db *gorm.DB, material models.MaterialType, quantity int) {
	t.Helper()
	record := models.StockRecord{
		Material: material,
		Quantity: quantity,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "material"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		t.Fatalf("Failed to set stock level for %s: %v", material, err)
	}
}

// AppendLogEntry inserts an audit log entry directly
func AppendLogEntry(t *testing.T, db *gorm.DB, material models.MaterialType, delta int, reason models.StockReason, userEmail string) {
	t.Helper()
	entry := models.StockLogEntry{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Material:  material,
		Delta:     delta,
		Reason:    reason,
		UserEmail: userEmail,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("Failed to append log entry: %v", err)
	}
}
