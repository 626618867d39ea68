package services

import (
	"fmt"
	"time"

	"github.com/fited/stocktrack/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/hints"
)

// InventoryGateway is the boundary to the remote inventory store: the
// stock table (one row per material, upsert keyed by material) and the
// append-only stock_log table.
type InventoryGateway interface {
	ListStock() ([]models.StockRecord, error)
	ListLog(limit int, material models.MaterialType) ([]models.StockLogEntry, error)
	UpsertStock(material models.MaterialType, quantity int) error
	InsertLog(entry *models.StockLogEntry) error
}

// AtomicAdjuster is the optional gateway extension that performs the
// whole read-clamp-write-log sequence in one store-side operation. The
// engine prefers it over the client-side read-modify-write because the
// latter races against concurrent writers.
type AtomicAdjuster interface {
	AdjustStock(material models.MaterialType, delta int, reason models.StockReason, note, userEmail string) (int, error)
}

// GormGateway implements InventoryGateway and AtomicAdjuster over the
// configured inventory database.
type GormGateway struct {
	DB *gorm.DB
}

// NewGormGateway constructs a gateway around an open connection
func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{DB: db}
}

// ListStock returns the full snapshot ordered by material, zero-filled
// for any material missing from the store so callers always see all
// five rows.
func (g *GormGateway) ListStock() ([]models.StockRecord, error) {
	var rows []models.StockRecord
	err := g.DB.Session(&gorm.Session{Logger: g.DB.Logger.LogMode(logger.Silent)}).
		Order("material ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byMaterial := make(map[models.MaterialType]models.StockRecord, len(rows))
	for _, r := range rows {
		if r.Quantity < 0 {
			r.Quantity = 0
		}
		byMaterial[r.Material] = r
	}

	out := make([]models.StockRecord, 0, len(models.Materials))
	for _, m := range models.Materials {
		if r, ok := byMaterial[m]; ok {
			out = append(out, r)
		} else {
			out = append(out, models.StockRecord{Material: m, Quantity: 0})
		}
	}

	return out, nil
}

// ListLog returns log entries newest first, optionally filtered by
// material, capped at limit. The comment hint tags the hot query in
// slow-query logs.
func (g *GormGateway) ListLog(limit int, material models.MaterialType) ([]models.StockLogEntry, error) {
	var entries []models.StockLogEntry

	query := g.DB.Session(&gorm.Session{Logger: g.DB.Logger.LogMode(logger.Silent)}).
		Clauses(hints.CommentBefore("select", "stock_log_recent")).
		Order("created_at DESC").
		Limit(limit)

	if material != "" {
		query = query.Where("material = ?", material)
	}

	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

// UpsertStock writes the quantity for one material, creating the row if
// absent. Idempotent, keyed by material.
func (g *GormGateway) UpsertStock(material models.MaterialType, quantity int) error {
	row := models.StockRecord{Material: material, Quantity: quantity}
	return g.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "material"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&row).Error
}

// InsertLog appends one audit entry. Entries are never updated or
// deleted.
func (g *GormGateway) InsertLog(entry *models.StockLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return g.DB.Create(entry).Error
}

// AdjustStock performs the read-clamp-write-log sequence in a single
// transaction with the stock row locked, so concurrent adjustments to
// the same material serialize at the store instead of clobbering each
// other. Returns the clamped new quantity; the log entry keeps the
// requested delta.
func (g *GormGateway) AdjustStock(material models.MaterialType, delta int, reason models.StockReason, note, userEmail string) (int, error) {
	var newQuantity int

	err := g.DB.Transaction(func(tx *gorm.DB) error {
		var row models.StockRecord
		err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("material = ?", material).
			First(&row).Error

		if err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			// First touch of this material, seed at zero
			row = models.StockRecord{Material: material, Quantity: 0}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		newQuantity = row.Quantity + delta
		if newQuantity < 0 {
			newQuantity = 0
		}

		if err := tx.Model(&models.StockRecord{}).
			Where("material = ?", material).
			Update("quantity", newQuantity).Error; err != nil {
			return err
		}

		entry := models.StockLogEntry{
			ID:        uuid.New().String(),
			CreatedAt: time.Now().UTC(),
			Material:  material,
			Delta:     delta,
			Reason:    reason,
			Note:      note,
			UserEmail: userEmail,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("stock updated but log insert failed: %w", err)
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	return newQuantity, nil
}
