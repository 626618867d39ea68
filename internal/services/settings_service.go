package services

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/fited/stocktrack/internal/models"
	"gorm.io/gorm"
)

const thresholdSettingName = "low_stock_thresholds"

// DefaultLowStockThreshold applies to any material without an explicit
// override.
const DefaultLowStockThreshold = 20

// SettingsService persists per-material low-stock thresholds in the
// client-local database as a single JSON settings row. Thresholds are
// alerting parameters, not authoritative inventory data.
type SettingsService struct {
	DB *gorm.DB

	mu     sync.RWMutex
	cached map[models.MaterialType]int
}

// NewSettingsService loads the threshold row, falling back to defaults
// when the row is absent or unreadable.
func NewSettingsService(db *gorm.DB) *SettingsService {
	s := &SettingsService{DB: db}
	s.cached = s.load()
	return s
}

// Threshold returns the low-stock threshold for a material
func (s *SettingsService) Threshold(material models.MaterialType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.cached[material]; ok {
		return v
	}
	return DefaultLowStockThreshold
}

// Thresholds returns the full per-material threshold map
func (s *SettingsService) Thresholds() map[models.MaterialType]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.MaterialType]int, len(models.Materials))
	for _, m := range models.Materials {
		if v, ok := s.cached[m]; ok {
			out[m] = v
		} else {
			out[m] = DefaultLowStockThreshold
		}
	}
	return out
}

// SetThresholds overwrites thresholds for the given materials and
// persists the merged map.
func (s *SettingsService) SetThresholds(updates map[models.MaterialType]int) error {
	for m, v := range updates {
		if _, err := models.ParseMaterial(string(m)); err != nil {
			return err
		}
		if v < 0 {
			updates[m] = 0
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[models.MaterialType]int, len(s.cached)+len(updates))
	for m, v := range s.cached {
		merged[m] = v
	}
	for m, v := range updates {
		merged[m] = v
	}

	value, err := json.Marshal(merged)
	if err != nil {
		return err
	}

	row := models.LocalSetting{SettingName: thresholdSettingName}
	if err := s.DB.Where("setting_name = ?", thresholdSettingName).
		Assign(map[string]interface{}{"setting_value": value}).
		FirstOrCreate(&row).Error; err != nil {
		return err
	}
	if err := s.DB.Model(&row).Update("setting_value", value).Error; err != nil {
		return err
	}

	s.cached = merged
	return nil
}

func (s *SettingsService) load() map[models.MaterialType]int {
	out := make(map[models.MaterialType]int)
	if s.DB == nil {
		return out
	}

	var row models.LocalSetting
	err := s.DB.Where("setting_name = ?", thresholdSettingName).First(&row).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Printf("failed to load thresholds, using defaults: %v", err)
		}
		return out
	}

	if err := json.Unmarshal(row.SettingValue, &out); err != nil {
		log.Printf("corrupt threshold settings, using defaults: %v", err)
		return make(map[models.MaterialType]int)
	}

	return out
}
