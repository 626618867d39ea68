package models

import (
	"time"

	"gorm.io/datatypes"
)

// LocalSetting is one named settings row in the client-local database.
// Values are JSON so a setting can hold the whole per-material threshold
// map in a single row.
type LocalSetting struct {
	SettingID    uint64         `gorm:"primaryKey;autoIncrement"`
	SettingName  string         `gorm:"uniqueIndex;size:255;not null"`
	SettingValue datatypes.JSON `gorm:"type:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the table name for LocalSetting
func (LocalSetting) TableName() string {
	return "local_settings"
}
