package database

import (
	"fmt"
	"log"

	"github.com/fited/stocktrack/internal/config"
	"github.com/fited/stocktrack/internal/models"
	glebarez "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes the inventory database connection based on the
// configured DB_TYPE
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DBType {
	case "mysql", "mariadb":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBDatabase,
		)
		dialector = mysql.Open(dsn)

	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBDatabase,
			cfg.DBPort,
		)
		dialector = postgres.Open(dsn)

	case "sqlite":
		// For SQLite, DBDatabase is the file path
		dialector = sqlite.Open(cfg.DBDatabase)

	case "sqlserver", "mssql":
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBDatabase,
		)
		dialector = sqlserver.Open(dsn)

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB for connection pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(cfg.DBConnectionLimit)
	sqlDB.SetMaxIdleConns(cfg.DBConnectionLimit / 2)

	log.Printf("Connected to %s database: %s", cfg.DBType, cfg.DBDatabase)

	return db, nil
}

// ConnectSettings opens the client-local settings database. Pure-Go
// sqlite so the binary stays cgo-free regardless of the inventory DB.
func ConnectSettings(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(glebarez.Open(cfg.SettingsDBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	if err := db.AutoMigrate(&models.LocalSetting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate settings database: %w", err)
	}

	log.Printf("Opened local settings database: %s", cfg.SettingsDBPath)

	return db, nil
}

// AutoMigrate runs automatic migrations for the inventory models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.StockRecord{},
		&models.StockLogEntry{},
	)
}

// SeedStock ensures one zero-quantity row exists per material. Existing
// rows are left untouched.
func SeedStock(db *gorm.DB) error {
	for _, m := range models.Materials {
		row := models.StockRecord{Material: m, Quantity: 0}
		if err := db.Where("material = ?", m).FirstOrCreate(&row).Error; err != nil {
			return fmt.Errorf("failed to seed stock row for %s: %w", m, err)
		}
	}
	return nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
