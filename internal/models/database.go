package models

import (
	"fmt"

	"github.com/studymate/backend/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

func AutoMigrate() error {
	return DB.AutoMigrate(
		&CachedAnswer{},
		&UsageBucket{},
		&SystemConfig{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates default system configs if not exists
func SeedDefaultData() error {
	defaultConfigs := []SystemConfig{
		{Key: "cache_enabled", Value: "true", Type: "bool", Group: "cache", Label: "Enable Answer Cache"},
		{Key: "cache_ttl_seconds", Value: "2592000", Type: "int", Group: "cache", Label: "Answer Cache TTL (seconds)"},
		{Key: "analyze_cache_ttl_seconds", Value: "3600", Type: "int", Group: "cache", Label: "Analysis Cache TTL (seconds)"},
		{Key: "monitoring_enabled", Value: "true", Type: "bool", Group: "usage", Label: "Enable Usage Accounting"},
		{Key: "usage_daily_retention_days", Value: "90", Type: "int", Group: "usage", Label: "Daily Bucket Retention Days"},
		{Key: "usage_monthly_retention_days", Value: "365", Type: "int", Group: "usage", Label: "Monthly Bucket Retention Days"},
	}

	for _, cfg := range defaultConfigs {
		var count int64
		DB.Model(&SystemConfig{}).Where("key = ?", cfg.Key).Count(&count)
		if count == 0 {
			if err := DB.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
