package services

import (
	"strconv"

	"github.com/studymate/backend/internal/models"
	"gorm.io/gorm"
)

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where("`key` = ?", key).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	err := s.db.Where("`key` = ?", key).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		cfg = models.SystemConfig{
			Key:   key,
			Value: value,
		}
		return s.db.Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&cfg).Update("value", value).Error
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Where("`group` = ?", group).Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *SystemConfigService) getBool(key string, defaultValue bool) bool {
	fallback := "false"
	if defaultValue {
		fallback = "true"
	}
	return s.GetWithDefault(key, fallback) == "true"
}

func (s *SystemConfigService) getInt(key string, defaultValue int) int {
	val, err := strconv.Atoi(s.GetWithDefault(key, strconv.Itoa(defaultValue)))
	if err != nil || val <= 0 {
		return defaultValue
	}
	return val
}

// Runtime-tunable knobs. Defaults match the seeded system configs.

func (s *SystemConfigService) CacheEnabled() bool {
	return s.getBool("cache_enabled", true)
}

func (s *SystemConfigService) CacheTTLSeconds() int {
	return s.getInt("cache_ttl_seconds", 2592000)
}

func (s *SystemConfigService) AnalyzeCacheTTLSeconds() int {
	return s.getInt("analyze_cache_ttl_seconds", 3600)
}

func (s *SystemConfigService) MonitoringEnabled() bool {
	return s.getBool("monitoring_enabled", true)
}

func (s *SystemConfigService) DailyRetentionDays() int {
	return s.getInt("usage_daily_retention_days", 90)
}

func (s *SystemConfigService) MonthlyRetentionDays() int {
	return s.getInt("usage_monthly_retention_days", 365)
}
