package services

import (
	"testing"
)

func TestSystemConfig_SetAndGet(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemConfigService(db)

	if err := svc.Set("cache_enabled", "false"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err := svc.Get("cache_enabled")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "false" {
		t.Errorf("value = %q, expected %q", value, "false")
	}

	// Update path
	if err := svc.Set("cache_enabled", "true"); err != nil {
		t.Fatalf("Set update failed: %v", err)
	}
	if v, _ := svc.Get("cache_enabled"); v != "true" {
		t.Errorf("value after update = %q, expected %q", v, "true")
	}
}

func TestSystemConfig_GetWithDefault(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemConfigService(db)

	if v := svc.GetWithDefault("missing_key", "fallback"); v != "fallback" {
		t.Errorf("GetWithDefault = %q, expected fallback", v)
	}

	svc.Set("present_key", "stored")
	if v := svc.GetWithDefault("present_key", "fallback"); v != "stored" {
		t.Errorf("GetWithDefault = %q, expected stored value", v)
	}
}

func TestSystemConfig_TypedKnobs(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemConfigService(db)

	// Defaults when unset
	if !svc.CacheEnabled() {
		t.Error("CacheEnabled should default to true")
	}
	if svc.CacheTTLSeconds() != 2592000 {
		t.Errorf("CacheTTLSeconds default = %d, expected 2592000", svc.CacheTTLSeconds())
	}
	if svc.AnalyzeCacheTTLSeconds() != 3600 {
		t.Errorf("AnalyzeCacheTTLSeconds default = %d, expected 3600", svc.AnalyzeCacheTTLSeconds())
	}
	if !svc.MonitoringEnabled() {
		t.Error("MonitoringEnabled should default to true")
	}
	if svc.DailyRetentionDays() != 90 || svc.MonthlyRetentionDays() != 365 {
		t.Error("retention defaults should be 90/365 days")
	}

	// Overridden values
	svc.Set("cache_ttl_seconds", "7200")
	if svc.CacheTTLSeconds() != 7200 {
		t.Errorf("CacheTTLSeconds = %d, expected 7200", svc.CacheTTLSeconds())
	}
	svc.Set("monitoring_enabled", "false")
	if svc.MonitoringEnabled() {
		t.Error("monitoring_enabled=false should disable monitoring")
	}

	// Garbage int falls back to default
	svc.Set("usage_daily_retention_days", "not-a-number")
	if svc.DailyRetentionDays() != 90 {
		t.Errorf("invalid int should fall back to default, got %d", svc.DailyRetentionDays())
	}
}
