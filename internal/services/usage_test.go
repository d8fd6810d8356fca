package services

import (
	"math"
	"testing"
	"time"
)

func TestUsageRecord_Additivity(t *testing.T) {
	db := newTestDB(t)
	usage := NewUsageService(db)

	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tokens := []int{10, 25, 40}
	var totalTokens int64
	for _, n := range tokens {
		event := &UsageEvent{
			Model:            "gpt-4o-mini",
			Method:           "generateAnswer",
			PromptTokens:     n - 5,
			CompletionTokens: 5,
			TotalTokens:      n,
			EstimatedCost:    float64(n) * 0.001,
			Timestamp:        ts,
		}
		if err := usage.Record(event); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		totalTokens += int64(n)
	}

	stats, err := usage.GetDailyStats("2026-08-30")
	if err != nil {
		t.Fatalf("GetDailyStats failed: %v", err)
	}
	if stats == nil {
		t.Fatal("expected a daily bucket")
	}
	if stats.TotalRequests != int64(len(tokens)) {
		t.Errorf("TotalRequests = %d, expected %d", stats.TotalRequests, len(tokens))
	}
	if stats.TotalTokens != totalTokens {
		t.Errorf("TotalTokens = %d, expected %d", stats.TotalTokens, totalTokens)
	}
	if stats.ByModel["gpt-4o-mini"].Requests != int64(len(tokens)) {
		t.Errorf("byModel requests = %d, expected %d", stats.ByModel["gpt-4o-mini"].Requests, len(tokens))
	}
	if stats.ByMethod["generateAnswer"].Tokens != totalTokens {
		t.Errorf("byMethod tokens = %d, expected %d", stats.ByMethod["generateAnswer"].Tokens, totalTokens)
	}

	monthly, err := usage.GetMonthlyStats("2026-08")
	if err != nil {
		t.Fatalf("GetMonthlyStats failed: %v", err)
	}
	if monthly == nil || monthly.TotalTokens != totalTokens {
		t.Errorf("monthly bucket should mirror the daily totals, got %+v", monthly)
	}
}

func TestUsageRecord_CachedEvents(t *testing.T) {
	db := newTestDB(t)
	usage := NewUsageService(db)

	ts := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	if err := usage.Record(&UsageEvent{
		Model: "gpt-4o-mini", Method: "generateAnswer",
		TotalTokens: 25, EstimatedCost: 0.01, Timestamp: ts,
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := usage.Record(&UsageEvent{
		Model: "gpt-4o-mini", Method: "generateAnswer",
		Timestamp: ts, Cached: true,
	}); err != nil {
		t.Fatalf("Record cached failed: %v", err)
	}

	stats, err := usage.GetDailyStats("2026-08-30")
	if err != nil || stats == nil {
		t.Fatalf("GetDailyStats failed: %v", err)
	}

	if stats.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, expected 2 (cached events still count)", stats.TotalRequests)
	}
	if stats.CacheHits != 1 {
		t.Errorf("CacheHits = %d, expected 1", stats.CacheHits)
	}
	if stats.TotalTokens != 25 {
		t.Errorf("TotalTokens = %d, cached events must not add tokens", stats.TotalTokens)
	}
	if math.Abs(stats.TotalCost-0.01) > 1e-9 {
		t.Errorf("TotalCost = %f, cached events must not add cost", stats.TotalCost)
	}
	if stats.ByModel["gpt-4o-mini"].Requests != 1 {
		t.Error("cached events must not touch per-model aggregates")
	}
}

func TestUsageRecord_PerModelBreakdown(t *testing.T) {
	db := newTestDB(t)
	usage := NewUsageService(db)

	ts := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	usage.Record(&UsageEvent{Model: "cheap", Method: "generateAnswer", TotalTokens: 10, Timestamp: ts})
	usage.Record(&UsageEvent{Model: "capable", Method: "analyzeAnswer", TotalTokens: 40, Timestamp: ts})

	stats, err := usage.GetDailyStats("2026-08-30")
	if err != nil || stats == nil {
		t.Fatalf("GetDailyStats failed: %v", err)
	}

	if stats.ByModel["cheap"].Tokens != 10 {
		t.Errorf("byModel[cheap].tokens = %d, expected 10", stats.ByModel["cheap"].Tokens)
	}
	if stats.ByModel["capable"].Tokens != 40 {
		t.Errorf("byModel[capable].tokens = %d, expected 40", stats.ByModel["capable"].Tokens)
	}
	if stats.TotalTokens != 50 {
		t.Errorf("TotalTokens = %d, expected 50", stats.TotalTokens)
	}
	if stats.ByMethod["generateAnswer"].Requests != 1 || stats.ByMethod["analyzeAnswer"].Requests != 1 {
		t.Error("per-method requests not tracked correctly")
	}
}

func TestUsageStats_MissingPeriod(t *testing.T) {
	db := newTestDB(t)
	usage := NewUsageService(db)

	stats, err := usage.GetDailyStats("1999-01-01")
	if err != nil {
		t.Fatalf("GetDailyStats failed: %v", err)
	}
	if stats != nil {
		t.Errorf("expected nil for a period with no usage, got %+v", stats)
	}
}

func TestUsageSummary(t *testing.T) {
	db := newTestDB(t)
	usage := NewUsageService(db)

	usage.Record(&UsageEvent{Model: "m", Method: "generateAnswer", TotalTokens: 10, EstimatedCost: 0.5,
		Timestamp: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)})
	usage.Record(&UsageEvent{Model: "m", Method: "generateAnswer", TotalTokens: 20, EstimatedCost: 1.0,
		Timestamp: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)})
	usage.Record(&UsageEvent{Model: "m", Method: "generateAnswer", TotalTokens: 99,
		Timestamp: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)})

	summary, err := usage.GetSummary("2026-08-01", "2026-08-31")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if summary.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, expected 2", summary.TotalRequests)
	}
	if summary.TotalTokens != 30 {
		t.Errorf("TotalTokens = %d, expected 30", summary.TotalTokens)
	}
	if math.Abs(summary.TotalCost-1.5) > 1e-9 {
		t.Errorf("TotalCost = %f, expected 1.5", summary.TotalCost)
	}
	if summary.Days != 2 {
		t.Errorf("Days = %d, expected 2", summary.Days)
	}
}

func TestCleanupBuckets(t *testing.T) {
	db := newTestDB(t)
	usage := NewUsageService(db)

	old := time.Now().AddDate(0, 0, -120)
	recent := time.Now()
	usage.Record(&UsageEvent{Model: "m", Method: "generateAnswer", TotalTokens: 1, Timestamp: old})
	usage.Record(&UsageEvent{Model: "m", Method: "generateAnswer", TotalTokens: 1, Timestamp: recent})

	removed, err := usage.CleanupBuckets(90, 365)
	if err != nil {
		t.Fatalf("CleanupBuckets failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, expected only the stale daily bucket", removed)
	}

	stats, _ := usage.GetDailyStats(DayKey(recent))
	if stats == nil {
		t.Error("recent daily bucket should survive cleanup")
	}
	monthly, _ := usage.GetMonthlyStats(MonthKey(old))
	if monthly == nil {
		t.Error("monthly bucket within retention should survive cleanup")
	}
}
