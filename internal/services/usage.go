package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/studymate/backend/internal/models"
	"gorm.io/gorm"
)

// UsageEvent describes one mediated request for accounting purposes. Events
// are ephemeral: they are folded into daily and monthly buckets, not stored.
type UsageEvent struct {
	Model            string    `json:"model"`
	Method           string    `json:"method"` // logical operation, e.g. "generateAnswer"
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	EstimatedCost    float64   `json:"estimated_cost"`
	Timestamp        time.Time `json:"timestamp"`
	Cached           bool      `json:"cached"`
}

// SubAggregate is a per-model or per-method slice of a bucket.
type SubAggregate struct {
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// UsageStats is the JSON view of one usage bucket.
type UsageStats struct {
	PeriodType    string                  `json:"period_type"`
	PeriodKey     string                  `json:"period_key"`
	TotalRequests int64                   `json:"total_requests"`
	TotalTokens   int64                   `json:"total_tokens"`
	TotalCost     float64                 `json:"total_cost"`
	CacheHits     int64                   `json:"cache_hits"`
	ByModel       map[string]SubAggregate `json:"by_model"`
	ByMethod      map[string]SubAggregate `json:"by_method"`
}

// UsageService folds usage events into daily and monthly buckets.
// Bucket updates are read-modify-write; the mutex serializes them within
// this process, and Record is normally reached through the task queue so
// events from one instance are applied one at a time.
type UsageService struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewUsageService(db *gorm.DB) *UsageService {
	return &UsageService{db: db}
}

// DayKey and MonthKey format bucket keys from an event timestamp.
func DayKey(t time.Time) string   { return t.Format("2006-01-02") }
func MonthKey(t time.Time) string { return t.Format("2006-01") }

// EmptyStats is a zero-valued bucket view for periods with no recorded usage.
func EmptyStats(periodType, periodKey string) *UsageStats {
	return &UsageStats{
		PeriodType: periodType,
		PeriodKey:  periodKey,
		ByModel:    map[string]SubAggregate{},
		ByMethod:   map[string]SubAggregate{},
	}
}

// Record applies one event to its day and month buckets. Every event counts
// one request; cached events increment cache_hits only, while completion
// events add tokens, cost and the per-model/per-method sub-aggregates.
func (s *UsageService) Record(event *UsageEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := applyToBucket(tx, models.PeriodDaily, DayKey(event.Timestamp), event); err != nil {
			return err
		}
		return applyToBucket(tx, models.PeriodMonthly, MonthKey(event.Timestamp), event)
	})
}

func applyToBucket(tx *gorm.DB, periodType, periodKey string, event *UsageEvent) error {
	var bucket models.UsageBucket
	err := tx.Where("period_type = ? AND period_key = ?", periodType, periodKey).First(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bucket = models.UsageBucket{PeriodType: periodType, PeriodKey: periodKey}
	} else if err != nil {
		return fmt.Errorf("load %s bucket %s: %w", periodType, periodKey, err)
	}

	byModel, err := decodeAggregates(bucket.ByModel)
	if err != nil {
		return fmt.Errorf("decode by_model for %s %s: %w", periodType, periodKey, err)
	}
	byMethod, err := decodeAggregates(bucket.ByMethod)
	if err != nil {
		return fmt.Errorf("decode by_method for %s %s: %w", periodType, periodKey, err)
	}

	bucket.TotalRequests++
	if event.Cached {
		bucket.CacheHits++
	} else {
		bucket.TotalTokens += int64(event.TotalTokens)
		bucket.TotalCost += event.EstimatedCost

		model := byModel[event.Model]
		model.Requests++
		model.Tokens += int64(event.TotalTokens)
		model.Cost += event.EstimatedCost
		byModel[event.Model] = model

		method := byMethod[event.Method]
		method.Requests++
		method.Tokens += int64(event.TotalTokens)
		method.Cost += event.EstimatedCost
		byMethod[event.Method] = method
	}

	if bucket.ByModel, err = encodeAggregates(byModel); err != nil {
		return err
	}
	if bucket.ByMethod, err = encodeAggregates(byMethod); err != nil {
		return err
	}

	return tx.Save(&bucket).Error
}

func decodeAggregates(raw string) (map[string]SubAggregate, error) {
	aggregates := make(map[string]SubAggregate)
	if raw == "" {
		return aggregates, nil
	}
	if err := json.Unmarshal([]byte(raw), &aggregates); err != nil {
		return nil, err
	}
	return aggregates, nil
}

func encodeAggregates(aggregates map[string]SubAggregate) (string, error) {
	data, err := json.Marshal(aggregates)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetDailyStats returns the bucket for the given day (YYYY-MM-DD), or nil if
// no usage was recorded that day.
func (s *UsageService) GetDailyStats(date string) (*UsageStats, error) {
	return s.getStats(models.PeriodDaily, date)
}

// GetMonthlyStats returns the bucket for the given month (YYYY-MM), or nil if
// no usage was recorded that month.
func (s *UsageService) GetMonthlyStats(month string) (*UsageStats, error) {
	return s.getStats(models.PeriodMonthly, month)
}

func (s *UsageService) getStats(periodType, periodKey string) (*UsageStats, error) {
	var bucket models.UsageBucket
	err := s.db.Where("period_type = ? AND period_key = ?", periodType, periodKey).First(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	byModel, err := decodeAggregates(bucket.ByModel)
	if err != nil {
		return nil, err
	}
	byMethod, err := decodeAggregates(bucket.ByMethod)
	if err != nil {
		return nil, err
	}

	return &UsageStats{
		PeriodType:    bucket.PeriodType,
		PeriodKey:     bucket.PeriodKey,
		TotalRequests: bucket.TotalRequests,
		TotalTokens:   bucket.TotalTokens,
		TotalCost:     bucket.TotalCost,
		CacheHits:     bucket.CacheHits,
		ByModel:       byModel,
		ByMethod:      byMethod,
	}, nil
}

// UsageSummary holds scalar totals across a range of daily buckets.
type UsageSummary struct {
	TotalRequests int64   `json:"total_requests"`
	TotalTokens   int64   `json:"total_tokens"`
	TotalCost     float64 `json:"total_cost"`
	CacheHits     int64   `json:"cache_hits"`
	Days          int64   `json:"days"`
}

// GetSummary aggregates daily buckets between startDate and endDate
// (inclusive, YYYY-MM-DD). Empty bounds are open-ended.
func (s *UsageService) GetSummary(startDate, endDate string) (*UsageSummary, error) {
	query := s.db.Model(&models.UsageBucket{}).Where("period_type = ?", models.PeriodDaily)
	if startDate != "" {
		query = query.Where("period_key >= ?", startDate)
	}
	if endDate != "" {
		query = query.Where("period_key <= ?", endDate)
	}

	var summary UsageSummary
	err := query.Select(
		"COALESCE(SUM(total_requests), 0) as total_requests, " +
			"COALESCE(SUM(total_tokens), 0) as total_tokens, " +
			"COALESCE(SUM(total_cost), 0) as total_cost, " +
			"COALESCE(SUM(cache_hits), 0) as cache_hits, " +
			"COUNT(*) as days",
	).Scan(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// CleanupBuckets deletes daily buckets older than dailyRetention days and
// monthly buckets older than monthlyRetention days. Key comparison works
// because both key formats sort lexicographically.
func (s *UsageService) CleanupBuckets(dailyRetention, monthlyRetention int) (int64, error) {
	now := time.Now()

	dailyCutoff := DayKey(now.AddDate(0, 0, -dailyRetention))
	result := s.db.Where("period_type = ? AND period_key < ?", models.PeriodDaily, dailyCutoff).
		Delete(&models.UsageBucket{})
	if result.Error != nil {
		return result.RowsAffected, result.Error
	}
	removed := result.RowsAffected

	monthlyCutoff := MonthKey(now.AddDate(0, 0, -monthlyRetention))
	result = s.db.Where("period_type = ? AND period_key < ?", models.PeriodMonthly, monthlyCutoff).
		Delete(&models.UsageBucket{})
	return removed + result.RowsAffected, result.Error
}
