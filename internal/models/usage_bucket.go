package models

import "time"

// Bucket period types.
const (
	PeriodDaily   = "daily"   // key format YYYY-MM-DD
	PeriodMonthly = "monthly" // key format YYYY-MM
)

// UsageBucket aggregates token and cost usage for one day or one month.
// ByModel and ByMethod hold JSON-encoded sub-aggregate maps.
type UsageBucket struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PeriodType    string    `gorm:"size:10;not null;uniqueIndex:idx_period" json:"period_type"`
	PeriodKey     string    `gorm:"size:10;not null;uniqueIndex:idx_period" json:"period_key"`
	TotalRequests int64     `json:"total_requests"`
	TotalTokens   int64     `json:"total_tokens"`
	TotalCost     float64   `json:"total_cost"`
	CacheHits     int64     `json:"cache_hits"`
	ByModel       string    `gorm:"type:text" json:"-"`
	ByMethod      string    `gorm:"type:text" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (UsageBucket) TableName() string { return "usage_buckets" }
