package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studymate/backend/internal/models"
	"github.com/studymate/backend/internal/services"
)

var startTime = time.Now()

// Metrics returns Prometheus-compatible text format metrics.
func Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "studymate_uptime_seconds", "Time since server start in seconds", float64(time.Since(startTime).Seconds()))
	writeGauge(&b, "studymate_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "studymate_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "studymate_memory_sys_bytes", "Total memory obtained from OS in bytes", float64(m.Sys))
	writeGauge(&b, "studymate_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	db := models.GetDB()
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			stats := sqlDB.Stats()
			writeGauge(&b, "studymate_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
			writeGauge(&b, "studymate_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
			writeGauge(&b, "studymate_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
		}
	}

	// -- Queue metrics --
	taskQueue := services.GetTaskQueue()
	queueAsync := 0.0
	if taskQueue != nil && taskQueue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "studymate_queue_async_enabled", "Whether async queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	// -- Cache metrics --
	if db != nil {
		now := time.Now()
		var liveEntries, expiredEntries int64
		var totalHits int64
		db.Model(&models.CachedAnswer{}).Where("expires_at > ?", now).Count(&liveEntries)
		db.Model(&models.CachedAnswer{}).Where("expires_at <= ?", now).Count(&expiredEntries)
		db.Model(&models.CachedAnswer{}).Select("COALESCE(SUM(hit_count), 0)").Scan(&totalHits)

		writeGauge(&b, "studymate_cache_entries_live", "Cached answers not yet expired", float64(liveEntries))
		writeGauge(&b, "studymate_cache_entries_expired", "Cached answers past expiry awaiting sweep", float64(expiredEntries))
		writeGauge(&b, "studymate_cache_hits_total", "Lifetime cache hits across all entries", float64(totalHits))

		// -- Usage metrics (today's bucket) --
		var bucket models.UsageBucket
		err := db.Where("period_type = ? AND period_key = ?", models.PeriodDaily, services.DayKey(now)).
			First(&bucket).Error
		if err == nil {
			writeGauge(&b, "studymate_requests_today", "Requests accounted today", float64(bucket.TotalRequests))
			writeGauge(&b, "studymate_tokens_today", "Completion tokens consumed today", float64(bucket.TotalTokens))
			writeGauge(&b, "studymate_cost_today_usd", "Estimated upstream cost today in USD", bucket.TotalCost)
			writeGauge(&b, "studymate_cache_hits_today", "Requests served from cache today", float64(bucket.CacheHits))
		}
	}

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
