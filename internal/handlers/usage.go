package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studymate/backend/internal/models"
	"github.com/studymate/backend/internal/services"
	"github.com/studymate/backend/pkg/response"
)

// UsageHandler provides endpoints for usage statistics.
type UsageHandler struct {
	usageService *services.UsageService
}

func NewUsageHandler(usageService *services.UsageService) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

// GetDaily returns the usage bucket for one day. Defaults to today.
// GET /api/usage/daily?date=2026-08-30
func (h *UsageHandler) GetDaily(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = services.DayKey(time.Now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return
	}

	stats, err := h.usageService.GetDailyStats(date)
	if err != nil {
		response.ServerError(c, "failed to get daily usage: "+err.Error())
		return
	}
	if stats == nil {
		stats = services.EmptyStats(models.PeriodDaily, date)
	}

	response.Success(c, stats)
}

// GetMonthly returns the usage bucket for one month. Defaults to the
// current month.
// GET /api/usage/monthly?month=2026-08
func (h *UsageHandler) GetMonthly(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		month = services.MonthKey(time.Now())
	} else if _, err := time.Parse("2006-01", month); err != nil {
		response.BadRequest(c, "month must be YYYY-MM")
		return
	}

	stats, err := h.usageService.GetMonthlyStats(month)
	if err != nil {
		response.ServerError(c, "failed to get monthly usage: "+err.Error())
		return
	}
	if stats == nil {
		stats = services.EmptyStats(models.PeriodMonthly, month)
	}

	response.Success(c, stats)
}

// GetSummary returns aggregate usage across a date range.
// GET /api/usage/summary?start_date=2026-08-01&end_date=2026-08-30
func (h *UsageHandler) GetSummary(c *gin.Context) {
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")
	if endDate == "" {
		endDate = services.DayKey(time.Now())
	}
	if startDate == "" {
		startDate = services.DayKey(time.Now().AddDate(0, 0, -30))
	}

	summary, err := h.usageService.GetSummary(startDate, endDate)
	if err != nil {
		response.ServerError(c, "failed to get usage summary: "+err.Error())
		return
	}

	response.Success(c, summary)
}
