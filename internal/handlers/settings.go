package handlers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/studymate/backend/internal/services"
	"github.com/studymate/backend/pkg/response"
	"gorm.io/gorm"
)

// SettingsHandler exposes the runtime system configuration.
type SettingsHandler struct {
	configService *services.SystemConfigService
}

func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{
		configService: services.NewSystemConfigService(db),
	}
}

// allowed keys and their declared value types
var settingTypes = map[string]string{
	"cache_enabled":                "bool",
	"cache_ttl_seconds":            "int",
	"analyze_cache_ttl_seconds":    "int",
	"monitoring_enabled":           "bool",
	"usage_daily_retention_days":   "int",
	"usage_monthly_retention_days": "int",
}

// validateSettingValue rejects values the typed accessors could not read
// back. Bools accept only the literals true and false, matching how the
// config service reads them.
func validateSettingValue(typ, value string) error {
	switch typ {
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("value must be true or false")
		}
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("value must be a non-negative integer")
		}
	}
	return nil
}

// List returns all settings, optionally filtered by group.
// GET /api/settings?group=cache
func (h *SettingsHandler) List(c *gin.Context) {
	group := c.Query("group")

	var groups []string
	if group != "" {
		groups = []string{group}
	} else {
		groups = []string{"cache", "usage", "general"}
	}

	settings := map[string]string{}
	for _, g := range groups {
		configs, err := h.configService.GetByGroup(g)
		if err != nil {
			response.ServerError(c, "failed to list settings: "+err.Error())
			return
		}
		for _, cfg := range configs {
			settings[cfg.Key] = cfg.Value
		}
	}

	response.Success(c, settings)
}

type updateSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

// Update sets one setting by key.
// PUT /api/settings/:key
func (h *SettingsHandler) Update(c *gin.Context) {
	key := c.Param("key")
	typ, ok := settingTypes[key]
	if !ok {
		response.NotFound(c, "unknown setting: "+key)
		return
	}

	var req updateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := validateSettingValue(typ, req.Value); err != nil {
		response.BadRequest(c, key+": "+err.Error())
		return
	}

	if err := h.configService.Set(key, req.Value); err != nil {
		response.ServerError(c, "failed to update setting: "+err.Error())
		return
	}

	response.Success(c, gin.H{"key": key, "value": req.Value})
}
