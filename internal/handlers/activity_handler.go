package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"magazyn/internal/models"
)

type ActivityHandler struct {
	db *gorm.DB
}

func NewActivityHandler(db *gorm.DB) *ActivityHandler {
	return &ActivityHandler{db: db}
}

// Recent lists the newest activity entries (admin only). ?limit= caps the
// result, default 100, max 500.
func (h *ActivityHandler) Recent(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 500 {
		limit = 500
	}

	var entries []models.ActivityLog
	if err := h.db.Order("created_at desc").Limit(limit).Find(&entries).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, entries)
}

// ByUser lists a single user's activity, newest first (admin only).
func (h *ActivityHandler) ByUser(c echo.Context) error {
	var entries []models.ActivityLog
	if err := h.db.Where("user_id = ?", c.Param("id")).
		Order("created_at desc").Limit(200).Find(&entries).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, entries)
}

// ByDevice lists the history of one device serial, newest first (admin only).
func (h *ActivityHandler) ByDevice(c echo.Context) error {
	var entries []models.ActivityLog
	if err := h.db.Where("device_serial = ?", c.Param("serial")).
		Order("created_at desc").Find(&entries).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, entries)
}
