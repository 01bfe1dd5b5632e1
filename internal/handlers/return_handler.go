package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"magazyn/internal/api/middleware"
	"magazyn/internal/models"
	"magazyn/internal/services"
	"magazyn/internal/utils/logger"
)

var returnLog = logger.New("RETURNS")

type ReturnHandler struct {
	db       *gorm.DB
	activity *services.ActivityLogger
}

func NewReturnHandler(db *gorm.DB, activity *services.ActivityLogger) *ReturnHandler {
	return &ReturnHandler{db: db, activity: activity}
}

type AddReturnRequest struct {
	DeviceSerial string `json:"device_serial" validate:"required"`
	DeviceType   string `json:"device_type"`
	DeviceStatus string `json:"device_status"`
}

type BulkReturnRequest struct {
	Serials      []string `json:"serials" validate:"required,min=1"`
	DeviceType   string   `json:"device_type"`
	DeviceStatus string   `json:"device_status"`
}

type UpdateReturnRequest struct {
	DeviceType   *string `json:"device_type"`
	DeviceStatus *string `json:"device_status"`
}

// hasActiveReturn reports whether a serial already sits in the pending
// returns queue.
func (h *ReturnHandler) hasActiveReturn(serial string) bool {
	var count int64
	h.db.Model(&models.DeviceReturn{}).
		Where("device_serial = ? AND returned_to_warehouse = ?", serial, false).
		Count(&count)
	return count > 0
}

// Add queues one device for warehouse return (admin only). At most one
// active entry may exist per serial.
func (h *ReturnHandler) Add(c echo.Context) error {
	var req AddReturnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Wymagany device_serial"})
	}

	serial := strings.TrimSpace(req.DeviceSerial)
	if h.hasActiveReturn(serial) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Urządzenie już jest w zwrotach"})
	}

	entry := models.DeviceReturn{
		DeviceSerial: serial,
		DeviceType:   req.DeviceType,
		DeviceStatus: req.DeviceStatus,
		AddedBy:      middleware.GetUser(c).UserID,
	}
	if err := h.db.Create(&entry).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	h.activity.Log(middleware.GetUser(c), models.ActionDeviceReturn,
		"Dodano urządzenie do zwrotów", serial)

	return c.JSON(http.StatusCreated, entry)
}

// Bulk queues a list of serials sharing one type/status (admin only).
// Duplicates are skipped and counted; each newly queued serial also flips
// the matching device to zwrocony and clears its owner.
func (h *ReturnHandler) Bulk(c echo.Context) error {
	var req BulkReturnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Wymagana lista serials"})
	}

	admin := middleware.GetUser(c)
	added := 0
	skipped := 0

	for _, raw := range req.Serials {
		serial := strings.TrimSpace(raw)
		if serial == "" {
			skipped++
			continue
		}
		if h.hasActiveReturn(serial) {
			skipped++
			continue
		}

		entry := models.DeviceReturn{
			DeviceSerial: serial,
			DeviceType:   req.DeviceType,
			DeviceStatus: req.DeviceStatus,
			AddedBy:      admin.UserID,
		}
		if err := h.db.Create(&entry).Error; err != nil {
			returnLog.Warn("bulk add failed for %s: %v", serial, err)
			skipped++
			continue
		}
		added++

		h.db.Model(&models.Device{}).Where("numer_seryjny = ?", serial).Updates(map[string]interface{}{
			"status":        models.DeviceStatusReturned,
			"przypisany_do": "",
		})
	}

	h.activity.Log(admin, models.ActionDeviceReturn,
		fmt.Sprintf("Dodano %d urządzeń do zwrotów", added), "")

	return c.JSON(http.StatusOK, map[string]interface{}{
		"added":   added,
		"skipped": skipped,
	})
}

// List returns queue entries, pending ones first (admin only). With
// ?pending=true only active entries are returned.
func (h *ReturnHandler) List(c echo.Context) error {
	query := h.db.Model(&models.DeviceReturn{})
	if c.QueryParam("pending") == "true" {
		query = query.Where("returned_to_warehouse = ?", false)
	}

	var returns []models.DeviceReturn
	if err := query.Order("returned_to_warehouse, created_at desc").Find(&returns).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, returns)
}

// Update edits type/status of a pending entry (admin only).
func (h *ReturnHandler) Update(c echo.Context) error {
	var entry models.DeviceReturn
	if err := h.db.Where("return_id = ?", c.Param("id")).First(&entry).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono zwrotu"})
	}
	if entry.ReturnedToWarehouse {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Zwrot został już zakończony"})
	}

	var req UpdateReturnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}

	if req.DeviceType != nil {
		entry.DeviceType = *req.DeviceType
	}
	if req.DeviceStatus != nil {
		entry.DeviceStatus = *req.DeviceStatus
	}
	if err := h.db.Save(&entry).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, entry)
}

// Delete removes a queue entry (admin only).
func (h *ReturnHandler) Delete(c echo.Context) error {
	result := h.db.Where("return_id = ?", c.Param("id")).Delete(&models.DeviceReturn{})
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono zwrotu"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Zwrot usunięty"})
}

// MarkAllReturned closes every pending entry with a timestamp (admin only).
// Idempotent: a second call flips nothing.
func (h *ReturnHandler) MarkAllReturned(c echo.Context) error {
	now := time.Now().UTC()
	result := h.db.Model(&models.DeviceReturn{}).
		Where("returned_to_warehouse = ?", false).
		Updates(map[string]interface{}{
			"returned_to_warehouse": true,
			"returned_at":           now,
		})
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	if result.RowsAffected > 0 {
		h.activity.Log(middleware.GetUser(c), models.ActionDeviceReturn,
			fmt.Sprintf("Oznaczono %d zwrotów jako przekazane do magazynu", result.RowsAffected), "")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"marked": result.RowsAffected,
	})
}

// Export streams the pending returns as an XLSX download. The route also
// accepts the session token as a query parameter, for clients that cannot
// set headers on a download link.
func (h *ReturnHandler) Export(c echo.Context) error {
	var returns []models.DeviceReturn
	if err := h.db.Where("returned_to_warehouse = ?", false).
		Order("created_at").Find(&returns).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			_ = returnLog.Error("failed to close export workbook", err)
		}
	}()

	sheet := f.GetSheetName(0)
	headers := []string{"Numer seryjny", "Typ urządzenia", "Status", "Data dodania"}
	for i, header := range headers {
		col := string(rune('A' + i))
		f.SetCellValue(sheet, col+"1", header)
	}

	for i, entry := range returns {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), entry.DeviceSerial)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), entry.DeviceType)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), entry.DeviceStatus)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), entry.CreatedAt.Format("2006-01-02 15:04"))
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	filename := fmt.Sprintf("zwroty_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buffer.Bytes())
}
