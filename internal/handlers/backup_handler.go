package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"magazyn/internal/api/middleware"
	"magazyn/internal/models"
	"magazyn/internal/services"
	"magazyn/internal/utils/logger"
)

var backupHandlerLog = logger.New("BACKUP_API")

// secretPlaceholder is what GetSettings returns in place of stored
// passwords. A client submitting it back means "keep the current value".
const secretPlaceholder = "********"

type BackupHandler struct {
	db       *gorm.DB
	service  *services.BackupService
	activity *services.ActivityLogger
}

func NewBackupHandler(db *gorm.DB, service *services.BackupService, activity *services.ActivityLogger) *BackupHandler {
	return &BackupHandler{db: db, service: service, activity: activity}
}

type CreateBackupRequest struct {
	SendEmail bool `json:"send_email"`
	SendFTP   bool `json:"send_ftp"`
}

// loadSettings returns the singleton settings row, creating an empty one
// on first access.
func (h *BackupHandler) loadSettings() (*models.BackupSettings, error) {
	var settings models.BackupSettings
	err := h.db.First(&settings).Error
	if err == gorm.ErrRecordNotFound {
		settings = models.BackupSettings{SMTPPort: 587, FTPPort: 21}
		if err := h.db.Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// GetSettings returns the backup configuration with passwords masked
// (admin only).
func (h *BackupHandler) GetSettings(c echo.Context) error {
	settings, err := h.loadSettings()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	masked := *settings
	if masked.SMTPPassword != "" {
		masked.SMTPPassword = secretPlaceholder
	}
	if masked.FTPPassword != "" {
		masked.FTPPassword = secretPlaceholder
	}
	return c.JSON(http.StatusOK, masked)
}

// SaveSettings replaces the backup configuration (admin only). Password
// fields left empty or set to the mask keep their stored values.
func (h *BackupHandler) SaveSettings(c echo.Context) error {
	current, err := h.loadSettings()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	var incoming models.BackupSettings
	if err := c.Bind(&incoming); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}

	if incoming.SMTPPassword == "" || incoming.SMTPPassword == secretPlaceholder {
		incoming.SMTPPassword = current.SMTPPassword
	}
	if incoming.FTPPassword == "" || incoming.FTPPassword == secretPlaceholder {
		incoming.FTPPassword = current.FTPPassword
	}
	incoming.ID = current.ID

	if err := h.db.Save(&incoming).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	masked := incoming
	if masked.SMTPPassword != "" {
		masked.SMTPPassword = secretPlaceholder
	}
	if masked.FTPPassword != "" {
		masked.FTPPassword = secretPlaceholder
	}
	return c.JSON(http.StatusOK, masked)
}

// Create runs a backup now (admin only). Channel selection comes from the
// request body; delivery failures are reported in the log entry, not as an
// HTTP error.
func (h *BackupHandler) Create(c echo.Context) error {
	var req CreateBackupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}

	settings, err := h.loadSettings()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	admin := middleware.GetUser(c)
	entry, err := h.service.Run(settings, admin.UserID, req.SendEmail, req.SendFTP)
	if err != nil {
		_ = backupHandlerLog.Error("manual backup failed", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Nie udało się utworzyć kopii zapasowej"})
	}

	h.activity.Log(admin, models.ActionBackup, "Utworzono kopię zapasową", "")
	return c.JSON(http.StatusOK, entry)
}

// Download streams a fresh snapshot as a JSON attachment (admin only).
func (h *BackupHandler) Download(c echo.Context) error {
	data, err := h.service.CreateBackupData()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	payload, err := h.service.Serialize(data)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	h.activity.Log(middleware.GetUser(c), models.ActionBackup, "Pobrano kopię zapasową", "")

	filename := services.Filename(data.CreatedAt)
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+strconv.Quote(filename))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, payload)
}

// Logs lists past backup attempts, newest first (admin only).
func (h *BackupHandler) Logs(c echo.Context) error {
	var logs []models.BackupLog
	if err := h.db.Order("created_at desc").Limit(50).Find(&logs).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, logs)
}

// TestEmail probes the stored SMTP configuration (admin only).
func (h *BackupHandler) TestEmail(c echo.Context) error {
	settings, err := h.loadSettings()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	if err := h.service.TestEmail(settings); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Test email nie powiódł się: " + err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Email testowy wysłany"})
}

// TestFTP probes the stored FTP configuration (admin only).
func (h *BackupHandler) TestFTP(c echo.Context) error {
	settings, err := h.loadSettings()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	if err := h.service.TestFTP(settings); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Test FTP nie powiódł się: " + err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Połączenie FTP działa"})
}
