package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"magazyn/internal/api/middleware"
	"magazyn/internal/models"
	"magazyn/internal/services"
)

type InstallationHandler struct {
	db       *gorm.DB
	activity *services.ActivityLogger
}

func NewInstallationHandler(db *gorm.DB, activity *services.ActivityLogger) *InstallationHandler {
	return &InstallationHandler{db: db, activity: activity}
}

type CreateInstallationRequest struct {
	DeviceID       string  `json:"device_id" validate:"required"`
	AdresKlienta   string  `json:"adres_klienta"`
	Adres          string  `json:"adres"` // legacy alias kept for older clients
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	RodzajZlecenia string  `json:"rodzaj_zlecenia"`
}

// Create records an installation. The device flips to zainstalowany and its
// ownership moves to the current admin: installed devices live in a central
// admin-owned pool, the installer is kept as metadata on the device and in
// the installation record.
func (h *InstallationHandler) Create(c echo.Context) error {
	user := middleware.GetUser(c)

	var req CreateInstallationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Wymagane device_id"})
	}

	address := strings.TrimSpace(req.AdresKlienta)
	if address == "" {
		address = strings.TrimSpace(req.Adres)
	}
	if address == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Adres klienta jest wymagany"})
	}

	var device models.Device
	if err := h.db.Where("device_id = ?", req.DeviceID).First(&device).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono urządzenia"})
	}

	if user.Role != models.UserRoleAdmin && device.PrzypisanyDo != user.UserID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Urządzenie nie jest do Ciebie przypisane"})
	}

	rodzaj := req.RodzajZlecenia
	if rodzaj == "" {
		rodzaj = "instalacja"
	}

	installation := models.Installation{
		DeviceID:        device.DeviceID,
		UserID:          user.UserID,
		NazwaUrzadzenia: device.Nazwa,
		AdresKlienta:    address,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		RodzajZlecenia:  rodzaj,
	}
	if err := h.db.Create(&installation).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	// Installed devices return to the admin pool for tracking.
	newOwner := user.UserID
	var admin models.User
	if err := h.db.Where("role = ?", models.UserRoleAdmin).Order("created_at").First(&admin).Error; err == nil {
		newOwner = admin.UserID
	}

	h.db.Model(&device).Updates(map[string]interface{}{
		"status":        models.DeviceStatusInstalled,
		"przypisany_do": newOwner,
		"zainstalowal":  user.UserID,
	})

	h.activity.Log(user, models.ActionInstallation,
		"Zainstalowano urządzenie "+device.Nazwa+" pod adresem "+address, device.NumerSeryjny)

	return c.JSON(http.StatusCreated, installation)
}

// List returns installations; non-admins only see their own.
func (h *InstallationHandler) List(c echo.Context) error {
	user := middleware.GetUser(c)

	query := h.db.Model(&models.Installation{})
	if userID := c.QueryParam("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	} else if user.Role != models.UserRoleAdmin {
		query = query.Where("user_id = ?", user.UserID)
	}
	if rodzaj := c.QueryParam("rodzaj_zlecenia"); rodzaj != "" {
		query = query.Where("rodzaj_zlecenia = ?", rodzaj)
	}
	if from := c.QueryParam("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			query = query.Where("data_instalacji >= ?", t)
		}
	}
	if to := c.QueryParam("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			query = query.Where("data_instalacji <= ?", t)
		}
	}

	var installations []models.Installation
	if err := query.Order("data_instalacji desc").Find(&installations).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, installations)
}

type dailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Stats aggregates installations three ways: per order type, per installer
// and per UTC calendar day for the trailing week.
func (h *InstallationHandler) Stats(c echo.Context) error {
	var installations []models.Installation
	if err := h.db.Find(&installations).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	byType := make(map[string]int)
	byUser := make(map[string]int)
	for _, inst := range installations {
		byType[inst.RodzajZlecenia]++
		byUser[inst.UserID]++
	}

	weekAgo := time.Now().UTC().AddDate(0, 0, -7)
	dailyMap := make(map[string]int)
	for _, inst := range installations {
		when := inst.DataInstalacji.UTC()
		if when.Before(weekAgo) {
			continue
		}
		dailyMap[when.Format("2006-01-02")]++
	}

	daily := make([]dailyCount, 0, 7)
	for d := 0; d < 7; d++ {
		day := weekAgo.AddDate(0, 0, d+1).Format("2006-01-02")
		if count, ok := dailyMap[day]; ok {
			daily = append(daily, dailyCount{Date: day, Count: count})
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"total":   len(installations),
		"by_type": byType,
		"by_user": byUser,
		"daily":   daily,
	})
}

// DailyReport lists today's installations grouped per installer, with user
// names resolved.
func (h *InstallationHandler) DailyReport(c echo.Context) error {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	var installations []models.Installation
	if err := h.db.Where("data_instalacji >= ? AND data_instalacji < ?", today, tomorrow).
		Find(&installations).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	grouped := make(map[string][]models.Installation)
	for _, inst := range installations {
		grouped[inst.UserID] = append(grouped[inst.UserID], inst)
	}

	report := make([]map[string]interface{}, 0, len(grouped))
	for userID, insts := range grouped {
		name := "Nieznany"
		var user models.User
		if err := h.db.Where("user_id = ?", userID).First(&user).Error; err == nil {
			name = user.Name
		}
		report = append(report, map[string]interface{}{
			"user_id":       userID,
			"user_name":     name,
			"count":         len(insts),
			"installations": insts,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":    today.Format(time.RFC3339),
		"total":   len(installations),
		"by_user": report,
	})
}
