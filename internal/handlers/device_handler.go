package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"magazyn/internal/api/middleware"
	"magazyn/internal/models"
	"magazyn/internal/services"
	"magazyn/internal/utils/logger"
)

var deviceLog = logger.New("DEVICES")

// lowStockThreshold flags barcode groups with fewer units than this.
const lowStockThreshold = 4

type DeviceHandler struct {
	db       *gorm.DB
	activity *services.ActivityLogger
}

func NewDeviceHandler(db *gorm.DB, activity *services.ActivityLogger) *DeviceHandler {
	return &DeviceHandler{db: db, activity: activity}
}

type AddDeviceRequest struct {
	Nazwa        string `json:"nazwa" validate:"required"`
	NumerSeryjny string `json:"numer_seryjny" validate:"required"`
	KodKreskowy  string `json:"kod_kreskowy"`
	KodQR        string `json:"kod_qr"`
	PrzypisanyDo string `json:"przypisany_do"`
}

type AssignRequest struct {
	WorkerID string `json:"worker_id" validate:"required"`
}

type AssignMultipleRequest struct {
	DeviceIDs []string `json:"device_ids" validate:"required,min=1"`
	WorkerID  string   `json:"worker_id" validate:"required"`
}

// Import loads devices from an XLSX spreadsheet. Row 1 is the header;
// columns are nazwa, numer_seryjny, kod_kreskowy, kod_qr. Rows with an
// empty first cell are skipped, a blank serial is a per-row error and
// duplicate serials are counted and reported. The batch never aborts early.
func (h *DeviceHandler) Import(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Brak pliku"})
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") &&
		!strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xls") {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Tylko pliki XLSX są obsługiwane"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nie można odczytać pliku"})
	}
	defer src.Close()

	f, err := excelize.OpenReader(src)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowy plik XLSX"})
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowy plik XLSX"})
	}

	imported := 0
	duplicates := 0
	var errors []string

	cell := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		rowNum := i + 1

		nazwa := cell(row, 0)
		if nazwa == "" {
			continue
		}

		serial := cell(row, 1)
		if serial == "" {
			errors = append(errors, fmt.Sprintf("Wiersz %d: brak numeru seryjnego", rowNum))
			continue
		}

		var count int64
		if err := h.db.Model(&models.Device{}).Where("numer_seryjny = ?", serial).Count(&count).Error; err != nil {
			errors = append(errors, fmt.Sprintf("Wiersz %d: %v", rowNum, err))
			continue
		}
		if count > 0 {
			duplicates++
			errors = append(errors, fmt.Sprintf("Wiersz %d: Urządzenie o numerze seryjnym %s już istnieje", rowNum, serial))
			continue
		}

		device := models.Device{
			Nazwa:        nazwa,
			NumerSeryjny: serial,
			KodKreskowy:  cell(row, 2),
			KodQR:        cell(row, 3),
			Status:       models.DeviceStatusAvailable,
		}
		if err := h.db.Create(&device).Error; err != nil {
			errors = append(errors, fmt.Sprintf("Wiersz %d: %v", rowNum, err))
			continue
		}
		imported++
	}

	admin := middleware.GetUser(c)
	h.activity.Log(admin, models.ActionDeviceImport,
		fmt.Sprintf("Zaimportowano %d urządzeń z pliku %s", imported, fileHeader.Filename), "")

	deviceLog.Info("import: %d ok, %d duplicates, %d errors", imported, duplicates, len(errors))

	return c.JSON(http.StatusOK, map[string]interface{}{
		"imported":   imported,
		"duplicates": duplicates,
		"errors":     errors,
	})
}

// AddSingle creates one device by hand (admin only).
func (h *DeviceHandler) AddSingle(c echo.Context) error {
	var req AddDeviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nazwa i numer seryjny są wymagane"})
	}

	serial := strings.TrimSpace(req.NumerSeryjny)

	var count int64
	h.db.Model(&models.Device{}).Where("numer_seryjny = ?", serial).Count(&count)
	if count > 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("Urządzenie o numerze seryjnym %s już istnieje", serial),
		})
	}

	device := models.Device{
		Nazwa:        req.Nazwa,
		NumerSeryjny: serial,
		KodKreskowy:  strings.TrimSpace(req.KodKreskowy),
		KodQR:        strings.TrimSpace(req.KodQR),
		PrzypisanyDo: req.PrzypisanyDo,
		Status:       models.DeviceStatusAvailable,
	}
	if device.PrzypisanyDo != "" {
		device.Status = models.DeviceStatusAssigned
	}

	if err := h.db.Create(&device).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	h.activity.Log(middleware.GetUser(c), models.ActionDeviceAdd,
		"Dodano urządzenie "+device.Nazwa, device.NumerSeryjny)

	return c.JSON(http.StatusCreated, device)
}

// List returns devices, optionally filtered by status and owner.
func (h *DeviceHandler) List(c echo.Context) error {
	query := h.db.Model(&models.Device{})
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if assignedTo := c.QueryParam("assigned_to"); assignedTo != "" {
		query = query.Where("przypisany_do = ?", assignedTo)
	}

	var devices []models.Device
	if err := query.Order("created_at desc").Find(&devices).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, devices)
}

// Get returns a single device by id.
func (h *DeviceHandler) Get(c echo.Context) error {
	var device models.Device
	if err := h.db.Where("device_id = ?", c.Param("id")).First(&device).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono urządzenia"})
	}
	return c.JSON(http.StatusOK, device)
}

// Scan resolves a scanned barcode, QR code or serial to a device. Matching
// is tried in four stages and the first hit wins:
//  1. exact match on barcode, QR or serial,
//  2. case-insensitive exact match on the same three fields,
//  3. case-insensitive substring match on serial,
//  4. any device whose serial/barcode/QR is a substring of the input
//     (scanners sometimes prepend or append framing garbage).
func (h *DeviceHandler) Scan(c echo.Context) error {
	code := c.Param("code")
	code = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(code, "\n", ""), "\r", ""))
	if code == "" {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono urządzenia"})
	}

	device, found := h.findByCode(code)
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono urządzenia"})
	}

	// A device sitting in the returns queue is off limits for everyone.
	var pending int64
	h.db.Model(&models.DeviceReturn{}).
		Where("device_serial = ? AND returned_to_warehouse = ?", device.NumerSeryjny, false).
		Count(&pending)
	if pending > 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Urządzenie jest w zwrotach"})
	}

	if !middleware.IsAdmin(c) {
		switch device.Status {
		case models.DeviceStatusInstalled:
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Urządzenie jest już zainstalowane"})
		case models.DeviceStatusDamaged:
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Urządzenie jest oznaczone jako uszkodzone"})
		case models.DeviceStatusReturned:
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Urządzenie zostało zwrócone do magazynu"})
		}
	}

	return c.JSON(http.StatusOK, device)
}

func (h *DeviceHandler) findByCode(code string) (*models.Device, bool) {
	var device models.Device

	err := h.db.Where("kod_kreskowy = ? OR kod_qr = ? OR numer_seryjny = ?", code, code, code).
		First(&device).Error
	if err == nil {
		return &device, true
	}

	lower := strings.ToLower(code)
	err = h.db.Where(
		"LOWER(kod_kreskowy) = ? OR LOWER(kod_qr) = ? OR LOWER(numer_seryjny) = ?",
		lower, lower, lower,
	).First(&device).Error
	if err == nil {
		return &device, true
	}

	err = h.db.Where("LOWER(numer_seryjny) LIKE ?", "%"+lower+"%").First(&device).Error
	if err == nil {
		return &device, true
	}

	var all []models.Device
	if err := h.db.Find(&all).Error; err != nil {
		return nil, false
	}
	for i := range all {
		d := &all[i]
		for _, field := range []string{d.NumerSeryjny, d.KodKreskowy, d.KodQR} {
			if field != "" && strings.Contains(lower, strings.ToLower(field)) {
				return d, true
			}
		}
	}
	return nil, false
}

// Assign hands a device to a worker (admin only).
func (h *DeviceHandler) Assign(c echo.Context) error {
	var req AssignRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Wymagane worker_id"})
	}

	device, err := h.assignOne(middleware.GetUser(c), c.Param("id"), req.WorkerID)
	if err == gorm.ErrRecordNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono urządzenia"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, device)
}

// AssignMultiple assigns a batch of devices to one worker (admin only).
func (h *DeviceHandler) AssignMultiple(c echo.Context) error {
	var req AssignMultipleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Wymagane device_ids i worker_id"})
	}

	actor := middleware.GetUser(c)
	assigned := 0
	var errors []string
	for _, deviceID := range req.DeviceIDs {
		if _, err := h.assignOne(actor, deviceID, req.WorkerID); err != nil {
			errors = append(errors, deviceID)
			continue
		}
		assigned++
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"assigned": assigned,
		"errors":   errors,
	})
}

func (h *DeviceHandler) assignOne(actor *models.User, deviceID, workerID string) (*models.Device, error) {
	var device models.Device
	if err := h.db.Where("device_id = ?", deviceID).First(&device).Error; err != nil {
		return nil, err
	}

	device.PrzypisanyDo = workerID
	device.Status = models.DeviceStatusAssigned
	if err := h.db.Save(&device).Error; err != nil {
		return nil, err
	}

	h.activity.Log(actor, models.ActionDeviceAssign,
		"Przypisano urządzenie "+device.Nazwa, device.NumerSeryjny)

	return &device, nil
}

// Restore pulls an installed device back into circulation. Only valid from
// zainstalowany; ownership goes back to the original installer, or to the
// acting admin when no installation record exists.
func (h *DeviceHandler) Restore(c echo.Context) error {
	var device models.Device
	if err := h.db.Where("device_id = ?", c.Param("id")).First(&device).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono urządzenia"})
	}

	if device.Status != models.DeviceStatusInstalled {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Można przywrócić tylko zainstalowane urządzenie"})
	}

	owner := middleware.GetUser(c).UserID
	var installation models.Installation
	if err := h.db.Where("device_id = ?", device.DeviceID).
		Order("data_instalacji desc").First(&installation).Error; err == nil {
		owner = installation.UserID
	}

	device.Status = models.DeviceStatusAvailable
	device.PrzypisanyDo = owner
	if err := h.db.Save(&device).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	h.activity.Log(middleware.GetUser(c), models.ActionDeviceRestore,
		"Przywrócono urządzenie "+device.Nazwa, device.NumerSeryjny)

	return c.JSON(http.StatusOK, device)
}

// Transfer moves an already-owned device to a different worker, forcing the
// status back to przypisany (admin only).
func (h *DeviceHandler) Transfer(c echo.Context) error {
	var req AssignRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Wymagane worker_id"})
	}

	var device models.Device
	if err := h.db.Where("device_id = ?", c.Param("id")).First(&device).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono urządzenia"})
	}
	if device.PrzypisanyDo == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Urządzenie nie jest przypisane"})
	}

	device.PrzypisanyDo = req.WorkerID
	device.Status = models.DeviceStatusAssigned
	if err := h.db.Save(&device).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	h.activity.Log(middleware.GetUser(c), models.ActionDeviceAssign,
		"Przekazano urządzenie "+device.Nazwa, device.NumerSeryjny)

	return c.JSON(http.StatusOK, device)
}

// MarkDamaged flags a device as damaged. Allowed for its current owner and
// for any admin.
func (h *DeviceHandler) MarkDamaged(c echo.Context) error {
	user := middleware.GetUser(c)

	var device models.Device
	if err := h.db.Where("device_id = ?", c.Param("id")).First(&device).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono urządzenia"})
	}

	if user.Role != models.UserRoleAdmin && device.PrzypisanyDo != user.UserID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Urządzenie nie jest do Ciebie przypisane"})
	}

	device.Status = models.DeviceStatusDamaged
	if err := h.db.Save(&device).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	h.activity.Log(user, models.ActionDeviceDamaged,
		"Oznaczono urządzenie "+device.Nazwa+" jako uszkodzone", device.NumerSeryjny)

	return c.JSON(http.StatusOK, device)
}

type barcodeGroup struct {
	KodKreskowy string `json:"kod_kreskowy"`
	Count       int    `json:"count"`
}

// groupByBarcode buckets devices by barcode, falling back to the device
// name and finally to a literal "brak kodu" bucket.
func groupByBarcode(devices []models.Device) []barcodeGroup {
	counts := make(map[string]int)
	var order []string
	for _, d := range devices {
		key := d.KodKreskowy
		if key == "" {
			key = d.Nazwa
		}
		if key == "" {
			key = "brak kodu"
		}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	groups := make([]barcodeGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, barcodeGroup{KodKreskowy: key, Count: counts[key]})
	}
	return groups
}

// InventorySummary reports, per user, their non-installed devices grouped
// by barcode, flagging groups below the low-stock threshold (admin only).
func (h *DeviceHandler) InventorySummary(c echo.Context) error {
	var users []models.User
	if err := h.db.Order("name").Find(&users).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	summary := make([]map[string]interface{}, 0, len(users))
	for _, user := range users {
		var devices []models.Device
		if err := h.db.Where("przypisany_do = ? AND status <> ?", user.UserID, models.DeviceStatusInstalled).
			Find(&devices).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
		}

		groups := groupByBarcode(devices)
		lowStock := make([]barcodeGroup, 0)
		for _, g := range groups {
			if g.Count < lowStockThreshold {
				lowStock = append(lowStock, g)
			}
		}

		summary = append(summary, map[string]interface{}{
			"user_id":       user.UserID,
			"user_name":     user.Name,
			"user_email":    user.Email,
			"role":          user.Role,
			"total_devices": len(devices),
			"by_barcode":    groups,
			"low_stock":     lowStock,
			"has_low_stock": len(lowStock) > 0,
		})
	}

	return c.JSON(http.StatusOK, summary)
}

// UserInventory details one user's stock: devices they hold and devices
// they installed (admin only).
func (h *DeviceHandler) UserInventory(c echo.Context) error {
	var user models.User
	if err := h.db.Where("user_id = ?", c.Param("user_id")).First(&user).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono użytkownika"})
	}

	var available []models.Device
	if err := h.db.Where("przypisany_do = ? AND status <> ?", user.UserID, models.DeviceStatusInstalled).
		Find(&available).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	var installed []models.Device
	if err := h.db.Where("zainstalowal = ? AND status = ?", user.UserID, models.DeviceStatusInstalled).
		Find(&installed).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":              user,
		"total_available":   len(available),
		"total_installed":   len(installed),
		"available_devices": available,
		"installed_devices": installed,
		"by_barcode":        groupByBarcode(available),
	})
}
