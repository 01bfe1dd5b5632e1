package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"magazyn/internal/models"
)

func scanContext(t *testing.T, e *echo.Echo, code string, user *models.User) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	c, rec := newContext(t, e, http.MethodGet, "/api/devices/scan/"+url.PathEscape(code), nil, user)
	c.SetParamNames("code")
	c.SetParamValues(code)
	return c, rec
}

func TestScanMatchingLadder(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewDeviceHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	seedDevice(t, conn, "Router GPON", "SN-ABC-123", "", models.DeviceStatusAvailable)

	cases := []struct {
		name string
		code string
	}{
		{"exact serial", "SN-ABC-123"},
		{"exact barcode", "BC-SN-ABC-123"},
		{"case insensitive", "sn-abc-123"},
		{"serial substring", "abc-123"},
		{"framing garbage around serial", "XXSN-ABC-123YY"},
		{"trailing newline", "SN-ABC-123\r\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := scanContext(t, e, tc.code, admin)
			require.NoError(t, h.Scan(c))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "SN-ABC-123", decodeBody(t, rec)["numer_seryjny"])
		})
	}

	t.Run("unknown code", func(t *testing.T) {
		c, rec := scanContext(t, e, "nie-ma-takiego", admin)
		require.NoError(t, h.Scan(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestScanBlocksDeviceInReturnsQueue(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewDeviceHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	seedDevice(t, conn, "Router GPON", "SN-RET-1", "", models.DeviceStatusAvailable)
	require.NoError(t, conn.Create(&models.DeviceReturn{
		DeviceSerial: "SN-RET-1",
		AddedBy:      admin.UserID,
	}).Error)

	// The returns queue blocks admins too.
	c, rec := scanContext(t, e, "SN-RET-1", admin)
	require.NoError(t, h.Scan(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Urządzenie jest w zwrotach", decodeBody(t, rec)["error"])
}

func TestScanWorkerBlockedByStatus(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewDeviceHandler(conn, newActivity(conn))
	worker := seedUser(t, conn, "jan@example.com", models.UserRoleWorker)
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	seedDevice(t, conn, "Router GPON", "SN-INST-1", admin.UserID, models.DeviceStatusInstalled)

	c, rec := scanContext(t, e, "SN-INST-1", worker)
	require.NoError(t, h.Scan(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Urządzenie jest już zainstalowane", decodeBody(t, rec)["error"])

	// Admins still see the device.
	c, rec = scanContext(t, e, "SN-INST-1", admin)
	require.NoError(t, h.Scan(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func buildImportWorkbook(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestImportAccountsEveryRow(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewDeviceHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	seedDevice(t, conn, "Router GPON", "SN-DUP-1", "", models.DeviceStatusAvailable)

	workbook := buildImportWorkbook(t, [][]string{
		{"nazwa", "numer_seryjny", "kod_kreskowy", "kod_qr"},
		{"Router GPON", "SN-NEW-1", "BC1", "QR1"},
		{"Router GPON", "SN-DUP-1", "BC2", "QR2"},
		{"Router GPON", ""},
		{"", "SN-IGNORED"},
		{"Dekoder 4K", "SN-NEW-2"},
	})

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "urzadzenia.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook.Bytes())
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/devices/import", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", admin)

	require.NoError(t, h.Import(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody(t, rec)
	assert.EqualValues(t, 2, result["imported"])
	assert.EqualValues(t, 1, result["duplicates"])
	assert.Len(t, result["errors"], 2) // duplicate row and blank serial row

	var count int64
	conn.Model(&models.Device{}).Count(&count)
	assert.EqualValues(t, 3, count) // pre-seeded + two imported
}

func TestAddSingleRejectsDuplicateSerial(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewDeviceHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	seedDevice(t, conn, "Router GPON", "SN-1", "", models.DeviceStatusAvailable)

	c, rec := newContext(t, e, http.MethodPost, "/api/devices/add-single", map[string]string{
		"nazwa":         "Router GPON",
		"numer_seryjny": "SN-1",
	}, admin)
	require.NoError(t, h.AddSingle(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Urządzenie o numerze seryjnym SN-1 już istnieje", decodeBody(t, rec)["error"])
}

func TestAddSingleValidationMessage(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewDeviceHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	c, rec := newContext(t, e, http.MethodPost, "/api/devices/add-single", map[string]string{
		"nazwa": "Router GPON",
	}, admin)
	require.NoError(t, h.AddSingle(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Nazwa i numer seryjny są wymagane", decodeBody(t, rec)["error"])
}

func TestRestoreHandsDeviceBackToInstaller(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewDeviceHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)
	worker := seedUser(t, conn, "jan@example.com", models.UserRoleWorker)

	device := seedDevice(t, conn, "Router GPON", "SN-1", admin.UserID, models.DeviceStatusInstalled)
	require.NoError(t, conn.Create(&models.Installation{
		DeviceID:     device.DeviceID,
		UserID:       worker.UserID,
		AdresKlienta: "ul. Polna 1, Warszawa",
	}).Error)

	c, rec := newContext(t, e, http.MethodPost, "/api/devices/"+device.DeviceID+"/restore", nil, admin)
	c.SetParamNames("id")
	c.SetParamValues(device.DeviceID)
	require.NoError(t, h.Restore(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reloaded models.Device
	require.NoError(t, conn.Where("device_id = ?", device.DeviceID).First(&reloaded).Error)
	assert.Equal(t, models.DeviceStatusAvailable, reloaded.Status)
	assert.Equal(t, worker.UserID, reloaded.PrzypisanyDo)
}

func TestRestoreOnlyFromInstalledStatus(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewDeviceHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	device := seedDevice(t, conn, "Router GPON", "SN-1", "", models.DeviceStatusAvailable)

	c, rec := newContext(t, e, http.MethodPost, "/api/devices/"+device.DeviceID+"/restore", nil, admin)
	c.SetParamNames("id")
	c.SetParamValues(device.DeviceID)
	require.NoError(t, h.Restore(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Można przywrócić tylko zainstalowane urządzenie", decodeBody(t, rec)["error"])
}

func TestMarkDamagedRequiresOwnershipForWorkers(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewDeviceHandler(conn, newActivity(conn))
	owner := seedUser(t, conn, "jan@example.com", models.UserRoleWorker)
	other := seedUser(t, conn, "adam@example.com", models.UserRoleWorker)

	device := seedDevice(t, conn, "Router GPON", "SN-1", owner.UserID, models.DeviceStatusAssigned)

	c, rec := newContext(t, e, http.MethodPost, "/api/devices/"+device.DeviceID+"/mark-damaged", nil, other)
	c.SetParamNames("id")
	c.SetParamValues(device.DeviceID)
	require.NoError(t, h.MarkDamaged(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newContext(t, e, http.MethodPost, "/api/devices/"+device.DeviceID+"/mark-damaged", nil, owner)
	c.SetParamNames("id")
	c.SetParamValues(device.DeviceID)
	require.NoError(t, h.MarkDamaged(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var reloaded models.Device
	require.NoError(t, conn.Where("device_id = ?", device.DeviceID).First(&reloaded).Error)
	assert.Equal(t, models.DeviceStatusDamaged, reloaded.Status)
}

func TestInventorySummaryFlagsLowStock(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewDeviceHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)
	worker := seedUser(t, conn, "jan@example.com", models.UserRoleWorker)

	// Four routers: at the threshold, not low stock. One decoder: low stock.
	for _, serial := range []string{"R1", "R2", "R3", "R4"} {
		device := seedDevice(t, conn, "Router GPON", serial, worker.UserID, models.DeviceStatusAssigned)
		require.NoError(t, conn.Model(device).Update("kod_kreskowy", "ROUTER").Error)
	}
	decoder := seedDevice(t, conn, "Dekoder 4K", "D1", worker.UserID, models.DeviceStatusAssigned)
	require.NoError(t, conn.Model(decoder).Update("kod_kreskowy", "DEKODER").Error)

	c, rec := newContext(t, e, http.MethodGet, "/api/devices/inventory/summary", nil, admin)
	require.NoError(t, h.InventorySummary(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))

	var workerRow map[string]interface{}
	for _, row := range summary {
		if row["user_id"] == worker.UserID {
			workerRow = row
		}
	}
	require.NotNil(t, workerRow)
	assert.EqualValues(t, 5, workerRow["total_devices"])
	assert.Equal(t, true, workerRow["has_low_stock"])

	lowStock := workerRow["low_stock"].([]interface{})
	require.Len(t, lowStock, 1)
	assert.Equal(t, "DEKODER", lowStock[0].(map[string]interface{})["kod_kreskowy"])
}
