package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"magazyn/internal/models"
)

func TestAddReturnRejectsDuplicatePending(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewReturnHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	c, rec := newContext(t, e, http.MethodPost, "/api/returns", map[string]string{
		"device_serial": "SN-1",
		"device_type":   "router",
	}, admin)
	require.NoError(t, h.Add(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newContext(t, e, http.MethodPost, "/api/returns", map[string]string{
		"device_serial": "SN-1",
	}, admin)
	require.NoError(t, h.Add(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Urządzenie już jest w zwrotach", decodeBody(t, rec)["error"])
}

func TestAddReturnAllowedAgainAfterCompletion(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewReturnHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	require.NoError(t, conn.Create(&models.DeviceReturn{
		DeviceSerial:        "SN-1",
		ReturnedToWarehouse: true,
		AddedBy:             admin.UserID,
	}).Error)

	c, rec := newContext(t, e, http.MethodPost, "/api/returns", map[string]string{
		"device_serial": "SN-1",
	}, admin)
	require.NoError(t, h.Add(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestBulkReturnSkipsDuplicatesAndFlipsDevices(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewReturnHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)
	worker := seedUser(t, conn, "jan@example.com", models.UserRoleWorker)

	seedDevice(t, conn, "Router GPON", "SN-1", worker.UserID, models.DeviceStatusAssigned)
	seedDevice(t, conn, "Router GPON", "SN-2", worker.UserID, models.DeviceStatusAssigned)
	require.NoError(t, conn.Create(&models.DeviceReturn{
		DeviceSerial: "SN-2",
		AddedBy:      admin.UserID,
	}).Error)

	c, rec := newContext(t, e, http.MethodPost, "/api/returns/bulk", map[string]interface{}{
		"serials":     []string{"SN-1", "SN-2", "  "},
		"device_type": "router",
	}, admin)
	require.NoError(t, h.Bulk(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody(t, rec)
	assert.EqualValues(t, 1, result["added"])
	assert.EqualValues(t, 2, result["skipped"])

	var flipped models.Device
	require.NoError(t, conn.Where("numer_seryjny = ?", "SN-1").First(&flipped).Error)
	assert.Equal(t, models.DeviceStatusReturned, flipped.Status)
	assert.Empty(t, flipped.PrzypisanyDo)

	// The duplicate serial keeps its device untouched.
	var untouched models.Device
	require.NoError(t, conn.Where("numer_seryjny = ?", "SN-2").First(&untouched).Error)
	assert.Equal(t, models.DeviceStatusAssigned, untouched.Status)
}

func TestMarkAllReturnedIsIdempotent(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewReturnHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	for _, serial := range []string{"SN-1", "SN-2"} {
		require.NoError(t, conn.Create(&models.DeviceReturn{
			DeviceSerial: serial,
			AddedBy:      admin.UserID,
		}).Error)
	}

	c, rec := newContext(t, e, http.MethodPost, "/api/returns/mark-returned", nil, admin)
	require.NoError(t, h.MarkAllReturned(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decodeBody(t, rec)["marked"])

	var entries []models.DeviceReturn
	require.NoError(t, conn.Find(&entries).Error)
	for _, entry := range entries {
		assert.True(t, entry.ReturnedToWarehouse)
		assert.NotNil(t, entry.ReturnedAt)
	}

	c, rec = newContext(t, e, http.MethodPost, "/api/returns/mark-returned", nil, admin)
	require.NoError(t, h.MarkAllReturned(c))
	assert.EqualValues(t, 0, decodeBody(t, rec)["marked"])
}

func TestListReturnsPendingFilter(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewReturnHandler(conn, newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	require.NoError(t, conn.Create(&models.DeviceReturn{DeviceSerial: "SN-1", AddedBy: admin.UserID}).Error)
	require.NoError(t, conn.Create(&models.DeviceReturn{
		DeviceSerial:        "SN-2",
		ReturnedToWarehouse: true,
		AddedBy:             admin.UserID,
	}).Error)

	c, rec := newContext(t, e, http.MethodGet, "/api/returns?pending=true", nil, admin)
	require.NoError(t, h.List(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []models.DeviceReturn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "SN-1", entries[0].DeviceSerial)
}
