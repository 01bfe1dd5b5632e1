package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"magazyn/internal/models"
	"magazyn/internal/services"
)

func TestBackupSettingsMasksSecrets(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewBackupHandler(conn, services.NewBackupService(conn), newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	require.NoError(t, conn.Create(&models.BackupSettings{
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
		SMTPPassword: "smtp-sekret",
		FTPHost:      "ftp.example.com",
		FTPPort:      21,
		FTPPassword:  "ftp-sekret",
	}).Error)

	c, rec := newContext(t, e, http.MethodGet, "/api/backup/settings", nil, admin)
	require.NoError(t, h.GetSettings(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "********", body["smtp_password"])
	assert.Equal(t, "********", body["ftp_password"])
	assert.Equal(t, "smtp.example.com", body["smtp_host"])
}

func TestBackupSettingsPreservesSecretsOnMaskedSave(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewBackupHandler(conn, services.NewBackupService(conn), newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	require.NoError(t, conn.Create(&models.BackupSettings{
		SMTPHost:     "smtp.example.com",
		SMTPPassword: "smtp-sekret",
		FTPPassword:  "ftp-sekret",
	}).Error)

	c, rec := newContext(t, e, http.MethodPost, "/api/backup/settings", map[string]interface{}{
		"smtp_host":     "smtp2.example.com",
		"smtp_password": "********",
		"ftp_password":  "",
		"auto_enabled":  true,
		"send_email":    true,
	}, admin)
	require.NoError(t, h.SaveSettings(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stored models.BackupSettings
	require.NoError(t, conn.First(&stored).Error)
	assert.Equal(t, "smtp2.example.com", stored.SMTPHost)
	assert.Equal(t, "smtp-sekret", stored.SMTPPassword)
	assert.Equal(t, "ftp-sekret", stored.FTPPassword)
	assert.True(t, stored.AutoEnabled)
}

func TestBackupSettingsAcceptsNewSecrets(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewBackupHandler(conn, services.NewBackupService(conn), newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)

	c, rec := newContext(t, e, http.MethodPost, "/api/backup/settings", map[string]interface{}{
		"smtp_host":     "smtp.example.com",
		"smtp_password": "nowy-sekret",
	}, admin)
	require.NoError(t, h.SaveSettings(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.BackupSettings
	require.NoError(t, conn.First(&stored).Error)
	assert.Equal(t, "nowy-sekret", stored.SMTPPassword)
}

func TestBackupDownloadStreamsSnapshot(t *testing.T) {
	conn := newTestDB(t)
	e := newTestEcho()
	h := NewBackupHandler(conn, services.NewBackupService(conn), newActivity(conn))
	admin := seedUser(t, conn, "admin@example.com", models.UserRoleAdmin)
	seedDevice(t, conn, "Router GPON", "SN-1", "", models.DeviceStatusAvailable)

	c, rec := newContext(t, e, http.MethodGet, "/api/backup/download", nil, admin)
	require.NoError(t, h.Download(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "magazyn_backup_")

	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, "1.0", snapshot["version"])

	data := snapshot["data"].(map[string]interface{})
	assert.Len(t, data["devices"], 1)
	assert.Len(t, data["users"], 1)
}
