package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"magazyn/internal/db"
	"magazyn/internal/models"
	"magazyn/internal/services"
	"magazyn/internal/utils"
)

// testPassword is the plaintext behind every seeded user.
const testPassword = "bardzo-tajne-haslo"

type testValidator struct {
	v *validator.Validate
}

func (t *testValidator) Validate(i interface{}) error {
	return t.v.Struct(i)
}

// newTestDB opens a fresh in-memory database with the full schema. The
// shared-cache DSN keeps the database alive across the pooled connections.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}
	return e
}

// newContext builds an echo context carrying a JSON body, plus the recorder
// capturing the response. user may be nil for unauthenticated calls.
func newContext(t *testing.T, e *echo.Echo, method, path string, body interface{}, user *models.User) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if user != nil {
		c.Set("user", user)
	}
	return c, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func seedUser(t *testing.T, conn *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()

	hash, err := utils.HashPassword(testPassword)
	require.NoError(t, err)

	user := &models.User{
		Email:    email,
		Name:     email,
		Password: hash,
		Role:     role,
	}
	require.NoError(t, conn.Create(user).Error)
	return user
}

func seedDevice(t *testing.T, conn *gorm.DB, nazwa, serial, owner string, status models.DeviceStatus) *models.Device {
	t.Helper()

	device := &models.Device{
		Nazwa:        nazwa,
		NumerSeryjny: serial,
		KodKreskowy:  "BC-" + serial,
		KodQR:        "QR-" + serial,
		PrzypisanyDo: owner,
		Status:       status,
	}
	require.NoError(t, conn.Create(device).Error)
	return device
}

func newActivity(conn *gorm.DB) *services.ActivityLogger {
	return services.NewActivityLogger(conn)
}
