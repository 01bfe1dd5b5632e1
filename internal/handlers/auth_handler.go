package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mssola/user_agent"
	"gorm.io/gorm"

	"magazyn/internal/api/middleware"
	"magazyn/internal/models"
	"magazyn/internal/services"
	"magazyn/internal/utils"
)

const sessionTTL = 7 * 24 * time.Hour

type AuthHandler struct {
	db       *gorm.DB
	activity *services.ActivityLogger
}

func NewAuthHandler(db *gorm.DB, activity *services.ActivityLogger) *AuthHandler {
	return &AuthHandler{db: db, activity: activity}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// Login authenticates by email and password, replaces any prior session for
// the user with a fresh 7-day one and returns the token both as a secure
// cookie and in the body.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email i hasło są wymagane"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Nieprawidłowy email lub hasło"})
	}
	if !utils.VerifyPassword(user.Password, req.Password) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Nieprawidłowy email lub hasło"})
	}

	token, err := utils.GenerateSessionToken()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	// One valid session per user: purge anything minted earlier.
	h.db.Where("user_id = ?", user.UserID).Delete(&models.UserSession{})

	session := models.UserSession{
		SessionToken: token,
		UserID:       user.UserID,
		ExpiresAt:    time.Now().Add(sessionTTL),
		CreatedAt:    time.Now(),
	}
	if err := h.db.Create(&session).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	now := time.Now().UTC()
	ua := user_agent.New(c.Request().UserAgent())
	browser, version := ua.Browser()
	h.db.Model(&user).Updates(map[string]interface{}{
		"last_login_at": now,
		"last_login_ip": utils.GetIPAddress(c.Request()),
		"last_login_ua": strings.TrimSpace(fmt.Sprintf("%s %s (%s)", browser, version, ua.OS())),
	})

	h.activity.Log(&user, models.ActionLogin, "Zalogowano do systemu", "")

	c.SetCookie(&http.Cookie{
		Name:     "session_token",
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":       user.UserID,
		"email":         user.Email,
		"name":          user.Name,
		"picture":       user.Picture,
		"role":          user.Role,
		"session_token": token,
	})
}

// Logout removes the current session and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	token := middleware.ExtractToken(c, false)
	if token != "" {
		h.db.Where("session_token = ?", token).Delete(&models.UserSession{})
	}

	c.SetCookie(&http.Cookie{
		Name:     "session_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})

	return c.JSON(http.StatusOK, map[string]string{"message": "Wylogowano pomyślnie"})
}

// GetMe returns the authenticated user.
func (h *AuthHandler) GetMe(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.GetUser(c))
}

// ChangePassword lets the authenticated user rotate their own password.
// Other sessions are left alone; an admin reset is the invalidating path.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	user := middleware.GetUser(c)

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Hasło musi mieć co najmniej 8 znaków"})
	}

	if !utils.VerifyPassword(user.Password, req.OldPassword) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe obecne hasło"})
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	if err := h.db.Model(user).Update("password", hash).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Hasło zmienione"})
}
