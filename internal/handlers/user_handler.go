package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"magazyn/internal/api/middleware"
	"magazyn/internal/models"
	"magazyn/internal/services"
	"magazyn/internal/utils"
)

type UserHandler struct {
	db       *gorm.DB
	activity *services.ActivityLogger
}

func NewUserHandler(db *gorm.DB, activity *services.ActivityLogger) *UserHandler {
	return &UserHandler{db: db, activity: activity}
}

type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Name     string          `json:"name" validate:"required"`
	Password string          `json:"password" validate:"required,min=8"`
	Role     models.UserRole `json:"role" validate:"omitempty,oneof=admin pracownik"`
}

type UpdateRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=admin pracownik"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// CreateUser adds a user. Only admins may call it, with one exception: when
// the users table is empty the first account can be created without a
// session and is always an admin.
func (h *UserHandler) CreateUser(c echo.Context) error {
	var count int64
	h.db.Model(&models.User{}).Count(&count)

	actor := middleware.GetUser(c)
	if count > 0 {
		if actor == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Nie zalogowany"})
		}
		if actor.Role != models.UserRoleAdmin {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Brak uprawnień administratora"})
		}
	}

	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email, imię i hasło (min. 8 znaków) są wymagane"})
	}

	role := req.Role
	if role == "" {
		role = models.UserRoleWorker
	}
	if count == 0 {
		role = models.UserRoleAdmin
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.User
	if err := h.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Użytkownik o tym adresie email już istnieje"})
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	user := models.User{
		Email:    email,
		Name:     req.Name,
		Password: hash,
		Role:     role,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Użytkownik o tym adresie email już istnieje"})
	}

	return c.JSON(http.StatusCreated, user)
}

// ListUsers returns all users (admin only).
func (h *UserHandler) ListUsers(c echo.Context) error {
	var users []models.User
	if err := h.db.Order("created_at").Find(&users).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, users)
}

// GetWorkers returns users with the worker role; any authenticated user may
// call it (used by the chat and task pickers).
func (h *UserHandler) GetWorkers(c echo.Context) error {
	var workers []models.User
	if err := h.db.Where("role = ?", models.UserRoleWorker).Order("name").Find(&workers).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	return c.JSON(http.StatusOK, workers)
}

// UpdateRole switches a user between admin and pracownik (admin only).
func (h *UserHandler) UpdateRole(c echo.Context) error {
	var req UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowa rola"})
	}

	result := h.db.Model(&models.User{}).Where("user_id = ?", c.Param("id")).Update("role", req.Role)
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono użytkownika"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Rola zaktualizowana"})
}

// ResetPassword sets a new password for a user and invalidates every session
// they hold (admin only).
func (h *UserHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Hasło musi mieć co najmniej 8 znaków"})
	}

	userID := c.Param("id")

	var user models.User
	if err := h.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono użytkownika"})
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	if err := h.db.Model(&user).Update("password", hash).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	// A reset kicks the user out everywhere.
	h.db.Where("user_id = ?", userID).Delete(&models.UserSession{})

	h.activity.Log(middleware.GetUser(c), models.ActionPasswordReset,
		"Zresetowano hasło użytkownika "+user.Name, "")

	return c.JSON(http.StatusOK, map[string]string{"message": "Hasło zresetowane"})
}

// DeleteUser removes a user and their sessions (admin only, never self).
func (h *UserHandler) DeleteUser(c echo.Context) error {
	userID := c.Param("id")
	actor := middleware.GetUser(c)

	if actor.UserID == userID {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nie można usunąć własnego konta"})
	}

	result := h.db.Where("user_id = ?", userID).Delete(&models.User{})
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Nie znaleziono użytkownika"})
	}

	h.db.Where("user_id = ?", userID).Delete(&models.UserSession{})

	return c.JSON(http.StatusOK, map[string]string{"message": "Użytkownik usunięty"})
}
