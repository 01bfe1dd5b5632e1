package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"magazyn/internal/models"
)

// AuthMiddleware resolves opaque session tokens against the user_sessions
// table. Expiry is checked here, at read time; expired sessions are simply
// treated as absent.
type AuthMiddleware struct {
	db *gorm.DB
}

func NewAuthMiddleware(db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{db: db}
}

// ExtractToken pulls the session token from the session_token cookie or the
// Authorization Bearer header. When allowQuery is set it also accepts a
// "token" query parameter, for download clients that cannot set headers.
func ExtractToken(c echo.Context, allowQuery bool) string {
	if cookie, err := c.Cookie("session_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	if allowQuery {
		return c.QueryParam("token")
	}
	return ""
}

// resolve returns the user for a token, or nil when the token is unknown or
// the session has expired.
func (m *AuthMiddleware) resolve(token string) *models.User {
	if token == "" {
		return nil
	}

	var session models.UserSession
	if err := m.db.Where("session_token = ?", token).First(&session).Error; err != nil {
		return nil
	}
	if !session.ExpiresAt.After(time.Now()) {
		return nil
	}

	var user models.User
	if err := m.db.Where("user_id = ?", session.UserID).First(&user).Error; err != nil {
		return nil
	}
	return &user
}

func (m *AuthMiddleware) authenticate(c echo.Context, allowQuery bool) *models.User {
	user := m.resolve(ExtractToken(c, allowQuery))
	if user != nil {
		c.Set("user", user)
	}
	return user
}

// Authenticate resolves the session and stores the user when a valid token
// is present, but never rejects. For routes whose handler varies on the
// caller, like user creation with its empty-table bootstrap exception.
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.authenticate(c, false)
			return next(c)
		}
	}
}

// RequireUser rejects unauthenticated requests with 401.
func (m *AuthMiddleware) RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m.authenticate(c, false) == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Nie zalogowany")
			}
			return next(c)
		}
	}
}

// RequireAdmin rejects unauthenticated requests with 401 and non-admins
// with 403.
func (m *AuthMiddleware) RequireAdmin() echo.MiddlewareFunc {
	return m.requireAdmin(false)
}

// RequireAdminWithQueryToken is RequireAdmin, additionally accepting the
// token as a query parameter. Used only on file-export routes.
func (m *AuthMiddleware) RequireAdminWithQueryToken() echo.MiddlewareFunc {
	return m.requireAdmin(true)
}

func (m *AuthMiddleware) requireAdmin(allowQuery bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := m.authenticate(c, allowQuery)
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Nie zalogowany")
			}
			if user.Role != models.UserRoleAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "Brak uprawnień administratora")
			}
			return next(c)
		}
	}
}

// GetUser returns the authenticated user stored by the auth middleware.
func GetUser(c echo.Context) *models.User {
	if user, ok := c.Get("user").(*models.User); ok {
		return user
	}
	return nil
}

// IsAdmin reports whether the authenticated user has the admin role.
func IsAdmin(c echo.Context) bool {
	user := GetUser(c)
	return user != nil && user.Role == models.UserRoleAdmin
}
