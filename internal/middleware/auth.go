package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/services"
	"github.com/studyshare/backend/pkg/apperr"
	"github.com/studyshare/backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	currentUserKey  = "currentUser"
	AccessTokenName = "accessToken"
)

type AuthMiddleware struct {
	DB     *gorm.DB
	Tokens *services.TokenService
}

func NewAuthMiddleware(db *gorm.DB, tokens *services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{DB: db, Tokens: tokens}
}

func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3001,http://127.0.0.1:3001",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
	})
}

// RequireAuth resolves the request's principal or rejects the request;
// no handler runs after a failure here.
func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	token := extractToken(c)
	if token == "" {
		logger.Warn("auth_missing_token", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return apperr.Authentication("you need to log in to access this route")
	}

	claims, err := a.Tokens.VerifyAccess(token)
	if err != nil {
		logger.Warn("auth_token_rejected", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		if errors.Is(err, services.ErrTokenExpired) {
			return apperr.Authentication("token has expired, please log in again")
		}
		return apperr.Authentication("invalid access token")
	}

	// principal minus secret fields; password and refresh slot stay in
	// the store
	var user models.User
	if err := a.DB.Omit("password_hash", "refresh_token").First(&user, "id = ?", claims.UserID).Error; err != nil {
		logger.Warn("auth_user_not_found", map[string]interface{}{
			"ip":      c.IP(),
			"path":    c.Path(),
			"user_id": claims.UserID.String(),
		})
		return apperr.Authentication("user not found")
	}

	if user.IsBlocked {
		return apperr.Authorization("your account has been blocked")
	}

	c.Locals(currentUserKey, &user)
	c.Locals("userID", user.ID.String())
	return c.Next()
}

// AdminOnly composes after RequireAuth; auth always runs first.
func AdminOnly(c *fiber.Ctx) error {
	user := GetCurrentUser(c)
	if user == nil {
		return apperr.Authentication("you need to log in to access this route")
	}
	if user.Role != models.UserRoleAdmin {
		return apperr.Authorization("access denied: admins only")
	}
	return c.Next()
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// extractToken checks, in priority order, the access cookie, the bearer
// header, and the query string.
func extractToken(c *fiber.Ctx) string {
	if cookie := c.Cookies(AccessTokenName); cookie != "" {
		return cookie
	}

	authHeader := c.Get("Authorization")
	if authHeader != "" {
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token != authHeader && token != "" {
			return token
		}
	}

	return c.Query(AccessTokenName)
}
