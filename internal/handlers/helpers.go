package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/services"
	"github.com/studyshare/backend/pkg/apperr"
	"gorm.io/gorm"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}

// canModify reports whether the principal may mutate the resource:
// its owner, or any admin.
func canModify(user *models.User, resource *models.Resource) bool {
	if user.Role == models.UserRoleAdmin {
		return true
	}
	return resource.OwnerID != nil && *resource.OwnerID == user.ID
}

func setAuthCookies(c *fiber.Ctx, pair *services.TokenPair) {
	c.Cookie(&fiber.Cookie{
		Name:     "accessToken",
		Value:    pair.AccessToken,
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
	c.Cookie(&fiber.Cookie{
		Name:     "refreshToken",
		Value:    pair.RefreshToken,
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}

func clearAuthCookies(c *fiber.Ctx) {
	expired := time.Now().Add(-time.Hour)
	for _, name := range []string{"accessToken", "refreshToken"} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Expires:  expired,
			HTTPOnly: true,
			Secure:   true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Path:     "/",
		})
	}
}

// findVisibleResource loads a resource that exists and is not blocked;
// blocked and missing resources fail identically.
func findVisibleResource(db *gorm.DB, resourceID uuid.UUID) (*models.Resource, error) {
	var resource models.Resource
	err := db.First(&resource, "id = ? AND is_blocked = ?", resourceID, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("resource not found")
		}
		return nil, apperr.Internal("failed fetching resource", err)
	}
	return &resource, nil
}

// ownerView projects the subset of a user that may cross the response
// boundary when attached to resources and comments.
func ownerView(user *models.User) *services.OwnerView {
	if user == nil {
		return nil
	}
	return &services.OwnerView{
		ID:        user.ID,
		FullName:  user.FullName,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
	}
}
