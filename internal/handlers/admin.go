package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/middleware"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/pkg/apperr"
	"github.com/studyshare/backend/pkg/logger"
	"github.com/studyshare/backend/pkg/utils"
	"gorm.io/gorm"
)

type AdminHandler struct {
	DB *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{DB: db}
}

type branchCount struct {
	Branch models.Branch `json:"branch" gorm:"column:branch"`
	Total  int64         `json:"total" gorm:"column:total"`
}

type semesterCount struct {
	Semester int   `json:"semester" gorm:"column:semester"`
	Total    int64 `json:"total" gorm:"column:total"`
}

type topContributor struct {
	UserID         uuid.UUID `json:"id" gorm:"column:owner_id"`
	TotalResources int64     `json:"totalResources" gorm:"column:total_resources"`
	FullName       string    `json:"fullName" gorm:"column:full_name"`
	Username       string    `json:"username" gorm:"column:username"`
	AvatarURL      *string   `json:"avatarURL,omitempty" gorm:"column:avatar_url"`
}

// Dashboard aggregates platform-wide counts: totals, per-branch and
// per-semester distributions, and the top three contributors.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	var totalResources int64
	if err := h.DB.Model(&models.Resource{}).Count(&totalResources).Error; err != nil {
		return apperr.Internal("failed counting resources", err)
	}

	var totalContributors int64
	err := h.DB.Model(&models.Resource{}).
		Where("owner_id IS NOT NULL").
		Distinct("owner_id").
		Count(&totalContributors).Error
	if err != nil {
		return apperr.Internal("failed counting contributors", err)
	}

	var perBranch []branchCount
	err = h.DB.Model(&models.Resource{}).
		Select("branch, COUNT(*) AS total").
		Group("branch").
		Order("total DESC").
		Scan(&perBranch).Error
	if err != nil {
		return apperr.Internal("failed aggregating branches", err)
	}

	var perSemester []semesterCount
	err = h.DB.Model(&models.Resource{}).
		Select("semester, COUNT(*) AS total").
		Group("semester").
		Order("semester ASC").
		Scan(&perSemester).Error
	if err != nil {
		return apperr.Internal("failed aggregating semesters", err)
	}

	var topContributors []topContributor
	err = h.DB.Model(&models.Resource{}).
		Select("resources.owner_id, COUNT(*) AS total_resources, users.full_name, users.username, users.avatar_url").
		Joins("JOIN users ON users.id = resources.owner_id").
		Where("resources.owner_id IS NOT NULL").
		Group("resources.owner_id, users.full_name, users.username, users.avatar_url").
		Order("total_resources DESC").
		Limit(3).
		Scan(&topContributors).Error
	if err != nil {
		return apperr.Internal("failed aggregating contributors", err)
	}

	return utils.Success(c, fiber.StatusOK, "admin dashboard data", fiber.Map{
		"totalResources":         totalResources,
		"totalUsersContributing": totalContributors,
		"resourcesPerBranch":     perBranch,
		"resourcesPerSemester":   perSemester,
		"topContributors":        topContributors,
	})
}

// DeleteUser removes a user and everything they authored in a single
// transaction: owned resources with their child ratings and comments,
// plus the user's own ratings and comments on other resources.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return apperr.Validation("invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal("failed fetching user", err)
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var resourceIDs []uuid.UUID
		err := tx.Model(&models.Resource{}).
			Where("owner_id = ?", userID).
			Pluck("id", &resourceIDs).Error
		if err != nil {
			return err
		}

		if len(resourceIDs) > 0 {
			if err := tx.Where("resource_id IN ?", resourceIDs).Delete(&models.Rating{}).Error; err != nil {
				return err
			}
			if err := tx.Where("resource_id IN ?", resourceIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("owner_id = ?", userID).Delete(&models.Resource{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.Rating{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.User{}, "id = ?", userID).Error
	})
	if err != nil {
		return apperr.Internal("failed deleting user", err)
	}

	logger.InfoWithUser(admin.ID.String(), "admin_deleted_user", map[string]interface{}{
		"deleted_user_id": userID.String(),
	})

	return utils.Success(c, fiber.StatusOK, "user and associated resources deleted successfully", nil)
}

func (h *AdminHandler) BlockResource(c *fiber.Ctx) error {
	return h.setResourceBlocked(c, true, "resource blocked successfully")
}

func (h *AdminHandler) UnblockResource(c *fiber.Ctx) error {
	return h.setResourceBlocked(c, false, "resource unblocked successfully")
}

func (h *AdminHandler) setResourceBlocked(c *fiber.Ctx, blocked bool, message string) error {
	admin := middleware.GetCurrentUser(c)

	resourceID, err := parseUUID(c.Params("resourceId"))
	if err != nil {
		return apperr.Validation("invalid resource id")
	}

	result := h.DB.Model(&models.Resource{}).
		Where("id = ?", resourceID).
		Update("is_blocked", blocked)
	if result.Error != nil {
		return apperr.Internal("failed updating resource", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("resource not found")
	}

	logger.InfoWithUser(admin.ID.String(), "admin_set_resource_blocked", map[string]interface{}{
		"resource_id": resourceID.String(),
		"blocked":     blocked,
	})

	return utils.Success(c, fiber.StatusOK, message, nil)
}

func (h *AdminHandler) BlockUser(c *fiber.Ctx) error {
	return h.setUserBlocked(c, true, "user blocked successfully")
}

func (h *AdminHandler) UnblockUser(c *fiber.Ctx) error {
	return h.setUserBlocked(c, false, "user unblocked successfully")
}

// setUserBlocked flips the block flag; a blocked user fails login and
// the auth gate on their next request.
func (h *AdminHandler) setUserBlocked(c *fiber.Ctx, blocked bool, message string) error {
	admin := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return apperr.Validation("invalid user id")
	}

	if blocked && userID == admin.ID {
		return apperr.Validation("you cannot block your own account")
	}

	result := h.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_blocked", blocked)
	if result.Error != nil {
		return apperr.Internal("failed updating user", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}

	logger.InfoWithUser(admin.ID.String(), "admin_set_user_blocked", map[string]interface{}{
		"target_user_id": userID.String(),
		"blocked":        blocked,
	})

	return utils.Success(c, fiber.StatusOK, message, nil)
}
