package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studyshare/backend/internal/middleware"
	"github.com/studyshare/backend/internal/services"
	"github.com/studyshare/backend/pkg/apperr"
	"github.com/studyshare/backend/pkg/logger"
	"github.com/studyshare/backend/pkg/utils"
)

type RatingsHandler struct {
	Ratings *services.RatingService
}

func NewRatingsHandler(ratings *services.RatingService) *RatingsHandler {
	return &RatingsHandler{Ratings: ratings}
}

type rateRequest struct {
	Rating int `json:"rating"`
}

// Rate submits or replaces the caller's rating and returns the updated
// mean.
func (h *RatingsHandler) Rate(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	resourceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid resource id")
	}

	var req rateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	mean, err := h.Ratings.Rate(c.Context(), user.ID, resourceID, req.Rating)
	if err != nil {
		return err
	}

	logger.InfoWithUser(user.ID.String(), "resource_rated", map[string]interface{}{
		"resource_id": resourceID.String(),
		"rating":      req.Rating,
	})

	return utils.Success(c, fiber.StatusOK, "rating submitted successfully", fiber.Map{
		"averageRating": mean,
	})
}

func (h *RatingsHandler) GetMean(c *fiber.Ctx) error {
	resourceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid resource id")
	}

	mean, err := h.Ratings.Mean(c.Context(), resourceID)
	if err != nil {
		return err
	}

	return utils.Success(c, fiber.StatusOK, "rating fetched successfully", fiber.Map{
		"averageRating": mean,
	})
}

func (h *RatingsHandler) Remove(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	resourceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid resource id")
	}

	mean, err := h.Ratings.Remove(c.Context(), user.ID, resourceID)
	if err != nil {
		return err
	}

	return utils.Success(c, fiber.StatusOK, "your rating has been removed successfully", fiber.Map{
		"averageRating": mean,
	})
}
