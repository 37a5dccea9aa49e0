package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/middleware"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/services"
	"github.com/studyshare/backend/pkg/apperr"
	"github.com/studyshare/backend/pkg/utils"
	"gorm.io/gorm"
)

type CommentsHandler struct {
	DB *gorm.DB
}

func NewCommentsHandler(db *gorm.DB) *CommentsHandler {
	return &CommentsHandler{DB: db}
}

type commentRequest struct {
	Comment string `json:"comment"`
}

type commentView struct {
	ID        uuid.UUID           `json:"id"`
	Comment   string              `json:"comment"`
	User      *services.OwnerView `json:"user"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

func newCommentView(comment *models.Comment) commentView {
	return commentView{
		ID:        comment.ID,
		Comment:   comment.Text,
		User:      ownerView(comment.User),
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
	}
}

func validateCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if len(text) < 3 {
		return "", apperr.Validation("comment must be at least 3 characters long")
	}
	if len(text) > 1000 {
		return "", apperr.Validation("comment must be at most 1000 characters long")
	}
	return text, nil
}

func (h *CommentsHandler) Add(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	resourceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid resource id")
	}

	if _, err := findVisibleResource(h.DB, resourceID); err != nil {
		return err
	}

	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	text, err := validateCommentText(req.Comment)
	if err != nil {
		return err
	}

	comment := models.Comment{
		UserID:     user.ID,
		ResourceID: resourceID,
		Text:       text,
	}
	if err := h.DB.Create(&comment).Error; err != nil {
		return apperr.FromDB(err, "comment")
	}
	comment.User = user

	return utils.Success(c, fiber.StatusCreated, "comment added successfully", newCommentView(&comment))
}

func (h *CommentsHandler) List(c *fiber.Ctx) error {
	resourceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid resource id")
	}

	if _, err := findVisibleResource(h.DB, resourceID); err != nil {
		return err
	}

	var comments []models.Comment
	err = h.DB.Preload("User").
		Where("resource_id = ?", resourceID).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		return apperr.Internal("failed listing comments", err)
	}

	views := make([]commentView, 0, len(comments))
	for i := range comments {
		views = append(views, newCommentView(&comments[i]))
	}

	return utils.Success(c, fiber.StatusOK, "comments fetched successfully", views)
}

// Edit is author-only: the comment must belong to both the resource and
// the caller.
func (h *CommentsHandler) Edit(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	resourceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid resource id")
	}
	commentID, err := parseUUID(c.Params("commentId"))
	if err != nil {
		return apperr.Validation("invalid comment id")
	}

	if _, err := findVisibleResource(h.DB, resourceID); err != nil {
		return err
	}

	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	text, err := validateCommentText(req.Comment)
	if err != nil {
		return err
	}

	var comment models.Comment
	err = h.DB.First(&comment, "id = ? AND resource_id = ? AND user_id = ?", commentID, resourceID, user.ID).Error
	if err != nil {
		return apperr.NotFound("comment not found or you are not the author of this comment")
	}

	comment.Text = text
	if err := h.DB.Save(&comment).Error; err != nil {
		return apperr.Internal("failed updating comment", err)
	}
	comment.User = user

	return utils.Success(c, fiber.StatusOK, "comment updated successfully", newCommentView(&comment))
}

// Delete allows the author, or an admin acting as moderator.
func (h *CommentsHandler) Delete(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	resourceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid resource id")
	}
	commentID, err := parseUUID(c.Params("commentId"))
	if err != nil {
		return apperr.Validation("invalid comment id")
	}

	if _, err := findVisibleResource(h.DB, resourceID); err != nil {
		return err
	}

	query := h.DB.Where("id = ? AND resource_id = ?", commentID, resourceID)
	if user.Role != models.UserRoleAdmin {
		query = query.Where("user_id = ?", user.ID)
	}

	result := query.Delete(&models.Comment{})
	if result.Error != nil {
		return apperr.Internal("failed deleting comment", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("comment not found or you are not the author of this comment")
	}

	return utils.Success(c, fiber.StatusOK, "comment deleted successfully", nil)
}
