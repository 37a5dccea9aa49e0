package handlers

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/middleware"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/services"
	"github.com/studyshare/backend/internal/storage"
	"github.com/studyshare/backend/pkg/apperr"
	"github.com/studyshare/backend/pkg/logger"
	"github.com/studyshare/backend/pkg/utils"
	"gorm.io/gorm"
)

type ResourcesHandler struct {
	DB        *gorm.DB
	Discovery *services.DiscoveryService
	Storage   *storage.MinIOClient
}

func NewResourcesHandler(db *gorm.DB, discovery *services.DiscoveryService, store *storage.MinIOClient) *ResourcesHandler {
	return &ResourcesHandler{DB: db, Discovery: discovery, Storage: store}
}

type createResourceRequest struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	Branch      string `json:"branch" form:"branch"`
	Semester    string `json:"semester" form:"semester"`
	URL         string `json:"url" form:"url"`
	FileSize    int64  `json:"fileSize" form:"fileSize"`
}

// Create accepts either a multipart "file" upload that goes to object
// storage, or an already-hosted url plus fileSize.
func (h *ResourcesHandler) Create(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req createResourceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Branch = strings.TrimSpace(req.Branch)

	if req.Title == "" || req.Description == "" || req.Branch == "" || req.Semester == "" {
		return apperr.Validation("all fields are required")
	}
	if len(req.Title) < 3 {
		return apperr.Validation("title must be at least 3 characters long")
	}
	if len(req.Description) < 10 {
		return apperr.Validation("description must be at least 10 characters long")
	}
	if !models.ValidBranch(req.Branch) {
		return apperr.Validation("invalid branch provided")
	}
	semester, err := strconv.Atoi(req.Semester)
	if err != nil || semester < models.MinSemester || semester > models.MaxSemester {
		return apperr.Validation("semester must be a number between 1 and 8")
	}

	fileURL := strings.TrimSpace(req.URL)
	fileSize := req.FileSize

	if fileHeader, err := c.FormFile("file"); err == nil {
		if h.Storage == nil {
			return apperr.Internal("file storage is not configured", nil)
		}
		file, err := fileHeader.Open()
		if err != nil {
			return apperr.Internal("failed reading uploaded file", err)
		}
		defer file.Close()

		objectName := fmt.Sprintf("resources/%s%s", uuid.New(), filepath.Ext(fileHeader.Filename))
		contentType := fileHeader.Header.Get("Content-Type")
		if err := h.Storage.Upload(c.Context(), objectName, file, fileHeader.Size, contentType); err != nil {
			return apperr.Internal("failed uploading file", err)
		}
		fileURL = h.Storage.PublicURL(objectName)
		fileSize = fileHeader.Size
	}

	if fileURL == "" {
		return apperr.Validation("a file upload or file url is required")
	}

	resource := models.Resource{
		Title:       req.Title,
		Description: req.Description,
		Branch:      models.Branch(req.Branch),
		Semester:    semester,
		URL:         fileURL,
		FileSize:    fileSize,
		OwnerID:     &user.ID,
	}

	if err := h.DB.Create(&resource).Error; err != nil {
		return apperr.FromDB(err, "resource")
	}

	logger.InfoWithUser(user.ID.String(), "resource_created", map[string]interface{}{
		"resource_id": resource.ID.String(),
		"branch":      string(resource.Branch),
		"semester":    resource.Semester,
	})

	view, err := h.Discovery.Get(c.Context(), resource.ID)
	if err != nil {
		return err
	}

	return utils.Success(c, fiber.StatusCreated, "resource created successfully", view)
}

// List runs the discovery pipeline over the validated query parameters.
func (h *ResourcesHandler) List(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c)
	query, err := services.BuildResourceQuery(services.RawResourceQuery{
		SearchQuery: c.Query("searchQuery"),
		Semester:    c.Query("semester"),
		Branch:      c.Query("branch"),
		Page:        pagination.Page,
		Limit:       pagination.Limit,
	})
	if err != nil {
		return err
	}

	page, err := h.Discovery.List(c.Context(), query)
	if err != nil {
		return err
	}

	return utils.Success(c, fiber.StatusOK, "resources fetched successfully", page)
}

func (h *ResourcesHandler) Get(c *fiber.Ctx) error {
	resourceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid resource id")
	}

	view, err := h.Discovery.Get(c.Context(), resourceID)
	if err != nil {
		return err
	}

	return utils.Success(c, fiber.StatusOK, "resource fetched successfully", view)
}

type updateResourceRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *ResourcesHandler) Update(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	resourceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid resource id")
	}

	var req updateResourceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		return apperr.Validation("title and description are required")
	}

	resource, err := findVisibleResource(h.DB, resourceID)
	if err != nil {
		return err
	}

	if !canModify(user, resource) {
		return apperr.Authorization("you are not authorized to update this resource")
	}

	resource.Title = req.Title
	resource.Description = req.Description
	if err := h.DB.Save(resource).Error; err != nil {
		return apperr.FromDB(err, "resource")
	}

	view, err := h.Discovery.Get(c.Context(), resource.ID)
	if err != nil {
		return err
	}

	return utils.Success(c, fiber.StatusOK, "resource updated successfully", view)
}

// Delete removes the resource together with its ratings and comments in
// one transaction, so no orphaned child rows survive a crash.
func (h *ResourcesHandler) Delete(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	resourceID, err := parseUUID(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid resource id")
	}

	resource, err := findVisibleResource(h.DB, resourceID)
	if err != nil {
		return err
	}

	if !canModify(user, resource) {
		return apperr.Authorization("you are not authorized to delete this resource")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resource_id = ?", resourceID).Delete(&models.Rating{}).Error; err != nil {
			return err
		}
		if err := tx.Where("resource_id = ?", resourceID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Resource{}, "id = ?", resourceID).Error
	})
	if err != nil {
		return apperr.Internal("failed deleting resource", err)
	}

	// best effort: the row is already gone, a stranded object only
	// wastes bucket space
	if h.Storage != nil {
		if objectName := h.Storage.ObjectNameFromURL(resource.URL); objectName != "" {
			_ = h.Storage.Delete(c.Context(), objectName)
		}
	}

	logger.InfoWithUser(user.ID.String(), "resource_deleted", map[string]interface{}{
		"resource_id": resourceID.String(),
	})

	return utils.Success(c, fiber.StatusOK, "resource deleted successfully", nil)
}
