package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/pkg/apperr"
	"github.com/studyshare/backend/pkg/utils"
	"gorm.io/gorm"
)

// RawResourceQuery is the unvalidated query-string input for discovery.
type RawResourceQuery struct {
	SearchQuery string
	Semester    string
	Branch      string
	Page        int
	Limit       int
}

// ResourceQuery is the validated filter/sort/paginate specification the
// aggregation pipeline executes.
type ResourceQuery struct {
	SearchQuery string
	Semester    *int
	Branch      *models.Branch
	Page        int
	Limit       int
}

// BuildResourceQuery validates raw parameters into a ResourceQuery.
// Semester must be an integer in [1,8] and branch a member of the fixed
// enum; page and limit are coerced to sane positive values.
func BuildResourceQuery(raw RawResourceQuery) (ResourceQuery, error) {
	query := ResourceQuery{
		SearchQuery: strings.TrimSpace(raw.SearchQuery),
		Page:        raw.Page,
		Limit:       raw.Limit,
	}

	if raw.Semester != "" {
		semester, err := strconv.Atoi(raw.Semester)
		if err != nil || semester < models.MinSemester || semester > models.MaxSemester {
			return ResourceQuery{}, apperr.Validation("semester must be a number between 1 and 8")
		}
		query.Semester = &semester
	}

	if raw.Branch != "" {
		if !models.ValidBranch(raw.Branch) {
			return ResourceQuery{}, apperr.Validation("invalid branch provided")
		}
		branch := models.Branch(raw.Branch)
		query.Branch = &branch
	}

	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 {
		query.Limit = utils.DefaultPageSize
	}
	if query.Limit > utils.MaxPageSize {
		query.Limit = utils.MaxPageSize
	}

	return query, nil
}

// OwnerView is the projected owner subset that crosses the discovery
// boundary. No password or refresh data is ever part of it.
type OwnerView struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"fullName"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatarURL,omitempty"`
}

type ResourceView struct {
	ID            uuid.UUID     `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Branch        models.Branch `json:"branch"`
	Semester      int           `json:"semester"`
	URL           string        `json:"url"`
	FileSize      int64         `json:"fileSize"`
	Owner         *OwnerView    `json:"owner"`
	AverageRating *float64      `json:"averageRating,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type ResourcePage struct {
	Items       []ResourceView `json:"items"`
	TotalItems  int64          `json:"totalItems"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
}

// DiscoveryService executes the discovery pipeline: match, sort by
// creation time descending, owner enrichment, projection, pagination.
type DiscoveryService struct {
	db *gorm.DB
}

func NewDiscoveryService(db *gorm.DB) *DiscoveryService {
	return &DiscoveryService{db: db}
}

func (s *DiscoveryService) List(ctx context.Context, q ResourceQuery) (*ResourcePage, error) {
	db := s.db.WithContext(ctx).Model(&models.Resource{}).Where("is_blocked = ?", false)

	if q.Semester != nil {
		db = db.Where("semester = ?", *q.Semester)
	}
	if q.Branch != nil {
		db = db.Where("branch = ?", *q.Branch)
	}
	if q.SearchQuery != "" {
		pattern := "%" + strings.ToLower(escapeLike(q.SearchQuery)) + "%"
		db = db.Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, apperr.Internal("failed counting resources", err)
	}

	var resources []models.Resource
	err := utils.ApplyPagination(db.Preload("Owner").Order("created_at DESC"), utils.PaginationParams{
		Page:   q.Page,
		Limit:  q.Limit,
		Offset: (q.Page - 1) * q.Limit,
	}).Find(&resources).Error
	if err != nil {
		return nil, apperr.Internal("failed listing resources", err)
	}

	items, err := s.project(ctx, resources)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(q.Limit) - 1) / int64(q.Limit))

	return &ResourcePage{
		Items:       items,
		TotalItems:  total,
		TotalPages:  totalPages,
		CurrentPage: q.Page,
	}, nil
}

// Get fetches a single visible resource with owner and rating enrichment.
// Blocked resources are indistinguishable from missing ones.
func (s *DiscoveryService) Get(ctx context.Context, id uuid.UUID) (*ResourceView, error) {
	var resource models.Resource
	err := s.db.WithContext(ctx).
		Preload("Owner").
		First(&resource, "id = ? AND is_blocked = ?", id, false).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound("resource not found")
		}
		return nil, apperr.Internal("failed fetching resource", err)
	}

	items, err := s.project(ctx, []models.Resource{resource})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// project maps store rows into the fixed view subset and joins in the
// page's mean ratings with a single grouped query.
func (s *DiscoveryService) project(ctx context.Context, resources []models.Resource) ([]ResourceView, error) {
	ids := make([]uuid.UUID, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID)
	}

	means, err := s.meanRatings(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]ResourceView, 0, len(resources))
	for _, r := range resources {
		view := ResourceView{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Branch:      r.Branch,
			Semester:    r.Semester,
			URL:         r.URL,
			FileSize:    r.FileSize,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		}
		// Owner stays nil when the owning user was deleted.
		if r.Owner != nil {
			view.Owner = &OwnerView{
				ID:        r.Owner.ID,
				FullName:  r.Owner.FullName,
				Username:  r.Owner.Username,
				AvatarURL: r.Owner.AvatarURL,
			}
		}
		if mean, ok := means[r.ID]; ok {
			view.AverageRating = &mean
		}
		items = append(items, view)
	}

	return items, nil
}

func (s *DiscoveryService) meanRatings(ctx context.Context, resourceIDs []uuid.UUID) (map[uuid.UUID]float64, error) {
	if len(resourceIDs) == 0 {
		return map[uuid.UUID]float64{}, nil
	}

	type meanRow struct {
		ResourceID uuid.UUID `gorm:"column:resource_id"`
		Mean       float64   `gorm:"column:mean"`
	}

	var rows []meanRow
	err := s.db.WithContext(ctx).
		Model(&models.Rating{}).
		Select("resource_id, AVG(value) AS mean").
		Where("resource_id IN ?", resourceIDs).
		Group("resource_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal("failed aggregating ratings", err)
	}

	means := make(map[uuid.UUID]float64, len(rows))
	for _, row := range rows {
		means[row.ResourceID] = row.Mean
	}
	return means, nil
}

// escapeLike neutralizes LIKE metacharacters so user search text is
// always matched literally.
func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
