package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/pkg/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingService maintains the at-most-one-rating-per-(user,resource)
// invariant and recomputes mean ratings on demand.
type RatingService struct {
	db *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

// Rate inserts or overwrites the caller's rating for a resource and
// returns the recomputed mean. The write is an atomic upsert against the
// (user_id, resource_id) unique index, so two concurrent calls for the
// same pair can never both insert.
func (s *RatingService) Rate(ctx context.Context, userID, resourceID uuid.UUID, value int) (float64, error) {
	if value < 1 || value > 5 {
		return 0, apperr.Validation("rating must be between 1 and 5")
	}

	if err := s.requireVisibleResource(ctx, resourceID); err != nil {
		return 0, err
	}

	rating := models.Rating{
		UserID:     userID,
		ResourceID: resourceID,
		Value:      value,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "resource_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": time.Now(),
		}),
	}).Create(&rating).Error
	if err != nil {
		return 0, apperr.Internal("failed saving rating", err)
	}

	return s.mean(ctx, resourceID)
}

// Remove deletes the caller's rating and returns the new mean, 0 when no
// ratings remain.
func (s *RatingService) Remove(ctx context.Context, userID, resourceID uuid.UUID) (float64, error) {
	if err := s.requireVisibleResource(ctx, resourceID); err != nil {
		return 0, err
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND resource_id = ?", userID, resourceID).
		Delete(&models.Rating{})
	if result.Error != nil {
		return 0, apperr.Internal("failed removing rating", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, apperr.NotFound("you have not rated this resource yet")
	}

	return s.mean(ctx, resourceID)
}

// Mean returns the unweighted average of all stored ratings for a
// visible resource, 0 when it has none.
func (s *RatingService) Mean(ctx context.Context, resourceID uuid.UUID) (float64, error) {
	if err := s.requireVisibleResource(ctx, resourceID); err != nil {
		return 0, err
	}
	return s.mean(ctx, resourceID)
}

func (s *RatingService) mean(ctx context.Context, resourceID uuid.UUID) (float64, error) {
	type meanRow struct {
		Mean *float64 `gorm:"column:mean"`
	}

	var row meanRow
	err := s.db.WithContext(ctx).
		Model(&models.Rating{}).
		Select("AVG(value) AS mean").
		Where("resource_id = ?", resourceID).
		Scan(&row).Error
	if err != nil {
		return 0, apperr.Internal("failed computing mean rating", err)
	}
	if row.Mean == nil {
		return 0, nil
	}
	return *row.Mean, nil
}

func (s *RatingService) requireVisibleResource(ctx context.Context, resourceID uuid.UUID) error {
	var resource models.Resource
	err := s.db.WithContext(ctx).
		Select("id").
		First(&resource, "id = ? AND is_blocked = ?", resourceID, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("resource not found")
		}
		return apperr.Internal("failed fetching resource", err)
	}
	return nil
}
