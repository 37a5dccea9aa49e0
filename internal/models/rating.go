package models

import "github.com/google/uuid"

// Rating holds one user's score for one resource. The composite unique
// index is what guarantees at most one row per (user, resource) pair even
// under concurrent writers; Rate relies on it for its upsert.
type Rating struct {
	BaseModel
	UserID     uuid.UUID `json:"userID" gorm:"type:uuid;not null;uniqueIndex:idx_ratings_user_resource"`
	ResourceID uuid.UUID `json:"resourceID" gorm:"type:uuid;not null;uniqueIndex:idx_ratings_user_resource"`
	Value      int       `json:"rating" gorm:"not null"`
}
