package models

import "github.com/google/uuid"

type Comment struct {
	BaseModel
	UserID     uuid.UUID `json:"userID" gorm:"type:uuid;not null;index"`
	ResourceID uuid.UUID `json:"resourceID" gorm:"type:uuid;not null;index"`
	Text       string    `json:"comment" gorm:"type:text;not null"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
