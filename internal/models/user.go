package models

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

type User struct {
	BaseModel
	Username     string   `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	Email        string   `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	FullName     string   `json:"fullName" gorm:"type:varchar(100);not null"`
	Bio          string   `json:"bio" gorm:"type:text"`
	AvatarURL    *string  `json:"avatarURL,omitempty" gorm:"type:text"`
	PasswordHash string   `json:"-" gorm:"type:text;not null"`
	Role         UserRole `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	// RefreshToken is the single renewal slot: at most one refresh token is
	// valid per user, and clearing the slot revokes all outstanding ones.
	RefreshToken *string    `json:"-" gorm:"type:text"`
	IsBlocked    bool       `json:"isBlocked" gorm:"not null;default:false"`
	Resources    []Resource `json:"-" gorm:"foreignKey:OwnerID"`
}
