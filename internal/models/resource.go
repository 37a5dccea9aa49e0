package models

import "github.com/google/uuid"

type Branch string

const (
	BranchISE      Branch = "ISE"
	BranchCSE      Branch = "CSE"
	BranchECE      Branch = "ECE"
	BranchMECH     Branch = "MECH"
	BranchCIVIL    Branch = "CIVIL"
	BranchEEE      Branch = "EEE"
	BranchAIML     Branch = "AIML"
	BranchCHEMICAL Branch = "CHEMICAL"
)

var Branches = []Branch{
	BranchISE, BranchCSE, BranchECE, BranchMECH,
	BranchCIVIL, BranchEEE, BranchAIML, BranchCHEMICAL,
}

func ValidBranch(value string) bool {
	for _, b := range Branches {
		if string(b) == value {
			return true
		}
	}
	return false
}

const (
	MinSemester = 1
	MaxSemester = 8
)

type Resource struct {
	BaseModel
	Title       string     `json:"title" gorm:"type:varchar(255);not null;index"`
	Description string     `json:"description" gorm:"type:text;not null"`
	Branch      Branch     `json:"branch" gorm:"type:varchar(20);not null;index"`
	Semester    int        `json:"semester" gorm:"not null;index"`
	URL         string     `json:"url" gorm:"type:text;not null"`
	FileSize    int64      `json:"fileSize" gorm:"not null;default:0"`
	IsBlocked   bool       `json:"isBlocked" gorm:"not null;default:false;index"`
	OwnerID     *uuid.UUID `json:"ownerID,omitempty" gorm:"type:uuid;index"`

	Owner *User `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}
