package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleExpert  Role = "EXPERT"
	RoleRH      Role = "RH"
	RoleManager Role = "MANAGER"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleExpert:
		return RoleExpert, true
	case RoleRH:
		return RoleRH, true
	case RoleManager:
		return RoleManager, true
	default:
		return "", false
	}
}

// User is the directory entry for a person known to the workflow. Login
// credentials live in the identity provider, not here.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	DisplayName string    `gorm:"column:display_name" json:"display_name"`
	Active      bool      `gorm:"not null;default:true;column:active" json:"active"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "directory_user" }

// RoleGrant records that a user holds a role.
type RoleGrant struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;column:user_id" json:"user_id"`
	Role      Role      `gorm:"type:varchar(16);primaryKey;column:role" json:"role"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (RoleGrant) TableName() string { return "directory_role" }

// Contact is what the notification surface needs to reach a user.
type Contact struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
}
