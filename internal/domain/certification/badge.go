package certification

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelBronze   Level = "BRONZE"
	LevelSilver   Level = "SILVER"
	LevelGold     Level = "GOLD"
	LevelPlatinum Level = "PLATINUM"
)

// ParseLevel defaults to BRONZE for anything it does not recognise.
func ParseLevel(raw string) Level {
	switch l := Level(strings.ToUpper(strings.TrimSpace(raw))); l {
	case LevelBronze, LevelSilver, LevelGold, LevelPlatinum:
		return l
	default:
		return LevelBronze
	}
}

// Badge certifies that HolderID mastered CompetencyID. At most one badge per
// (holder, competency) has SupersededAt unset.
type Badge struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	HolderID          uuid.UUID  `gorm:"type:uuid;not null;index;column:holder_id" json:"holder_id"`
	CompetencyID      uuid.UUID  `gorm:"type:uuid;not null;index;column:competency_id" json:"competency_id"`
	RequestID         uuid.UUID  `gorm:"type:uuid;not null;index;column:request_id" json:"request_id"`
	Level             Level      `gorm:"type:varchar(16);not null;column:level" json:"level"`
	ObtainedAt        time.Time  `gorm:"not null;column:obtained_at" json:"obtained_at"`
	PermanentValidity bool       `gorm:"not null;default:false;column:permanent_validity" json:"permanent_validity"`
	ExpiresAt         *time.Time `gorm:"index;column:expires_at" json:"expires_at,omitempty"`
	IsPublic          bool       `gorm:"not null;default:false;column:is_public" json:"is_public"`
	SupersededAt      *time.Time `gorm:"column:superseded_at" json:"superseded_at,omitempty"`
	SupersededBy      *uuid.UUID `gorm:"type:uuid;column:superseded_by" json:"superseded_by,omitempty"`
	ExpiryNotifiedAt  *time.Time `gorm:"column:expiry_notified_at" json:"-"`
	CreatedAt         time.Time  `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;column:updated_at" json:"updated_at"`

	Valid bool `gorm:"-" json:"is_valid"`
}

func (Badge) TableName() string { return "certification_badge" }

// IsValid: not superseded, and either permanent or not yet expired.
func (b *Badge) IsValid(now time.Time) bool {
	if b == nil || b.SupersededAt != nil {
		return false
	}
	if b.PermanentValidity {
		return true
	}
	return b.ExpiresAt != nil && b.ExpiresAt.After(now)
}

// Refresh stamps the derived Valid field for serialization.
func (b *Badge) Refresh(now time.Time) *Badge {
	if b != nil {
		b.Valid = b.IsValid(now)
	}
	return b
}

// Validity is the manager's choice of badge lifetime on approval.
type Validity struct {
	Permanent bool
	ExpiresAt *time.Time
}
