package certification

import (
	"time"

	"github.com/google/uuid"
)

// Competency is a skill claimed by its owner. Without a reference it cannot
// enter evaluation.
type Competency struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     uuid.UUID  `gorm:"type:uuid;not null;index;column:owner_id" json:"owner_id"`
	Label       string     `gorm:"not null;column:label" json:"label"`
	ReferenceID *uuid.UUID `gorm:"type:uuid;column:reference_id" json:"reference_id,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;column:updated_at" json:"updated_at"`
}

func (Competency) TableName() string { return "competency" }

// CompetencyReference ties a competency to a pedagogical domain.
type CompetencyReference struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code       string    `gorm:"uniqueIndex;not null;column:code" json:"code"`
	Label      string    `gorm:"not null;column:label" json:"label"`
	DomainCode string    `gorm:"not null;index;column:domain_code" json:"domain_code"`
	CreatedAt  time.Time `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;column:updated_at" json:"updated_at"`
}

func (CompetencyReference) TableName() string { return "competency_reference" }
