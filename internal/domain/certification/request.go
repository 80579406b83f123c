package certification

import (
	"time"

	"github.com/google/uuid"
)

// Request is a certification request and the aggregate root of the workflow.
type Request struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID           uuid.UUID  `gorm:"type:uuid;not null;index;column:requester_id" json:"requester_id"`
	CompetencyID          uuid.UUID  `gorm:"type:uuid;not null;index;column:competency_id" json:"competency_id"`
	CompetencyReferenceID *uuid.UUID `gorm:"type:uuid;column:competency_reference_id" json:"competency_reference_id,omitempty"`
	DomainCode            string     `gorm:"column:domain_code" json:"domain_code,omitempty"`
	Status                Status     `gorm:"type:varchar(32);not null;index;column:status" json:"status"`
	Priority              int        `gorm:"not null;default:0;column:priority" json:"priority"`
	Justification         string     `gorm:"type:text;column:justification" json:"justification"`

	AssigneeID        *uuid.UUID `gorm:"type:uuid;index;column:assignee_id" json:"assignee_id,omitempty"`
	LastAssigneeID    *uuid.UUID `gorm:"type:uuid;column:last_assignee_id" json:"last_assignee_id,omitempty"`
	AssignmentComment string     `gorm:"type:text;column:assignment_comment" json:"assignment_comment,omitempty"`
	EvaluationCycle   int        `gorm:"not null;default:1;column:evaluation_cycle" json:"evaluation_cycle"`

	DecisionComment     string     `gorm:"type:text;column:decision_comment" json:"decision_comment,omitempty"`
	DecisionDate        *time.Time `gorm:"column:decision_date" json:"decision_date,omitempty"`
	ResubmissionComment string     `gorm:"type:text;column:resubmission_comment" json:"resubmission_comment,omitempty"`
	BadgeID             *uuid.UUID `gorm:"type:uuid;column:badge_id" json:"badge_id,omitempty"`

	Version   int       `gorm:"not null;default:1;column:version" json:"version"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" json:"updated_at"`

	Attachments []*Attachment `gorm:"-" json:"attachments"`
	Evaluation  *Evaluation   `gorm:"-" json:"evaluation,omitempty"`
}

func (Request) TableName() string { return "certification_request" }

func (r *Request) IsAssignee(userID uuid.UUID) bool {
	return r != nil && r.AssigneeID != nil && *r.AssigneeID == userID && userID != uuid.Nil
}

// HasCurrentEvaluation reports whether an evaluation for the current cycle is loaded.
func (r *Request) HasCurrentEvaluation() bool {
	return r != nil && r.Evaluation != nil && r.Evaluation.Cycle == r.EvaluationCycle
}

// AssigneeConsistent checks that an assignee is present exactly when the status requires one.
func (r *Request) AssigneeConsistent() bool {
	if r == nil {
		return false
	}
	return (r.AssigneeID != nil) == r.Status.HoldsAssignee()
}
