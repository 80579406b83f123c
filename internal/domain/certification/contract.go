package certification

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
)

var AggregateContract = domainagg.Contract{
	Name:             "Certification.RequestAggregate",
	WriteTxOwnership: domainagg.WriteTxOwnedByAggregate,
	ReadPolicy:       domainagg.ReadPolicyInvariantScoped,
	Notes:            "Owns request status, assignment, evaluation, attachments, badge issuance and the audit trail as one atomic write.",
}

// Aggregate owns the certification workflow invariants.
//
// Write method failures return *aggregates.Error with codes:
// CodeNotFound, CodeForbidden, CodeInvalidTransition, CodeInvalidInput,
// CodeConcurrentModification, CodeUnknownAssignee, CodeUnknownCriterion,
// CodeTransient, CodeInternal.
type Aggregate interface {
	domainagg.Aggregate

	Submit(ctx context.Context, in SubmitInput) (TransitionResult, error)
	Assign(ctx context.Context, in AssignInput) (TransitionResult, error)
	Reassign(ctx context.Context, in AssignInput) (TransitionResult, error)
	SaveEvaluation(ctx context.Context, in SaveEvaluationInput) (TransitionResult, error)
	SubmitEvaluation(ctx context.Context, in TransitionInput) (TransitionResult, error)
	Decide(ctx context.Context, in DecideInput) (TransitionResult, error)
	Resubmit(ctx context.Context, in ResubmitInput) (TransitionResult, error)
	Cancel(ctx context.Context, in TransitionInput) (TransitionResult, error)

	// VerifyAttachment flips the one mutable attachment field.
	VerifyAttachment(ctx context.Context, in VerifyAttachmentInput) (*Attachment, error)

	// SetBadgeVisibility is restricted to the badge holder.
	SetBadgeVisibility(ctx context.Context, in BadgeVisibilityInput) (*Badge, error)
}

// TransitionInput is shared by actions that carry nothing but intent.
type TransitionInput struct {
	Actor     Actor
	RequestID uuid.UUID
	Comment   string
	// ExpectedVersion, when set, must equal the stored version.
	ExpectedVersion *int
}

type SubmitInput struct {
	Actor         Actor
	RequestID     uuid.UUID
	CompetencyID  uuid.UUID
	Justification string
	Priority      int
	Files         []StoredFile
}

type AssignInput struct {
	Actor           Actor
	RequestID       uuid.UUID
	AssigneeID      uuid.UUID
	Comment         string
	ExpectedVersion *int
	// AssigneeIsRH is the identity provider's answer, resolved before the write.
	AssigneeIsRH bool
}

type SaveEvaluationInput struct {
	Actor           Actor
	RequestID       uuid.UUID
	Scores          map[string]int
	Recommendation  Recommendation
	Comment         string
	DurationMinutes int
	ExpectedVersion *int
}

type DecideInput struct {
	Actor           Actor
	RequestID       uuid.UUID
	Outcome         Outcome
	Comment         string
	Validity        Validity
	ExpectedVersion *int
}

type ResubmitInput struct {
	Actor           Actor
	RequestID       uuid.UUID
	Files           []StoredFile
	Comment         string
	ExpectedVersion *int
	// CheckedAssigneeID is the assignee whose RH role was checked before the
	// write; AssigneeStillRH is the answer.
	CheckedAssigneeID *uuid.UUID
	AssigneeStillRH   bool
}

type VerifyAttachmentInput struct {
	Actor        Actor
	AttachmentID uuid.UUID
	Verified     bool
}

type BadgeVisibilityInput struct {
	Actor    Actor
	BadgeID  uuid.UUID
	IsPublic bool
}

// TransitionResult is the committed state after a workflow step.
type TransitionResult struct {
	Request    *Request
	Transition *Transition
	// Badge is set when the step issued one; Superseded when it retired one.
	Badge      *Badge
	Superseded *Badge
	At         time.Time
}
