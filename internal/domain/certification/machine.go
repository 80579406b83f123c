package certification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
)

type Action string

const (
	ActionSubmit           Action = "submit"
	ActionAssign           Action = "assign"
	ActionReassign         Action = "reassign"
	ActionSaveEvaluation   Action = "save_evaluation"
	ActionSubmitEvaluation Action = "submit_evaluation"
	ActionDecide           Action = "decide"
	ActionFastDecide       Action = "fast_decide"
	ActionResubmit         Action = "resubmit"
	ActionCancel           Action = "cancel"

	// Non-transition actions checked by the policy.
	ActionView             Action = "view"
	ActionVerifyAttachment Action = "verify_attachment"
	ActionBrowseQueue      Action = "browse_queue"
)

type edge struct {
	action Action
	to     Status
}

var graph = map[Status][]edge{
	StatusPending: {
		{ActionAssign, StatusAssigned},
		{ActionCancel, StatusCancelled},
	},
	StatusAssigned: {
		{ActionReassign, StatusAssigned},
		{ActionSaveEvaluation, StatusInEvaluation},
		{ActionFastDecide, StatusApproved},
		{ActionFastDecide, StatusRejected},
		{ActionFastDecide, StatusComplementRequired},
	},
	StatusInEvaluation: {
		{ActionReassign, StatusAssigned},
		{ActionSaveEvaluation, StatusInEvaluation},
		{ActionSubmitEvaluation, StatusAwaitingValidation},
		{ActionFastDecide, StatusApproved},
		{ActionFastDecide, StatusRejected},
		{ActionFastDecide, StatusComplementRequired},
	},
	StatusAwaitingValidation: {
		{ActionReassign, StatusAssigned},
		{ActionDecide, StatusApproved},
		{ActionDecide, StatusRejected},
		{ActionDecide, StatusComplementRequired},
	},
	StatusComplementRequired: {
		{ActionReassign, StatusAssigned},
		{ActionSaveEvaluation, StatusInEvaluation},
		{ActionResubmit, StatusAssigned},
		{ActionResubmit, StatusPending},
		{ActionCancel, StatusCancelled},
	},
}

// Allows reports whether action may be applied to a request in status from.
func Allows(from Status, action Action) bool {
	for _, e := range graph[from] {
		if e.action == action {
			return true
		}
	}
	return false
}

// CheckTransition validates a single edge of the workflow graph.
func CheckTransition(op string, from Status, action Action, to Status) error {
	for _, e := range graph[from] {
		if e.action == action && e.to == to {
			return nil
		}
	}
	if from.Terminal() {
		return domainagg.NewError(domainagg.CodeInvalidTransition, op,
			fmt.Sprintf("request is %s and can no longer change", from), nil)
	}
	return domainagg.NewError(domainagg.CodeInvalidTransition, op,
		fmt.Sprintf("cannot %s a request that is %s", humanAction(action), from), nil)
}

// SourcesOf lists every status from which action is legal.
func SourcesOf(action Action) []Status {
	out := []Status{}
	for _, s := range AllStatuses {
		if Allows(s, action) {
			out = append(out, s)
		}
	}
	return out
}

func humanAction(a Action) string {
	switch a {
	case ActionSaveEvaluation:
		return "save an evaluation for"
	case ActionSubmitEvaluation:
		return "submit the evaluation of"
	case ActionFastDecide:
		return "decide"
	default:
		return string(a)
	}
}

// Transition is one row of a request's audit trail.
type Transition struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID `gorm:"type:uuid;not null;index;column:request_id" json:"request_id"`
	Action     Action    `gorm:"type:varchar(32);not null;column:action" json:"action"`
	FromStatus Status    `gorm:"type:varchar(32);column:from_status" json:"from_status,omitempty"`
	ToStatus   Status    `gorm:"type:varchar(32);not null;column:to_status" json:"to_status"`
	ActorID    uuid.UUID `gorm:"type:uuid;not null;column:actor_id" json:"actor_id"`
	Comment    string    `gorm:"type:text;column:comment" json:"comment,omitempty"`
	CreatedAt  time.Time `gorm:"not null;index;column:created_at" json:"created_at"`
}

func (Transition) TableName() string { return "certification_transition" }
