package certification

import (
	"fmt"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/domain/identity"
)

// Actor is the caller of a workflow operation with the roles resolved for it.
type Actor struct {
	UserID uuid.UUID
	Roles  []identity.Role
}

func (a Actor) Has(role identity.Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Policy is the single authorization rule set consulted by every operation.
type Policy struct {
	// RHFastPath lets the assigned RH decide straight from ASSIGNED or
	// IN_EVALUATION without a manager validation step.
	RHFastPath bool
}

// Authorize decides whether actor may perform action on req. req may be nil
// for actions that are not bound to a single request.
func (p Policy) Authorize(op string, actor Actor, action Action, req *Request) error {
	if actor.UserID == uuid.Nil {
		return forbidden(op, "authentication required")
	}
	switch action {
	case ActionSubmit:
		if !actor.Has(identity.RoleExpert) {
			return forbidden(op, "only experts can request a certification")
		}
	case ActionAssign, ActionReassign:
		if !actor.Has(identity.RoleManager) {
			return forbidden(op, "only a manager can assign an evaluator")
		}
	case ActionDecide:
		if !actor.Has(identity.RoleManager) {
			return forbidden(op, "only a manager can decide on a request")
		}
	case ActionFastDecide:
		if !p.RHFastPath {
			return forbidden(op, "direct decisions by the evaluator are disabled")
		}
		if !actor.Has(identity.RoleRH) || !req.IsAssignee(actor.UserID) {
			return forbidden(op, "only the assigned evaluator can decide directly")
		}
	case ActionSaveEvaluation, ActionSubmitEvaluation:
		if !actor.Has(identity.RoleRH) || !req.IsAssignee(actor.UserID) {
			return forbidden(op, "only the assigned evaluator can evaluate this request")
		}
	case ActionResubmit, ActionCancel:
		if req == nil || req.RequesterID != actor.UserID {
			return forbidden(op, "only the requester can "+string(action)+" this request")
		}
	case ActionVerifyAttachment:
		if actor.Has(identity.RoleManager) {
			return nil
		}
		if !actor.Has(identity.RoleRH) || !req.IsAssignee(actor.UserID) {
			return forbidden(op, "only a manager or the assigned evaluator can verify attachments")
		}
	case ActionView:
		if req == nil {
			return forbidden(op, "request required")
		}
		if req.RequesterID == actor.UserID || actor.Has(identity.RoleManager) {
			return nil
		}
		if actor.Has(identity.RoleRH) && (req.IsAssignee(actor.UserID) || (req.LastAssigneeID != nil && *req.LastAssigneeID == actor.UserID)) {
			return nil
		}
		return forbidden(op, "you are not involved in this request")
	case ActionBrowseQueue:
		if !actor.Has(identity.RoleManager) {
			return forbidden(op, "only managers can browse request queues")
		}
	default:
		return forbidden(op, fmt.Sprintf("unknown action %q", action))
	}
	return nil
}

// DecideAction picks the decide flavour for a request: the manager path from
// AWAITING_VALIDATION, or the evaluator fast path when enabled.
func (p Policy) DecideAction(actor Actor, req *Request) Action {
	if req == nil || req.Status == StatusAwaitingValidation || !p.RHFastPath {
		return ActionDecide
	}
	if Allows(req.Status, ActionFastDecide) && actor.Has(identity.RoleRH) && req.IsAssignee(actor.UserID) {
		return ActionFastDecide
	}
	return ActionDecide
}

func forbidden(op, msg string) error {
	return domainagg.NewError(domainagg.CodeForbidden, op, msg, nil)
}
