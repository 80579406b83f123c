package certification

import (
	"testing"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/domain/identity"
)

func TestAuthorize(t *testing.T) {
	requester := uuid.New()
	rh := uuid.New()
	otherRH := uuid.New()
	manager := uuid.New()

	req := &Request{ID: uuid.New(), RequesterID: requester, Status: StatusAssigned, AssigneeID: &rh}

	expert := Actor{UserID: requester, Roles: []identity.Role{identity.RoleExpert}}
	assignee := Actor{UserID: rh, Roles: []identity.Role{identity.RoleRH}}
	stranger := Actor{UserID: otherRH, Roles: []identity.Role{identity.RoleRH}}
	boss := Actor{UserID: manager, Roles: []identity.Role{identity.RoleManager}}

	cases := []struct {
		name   string
		policy Policy
		actor  Actor
		action Action
		ok     bool
	}{
		{"expert submits", Policy{}, expert, ActionSubmit, true},
		{"rh cannot submit", Policy{}, assignee, ActionSubmit, false},
		{"manager assigns", Policy{}, boss, ActionAssign, true},
		{"expert cannot assign", Policy{}, expert, ActionAssign, false},
		{"assignee evaluates", Policy{}, assignee, ActionSaveEvaluation, true},
		{"other rh cannot evaluate", Policy{}, stranger, ActionSaveEvaluation, false},
		{"manager decides", Policy{}, boss, ActionDecide, true},
		{"rh cannot decide", Policy{}, assignee, ActionDecide, false},
		{"fast path off", Policy{}, assignee, ActionFastDecide, false},
		{"fast path on", Policy{RHFastPath: true}, assignee, ActionFastDecide, true},
		{"fast path other rh", Policy{RHFastPath: true}, stranger, ActionFastDecide, false},
		{"requester cancels", Policy{}, expert, ActionCancel, true},
		{"manager cannot cancel", Policy{}, boss, ActionCancel, false},
		{"requester views", Policy{}, expert, ActionView, true},
		{"stranger cannot view", Policy{}, stranger, ActionView, false},
		{"assignee verifies", Policy{}, assignee, ActionVerifyAttachment, true},
		{"requester cannot verify", Policy{}, expert, ActionVerifyAttachment, false},
		{"manager browses", Policy{}, boss, ActionBrowseQueue, true},
		{"rh cannot browse", Policy{}, assignee, ActionBrowseQueue, false},
	}
	for _, tc := range cases {
		err := tc.policy.Authorize("test", tc.actor, tc.action, req)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected err %v", tc.name, err)
		}
		if !tc.ok && !domainagg.IsCode(err, domainagg.CodeForbidden) {
			t.Fatalf("%s: want forbidden got=%v", tc.name, err)
		}
	}
}

func TestAuthorizeRejectsAnonymous(t *testing.T) {
	err := Policy{}.Authorize("test", Actor{}, ActionView, &Request{})
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("want forbidden got=%v", err)
	}
}

func TestDecideAction(t *testing.T) {
	rh := uuid.New()
	assignee := Actor{UserID: rh, Roles: []identity.Role{identity.RoleRH}}
	req := &Request{Status: StatusInEvaluation, AssigneeID: &rh}

	if got := (Policy{}).DecideAction(assignee, req); got != ActionDecide {
		t.Fatalf("fast path disabled: want decide got=%s", got)
	}
	if got := (Policy{RHFastPath: true}).DecideAction(assignee, req); got != ActionFastDecide {
		t.Fatalf("fast path enabled: want fast_decide got=%s", got)
	}
	req.Status = StatusAwaitingValidation
	if got := (Policy{RHFastPath: true}).DecideAction(assignee, req); got != ActionDecide {
		t.Fatalf("awaiting validation: want decide got=%s", got)
	}
}
