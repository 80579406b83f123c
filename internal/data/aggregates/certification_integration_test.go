package aggregates_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/certification-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/certification-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/certification-backend/internal/data/repos"
	repotest "github.com/yungbote/certification-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/domain/identity"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
)

type fakeCatalog map[string]certification.ScoringDomain

func (c fakeCatalog) Domain(code string) (certification.ScoringDomain, bool) {
	d, ok := c[code]
	return d, ok
}

var testCatalog = fakeCatalog{
	"SOFTWARE": {
		Code:  "SOFTWARE",
		Level: certification.LevelGold,
		Criteria: []certification.Criterion{
			{ID: "c1", MaxPoints: 40},
			{ID: "c2", MaxPoints: 30},
			{ID: "c3", MaxPoints: 20},
			{ID: "c4", MaxPoints: 10},
		},
	},
}

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type env struct {
	t       *testing.T
	ctx     context.Context
	db      *gorm.DB
	hooks   *aggtest.HooksRecorder
	agg     certification.Aggregate
	repos   repoSet
	clock   *steppingClock
	expert  certification.Actor
	rh1     certification.Actor
	rh2     certification.Actor
	manager certification.Actor
	comp    *certification.Competency
}

type repoSet struct {
	requests    repos.RequestRepo
	attachments repos.AttachmentRepo
	evaluations repos.EvaluationRepo
	badges      repos.BadgeRepo
	transitions repos.TransitionRepo
	competency  repos.CompetencyRepo
}

type envOption func(*aggregates.CertificationAggregateDeps)

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	ctx := context.Background()

	e := &env{
		t:     t,
		ctx:   ctx,
		db:    db,
		hooks: &aggtest.HooksRecorder{},
		clock: &steppingClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		repos: repoSet{
			requests:    repos.NewRequestRepo(db, log),
			attachments: repos.NewAttachmentRepo(db, log),
			evaluations: repos.NewEvaluationRepo(db, log),
			badges:      repos.NewBadgeRepo(db, log),
			transitions: repos.NewTransitionRepo(db, log),
			competency:  repos.NewCompetencyRepo(db, log),
		},
	}
	expert := repotest.SeedUser(t, ctx, db, "expert@example.com", identity.RoleExpert)
	rh1 := repotest.SeedUser(t, ctx, db, "rh1@example.com", identity.RoleRH)
	rh2 := repotest.SeedUser(t, ctx, db, "rh2@example.com", identity.RoleRH)
	mgr := repotest.SeedUser(t, ctx, db, "manager@example.com", identity.RoleManager)
	e.expert = certification.Actor{UserID: expert.ID, Roles: []identity.Role{identity.RoleExpert}}
	e.rh1 = certification.Actor{UserID: rh1.ID, Roles: []identity.Role{identity.RoleRH}}
	e.rh2 = certification.Actor{UserID: rh2.ID, Roles: []identity.Role{identity.RoleRH}}
	e.manager = certification.Actor{UserID: mgr.ID, Roles: []identity.Role{identity.RoleManager}}
	e.comp = repotest.SeedCompetency(t, ctx, db, expert.ID, "SOFTWARE")

	deps := aggregates.CertificationAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: e.hooks,
			Clock: e.clock.Now,
		},
		Requests:     e.repos.requests,
		Attachments:  e.repos.attachments,
		Evaluations:  e.repos.evaluations,
		Badges:       e.repos.badges,
		Transitions:  e.repos.transitions,
		Competencies: e.repos.competency,
		Catalog:      testCatalog,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e.agg = aggregates.NewCertificationAggregate(deps)
	return e
}

func (e *env) submit(files ...certification.StoredFile) *certification.Request {
	e.t.Helper()
	res, err := e.agg.Submit(e.ctx, certification.SubmitInput{
		Actor:         e.expert,
		CompetencyID:  e.comp.ID,
		Justification: "five years of production Go",
		Files:         files,
	})
	if err != nil {
		e.t.Fatalf("Submit: %v", err)
	}
	return res.Request
}

func (e *env) assign(id uuid.UUID, to certification.Actor) *certification.Request {
	e.t.Helper()
	res, err := e.agg.Assign(e.ctx, certification.AssignInput{
		Actor:        e.manager,
		RequestID:    id,
		AssigneeID:   to.UserID,
		Comment:      "please verify certificate",
		AssigneeIsRH: true,
	})
	if err != nil {
		e.t.Fatalf("Assign: %v", err)
	}
	return res.Request
}

func (e *env) evaluate(id uuid.UUID, rh certification.Actor, rec certification.Recommendation) *certification.Request {
	e.t.Helper()
	res, err := e.agg.SaveEvaluation(e.ctx, certification.SaveEvaluationInput{
		Actor:           rh,
		RequestID:       id,
		Scores:          map[string]int{"c1": 30, "c2": 25, "c3": 20},
		Recommendation:  rec,
		DurationMinutes: 45,
	})
	if err != nil {
		e.t.Fatalf("SaveEvaluation: %v", err)
	}
	res, err = e.agg.SubmitEvaluation(e.ctx, certification.TransitionInput{Actor: rh, RequestID: id})
	if err != nil {
		e.t.Fatalf("SubmitEvaluation: %v", err)
	}
	return res.Request
}

func (e *env) reload(id uuid.UUID) *certification.Request {
	e.t.Helper()
	req, err := e.repos.requests.GetByID(dbctx.Context{Ctx: e.ctx}, id)
	if err != nil || req == nil {
		e.t.Fatalf("reload %s: err=%v", id, err)
	}
	return req
}

func (e *env) countBadges(holder uuid.UUID) (all, active int) {
	e.t.Helper()
	rows, err := e.repos.badges.ListByHolder(dbctx.Context{Ctx: e.ctx}, holder, true)
	if err != nil {
		e.t.Fatalf("ListByHolder: %v", err)
	}
	for _, b := range rows {
		if b.SupersededAt == nil {
			active++
		}
	}
	return len(rows), active
}

func requireCode(t *testing.T, err error, code domainagg.ErrorCode) {
	t.Helper()
	if !domainagg.IsCode(err, code) {
		t.Fatalf("error code: want=%s got=%q (%v)", code, domainagg.CodeOf(err), err)
	}
}

func TestCertificationApprovalScenario(t *testing.T) {
	e := newEnv(t)
	req := e.submit()
	if req.Status != certification.StatusPending || req.DomainCode != "SOFTWARE" || req.CompetencyReferenceID == nil {
		t.Fatalf("submitted: status=%s domain=%s ref=%v", req.Status, req.DomainCode, req.CompetencyReferenceID)
	}

	req = e.assign(req.ID, e.rh1)
	if req.Status != certification.StatusAssigned || req.AssigneeID == nil || *req.AssigneeID != e.rh1.UserID {
		t.Fatalf("assigned: status=%s assignee=%v", req.Status, req.AssigneeID)
	}
	if req.AssignmentComment != "please verify certificate" {
		t.Fatalf("assignment comment: got=%q", req.AssignmentComment)
	}

	saved, err := e.agg.SaveEvaluation(e.ctx, certification.SaveEvaluationInput{
		Actor:          e.rh1,
		RequestID:      req.ID,
		Scores:         map[string]int{"c1": 30, "c2": 25, "c3": 20},
		Recommendation: certification.RecommendationApprove,
	})
	if err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	if saved.Request.Status != certification.StatusInEvaluation {
		t.Fatalf("after save: want=IN_EVALUATION got=%s", saved.Request.Status)
	}
	if saved.Request.Evaluation == nil || saved.Request.Evaluation.GlobalScore != 75 {
		t.Fatalf("global score: want=75 got=%+v", saved.Request.Evaluation)
	}

	sub, err := e.agg.SubmitEvaluation(e.ctx, certification.TransitionInput{Actor: e.rh1, RequestID: req.ID})
	if err != nil {
		t.Fatalf("SubmitEvaluation: %v", err)
	}
	if sub.Request.Status != certification.StatusAwaitingValidation {
		t.Fatalf("after submit: want=AWAITING_VALIDATION got=%s", sub.Request.Status)
	}

	dec, err := e.agg.Decide(e.ctx, certification.DecideInput{
		Actor:     e.manager,
		RequestID: req.ID,
		Outcome:   certification.OutcomeApprove,
		Comment:   "well documented",
		Validity:  certification.Validity{Permanent: true},
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	got := dec.Request
	if got.Status != certification.StatusApproved {
		t.Fatalf("decided: want=APPROVED got=%s", got.Status)
	}
	if got.AssigneeID != nil || got.LastAssigneeID == nil || *got.LastAssigneeID != e.rh1.UserID {
		t.Fatalf("assignee after approval: assignee=%v last=%v", got.AssigneeID, got.LastAssigneeID)
	}
	if dec.Badge == nil || dec.Badge.Level != certification.LevelGold || dec.Badge.IsPublic || !dec.Badge.Valid {
		t.Fatalf("issued badge: %+v", dec.Badge)
	}
	if got.BadgeID == nil || *got.BadgeID != dec.Badge.ID {
		t.Fatalf("badge ref: want=%s got=%v", dec.Badge.ID, got.BadgeID)
	}
	if got.Version != 5 {
		t.Fatalf("version: want=5 got=%d", got.Version)
	}

	_, err = e.agg.Decide(e.ctx, certification.DecideInput{
		Actor:     e.manager,
		RequestID: req.ID,
		Outcome:   certification.OutcomeApprove,
		Validity:  certification.Validity{Permanent: true},
	})
	requireCode(t, err, domainagg.CodeInvalidTransition)
	if all, active := e.countBadges(e.expert.UserID); all != 1 || active != 1 {
		t.Fatalf("badges after second approval attempt: all=%d active=%d", all, active)
	}

	history, err := e.repos.transitions.ListByRequest(dbctx.Context{Ctx: e.ctx}, req.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []certification.Status{
		certification.StatusPending,
		certification.StatusAssigned,
		certification.StatusInEvaluation,
		certification.StatusAwaitingValidation,
		certification.StatusApproved,
	}
	if len(history) != len(want) {
		t.Fatalf("history length: want=%d got=%d", len(want), len(history))
	}
	for i, s := range want {
		if history[i].ToStatus != s {
			t.Fatalf("history[%d]: want=%s got=%s", i, s, history[i].ToStatus)
		}
		if i > 0 {
			if err := certification.CheckTransition("test", history[i].FromStatus, history[i].Action, history[i].ToStatus); err != nil {
				t.Fatalf("history[%d] leaves the workflow graph: %v", i, err)
			}
		}
	}
	if len(e.hooks.Transitions) != len(want) {
		t.Fatalf("transition hooks: want=%d got=%d", len(want), len(e.hooks.Transitions))
	}
}

func TestComplementLoopResubmitReturnsToAssignee(t *testing.T) {
	e := newEnv(t)
	req := e.submit(certification.StoredFile{Kind: certification.AttachmentCertificate, StorageKey: "requests/x/a.pdf"})
	e.assign(req.ID, e.rh1)
	e.evaluate(req.ID, e.rh1, certification.RecommendationRequestComplement)

	dec, err := e.agg.Decide(e.ctx, certification.DecideInput{
		Actor:     e.manager,
		RequestID: req.ID,
		Outcome:   certification.OutcomeRequestComplement,
		Comment:   "missing diploma",
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if dec.Request.Status != certification.StatusComplementRequired || dec.Request.DecisionComment != "missing diploma" {
		t.Fatalf("complement: status=%s comment=%q", dec.Request.Status, dec.Request.DecisionComment)
	}
	if dec.Request.AssigneeID == nil || *dec.Request.AssigneeID != e.rh1.UserID {
		t.Fatalf("assignee must be kept on complement, got=%v", dec.Request.AssigneeID)
	}
	if dec.Badge != nil {
		t.Fatalf("complement must not issue a badge")
	}
	before := len(dec.Request.Attachments)

	checked := e.rh1.UserID
	res, err := e.agg.Resubmit(e.ctx, certification.ResubmitInput{
		Actor:             e.expert,
		RequestID:         req.ID,
		Files:             []certification.StoredFile{{Kind: certification.AttachmentDiploma, StorageKey: "requests/x/b.pdf"}},
		CheckedAssigneeID: &checked,
		AssigneeStillRH:   true,
	})
	if err != nil {
		t.Fatalf("Resubmit: %v", err)
	}
	if res.Request.Status != certification.StatusAssigned {
		t.Fatalf("resubmitted: want=ASSIGNED got=%s", res.Request.Status)
	}
	if res.Request.AssigneeID == nil || *res.Request.AssigneeID != e.rh1.UserID {
		t.Fatalf("resubmitted assignee: want=%s got=%v", e.rh1.UserID, res.Request.AssigneeID)
	}
	if len(res.Request.Attachments) != before+1 {
		t.Fatalf("attachments: want=%d got=%d", before+1, len(res.Request.Attachments))
	}
	if res.Request.Attachments[before].Position != before {
		t.Fatalf("appended position: want=%d got=%d", before, res.Request.Attachments[before].Position)
	}
}

func TestResubmitFallsBackToPendingWhenAssigneeLostRole(t *testing.T) {
	e := newEnv(t)
	req := e.submit()
	e.assign(req.ID, e.rh1)
	e.evaluate(req.ID, e.rh1, certification.RecommendationRequestComplement)
	if _, err := e.agg.Decide(e.ctx, certification.DecideInput{
		Actor: e.manager, RequestID: req.ID, Outcome: certification.OutcomeRequestComplement,
	}); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	checked := e.rh1.UserID
	res, err := e.agg.Resubmit(e.ctx, certification.ResubmitInput{
		Actor:             e.expert,
		RequestID:         req.ID,
		Comment:           "added the diploma",
		CheckedAssigneeID: &checked,
		AssigneeStillRH:   false,
	})
	if err != nil {
		t.Fatalf("Resubmit: %v", err)
	}
	got := res.Request
	if got.Status != certification.StatusPending || got.AssigneeID != nil {
		t.Fatalf("resubmitted: status=%s assignee=%v", got.Status, got.AssigneeID)
	}
	if got.LastAssigneeID == nil || *got.LastAssigneeID != e.rh1.UserID {
		t.Fatalf("last assignee: want=%s got=%v", e.rh1.UserID, got.LastAssigneeID)
	}
	if got.EvaluationCycle != 2 || got.Evaluation != nil {
		t.Fatalf("fresh cycle: cycle=%d evaluation=%v", got.EvaluationCycle, got.Evaluation)
	}
	if got.ResubmissionComment != "added the diploma" {
		t.Fatalf("resubmission comment: got=%q", got.ResubmissionComment)
	}
}

func TestResubmitRejectsStaleAssigneeCheck(t *testing.T) {
	e := newEnv(t)
	req := e.submit()
	e.assign(req.ID, e.rh1)
	e.evaluate(req.ID, e.rh1, certification.RecommendationRequestComplement)
	if _, err := e.agg.Decide(e.ctx, certification.DecideInput{
		Actor: e.manager, RequestID: req.ID, Outcome: certification.OutcomeRequestComplement,
	}); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	checked := e.rh2.UserID
	_, err := e.agg.Resubmit(e.ctx, certification.ResubmitInput{
		Actor:             e.expert,
		RequestID:         req.ID,
		CheckedAssigneeID: &checked,
		AssigneeStillRH:   true,
	})
	requireCode(t, err, domainagg.CodeConcurrentModification)
	if got := e.reload(req.ID); got.Status != certification.StatusComplementRequired {
		t.Fatalf("status after rejected resubmit: got=%s", got.Status)
	}
}

func TestCancelOnAssignedIsInvalidTransition(t *testing.T) {
	e := newEnv(t)
	req := e.submit()
	assigned := e.assign(req.ID, e.rh1)

	_, err := e.agg.Cancel(e.ctx, certification.TransitionInput{Actor: e.expert, RequestID: req.ID})
	requireCode(t, err, domainagg.CodeInvalidTransition)

	got := e.reload(req.ID)
	if got.Status != certification.StatusAssigned || got.Version != assigned.Version {
		t.Fatalf("after rejected cancel: status=%s version=%d", got.Status, got.Version)
	}

	_, err = e.agg.Cancel(e.ctx, certification.TransitionInput{Actor: e.manager, RequestID: req.ID})
	requireCode(t, err, domainagg.CodeForbidden)
}

func TestCancelFromPending(t *testing.T) {
	e := newEnv(t)
	req := e.submit()
	res, err := e.agg.Cancel(e.ctx, certification.TransitionInput{Actor: e.expert, RequestID: req.ID})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if res.Request.Status != certification.StatusCancelled {
		t.Fatalf("cancel: want=CANCELLED got=%s", res.Request.Status)
	}
	_, err = e.agg.Assign(e.ctx, certification.AssignInput{
		Actor: e.manager, RequestID: req.ID, AssigneeID: e.rh1.UserID, AssigneeIsRH: true,
	})
	requireCode(t, err, domainagg.CodeInvalidTransition)
}

func TestSaveEvaluationRejectsBadScoresWithoutWriting(t *testing.T) {
	e := newEnv(t)
	req := e.submit()
	assigned := e.assign(req.ID, e.rh1)

	_, err := e.agg.SaveEvaluation(e.ctx, certification.SaveEvaluationInput{
		Actor:     e.rh1,
		RequestID: req.ID,
		Scores:    map[string]int{"c1": 30, "c2": 31},
	})
	requireCode(t, err, domainagg.CodeInvalidInput)

	_, err = e.agg.SaveEvaluation(e.ctx, certification.SaveEvaluationInput{
		Actor:     e.rh1,
		RequestID: req.ID,
		Scores:    map[string]int{"c9": 1},
	})
	requireCode(t, err, domainagg.CodeUnknownCriterion)

	_, err = e.agg.SaveEvaluation(e.ctx, certification.SaveEvaluationInput{
		Actor:     e.rh2,
		RequestID: req.ID,
		Scores:    map[string]int{"c1": 1},
	})
	requireCode(t, err, domainagg.CodeForbidden)

	got := e.reload(req.ID)
	if got.Status != certification.StatusAssigned || got.Version != assigned.Version {
		t.Fatalf("after rejected saves: status=%s version=%d", got.Status, got.Version)
	}
	rows, err := e.repos.evaluations.ListByRequest(dbctx.Context{Ctx: e.ctx}, req.ID)
	if err != nil || len(rows) != 0 {
		t.Fatalf("evaluations: err=%v len=%d", err, len(rows))
	}
}

func TestSubmitEvaluationRequiresRecommendation(t *testing.T) {
	e := newEnv(t)
	req := e.submit()
	e.assign(req.ID, e.rh1)

	_, err := e.agg.SubmitEvaluation(e.ctx, certification.TransitionInput{Actor: e.rh1, RequestID: req.ID})
	requireCode(t, err, domainagg.CodeInvalidTransition)

	if _, err := e.agg.SaveEvaluation(e.ctx, certification.SaveEvaluationInput{
		Actor: e.rh1, RequestID: req.ID, Scores: map[string]int{"c1": 10},
	}); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	_, err = e.agg.SubmitEvaluation(e.ctx, certification.TransitionInput{Actor: e.rh1, RequestID: req.ID})
	requireCode(t, err, domainagg.CodeInvalidTransition)
}

func TestAssignGuards(t *testing.T) {
	t.Run("missing reference", func(t *testing.T) {
		e := newEnv(t)
		bare := repotest.SeedCompetency(t, e.ctx, e.db, e.expert.UserID, "")
		res, err := e.agg.Submit(e.ctx, certification.SubmitInput{Actor: e.expert, CompetencyID: bare.ID})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		_, err = e.agg.Assign(e.ctx, certification.AssignInput{
			Actor: e.manager, RequestID: res.Request.ID, AssigneeID: e.rh1.UserID, AssigneeIsRH: true,
		})
		requireCode(t, err, domainagg.CodeInvalidTransition)
		if msg := domainagg.MessageOf(err); !strings.HasPrefix(msg, "competency is not linked") {
			t.Fatalf("message: got=%q", msg)
		}
	})

	t.Run("unknown assignee", func(t *testing.T) {
		e := newEnv(t)
		req := e.submit()
		_, err := e.agg.Assign(e.ctx, certification.AssignInput{
			Actor: e.manager, RequestID: req.ID, AssigneeID: e.expert.UserID, AssigneeIsRH: false,
		})
		requireCode(t, err, domainagg.CodeUnknownAssignee)
	})

	t.Run("not found", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.agg.Assign(e.ctx, certification.AssignInput{
			Actor: e.manager, RequestID: uuid.New(), AssigneeID: e.rh1.UserID, AssigneeIsRH: true,
		})
		requireCode(t, err, domainagg.CodeNotFound)
	})

	t.Run("rh cannot assign", func(t *testing.T) {
		e := newEnv(t)
		req := e.submit()
		_, err := e.agg.Assign(e.ctx, certification.AssignInput{
			Actor: e.rh1, RequestID: req.ID, AssigneeID: e.rh1.UserID, AssigneeIsRH: true,
		})
		requireCode(t, err, domainagg.CodeForbidden)
	})
}

func TestConcurrentAssignOneWinner(t *testing.T) {
	e := newEnv(t)
	req := e.submit()
	v := req.Version

	first, err := e.agg.Assign(e.ctx, certification.AssignInput{
		Actor: e.manager, RequestID: req.ID, AssigneeID: e.rh1.UserID, AssigneeIsRH: true, ExpectedVersion: &v,
	})
	if err != nil {
		t.Fatalf("winner: %v", err)
	}
	_, err = e.agg.Reassign(e.ctx, certification.AssignInput{
		Actor: e.manager, RequestID: req.ID, AssigneeID: e.rh2.UserID, AssigneeIsRH: true, ExpectedVersion: &v,
	})
	requireCode(t, err, domainagg.CodeConcurrentModification)

	got := e.reload(req.ID)
	if got.AssigneeID == nil || *got.AssigneeID != e.rh1.UserID || got.Version != first.Request.Version {
		t.Fatalf("final state: assignee=%v version=%d", got.AssigneeID, got.Version)
	}
	if len(e.hooks.Conflicts) != 1 {
		t.Fatalf("conflict hooks: want=1 got=%v", e.hooks.Conflicts)
	}
}

// staleRequests serves one snapshot a version behind once armed, as if
// another writer committed between the read and the compare-and-set.
type staleRequests struct {
	repos.RequestRepo
	armed bool
}

func (s *staleRequests) GetByID(dbc dbctx.Context, id uuid.UUID) (*certification.Request, error) {
	req, err := s.RequestRepo.GetByID(dbc, id)
	if err != nil || req == nil {
		return req, err
	}
	if s.armed {
		s.armed = false
		req.Version--
	}
	return req, nil
}

func TestLostCompareAndSetIsConcurrentModification(t *testing.T) {
	var stale *staleRequests
	e := newEnv(t, func(d *aggregates.CertificationAggregateDeps) {
		stale = &staleRequests{RequestRepo: d.Requests}
		d.Requests = stale
	})
	req := e.submit()
	stale.armed = true

	_, err := e.agg.Assign(e.ctx, certification.AssignInput{
		Actor: e.manager, RequestID: req.ID, AssigneeID: e.rh1.UserID, AssigneeIsRH: true,
	})
	requireCode(t, err, domainagg.CodeConcurrentModification)
	if got := e.reload(req.ID); got.Status != certification.StatusPending {
		t.Fatalf("status after lost CAS: got=%s", got.Status)
	}
	history, _ := e.repos.transitions.ListByRequest(dbctx.Context{Ctx: e.ctx}, req.ID)
	if len(history) != 1 {
		t.Fatalf("audit rows after lost CAS: want=1 got=%d", len(history))
	}
}

func TestReassignStartsFreshEvaluationCycle(t *testing.T) {
	e := newEnv(t)
	req := e.submit()
	e.assign(req.ID, e.rh1)
	e.evaluate(req.ID, e.rh1, certification.RecommendationApprove)

	res, err := e.agg.Reassign(e.ctx, certification.AssignInput{
		Actor: e.manager, RequestID: req.ID, AssigneeID: e.rh2.UserID, Comment: "second opinion", AssigneeIsRH: true,
	})
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	got := res.Request
	if got.Status != certification.StatusAssigned || got.EvaluationCycle != 2 || got.Evaluation != nil {
		t.Fatalf("reassigned: status=%s cycle=%d evaluation=%v", got.Status, got.EvaluationCycle, got.Evaluation)
	}

	_, err = e.agg.SaveEvaluation(e.ctx, certification.SaveEvaluationInput{
		Actor: e.rh1, RequestID: req.ID, Scores: map[string]int{"c1": 1},
	})
	requireCode(t, err, domainagg.CodeForbidden)

	_, err = e.agg.Decide(e.ctx, certification.DecideInput{
		Actor: e.manager, RequestID: req.ID, Outcome: certification.OutcomeApprove, Validity: certification.Validity{Permanent: true},
	})
	requireCode(t, err, domainagg.CodeInvalidTransition)

	e.evaluate(req.ID, e.rh2, certification.RecommendationReject)
	rows, err := e.repos.evaluations.ListByRequest(dbctx.Context{Ctx: e.ctx}, req.ID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("evaluations kept for audit: err=%v len=%d", err, len(rows))
	}
	dec, err := e.agg.Decide(e.ctx, certification.DecideInput{
		Actor: e.manager, RequestID: req.ID, Outcome: certification.OutcomeReject, Comment: "not yet",
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if dec.Request.Status != certification.StatusRejected || dec.Badge != nil {
		t.Fatalf("reject: status=%s badge=%v", dec.Request.Status, dec.Badge)
	}
}

func TestSecondApprovalSupersedesPreviousBadge(t *testing.T) {
	e := newEnv(t)
	approve := func(validity certification.Validity) certification.TransitionResult {
		req := e.submit()
		e.assign(req.ID, e.rh1)
		e.evaluate(req.ID, e.rh1, certification.RecommendationApprove)
		res, err := e.agg.Decide(e.ctx, certification.DecideInput{
			Actor: e.manager, RequestID: req.ID, Outcome: certification.OutcomeApprove, Validity: validity,
		})
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		return res
	}
	expires := e.clock.now.Add(365 * 24 * time.Hour)
	first := approve(certification.Validity{ExpiresAt: &expires})
	if first.Badge.ExpiresAt == nil || first.Badge.PermanentValidity {
		t.Fatalf("first badge validity: %+v", first.Badge)
	}
	second := approve(certification.Validity{Permanent: true})
	if second.Superseded == nil || second.Superseded.ID != first.Badge.ID {
		t.Fatalf("superseded: want=%s got=%+v", first.Badge.ID, second.Superseded)
	}
	if all, active := e.countBadges(e.expert.UserID); all != 2 || active != 1 {
		t.Fatalf("badges: all=%d active=%d", all, active)
	}
}

func TestDecideValidatesExpiry(t *testing.T) {
	e := newEnv(t)
	req := e.submit()
	e.assign(req.ID, e.rh1)
	e.evaluate(req.ID, e.rh1, certification.RecommendationApprove)

	past := e.clock.now.Add(-time.Hour)
	_, err := e.agg.Decide(e.ctx, certification.DecideInput{
		Actor: e.manager, RequestID: req.ID, Outcome: certification.OutcomeApprove, Validity: certification.Validity{ExpiresAt: &past},
	})
	requireCode(t, err, domainagg.CodeInvalidInput)
	_, err = e.agg.Decide(e.ctx, certification.DecideInput{
		Actor: e.manager, RequestID: req.ID, Outcome: certification.OutcomeApprove,
	})
	requireCode(t, err, domainagg.CodeInvalidInput)

	if got := e.reload(req.ID); got.Status != certification.StatusAwaitingValidation {
		t.Fatalf("status after invalid decide: got=%s", got.Status)
	}
	if all, _ := e.countBadges(e.expert.UserID); all != 0 {
		t.Fatalf("no badge may be written, got=%d", all)
	}
}

func TestRHFastPath(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		e := newEnv(t)
		req := e.submit()
		e.assign(req.ID, e.rh1)
		if _, err := e.agg.SaveEvaluation(e.ctx, certification.SaveEvaluationInput{
			Actor: e.rh1, RequestID: req.ID, Scores: map[string]int{"c1": 40}, Recommendation: certification.RecommendationApprove,
		}); err != nil {
			t.Fatalf("SaveEvaluation: %v", err)
		}
		_, err := e.agg.Decide(e.ctx, certification.DecideInput{
			Actor: e.rh1, RequestID: req.ID, Outcome: certification.OutcomeApprove, Validity: certification.Validity{Permanent: true},
		})
		requireCode(t, err, domainagg.CodeForbidden)
	})

	t.Run("enabled", func(t *testing.T) {
		e := newEnv(t, func(d *aggregates.CertificationAggregateDeps) {
			d.Policy = certification.Policy{RHFastPath: true}
		})
		req := e.submit()
		e.assign(req.ID, e.rh1)
		if _, err := e.agg.SaveEvaluation(e.ctx, certification.SaveEvaluationInput{
			Actor: e.rh1, RequestID: req.ID, Scores: map[string]int{"c1": 40}, Recommendation: certification.RecommendationApprove,
		}); err != nil {
			t.Fatalf("SaveEvaluation: %v", err)
		}
		res, err := e.agg.Decide(e.ctx, certification.DecideInput{
			Actor: e.rh1, RequestID: req.ID, Outcome: certification.OutcomeApprove, Validity: certification.Validity{Permanent: true},
		})
		if err != nil {
			t.Fatalf("fast decide: %v", err)
		}
		if res.Request.Status != certification.StatusApproved || res.Transition.Action != certification.ActionFastDecide {
			t.Fatalf("fast path: status=%s action=%s", res.Request.Status, res.Transition.Action)
		}
	})
}

func TestCommitFailureLeavesNothingBehind(t *testing.T) {
	var runner *aggtest.InjectedTxRunner
	e := newEnv(t, func(d *aggregates.CertificationAggregateDeps) {
		runner = &aggtest.InjectedTxRunner{DB: d.Base.DB}
		d.Base.Runner = runner
	})
	req := e.submit()

	runner.FailCommit = errors.New("connection reset during commit")
	_, err := e.agg.Assign(e.ctx, certification.AssignInput{
		Actor: e.manager, RequestID: req.ID, AssigneeID: e.rh1.UserID, AssigneeIsRH: true,
	})
	if err == nil {
		t.Fatalf("expected commit failure")
	}
	if runner.RollbackCalls != 1 {
		t.Fatalf("rollback calls: want=1 got=%d", runner.RollbackCalls)
	}
	got := e.reload(req.ID)
	if got.Status != certification.StatusPending || got.AssigneeID != nil || got.Version != 1 {
		t.Fatalf("after failed commit: status=%s assignee=%v version=%d", got.Status, got.AssigneeID, got.Version)
	}
	history, _ := e.repos.transitions.ListByRequest(dbctx.Context{Ctx: e.ctx}, req.ID)
	if len(history) != 1 {
		t.Fatalf("audit rows after failed commit: want=1 got=%d", len(history))
	}
}

func TestVerifyAttachmentAndBadgeVisibility(t *testing.T) {
	e := newEnv(t)
	req := e.submit(certification.StoredFile{Kind: certification.AttachmentProject, StorageKey: "requests/y/p.pdf"})
	att := req.Attachments[0]

	_, err := e.agg.VerifyAttachment(e.ctx, certification.VerifyAttachmentInput{Actor: e.expert, AttachmentID: att.ID, Verified: true})
	requireCode(t, err, domainagg.CodeForbidden)
	got, err := e.agg.VerifyAttachment(e.ctx, certification.VerifyAttachmentInput{Actor: e.manager, AttachmentID: att.ID, Verified: true})
	if err != nil || !got.Verified {
		t.Fatalf("manager verify: err=%v got=%+v", err, got)
	}

	e.assign(req.ID, e.rh1)
	e.evaluate(req.ID, e.rh1, certification.RecommendationApprove)
	dec, err := e.agg.Decide(e.ctx, certification.DecideInput{
		Actor: e.manager, RequestID: req.ID, Outcome: certification.OutcomeApprove, Validity: certification.Validity{Permanent: true},
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	_, err = e.agg.SetBadgeVisibility(e.ctx, certification.BadgeVisibilityInput{Actor: e.manager, BadgeID: dec.Badge.ID, IsPublic: true})
	requireCode(t, err, domainagg.CodeForbidden)
	b, err := e.agg.SetBadgeVisibility(e.ctx, certification.BadgeVisibilityInput{Actor: e.expert, BadgeID: dec.Badge.ID, IsPublic: true})
	if err != nil || !b.IsPublic {
		t.Fatalf("holder visibility: err=%v badge=%+v", err, b)
	}
	_, err = e.agg.SetBadgeVisibility(e.ctx, certification.BadgeVisibilityInput{Actor: e.expert, BadgeID: uuid.New(), IsPublic: true})
	requireCode(t, err, domainagg.CodeNotFound)
}

func TestSubmitChecksOwnershipAndRole(t *testing.T) {
	e := newEnv(t)
	_, err := e.agg.Submit(e.ctx, certification.SubmitInput{Actor: e.manager, CompetencyID: e.comp.ID})
	requireCode(t, err, domainagg.CodeForbidden)

	other := certification.Actor{UserID: uuid.New(), Roles: []identity.Role{identity.RoleExpert}}
	_, err = e.agg.Submit(e.ctx, certification.SubmitInput{Actor: other, CompetencyID: e.comp.ID})
	requireCode(t, err, domainagg.CodeForbidden)

	_, err = e.agg.Submit(e.ctx, certification.SubmitInput{Actor: e.expert, CompetencyID: uuid.New()})
	requireCode(t, err, domainagg.CodeNotFound)

	_, err = e.agg.Submit(e.ctx, certification.SubmitInput{Actor: e.expert, CompetencyID: e.comp.ID, Priority: -1})
	requireCode(t, err, domainagg.CodeInvalidInput)
}
