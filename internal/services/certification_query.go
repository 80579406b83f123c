package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/data/repos"
	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/domain/identity"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

// CertificationQueries serves the read side. Reads never take row locks and
// every list is paginated and ordered by priority then age.
type CertificationQueries interface {
	Get(ctx context.Context, requestID uuid.UUID) (*certification.Request, error)
	History(ctx context.Context, requestID uuid.UUID) ([]*certification.Transition, error)
	ListMine(ctx context.Context, page repos.Page) ([]*certification.Request, error)
	ListByStatus(ctx context.Context, statuses []certification.Status, page repos.Page) ([]*certification.Request, error)
	ListAssigned(ctx context.Context, page repos.Page) ([]*certification.Request, error)
	// ListAssignedTo accepts uuid.Nil for the caller's own workload.
	ListAssignedTo(ctx context.Context, rhID uuid.UUID, page repos.Page) ([]*certification.Request, error)
	ListAwaitingValidation(ctx context.Context, page repos.Page) ([]*certification.Request, error)
	Badges(ctx context.Context, holderID uuid.UUID, onlyValid bool) ([]*certification.Badge, error)
	Criteria(ctx context.Context, domainCode string) (certification.ScoringDomain, error)
}

type QueryDeps struct {
	Requests    repos.RequestRepo
	Attachments repos.AttachmentRepo
	Evaluations repos.EvaluationRepo
	Badges      repos.BadgeRepo
	Transitions repos.TransitionRepo
	Catalog     certification.DomainCatalog
	Identity    IdentityProvider
	Policy      certification.Policy
	Clock       func() time.Time
}

type certificationQueries struct {
	log  *logger.Logger
	deps QueryDeps
}

func NewCertificationQueries(log *logger.Logger, deps QueryDeps) CertificationQueries {
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &certificationQueries{log: log.With("service", "CertificationQueries"), deps: deps}
}

func (q *certificationQueries) Get(ctx context.Context, requestID uuid.UUID) (*certification.Request, error) {
	const op = "Certification.Get"
	_, req, err := q.viewable(ctx, op, requestID)
	if err != nil {
		return nil, err
	}
	if err := q.hydrate(ctx, op, []*certification.Request{req}); err != nil {
		return nil, err
	}
	return req, nil
}

func (q *certificationQueries) History(ctx context.Context, requestID uuid.UUID) ([]*certification.Transition, error) {
	const op = "Certification.History"
	if _, _, err := q.viewable(ctx, op, requestID); err != nil {
		return nil, err
	}
	rows, err := q.deps.Transitions.ListByRequest(dbctx.Context{Ctx: ctx}, requestID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeTransient, op, err)
	}
	return rows, nil
}

func (q *certificationQueries) ListMine(ctx context.Context, page repos.Page) ([]*certification.Request, error) {
	const op = "Certification.ListMine"
	actor, err := resolveActor(ctx, op, q.deps.Identity)
	if err != nil {
		return nil, err
	}
	rows, err := q.deps.Requests.ListByRequester(dbctx.Context{Ctx: ctx}, actor.UserID, page)
	return q.finishList(ctx, op, rows, err)
}

func (q *certificationQueries) ListByStatus(ctx context.Context, statuses []certification.Status, page repos.Page) ([]*certification.Request, error) {
	const op = "Certification.ListByStatus"
	if _, err := q.browser(ctx, op); err != nil {
		return nil, err
	}
	rows, err := q.deps.Requests.ListByStatus(dbctx.Context{Ctx: ctx}, statuses, page)
	return q.finishList(ctx, op, rows, err)
}

func (q *certificationQueries) ListAssigned(ctx context.Context, page repos.Page) ([]*certification.Request, error) {
	const op = "Certification.ListAssigned"
	if _, err := q.browser(ctx, op); err != nil {
		return nil, err
	}
	rows, err := q.deps.Requests.ListAssigned(dbctx.Context{Ctx: ctx}, page)
	return q.finishList(ctx, op, rows, err)
}

func (q *certificationQueries) ListAssignedTo(ctx context.Context, rhID uuid.UUID, page repos.Page) ([]*certification.Request, error) {
	const op = "Certification.ListAssignedTo"
	actor, err := resolveActor(ctx, op, q.deps.Identity)
	if err != nil {
		return nil, err
	}
	if rhID == uuid.Nil {
		rhID = actor.UserID
	}
	self := rhID == actor.UserID && actor.Has(identity.RoleRH)
	if !self {
		if err := q.deps.Policy.Authorize(op, actor, certification.ActionBrowseQueue, nil); err != nil {
			return nil, err
		}
	}
	rows, err := q.deps.Requests.ListByAssignee(dbctx.Context{Ctx: ctx}, rhID, page)
	return q.finishList(ctx, op, rows, err)
}

func (q *certificationQueries) ListAwaitingValidation(ctx context.Context, page repos.Page) ([]*certification.Request, error) {
	return q.ListByStatus(ctx, []certification.Status{certification.StatusAwaitingValidation}, page)
}

func (q *certificationQueries) Badges(ctx context.Context, holderID uuid.UUID, onlyValid bool) ([]*certification.Badge, error) {
	const op = "Certification.Badges"
	actor, err := resolveActor(ctx, op, q.deps.Identity)
	if err != nil {
		return nil, err
	}
	if holderID == uuid.Nil {
		holderID = actor.UserID
	}
	rows, err := q.deps.Badges.ListByHolder(dbctx.Context{Ctx: ctx}, holderID, !onlyValid)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeTransient, op, err)
	}
	now := q.deps.Clock()
	out := make([]*certification.Badge, 0, len(rows))
	for _, b := range rows {
		if b == nil {
			continue
		}
		if holderID != actor.UserID && !b.IsPublic {
			continue
		}
		b.Refresh(now)
		if onlyValid && !b.Valid {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (q *certificationQueries) Criteria(ctx context.Context, domainCode string) (certification.ScoringDomain, error) {
	const op = "Certification.Criteria"
	if _, err := resolveActor(ctx, op, q.deps.Identity); err != nil {
		return certification.ScoringDomain{}, err
	}
	code := strings.TrimSpace(domainCode)
	if q.deps.Catalog == nil || code == "" {
		return certification.ScoringDomain{}, domainagg.NewError(domainagg.CodeNotFound, op, "domain not found: "+code, nil)
	}
	d, ok := q.deps.Catalog.Domain(code)
	if !ok {
		return certification.ScoringDomain{}, domainagg.NewError(domainagg.CodeNotFound, op, "domain not found: "+code, nil)
	}
	return d, nil
}

func (q *certificationQueries) viewable(ctx context.Context, op string, requestID uuid.UUID) (certification.Actor, *certification.Request, error) {
	actor, err := resolveActor(ctx, op, q.deps.Identity)
	if err != nil {
		return certification.Actor{}, nil, err
	}
	req, err := q.deps.Requests.GetByID(dbctx.Context{Ctx: ctx}, requestID)
	if err != nil {
		return actor, nil, domainagg.Wrap(domainagg.CodeTransient, op, err)
	}
	if req == nil {
		return actor, nil, domainagg.NewError(domainagg.CodeNotFound, op, "certification request not found: "+requestID.String(), nil)
	}
	if err := q.deps.Policy.Authorize(op, actor, certification.ActionView, req); err != nil {
		return actor, nil, err
	}
	return actor, req, nil
}

func (q *certificationQueries) browser(ctx context.Context, op string) (certification.Actor, error) {
	actor, err := resolveActor(ctx, op, q.deps.Identity)
	if err != nil {
		return actor, err
	}
	return actor, q.deps.Policy.Authorize(op, actor, certification.ActionBrowseQueue, nil)
}

func (q *certificationQueries) finishList(ctx context.Context, op string, rows []*certification.Request, err error) ([]*certification.Request, error) {
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeTransient, op, err)
	}
	if rows == nil {
		rows = []*certification.Request{}
	}
	if err := q.hydrate(ctx, op, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// hydrate loads attachments and the current-cycle evaluation in two queries.
// The evaluation repo recomputes global scores, so callers never see the
// stored column.
func (q *certificationQueries) hydrate(ctx context.Context, op string, rows []*certification.Request) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	byID := make(map[uuid.UUID]*certification.Request, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
		byID[r.ID] = r
		r.Attachments = []*certification.Attachment{}
	}
	dbc := dbctx.Context{Ctx: ctx}

	atts, err := q.deps.Attachments.ListByRequestIDs(dbc, ids)
	if err != nil {
		return domainagg.Wrap(domainagg.CodeTransient, op, err)
	}
	for _, a := range atts {
		if r := byID[a.RequestID]; r != nil {
			r.Attachments = append(r.Attachments, a)
		}
	}

	evals, err := q.deps.Evaluations.ListByRequestIDs(dbc, ids)
	if errors.Is(err, certification.ErrMalformedScores) {
		return domainagg.NewError(domainagg.CodeInternal, op, "stored evaluation scores are unreadable", err)
	}
	if err != nil {
		return domainagg.Wrap(domainagg.CodeTransient, op, err)
	}
	for _, ev := range evals {
		if r := byID[ev.RequestID]; r != nil && ev.Cycle == r.EvaluationCycle {
			r.Evaluation = ev
		}
	}
	return nil
}
