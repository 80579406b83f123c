package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/data/repos"
	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
)

const requestTable = "certification_request"

const msgMissingReference = "competency is not linked to a reference; edit the competency before requesting certification"

type CertificationAggregateDeps struct {
	Base BaseDeps

	Requests     repos.RequestRepo
	Attachments  repos.AttachmentRepo
	Evaluations  repos.EvaluationRepo
	Badges       repos.BadgeRepo
	Transitions  repos.TransitionRepo
	Competencies repos.CompetencyRepo

	Catalog certification.DomainCatalog
	Policy  certification.Policy
}

type certificationAggregate struct {
	deps CertificationAggregateDeps
}

func NewCertificationAggregate(deps CertificationAggregateDeps) certification.Aggregate {
	deps.Base = deps.Base.withDefaults()
	return &certificationAggregate{deps: deps}
}

func (a *certificationAggregate) Contract() domainagg.Contract {
	return certification.AggregateContract
}

func (a *certificationAggregate) configured(op string) error {
	d := a.deps
	if d.Requests == nil || d.Attachments == nil || d.Evaluations == nil || d.Badges == nil ||
		d.Transitions == nil || d.Competencies == nil || d.Catalog == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "certification aggregate repos not configured", nil)
	}
	return nil
}

func (a *certificationAggregate) Submit(ctx context.Context, in certification.SubmitInput) (certification.TransitionResult, error) {
	const op = "Certification.Request.Submit"
	var out certification.TransitionResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if err := a.deps.Policy.Authorize(op, in.Actor, certification.ActionSubmit, nil); err != nil {
		return out, err
	}
	if in.CompetencyID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeInvalidInput, op, "competency_id is required", nil)
	}
	if in.Priority < 0 {
		return out, domainagg.NewError(domainagg.CodeInvalidInput, op, "priority must be zero or positive", nil)
	}
	requestID := in.RequestID
	if requestID == uuid.Nil {
		requestID = uuid.New()
	}
	now := a.deps.Base.now()

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		comp, err := a.deps.Competencies.GetByID(dbc, in.CompetencyID)
		if err != nil {
			return err
		}
		if comp == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("competency not found: %s", in.CompetencyID), nil)
		}
		if comp.OwnerID != in.Actor.UserID {
			return domainagg.NewError(domainagg.CodeForbidden, op, "you can only request certification of your own competencies", nil)
		}

		req := &certification.Request{
			ID:              requestID,
			RequesterID:     in.Actor.UserID,
			CompetencyID:    comp.ID,
			Status:          certification.StatusPending,
			Priority:        in.Priority,
			Justification:   strings.TrimSpace(in.Justification),
			EvaluationCycle: 1,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if comp.ReferenceID != nil {
			ref, err := a.deps.Competencies.GetReference(dbc, *comp.ReferenceID)
			if err != nil {
				return err
			}
			if ref != nil {
				refID := ref.ID
				req.CompetencyReferenceID = &refID
				req.DomainCode = strings.ToUpper(strings.TrimSpace(ref.DomainCode))
			}
		}
		if err := a.deps.Requests.Create(dbc, req); err != nil {
			return err
		}
		if err := a.appendAttachments(dbc, req.ID, in.Actor.UserID, 0, in.Files, now); err != nil {
			return err
		}
		tr, err := a.audit(dbc, req.ID, certification.ActionSubmit, "", certification.StatusPending, in.Actor.UserID, "", now)
		if err != nil {
			return err
		}
		out, err = a.result(dbc, op, req.ID, tr, now)
		return err
	})
	if err != nil {
		return certification.TransitionResult{}, err
	}
	a.observed(out)
	return out, nil
}

func (a *certificationAggregate) Assign(ctx context.Context, in certification.AssignInput) (certification.TransitionResult, error) {
	return a.assign(ctx, "Certification.Request.Assign", certification.ActionAssign, in)
}

func (a *certificationAggregate) Reassign(ctx context.Context, in certification.AssignInput) (certification.TransitionResult, error) {
	return a.assign(ctx, "Certification.Request.Reassign", certification.ActionReassign, in)
}

func (a *certificationAggregate) assign(ctx context.Context, op string, action certification.Action, in certification.AssignInput) (certification.TransitionResult, error) {
	var out certification.TransitionResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	now := a.deps.Base.now()

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		req, err := a.load(dbc, op, in.RequestID)
		if err != nil {
			return err
		}
		if err := a.deps.Policy.Authorize(op, in.Actor, action, req); err != nil {
			return err
		}
		if err := RequireVersionMatch(req.Version, in.ExpectedVersion); err != nil {
			return err
		}
		if err := certification.CheckTransition(op, req.Status, action, certification.StatusAssigned); err != nil {
			return err
		}
		if req.CompetencyReferenceID == nil {
			return domainagg.NewError(domainagg.CodeInvalidTransition, op, msgMissingReference, nil)
		}
		if in.AssigneeID == uuid.Nil || !in.AssigneeIsRH {
			return domainagg.NewError(domainagg.CodeUnknownAssignee, op,
				fmt.Sprintf("user %s does not hold the RH role and cannot evaluate requests", in.AssigneeID), nil)
		}

		assignee := in.AssigneeID
		updates := map[string]any{
			"status":             certification.StatusAssigned,
			"assignee_id":        assignee,
			"last_assignee_id":   assignee,
			"assignment_comment": strings.TrimSpace(in.Comment),
			"updated_at":         now,
		}
		if action == certification.ActionReassign {
			updates["evaluation_cycle"] = req.EvaluationCycle + 1
		}
		if err := a.advance(dbc, req, updates); err != nil {
			return err
		}
		tr, err := a.audit(dbc, req.ID, action, req.Status, certification.StatusAssigned, in.Actor.UserID, in.Comment, now)
		if err != nil {
			return err
		}
		out, err = a.result(dbc, op, req.ID, tr, now)
		return err
	})
	if err != nil {
		return certification.TransitionResult{}, err
	}
	a.observed(out)
	return out, nil
}

func (a *certificationAggregate) SaveEvaluation(ctx context.Context, in certification.SaveEvaluationInput) (certification.TransitionResult, error) {
	const op = "Certification.Request.SaveEvaluation"
	var out certification.TransitionResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.DurationMinutes < 0 {
		return out, domainagg.NewError(domainagg.CodeInvalidInput, op, "evaluation_duration_minutes must be zero or positive", nil)
	}
	rec := in.Recommendation
	if rec == "" {
		rec = certification.RecommendationInProgress
	}
	if _, ok := certification.ParseRecommendation(string(rec)); !ok {
		return out, domainagg.NewError(domainagg.CodeInvalidInput, op, fmt.Sprintf("unknown recommendation %q", rec), nil)
	}
	now := a.deps.Base.now()

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		req, err := a.load(dbc, op, in.RequestID)
		if err != nil {
			return err
		}
		if err := a.deps.Policy.Authorize(op, in.Actor, certification.ActionSaveEvaluation, req); err != nil {
			return err
		}
		if err := RequireVersionMatch(req.Version, in.ExpectedVersion); err != nil {
			return err
		}
		if err := certification.CheckTransition(op, req.Status, certification.ActionSaveEvaluation, certification.StatusInEvaluation); err != nil {
			return err
		}
		domain, ok := a.deps.Catalog.Domain(req.DomainCode)
		if !ok {
			return domainagg.NewError(domainagg.CodeInvalidInput, op,
				fmt.Sprintf("pedagogical domain %q is not configured", req.DomainCode), nil)
		}
		scores := in.Scores
		if scores == nil {
			scores = map[string]int{}
		}
		if err := domain.ValidateScores(op, scores); err != nil {
			return err
		}

		ev := &certification.Evaluation{
			RequestID:       req.ID,
			Cycle:           req.EvaluationCycle,
			EvaluatorID:     in.Actor.UserID,
			Recommendation:  rec,
			Comment:         strings.TrimSpace(in.Comment),
			DurationMinutes: in.DurationMinutes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := ev.SetScores(scores); err != nil {
			return ValidationError("criteria scores cannot be encoded")
		}
		if _, err := a.deps.Evaluations.Save(dbc, ev); err != nil {
			return err
		}
		if err := a.advance(dbc, req, map[string]any{
			"status":     certification.StatusInEvaluation,
			"updated_at": now,
		}); err != nil {
			return err
		}
		tr, err := a.audit(dbc, req.ID, certification.ActionSaveEvaluation, req.Status, certification.StatusInEvaluation, in.Actor.UserID, "", now)
		if err != nil {
			return err
		}
		out, err = a.result(dbc, op, req.ID, tr, now)
		return err
	})
	if err != nil {
		return certification.TransitionResult{}, err
	}
	a.observed(out)
	return out, nil
}

func (a *certificationAggregate) SubmitEvaluation(ctx context.Context, in certification.TransitionInput) (certification.TransitionResult, error) {
	const op = "Certification.Request.SubmitEvaluation"
	var out certification.TransitionResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	now := a.deps.Base.now()

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		req, err := a.load(dbc, op, in.RequestID)
		if err != nil {
			return err
		}
		if err := a.deps.Policy.Authorize(op, in.Actor, certification.ActionSubmitEvaluation, req); err != nil {
			return err
		}
		if err := RequireVersionMatch(req.Version, in.ExpectedVersion); err != nil {
			return err
		}
		if err := certification.CheckTransition(op, req.Status, certification.ActionSubmitEvaluation, certification.StatusAwaitingValidation); err != nil {
			return err
		}
		if err := a.loadEvaluation(dbc, req); err != nil {
			return err
		}
		if !req.HasCurrentEvaluation() {
			return domainagg.NewError(domainagg.CodeInvalidTransition, op, "save an evaluation before submitting it to the manager", nil)
		}
		if req.Evaluation.Recommendation == certification.RecommendationInProgress {
			return domainagg.NewError(domainagg.CodeInvalidTransition, op,
				"the evaluation is still in progress; choose a recommendation before submitting", nil)
		}
		if err := a.advance(dbc, req, map[string]any{
			"status":     certification.StatusAwaitingValidation,
			"updated_at": now,
		}); err != nil {
			return err
		}
		tr, err := a.audit(dbc, req.ID, certification.ActionSubmitEvaluation, req.Status, certification.StatusAwaitingValidation, in.Actor.UserID, in.Comment, now)
		if err != nil {
			return err
		}
		out, err = a.result(dbc, op, req.ID, tr, now)
		return err
	})
	if err != nil {
		return certification.TransitionResult{}, err
	}
	a.observed(out)
	return out, nil
}

func (a *certificationAggregate) Decide(ctx context.Context, in certification.DecideInput) (certification.TransitionResult, error) {
	const op = "Certification.Request.Decide"
	var out certification.TransitionResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	target := in.Outcome.Target()
	if target == "" {
		return out, domainagg.NewError(domainagg.CodeInvalidInput, op,
			fmt.Sprintf("unknown outcome %q; expected APPROVE, REJECT or REQUEST_COMPLEMENT", in.Outcome), nil)
	}
	now := a.deps.Base.now()

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		req, err := a.load(dbc, op, in.RequestID)
		if err != nil {
			return err
		}
		action := a.deps.Policy.DecideAction(in.Actor, req)
		if err := a.deps.Policy.Authorize(op, in.Actor, action, req); err != nil {
			return err
		}
		if err := RequireVersionMatch(req.Version, in.ExpectedVersion); err != nil {
			return err
		}
		if err := certification.CheckTransition(op, req.Status, action, target); err != nil {
			return err
		}
		if err := a.loadEvaluation(dbc, req); err != nil {
			return err
		}
		if !req.HasCurrentEvaluation() {
			return domainagg.NewError(domainagg.CodeInvalidTransition, op,
				"no evaluation exists for the current cycle; the evaluator must save and submit one first", nil)
		}

		updates := map[string]any{
			"status":           target,
			"decision_comment": strings.TrimSpace(in.Comment),
			"decision_date":    now,
			"updated_at":       now,
		}
		if target.Terminal() {
			updates["assignee_id"] = nil
			if req.AssigneeID != nil {
				updates["last_assignee_id"] = *req.AssigneeID
			}
		}

		var issued, superseded *certification.Badge
		if in.Outcome == certification.OutcomeApprove {
			issued, superseded, err = a.issueBadge(dbc, op, req, in.Validity, now)
			if err != nil {
				return err
			}
			updates["badge_id"] = issued.ID
		}

		if err := a.advance(dbc, req, updates); err != nil {
			return err
		}
		tr, err := a.audit(dbc, req.ID, action, req.Status, target, in.Actor.UserID, in.Comment, now)
		if err != nil {
			return err
		}
		out, err = a.result(dbc, op, req.ID, tr, now)
		if err != nil {
			return err
		}
		out.Badge = issued.Refresh(now)
		out.Superseded = superseded
		return nil
	})
	if err != nil {
		return certification.TransitionResult{}, err
	}
	a.observed(out)
	return out, nil
}

// issueBadge retires the active badge of (holder, competency), if any, then
// inserts the new one. The partial unique index turns a lost race into a
// unique violation.
func (a *certificationAggregate) issueBadge(dbc dbctx.Context, op string, req *certification.Request, v certification.Validity, now time.Time) (*certification.Badge, *certification.Badge, error) {
	badge := &certification.Badge{
		ID:                uuid.New(),
		HolderID:          req.RequesterID,
		CompetencyID:      req.CompetencyID,
		RequestID:         req.ID,
		ObtainedAt:        now,
		PermanentValidity: v.Permanent,
		IsPublic:          false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if !v.Permanent {
		if v.ExpiresAt == nil {
			return nil, nil, domainagg.NewError(domainagg.CodeInvalidInput, op, "validity.expires_at is required unless validity.permanent is true", nil)
		}
		exp := v.ExpiresAt.UTC()
		if !exp.After(now) {
			return nil, nil, domainagg.NewError(domainagg.CodeInvalidInput, op, "validity.expires_at must be in the future", nil)
		}
		badge.ExpiresAt = &exp
	}
	domain, ok := a.deps.Catalog.Domain(req.DomainCode)
	if !ok {
		return nil, nil, domainagg.NewError(domainagg.CodeInvalidInput, op,
			fmt.Sprintf("pedagogical domain %q is not configured", req.DomainCode), nil)
	}
	badge.Level = domain.Level

	prev, err := a.deps.Badges.GetActive(dbc, badge.HolderID, badge.CompetencyID)
	if err != nil {
		return nil, nil, err
	}
	if prev != nil {
		ok, err := a.deps.Badges.Supersede(dbc, prev.ID, badge.ID, now)
		if err != nil {
			return nil, nil, err
		}
		if err := RequireCASSuccess(ok, "the previous badge was superseded concurrently"); err != nil {
			return nil, nil, err
		}
		prev.SupersededAt = &now
		prev.SupersededBy = &badge.ID
		prev.Refresh(now)
	}
	if err := a.deps.Badges.Create(dbc, badge); err != nil {
		return nil, nil, err
	}
	return badge, prev, nil
}

func (a *certificationAggregate) Resubmit(ctx context.Context, in certification.ResubmitInput) (certification.TransitionResult, error) {
	const op = "Certification.Request.Resubmit"
	var out certification.TransitionResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	now := a.deps.Base.now()

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		req, err := a.load(dbc, op, in.RequestID)
		if err != nil {
			return err
		}
		if err := a.deps.Policy.Authorize(op, in.Actor, certification.ActionResubmit, req); err != nil {
			return err
		}
		if err := RequireVersionMatch(req.Version, in.ExpectedVersion); err != nil {
			return err
		}
		if !certification.Allows(req.Status, certification.ActionResubmit) {
			return certification.CheckTransition(op, req.Status, certification.ActionResubmit, certification.StatusPending)
		}
		if req.AssigneeID != nil && (in.CheckedAssigneeID == nil || *in.CheckedAssigneeID != *req.AssigneeID) {
			return ConflictError("the evaluator changed while resubmitting, reload and retry")
		}

		target := certification.StatusPending
		updates := map[string]any{"updated_at": now}
		if req.AssigneeID != nil && in.AssigneeStillRH {
			target = certification.StatusAssigned
		} else {
			// Back to the manager queue: a new evaluator starts a fresh cycle.
			updates["assignee_id"] = nil
			updates["evaluation_cycle"] = req.EvaluationCycle + 1
			if req.AssigneeID != nil {
				updates["last_assignee_id"] = *req.AssigneeID
			}
		}
		if err := certification.CheckTransition(op, req.Status, certification.ActionResubmit, target); err != nil {
			return err
		}
		updates["status"] = target
		if c := strings.TrimSpace(in.Comment); c != "" {
			updates["resubmission_comment"] = c
		}

		pos, err := a.deps.Attachments.NextPosition(dbc, req.ID)
		if err != nil {
			return err
		}
		if err := a.appendAttachments(dbc, req.ID, in.Actor.UserID, pos, in.Files, now); err != nil {
			return err
		}
		if err := a.advance(dbc, req, updates); err != nil {
			return err
		}
		tr, err := a.audit(dbc, req.ID, certification.ActionResubmit, req.Status, target, in.Actor.UserID, in.Comment, now)
		if err != nil {
			return err
		}
		out, err = a.result(dbc, op, req.ID, tr, now)
		return err
	})
	if err != nil {
		return certification.TransitionResult{}, err
	}
	a.observed(out)
	return out, nil
}

func (a *certificationAggregate) Cancel(ctx context.Context, in certification.TransitionInput) (certification.TransitionResult, error) {
	const op = "Certification.Request.Cancel"
	var out certification.TransitionResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	now := a.deps.Base.now()

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		req, err := a.load(dbc, op, in.RequestID)
		if err != nil {
			return err
		}
		if err := a.deps.Policy.Authorize(op, in.Actor, certification.ActionCancel, req); err != nil {
			return err
		}
		if err := RequireVersionMatch(req.Version, in.ExpectedVersion); err != nil {
			return err
		}
		if err := certification.CheckTransition(op, req.Status, certification.ActionCancel, certification.StatusCancelled); err != nil {
			return err
		}
		updates := map[string]any{
			"status":      certification.StatusCancelled,
			"assignee_id": nil,
			"updated_at":  now,
		}
		if req.AssigneeID != nil {
			updates["last_assignee_id"] = *req.AssigneeID
		}
		if err := a.advance(dbc, req, updates); err != nil {
			return err
		}
		tr, err := a.audit(dbc, req.ID, certification.ActionCancel, req.Status, certification.StatusCancelled, in.Actor.UserID, in.Comment, now)
		if err != nil {
			return err
		}
		out, err = a.result(dbc, op, req.ID, tr, now)
		return err
	})
	if err != nil {
		return certification.TransitionResult{}, err
	}
	a.observed(out)
	return out, nil
}

func (a *certificationAggregate) VerifyAttachment(ctx context.Context, in certification.VerifyAttachmentInput) (*certification.Attachment, error) {
	const op = "Certification.Attachment.Verify"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	var out *certification.Attachment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		att, err := a.deps.Attachments.GetByID(dbc, in.AttachmentID)
		if err != nil {
			return err
		}
		if att == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("attachment not found: %s", in.AttachmentID), nil)
		}
		req, err := a.load(dbc, op, att.RequestID)
		if err != nil {
			return err
		}
		if err := a.deps.Policy.Authorize(op, in.Actor, certification.ActionVerifyAttachment, req); err != nil {
			return err
		}
		ok, err := a.deps.Attachments.SetVerified(dbc, att.ID, in.Verified)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "attachment changed while verifying"); err != nil {
			return err
		}
		att.Verified = in.Verified
		out = att
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *certificationAggregate) SetBadgeVisibility(ctx context.Context, in certification.BadgeVisibilityInput) (*certification.Badge, error) {
	const op = "Certification.Badge.SetVisibility"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	now := a.deps.Base.now()
	var out *certification.Badge
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		b, err := a.deps.Badges.GetByID(dbc, in.BadgeID)
		if err != nil {
			return err
		}
		if b == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("badge not found: %s", in.BadgeID), nil)
		}
		if b.HolderID != in.Actor.UserID {
			return domainagg.NewError(domainagg.CodeForbidden, op, "only the badge holder can change its visibility", nil)
		}
		ok, err := a.deps.Badges.SetVisibility(dbc, b.ID, in.IsPublic, now)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "badge changed while updating visibility"); err != nil {
			return err
		}
		b.IsPublic = in.IsPublic
		b.UpdatedAt = now
		out = b.Refresh(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *certificationAggregate) load(dbc dbctx.Context, op string, id uuid.UUID) (*certification.Request, error) {
	if id == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeInvalidInput, op, "request id is required", nil)
	}
	req, err := a.deps.Requests.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("certification request not found: %s", id), nil)
	}
	return req, nil
}

func (a *certificationAggregate) loadEvaluation(dbc dbctx.Context, req *certification.Request) error {
	ev, err := a.deps.Evaluations.GetForCycle(dbc, req.ID, req.EvaluationCycle)
	if err != nil {
		return err
	}
	req.Evaluation = ev
	return nil
}

// advance compare-and-sets the request against the snapshot it was checked on.
func (a *certificationAggregate) advance(dbc dbctx.Context, req *certification.Request, updates map[string]any) error {
	ok, err := a.deps.Base.CASGuard.AdvanceVersion(dbc, requestTable, req.ID, req.Version,
		certification.StatusStrings(req.Status), updates)
	if err != nil {
		return err
	}
	return RequireCASSuccess(ok, "the request was modified concurrently, reload and retry")
}

func (a *certificationAggregate) appendAttachments(dbc dbctx.Context, requestID, uploader uuid.UUID, start int, files []certification.StoredFile, now time.Time) error {
	if len(files) == 0 {
		return nil
	}
	rows := make([]*certification.Attachment, 0, len(files))
	for i, f := range files {
		if strings.TrimSpace(f.StorageKey) == "" {
			return ValidationError("attachment storage key is required")
		}
		rows = append(rows, &certification.Attachment{
			ID:           uuid.New(),
			RequestID:    requestID,
			Position:     start + i,
			Kind:         certification.ParseAttachmentKind(string(f.Kind)),
			MimeType:     f.MimeType,
			SizeBytes:    f.SizeBytes,
			OriginalName: f.OriginalName,
			StorageKey:   f.StorageKey,
			UploadedBy:   uploader,
			CreatedAt:    now,
		})
	}
	_, err := a.deps.Attachments.Create(dbc, rows)
	return err
}

func (a *certificationAggregate) audit(dbc dbctx.Context, requestID uuid.UUID, action certification.Action, from, to certification.Status, actor uuid.UUID, comment string, now time.Time) (*certification.Transition, error) {
	tr := &certification.Transition{
		ID:         uuid.New(),
		RequestID:  requestID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actor,
		Comment:    strings.TrimSpace(comment),
		CreatedAt:  now,
	}
	if err := a.deps.Transitions.Create(dbc, tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// result reloads the committed request with its attachments and current
// evaluation.
func (a *certificationAggregate) result(dbc dbctx.Context, op string, id uuid.UUID, tr *certification.Transition, now time.Time) (certification.TransitionResult, error) {
	req, err := a.load(dbc, op, id)
	if err != nil {
		return certification.TransitionResult{}, err
	}
	if !req.AssigneeConsistent() {
		return certification.TransitionResult{}, InvariantError(
			fmt.Sprintf("request %s in %s has inconsistent assignee", req.ID, req.Status))
	}
	atts, err := a.deps.Attachments.ListByRequestIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return certification.TransitionResult{}, err
	}
	req.Attachments = atts
	if err := a.loadEvaluation(dbc, req); err != nil {
		return certification.TransitionResult{}, err
	}
	return certification.TransitionResult{Request: req, Transition: tr, At: now}, nil
}

func (a *certificationAggregate) observed(out certification.TransitionResult) {
	if out.Transition == nil {
		return
	}
	tr := out.Transition
	a.deps.Base.Hooks.ObserveTransition(string(tr.Action), string(tr.FromStatus), string(tr.ToStatus))
	a.deps.Base.Log.Info("Certification request transitioned",
		"request_id", tr.RequestID,
		"action", tr.Action,
		"from", tr.FromStatus,
		"to", tr.ToStatus,
		"actor_id", tr.ActorID,
	)
}
