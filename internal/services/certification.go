package services

import (
	"context"
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

type SubmitRequest struct {
	CompetencyID  uuid.UUID
	Justification string
	Priority      int
	Uploads       []Upload
}

type AssignRequest struct {
	RequestID       uuid.UUID
	AssigneeID      uuid.UUID
	Comment         string
	ExpectedVersion *int
}

type EvaluationRequest struct {
	RequestID       uuid.UUID
	Scores          map[string]int
	Recommendation  certification.Recommendation
	Comment         string
	DurationMinutes int
	ExpectedVersion *int
}

type DecisionRequest struct {
	RequestID       uuid.UUID
	Outcome         certification.Outcome
	Comment         string
	Validity        certification.Validity
	ExpectedVersion *int
}

type ResubmitRequest struct {
	RequestID       uuid.UUID
	Comment         string
	Uploads         []Upload
	ExpectedVersion *int
}

// CertificationService runs workflow commands for the authenticated caller.
// Role lookups and blob uploads happen before the aggregate write; nothing
// external happens inside it. Notifications go out after commit.
type CertificationService interface {
	Submit(ctx context.Context, in SubmitRequest) (*certification.Request, error)
	Assign(ctx context.Context, in AssignRequest) (*certification.Request, error)
	Reassign(ctx context.Context, in AssignRequest) (*certification.Request, error)
	SaveEvaluation(ctx context.Context, in EvaluationRequest) (*certification.Request, error)
	SubmitEvaluation(ctx context.Context, requestID uuid.UUID, expectedVersion *int) (*certification.Request, error)
	Decide(ctx context.Context, in DecisionRequest) (*certification.Request, error)
	Resubmit(ctx context.Context, in ResubmitRequest) (*certification.Request, error)
	Cancel(ctx context.Context, requestID uuid.UUID, comment string, expectedVersion *int) (*certification.Request, error)
	VerifyAttachment(ctx context.Context, attachmentID uuid.UUID, verified bool) (*certification.Attachment, error)
	SetBadgeVisibility(ctx context.Context, badgeID uuid.UUID, isPublic bool) (*certification.Badge, error)
}

type certificationService struct {
	log         *logger.Logger
	agg         certification.Aggregate
	requests    repos.RequestRepo
	identity    IdentityProvider
	attachments AttachmentStore
	notifier    Notifier
}

func NewCertificationService(
	log *logger.Logger,
	agg certification.Aggregate,
	requests repos.RequestRepo,
	idp IdentityProvider,
	attachments AttachmentStore,
	notifier Notifier,
) CertificationService {
	return &certificationService{
		log:         log.With("service", "CertificationService"),
		agg:         agg,
		requests:    requests,
		identity:    idp,
		attachments: attachments,
		notifier:    notifier,
	}
}

func (s *certificationService) Submit(ctx context.Context, in SubmitRequest) (*certification.Request, error) {
	const op = "Certification.Submit"
	actor, err := resolveActor(ctx, op, s.identity)
	if err != nil {
		return nil, err
	}
	if !actor.Has(identity.RoleExpert) {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "only experts can request a certification", nil)
	}
	requestID := uuid.New()
	files, err := s.store(ctx, requestID, in.Uploads)
	if err != nil {
		return nil, err
	}
	res, err := s.agg.Submit(ctx, certification.SubmitInput{
		Actor:         actor,
		RequestID:     requestID,
		CompetencyID:  in.CompetencyID,
		Justification: in.Justification,
		Priority:      in.Priority,
		Files:         files,
	})
	if err != nil {
		s.discard(files)
		return nil, err
	}
	s.announce(res)
	return res.Request, nil
}

func (s *certificationService) Assign(ctx context.Context, in AssignRequest) (*certification.Request, error) {
	return s.assign(ctx, "Certification.Assign", in, s.agg.Assign)
}

func (s *certificationService) Reassign(ctx context.Context, in AssignRequest) (*certification.Request, error) {
	return s.assign(ctx, "Certification.Reassign", in, s.agg.Reassign)
}

func (s *certificationService) assign(
	ctx context.Context,
	op string,
	in AssignRequest,
	write func(context.Context, certification.AssignInput) (certification.TransitionResult, error),
) (*certification.Request, error) {
	actor, err := resolveActor(ctx, op, s.identity)
	if err != nil {
		return nil, err
	}
	isRH := false
	if in.AssigneeID != uuid.Nil {
		if isRH, err = s.identity.HasRole(ctx, in.AssigneeID, identity.RoleRH); err != nil {
			return nil, err
		}
	}
	res, err := write(ctx, certification.AssignInput{
		Actor:           actor,
		RequestID:       in.RequestID,
		AssigneeID:      in.AssigneeID,
		Comment:         in.Comment,
		ExpectedVersion: in.ExpectedVersion,
		AssigneeIsRH:    isRH,
	})
	if err != nil {
		return nil, err
	}
	s.announce(res)
	return res.Request, nil
}

func (s *certificationService) SaveEvaluation(ctx context.Context, in EvaluationRequest) (*certification.Request, error) {
	const op = "Certification.SaveEvaluation"
	actor, err := resolveActor(ctx, op, s.identity)
	if err != nil {
		return nil, err
	}
	res, err := s.agg.SaveEvaluation(ctx, certification.SaveEvaluationInput{
		Actor:           actor,
		RequestID:       in.RequestID,
		Scores:          in.Scores,
		Recommendation:  in.Recommendation,
		Comment:         in.Comment,
		DurationMinutes: in.DurationMinutes,
		ExpectedVersion: in.ExpectedVersion,
	})
	if err != nil {
		return nil, err
	}
	s.announce(res)
	return res.Request, nil
}

func (s *certificationService) SubmitEvaluation(ctx context.Context, requestID uuid.UUID, expectedVersion *int) (*certification.Request, error) {
	const op = "Certification.SubmitEvaluation"
	actor, err := resolveActor(ctx, op, s.identity)
	if err != nil {
		return nil, err
	}
	res, err := s.agg.SubmitEvaluation(ctx, certification.TransitionInput{
		Actor:           actor,
		RequestID:       requestID,
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		return nil, err
	}
	s.announce(res)
	return res.Request, nil
}

func (s *certificationService) Decide(ctx context.Context, in DecisionRequest) (*certification.Request, error) {
	const op = "Certification.Decide"
	actor, err := resolveActor(ctx, op, s.identity)
	if err != nil {
		return nil, err
	}
	res, err := s.agg.Decide(ctx, certification.DecideInput{
		Actor:           actor,
		RequestID:       in.RequestID,
		Outcome:         in.Outcome,
		Comment:         in.Comment,
		Validity:        in.Validity,
		ExpectedVersion: in.ExpectedVersion,
	})
	if err != nil {
		return nil, err
	}
	s.announce(res)
	return res.Request, nil
}

func (s *certificationService) Resubmit(ctx context.Context, in ResubmitRequest) (*certification.Request, error) {
	const op = "Certification.Resubmit"
	actor, err := resolveActor(ctx, op, s.identity)
	if err != nil {
		return nil, err
	}
	current, err := s.requests.GetByID(dbctx.Context{Ctx: ctx}, in.RequestID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeTransient, op, err)
	}
	if current == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "certification request not found: "+in.RequestID.String(), nil)
	}
	if current.RequesterID != actor.UserID {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "only the requester can resubmit this request", nil)
	}

	var checked *uuid.UUID
	stillRH := false
	if current.AssigneeID != nil {
		id := *current.AssigneeID
		checked = &id
		if stillRH, err = s.identity.HasRole(ctx, id, identity.RoleRH); err != nil {
			return nil, err
		}
	}

	files, err := s.store(ctx, in.RequestID, in.Uploads)
	if err != nil {
		return nil, err
	}
	res, err := s.agg.Resubmit(ctx, certification.ResubmitInput{
		Actor:             actor,
		RequestID:         in.RequestID,
		Files:             files,
		Comment:           in.Comment,
		ExpectedVersion:   in.ExpectedVersion,
		CheckedAssigneeID: checked,
		AssigneeStillRH:   stillRH,
	})
	if err != nil {
		s.discard(files)
		return nil, err
	}
	s.announce(res)
	return res.Request, nil
}

func (s *certificationService) Cancel(ctx context.Context, requestID uuid.UUID, comment string, expectedVersion *int) (*certification.Request, error) {
	const op = "Certification.Cancel"
	actor, err := resolveActor(ctx, op, s.identity)
	if err != nil {
		return nil, err
	}
	res, err := s.agg.Cancel(ctx, certification.TransitionInput{
		Actor:           actor,
		RequestID:       requestID,
		Comment:         comment,
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		return nil, err
	}
	s.announce(res)
	return res.Request, nil
}

func (s *certificationService) VerifyAttachment(ctx context.Context, attachmentID uuid.UUID, verified bool) (*certification.Attachment, error) {
	const op = "Certification.VerifyAttachment"
	actor, err := resolveActor(ctx, op, s.identity)
	if err != nil {
		return nil, err
	}
	return s.agg.VerifyAttachment(ctx, certification.VerifyAttachmentInput{
		Actor:        actor,
		AttachmentID: attachmentID,
		Verified:     verified,
	})
}

func (s *certificationService) SetBadgeVisibility(ctx context.Context, badgeID uuid.UUID, isPublic bool) (*certification.Badge, error) {
	const op = "Certification.SetBadgeVisibility"
	actor, err := resolveActor(ctx, op, s.identity)
	if err != nil {
		return nil, err
	}
	return s.agg.SetBadgeVisibility(ctx, certification.BadgeVisibilityInput{
		Actor:    actor,
		BadgeID:  badgeID,
		IsPublic: isPublic,
	})
}

func (s *certificationService) store(ctx context.Context, requestID uuid.UUID, uploads []Upload) ([]certification.StoredFile, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if s.attachments == nil {
		return nil, domainagg.NewError(domainagg.CodeTransient, "Attachments.Store", "attachment storage is not configured", nil)
	}
	return s.attachments.Store(ctx, requestID, uploads)
}

// discard drops blobs whose write never committed.
func (s *certificationService) discard(files []certification.StoredFile) {
	if len(files) == 0 || s.attachments == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.attachments.Discard(ctx, files)
}

// announce fans a committed transition out to the people it concerns.
func (s *certificationService) announce(res certification.TransitionResult) {
	if s.notifier == nil || res.Request == nil || res.Transition == nil {
		return
	}
	req, tr := res.Request, res.Transition
	base := Notification{
		Kind:      NotifyStatusChanged,
		RequestID: req.ID,
		Action:    tr.Action,
		From:      tr.FromStatus,
		To:        tr.ToStatus,
		Comment:   strings.TrimSpace(tr.Comment),
		At:        res.At,
	}
	if tr.FromStatus == tr.ToStatus && tr.Action == certification.ActionSaveEvaluation {
		// Re-saving a draft is not news for the requester.
		return
	}

	toRequester := base
	toRequester.RecipientID = req.RequesterID
	if res.Badge != nil {
		toRequester.Kind = NotifyBadgeIssued
		toRequester.Badge = res.Badge
	}
	s.notifier.Notify(toRequester)

	if tr.ToStatus == certification.StatusAssigned && req.AssigneeID != nil && *req.AssigneeID != req.RequesterID {
		toAssignee := base
		toAssignee.RecipientID = *req.AssigneeID
		s.notifier.Notify(toAssignee)
	}
	switch tr.ToStatus {
	case certification.StatusPending, certification.StatusAwaitingValidation:
		queue := base
		queue.Kind = NotifyQueueChanged
		queue.Role = identity.RoleManager
		s.notifier.Notify(queue)
	}
}
