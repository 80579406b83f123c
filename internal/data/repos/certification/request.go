package certification

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type RequestRepo interface {
	Create(dbc dbctx.Context, req *types.Request) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Request, error)
	ListByStatus(dbc dbctx.Context, statuses []types.Status, page Page) ([]*types.Request, error)
	ListByRequester(dbc dbctx.Context, requesterID uuid.UUID, page Page) ([]*types.Request, error)
	ListByAssignee(dbc dbctx.Context, assigneeID uuid.UUID, page Page) ([]*types.Request, error)
	ListAssigned(dbc dbctx.Context, page Page) ([]*types.Request, error)
}

type requestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRequestRepo(db *gorm.DB, baseLog *logger.Logger) RequestRepo {
	repoLog := baseLog.With("repo", "RequestRepo")
	return &requestRepo{db: db, log: repoLog}
}

func (r *requestRepo) Create(dbc dbctx.Context, req *types.Request) error {
	if req == nil {
		return nil
	}
	return dbc.DB(r.db).Create(req).Error
}

func (r *requestRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Request, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Request
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *requestRepo) ListByStatus(dbc dbctx.Context, statuses []types.Status, page Page) ([]*types.Request, error) {
	q := dbc.DB(r.db).Model(&types.Request{})
	if len(statuses) > 0 {
		q = q.Where("status IN ?", types.StatusStrings(statuses...))
	}
	return r.list(q, page)
}

func (r *requestRepo) ListByRequester(dbc dbctx.Context, requesterID uuid.UUID, page Page) ([]*types.Request, error) {
	if requesterID == uuid.Nil {
		return []*types.Request{}, nil
	}
	return r.list(dbc.DB(r.db).Model(&types.Request{}).Where("requester_id = ?", requesterID), page)
}

// ListByAssignee returns the workload of one RH: requests currently held by it.
func (r *requestRepo) ListByAssignee(dbc dbctx.Context, assigneeID uuid.UUID, page Page) ([]*types.Request, error) {
	if assigneeID == uuid.Nil {
		return []*types.Request{}, nil
	}
	return r.list(dbc.DB(r.db).Model(&types.Request{}).Where("assignee_id = ?", assigneeID), page)
}

func (r *requestRepo) ListAssigned(dbc dbctx.Context, page Page) ([]*types.Request, error) {
	return r.list(dbc.DB(r.db).Model(&types.Request{}).Where("assignee_id IS NOT NULL"), page)
}

func (r *requestRepo) list(q *gorm.DB, page Page) ([]*types.Request, error) {
	page = page.Normalize()
	var out []*types.Request
	err := q.Order(orderByQueue).
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

var orderByQueue = strings.Join([]string{"priority DESC", "created_at ASC", "id ASC"}, ", ")
