package certification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

// TransitionRepo stores the append-only audit trail of a request.
type TransitionRepo interface {
	Create(dbc dbctx.Context, t *types.Transition) error
	ListByRequest(dbc dbctx.Context, requestID uuid.UUID) ([]*types.Transition, error)
}

type transitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTransitionRepo(db *gorm.DB, baseLog *logger.Logger) TransitionRepo {
	repoLog := baseLog.With("repo", "TransitionRepo")
	return &transitionRepo{db: db, log: repoLog}
}

func (r *transitionRepo) Create(dbc dbctx.Context, t *types.Transition) error {
	if t == nil {
		return nil
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(t).Error
}

func (r *transitionRepo) ListByRequest(dbc dbctx.Context, requestID uuid.UUID) ([]*types.Transition, error) {
	var out []*types.Transition
	err := dbc.DB(r.db).
		Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
