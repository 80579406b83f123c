package certification

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

// EvaluationRepo derives GlobalScore from the stored criteria scores on every
// read; the global_score column is only a projection for SQL consumers.
type EvaluationRepo interface {
	// Save inserts the evaluation of (RequestID, Cycle) or overwrites it.
	Save(dbc dbctx.Context, ev *types.Evaluation) (*types.Evaluation, error)
	GetForCycle(dbc dbctx.Context, requestID uuid.UUID, cycle int) (*types.Evaluation, error)
	ListByRequest(dbc dbctx.Context, requestID uuid.UUID) ([]*types.Evaluation, error)
	ListByRequestIDs(dbc dbctx.Context, requestIDs []uuid.UUID) ([]*types.Evaluation, error)
}

type evaluationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEvaluationRepo(db *gorm.DB, baseLog *logger.Logger) EvaluationRepo {
	repoLog := baseLog.With("repo", "EvaluationRepo")
	return &evaluationRepo{db: db, log: repoLog}
}

func (r *evaluationRepo) Save(dbc dbctx.Context, ev *types.Evaluation) (*types.Evaluation, error) {
	if ev == nil {
		return nil, nil
	}
	existing, err := r.GetForCycle(dbc, ev.RequestID, ev.Cycle)
	if err != nil {
		return nil, err
	}
	db := dbc.DB(r.db)
	if existing == nil {
		if ev.ID == uuid.Nil {
			ev.ID = uuid.New()
		}
		if err := db.Create(ev).Error; err != nil {
			return nil, err
		}
		return ev, nil
	}
	ev.ID = existing.ID
	ev.CreatedAt = existing.CreatedAt
	err = db.Model(&types.Evaluation{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"evaluator_id":     ev.EvaluatorID,
			"criteria_scores":  ev.CriteriaScores,
			"global_score":     ev.GlobalScore,
			"recommendation":   ev.Recommendation,
			"comment":          ev.Comment,
			"duration_minutes": ev.DurationMinutes,
			"updated_at":       ev.UpdatedAt,
		}).Error
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *evaluationRepo) GetForCycle(dbc dbctx.Context, requestID uuid.UUID, cycle int) (*types.Evaluation, error) {
	var out types.Evaluation
	err := dbc.DB(r.db).
		Where("request_id = ? AND cycle = ?", requestID, cycle).
		Limit(1).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := out.Recompute(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *evaluationRepo) ListByRequest(dbc dbctx.Context, requestID uuid.UUID) ([]*types.Evaluation, error) {
	return r.ListByRequestIDs(dbc, []uuid.UUID{requestID})
}

func (r *evaluationRepo) ListByRequestIDs(dbc dbctx.Context, requestIDs []uuid.UUID) ([]*types.Evaluation, error) {
	var out []*types.Evaluation
	if len(requestIDs) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("request_id IN ?", requestIDs).
		Order("request_id ASC, cycle ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for _, ev := range out {
		if err := ev.Recompute(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
