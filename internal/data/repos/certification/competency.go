package certification

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

// CompetencyRepo reads the competency catalogue owned by the profile surface.
type CompetencyRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Competency, error)
	GetReference(dbc dbctx.Context, id uuid.UUID) (*types.CompetencyReference, error)
}

type competencyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompetencyRepo(db *gorm.DB, baseLog *logger.Logger) CompetencyRepo {
	repoLog := baseLog.With("repo", "CompetencyRepo")
	return &competencyRepo{db: db, log: repoLog}
}

func (r *competencyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Competency, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Competency
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *competencyRepo) GetReference(dbc dbctx.Context, id uuid.UUID) (*types.CompetencyReference, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.CompetencyReference
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
