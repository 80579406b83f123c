package certification

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

type AttachmentRepo interface {
	Create(dbc dbctx.Context, rows []*types.Attachment) ([]*types.Attachment, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Attachment, error)
	ListByRequestIDs(dbc dbctx.Context, requestIDs []uuid.UUID) ([]*types.Attachment, error)
	NextPosition(dbc dbctx.Context, requestID uuid.UUID) (int, error)
	SetVerified(dbc dbctx.Context, id uuid.UUID, verified bool) (bool, error)
}

type attachmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttachmentRepo(db *gorm.DB, baseLog *logger.Logger) AttachmentRepo {
	repoLog := baseLog.With("repo", "AttachmentRepo")
	return &attachmentRepo{db: db, log: repoLog}
}

func (r *attachmentRepo) Create(dbc dbctx.Context, rows []*types.Attachment) ([]*types.Attachment, error) {
	if len(rows) == 0 {
		return []*types.Attachment{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *attachmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Attachment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Attachment
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByRequestIDs returns attachments in upload order per request.
func (r *attachmentRepo) ListByRequestIDs(dbc dbctx.Context, requestIDs []uuid.UUID) ([]*types.Attachment, error) {
	var out []*types.Attachment
	if len(requestIDs) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("request_id IN ?", requestIDs).
		Order("request_id ASC, position ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attachmentRepo) NextPosition(dbc dbctx.Context, requestID uuid.UUID) (int, error) {
	var maxPos int64
	err := dbc.DB(r.db).
		Model(&types.Attachment{}).
		Where("request_id = ?", requestID).
		Select("COALESCE(MAX(position), -1)").
		Row().
		Scan(&maxPos)
	if err != nil {
		return 0, err
	}
	return int(maxPos) + 1, nil
}

func (r *attachmentRepo) SetVerified(dbc dbctx.Context, id uuid.UUID, verified bool) (bool, error) {
	res := dbc.DB(r.db).
		Model(&types.Attachment{}).
		Where("id = ?", id).
		Update("verified", verified)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
