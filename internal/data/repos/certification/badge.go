package certification

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

type BadgeRepo interface {
	Create(dbc dbctx.Context, b *types.Badge) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Badge, error)
	// GetActive returns the non-superseded badge of (holder, competency), if any.
	GetActive(dbc dbctx.Context, holderID, competencyID uuid.UUID) (*types.Badge, error)
	Supersede(dbc dbctx.Context, id, by uuid.UUID, at time.Time) (bool, error)
	ListByHolder(dbc dbctx.Context, holderID uuid.UUID, includeSuperseded bool) ([]*types.Badge, error)
	SetVisibility(dbc dbctx.Context, id uuid.UUID, isPublic bool, at time.Time) (bool, error)
	// ListExpiring returns active, non-permanent badges expiring in (from, to]
	// whose holders were not told yet.
	ListExpiring(dbc dbctx.Context, from, to time.Time, limit int) ([]*types.Badge, error)
	// ClaimExpiryNotice stamps the badge as reminded unless another run
	// already did; false means the reminder belongs to someone else.
	ClaimExpiryNotice(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
	// ReleaseExpiryNotice undoes a claim made at `at` so the next run retries.
	ReleaseExpiryNotice(dbc dbctx.Context, id uuid.UUID, at time.Time) error
}

type badgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBadgeRepo(db *gorm.DB, baseLog *logger.Logger) BadgeRepo {
	repoLog := baseLog.With("repo", "BadgeRepo")
	return &badgeRepo{db: db, log: repoLog}
}

func (r *badgeRepo) Create(dbc dbctx.Context, b *types.Badge) error {
	if b == nil {
		return nil
	}
	return dbc.DB(r.db).Create(b).Error
}

func (r *badgeRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Badge, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc.DB(r.db).Where("id = ?", id))
}

func (r *badgeRepo) GetActive(dbc dbctx.Context, holderID, competencyID uuid.UUID) (*types.Badge, error) {
	return r.first(dbc.DB(r.db).
		Where("holder_id = ? AND competency_id = ? AND superseded_at IS NULL", holderID, competencyID))
}

func (r *badgeRepo) first(q *gorm.DB) (*types.Badge, error) {
	var out types.Badge
	err := q.Limit(1).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *badgeRepo) Supersede(dbc dbctx.Context, id, by uuid.UUID, at time.Time) (bool, error) {
	res := dbc.DB(r.db).
		Model(&types.Badge{}).
		Where("id = ? AND superseded_at IS NULL", id).
		Updates(map[string]any{
			"superseded_at": at,
			"superseded_by": by,
			"updated_at":    at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *badgeRepo) ListByHolder(dbc dbctx.Context, holderID uuid.UUID, includeSuperseded bool) ([]*types.Badge, error) {
	var out []*types.Badge
	q := dbc.DB(r.db).Where("holder_id = ?", holderID)
	if !includeSuperseded {
		q = q.Where("superseded_at IS NULL")
	}
	if err := q.Order("obtained_at DESC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *badgeRepo) SetVisibility(dbc dbctx.Context, id uuid.UUID, isPublic bool, at time.Time) (bool, error) {
	res := dbc.DB(r.db).
		Model(&types.Badge{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_public": isPublic, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *badgeRepo) ListExpiring(dbc dbctx.Context, from, to time.Time, limit int) ([]*types.Badge, error) {
	if limit <= 0 {
		limit = 500
	}
	var out []*types.Badge
	err := dbc.DB(r.db).
		Where("superseded_at IS NULL AND permanent_validity = ? AND expiry_notified_at IS NULL", false).
		Where("expires_at > ? AND expires_at <= ?", from, to).
		Order("expires_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *badgeRepo) ClaimExpiryNotice(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&types.Badge{}).
		Where("id = ? AND expiry_notified_at IS NULL", id).
		Update("expiry_notified_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *badgeRepo) ReleaseExpiryNotice(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	return dbc.DB(r.db).
		Model(&types.Badge{}).
		Where("id = ? AND expiry_notified_at = ?", id, at).
		Update("expiry_notified_at", nil).Error
}
