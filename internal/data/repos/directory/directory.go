package directory

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/certification-backend/internal/domain/identity"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

// DirectoryRepo reads users and their roles.
type DirectoryRepo interface {
	GetUser(dbc dbctx.Context, id uuid.UUID) (*identity.User, error)
	GetUsers(dbc dbctx.Context, ids []uuid.UUID) ([]*identity.User, error)
	Roles(dbc dbctx.Context, userID uuid.UUID) ([]identity.Role, error)
	UsersWithRole(dbc dbctx.Context, role identity.Role) ([]*identity.User, error)
	GrantRole(dbc dbctx.Context, userID uuid.UUID, role identity.Role) error
}

type directoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDirectoryRepo(db *gorm.DB, baseLog *logger.Logger) DirectoryRepo {
	repoLog := baseLog.With("repo", "DirectoryRepo")
	return &directoryRepo{db: db, log: repoLog}
}

func (r *directoryRepo) GetUser(dbc dbctx.Context, id uuid.UUID) (*identity.User, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out identity.User
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *directoryRepo) GetUsers(dbc dbctx.Context, ids []uuid.UUID) ([]*identity.User, error) {
	var out []*identity.User
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Roles returns the roles of an active user; inactive or unknown users hold none.
func (r *directoryRepo) Roles(dbc dbctx.Context, userID uuid.UUID) ([]identity.Role, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var raw []string
	err := dbc.DB(r.db).
		Table("directory_role AS dr").
		Joins("JOIN directory_user AS du ON du.id = dr.user_id").
		Where("dr.user_id = ? AND du.active = ?", userID, true).
		Order("dr.role ASC").
		Pluck("dr.role", &raw).Error
	if err != nil {
		return nil, err
	}
	out := make([]identity.Role, 0, len(raw))
	for _, s := range raw {
		if role, ok := identity.ParseRole(s); ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func (r *directoryRepo) UsersWithRole(dbc dbctx.Context, role identity.Role) ([]*identity.User, error) {
	var out []*identity.User
	err := dbc.DB(r.db).
		Table("directory_user AS du").
		Select("du.*").
		Joins("JOIN directory_role AS dr ON dr.user_id = du.id").
		Where("dr.role = ? AND du.active = ?", string(role), true).
		Order("du.email ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *directoryRepo) GrantRole(dbc dbctx.Context, userID uuid.UUID, role identity.Role) error {
	g := &identity.RoleGrant{UserID: userID, Role: role}
	return dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(g).Error
}
