package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/data/repos/testutil"
	"github.com/yungbote/certification-backend/internal/domain/identity"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
)

func TestDirectoryRepoRoles(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewDirectoryRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	rh := testutil.SeedUser(t, ctx, db, "rh@example.com", identity.RoleRH)
	mgr := testutil.SeedUser(t, ctx, db, "mgr@example.com", identity.RoleManager, identity.RoleRH)

	roles, err := repo.Roles(dbc, mgr.ID)
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if len(roles) != 2 || roles[0] != identity.RoleManager || roles[1] != identity.RoleRH {
		t.Fatalf("manager roles: want=[MANAGER RH] got=%v", roles)
	}

	if err := db.Model(&identity.User{}).Where("id = ?", rh.ID).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	roles, err = repo.Roles(dbc, rh.ID)
	if err != nil {
		t.Fatalf("Roles inactive: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("inactive user roles: want=0 got=%v", roles)
	}

	users, err := repo.UsersWithRole(dbc, identity.RoleRH)
	if err != nil {
		t.Fatalf("UsersWithRole: %v", err)
	}
	if len(users) != 1 || users[0].ID != mgr.ID {
		t.Fatalf("active RH users: want=[%s] got=%v", mgr.ID, users)
	}

	if roles, _ := repo.Roles(dbc, uuid.New()); len(roles) != 0 {
		t.Fatalf("unknown user should hold no roles, got=%v", roles)
	}
}

func TestDirectoryRepoGrantRoleIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewDirectoryRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	u := testutil.SeedUser(t, ctx, db, "expert@example.com")
	for i := 0; i < 2; i++ {
		if err := repo.GrantRole(dbc, u.ID, identity.RoleExpert); err != nil {
			t.Fatalf("GrantRole #%d: %v", i, err)
		}
	}
	roles, err := repo.Roles(dbc, u.ID)
	if err != nil || len(roles) != 1 || roles[0] != identity.RoleExpert {
		t.Fatalf("roles: err=%v got=%v", err, roles)
	}
	got, err := repo.GetUser(dbc, u.ID)
	if err != nil || got == nil || got.Email != "expert@example.com" {
		t.Fatalf("GetUser: err=%v got=%+v", err, got)
	}
}
