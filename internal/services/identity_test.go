package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/data/repos"
	"github.com/yungbote/certification-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/domain/identity"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
)

func TestIdentityProviderReadsDirectory(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	idp := NewIdentityProvider(log, repos.NewDirectoryRepo(db, log), time.Second, nil)

	rh := testutil.SeedUser(t, ctx, db, "rh@example.com", identity.RoleRH, identity.RoleManager)

	ok, err := idp.HasRole(ctx, rh.ID, identity.RoleRH)
	if err != nil || !ok {
		t.Fatalf("HasRole(RH): want=true got=%v err=%v", ok, err)
	}
	ok, err = idp.HasRole(ctx, rh.ID, identity.RoleExpert)
	if err != nil || ok {
		t.Fatalf("HasRole(EXPERT): want=false got=%v err=%v", ok, err)
	}
	ok, err = idp.HasRole(ctx, uuid.New(), identity.RoleRH)
	if err != nil || ok {
		t.Fatalf("HasRole(unknown user): want=false got=%v err=%v", ok, err)
	}

	c, err := idp.Contact(ctx, rh.ID)
	if err != nil {
		t.Fatalf("Contact: %v", err)
	}
	if c == nil || c.Email != "rh@example.com" {
		t.Fatalf("Contact: want rh@example.com got=%+v", c)
	}
	missing, err := idp.Contact(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("Contact(unknown): want=nil got=%+v err=%v", missing, err)
	}
}

func TestIdentityProviderHidesInactiveContacts(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	idp := NewIdentityProvider(log, repos.NewDirectoryRepo(db, log), time.Second, nil)

	u := testutil.SeedUser(t, ctx, db, "gone@example.com", identity.RoleExpert)
	if err := db.Model(&identity.User{}).Where("id = ?", u.ID).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	c, err := idp.Contact(ctx, u.ID)
	if err != nil || c != nil {
		t.Fatalf("Contact(inactive): want=nil got=%+v err=%v", c, err)
	}
}

type slowDirectory struct {
	repos.DirectoryRepo
}

func (slowDirectory) Roles(dbc dbctx.Context, userID uuid.UUID) ([]identity.Role, error) {
	<-dbc.Ctx.Done()
	return nil, dbc.Ctx.Err()
}

func TestIdentityProviderTimeoutIsTransient(t *testing.T) {
	idp := NewIdentityProvider(testutil.Logger(t), slowDirectory{}, 20*time.Millisecond, nil)
	start := time.Now()
	_, err := idp.HasRole(context.Background(), uuid.New(), identity.RoleRH)
	if !domainagg.IsCode(err, domainagg.CodeTransient) {
		t.Fatalf("code: want=%s got=%s (%v)", domainagg.CodeTransient, domainagg.CodeOf(err), err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("lookup not bounded: took %s", elapsed)
	}
}
