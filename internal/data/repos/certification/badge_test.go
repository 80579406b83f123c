package certification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/data/repos/testutil"
	types "github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
)

func newBadge(holder, competency uuid.UUID, expires *time.Time) *types.Badge {
	now := time.Now().UTC()
	return &types.Badge{
		ID:           uuid.New(),
		HolderID:     holder,
		CompetencyID: competency,
		RequestID:    uuid.New(),
		Level:        types.LevelGold,
		ObtainedAt:   now,
		ExpiresAt:    expires,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestBadgeRepoSingleActivePerHolderCompetency(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewBadgeRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	holder, comp := uuid.New(), uuid.New()
	first := newBadge(holder, comp, nil)
	first.PermanentValidity = true
	if err := repo.Create(dbc, first); err != nil {
		t.Fatalf("Create first: %v", err)
	}
	if err := repo.Create(dbc, newBadge(holder, comp, nil)); err == nil {
		t.Fatalf("second active badge should violate the partial unique index")
	}

	second := newBadge(holder, comp, nil)
	ok, err := repo.Supersede(dbc, first.ID, second.ID, time.Now().UTC())
	if err != nil || !ok {
		t.Fatalf("Supersede: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.Supersede(dbc, first.ID, second.ID, time.Now().UTC()); ok {
		t.Fatalf("superseding twice should not match")
	}
	if err := repo.Create(dbc, second); err != nil {
		t.Fatalf("Create after supersede: %v", err)
	}

	active, err := repo.GetActive(dbc, holder, comp)
	if err != nil || active == nil || active.ID != second.ID {
		t.Fatalf("GetActive: err=%v got=%+v", err, active)
	}
	all, err := repo.ListByHolder(dbc, holder, true)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListByHolder all: err=%v len=%d", err, len(all))
	}
	current, err := repo.ListByHolder(dbc, holder, false)
	if err != nil || len(current) != 1 {
		t.Fatalf("ListByHolder current: err=%v len=%d", err, len(current))
	}
}

func TestBadgeRepoListExpiring(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewBadgeRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	soon := now.Add(10 * 24 * time.Hour)
	later := now.Add(90 * 24 * time.Hour)
	gone := now.Add(-24 * time.Hour)

	expiring := newBadge(uuid.New(), uuid.New(), &soon)
	for _, b := range []*types.Badge{expiring, newBadge(uuid.New(), uuid.New(), &later), newBadge(uuid.New(), uuid.New(), &gone)} {
		if err := repo.Create(dbc, b); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	rows, err := repo.ListExpiring(dbc, now, now.Add(30*24*time.Hour), 0)
	if err != nil {
		t.Fatalf("ListExpiring: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != expiring.ID {
		t.Fatalf("expiring: want=[%s] got=%v", expiring.ID, rows)
	}
	claimed, err := repo.ClaimExpiryNotice(dbc, expiring.ID, now)
	if err != nil || !claimed {
		t.Fatalf("ClaimExpiryNotice: want=true got=%v err=%v", claimed, err)
	}
	claimed, err = repo.ClaimExpiryNotice(dbc, expiring.ID, now.Add(time.Minute))
	if err != nil || claimed {
		t.Fatalf("second ClaimExpiryNotice: want=false got=%v err=%v", claimed, err)
	}
	rows, err = repo.ListExpiring(dbc, now, now.Add(30*24*time.Hour), 0)
	if err != nil || len(rows) != 0 {
		t.Fatalf("after notify: err=%v len=%d", err, len(rows))
	}

	if err := repo.ReleaseExpiryNotice(dbc, expiring.ID, now); err != nil {
		t.Fatalf("ReleaseExpiryNotice: %v", err)
	}
	rows, err = repo.ListExpiring(dbc, now, now.Add(30*24*time.Hour), 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("after release: want=1 err=%v len=%d", err, len(rows))
	}
}

func TestBadgeRepoSetVisibility(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewBadgeRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	b := newBadge(uuid.New(), uuid.New(), nil)
	b.PermanentValidity = true
	if err := repo.Create(dbc, b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ok, err := repo.SetVisibility(dbc, b.ID, true, time.Now().UTC())
	if err != nil || !ok {
		t.Fatalf("SetVisibility: ok=%v err=%v", ok, err)
	}
	got, err := repo.GetByID(dbc, b.ID)
	if err != nil || got == nil || !got.IsPublic {
		t.Fatalf("GetByID: err=%v got=%+v", err, got)
	}
}
