package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/domain/identity"
)

func SeedUser(tb testing.TB, ctx context.Context, db *gorm.DB, email string, roles ...identity.Role) *identity.User {
	tb.Helper()
	now := time.Now().UTC()
	u := &identity.User{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: email,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	for _, r := range roles {
		g := &identity.RoleGrant{UserID: u.ID, Role: r, CreatedAt: now}
		if err := db.WithContext(ctx).Create(g).Error; err != nil {
			tb.Fatalf("seed role %s: %v", r, err)
		}
	}
	return u
}

// SeedCompetency creates a competency owned by ownerID. When domainCode is
// non-empty it is linked to a fresh reference in that domain.
func SeedCompetency(tb testing.TB, ctx context.Context, db *gorm.DB, ownerID uuid.UUID, domainCode string) *certification.Competency {
	tb.Helper()
	now := time.Now().UTC()
	c := &certification.Competency{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Label:     "Go services",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if domainCode != "" {
		ref := &certification.CompetencyReference{
			ID:         uuid.New(),
			Code:       "REF-" + uuid.NewString()[:8],
			Label:      "Backend engineering",
			DomainCode: domainCode,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := db.WithContext(ctx).Create(ref).Error; err != nil {
			tb.Fatalf("seed reference: %v", err)
		}
		c.ReferenceID = &ref.ID
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed competency: %v", err)
	}
	return c
}

// SeedRequest inserts a request row directly, bypassing the workflow.
func SeedRequest(tb testing.TB, ctx context.Context, db *gorm.DB, req *certification.Request) *certification.Request {
	tb.Helper()
	now := time.Now().UTC()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = certification.StatusPending
	}
	if req.EvaluationCycle == 0 {
		req.EvaluationCycle = 1
	}
	if req.Version == 0 {
		req.Version = 1
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	if err := db.WithContext(ctx).Create(req).Error; err != nil {
		tb.Fatalf("seed request: %v", err)
	}
	return req
}
