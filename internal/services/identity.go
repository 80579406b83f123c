package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/certification-backend/internal/data/repos"
	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/domain/identity"
	"github.com/yungbote/certification-backend/internal/observability"
	"github.com/yungbote/certification-backend/internal/platform/ctxutil"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

// IdentityProvider answers role and contact questions about users. Every call
// is bounded by the configured timeout; a timeout surfaces as a transient error.
type IdentityProvider interface {
	Roles(ctx context.Context, userID uuid.UUID) ([]identity.Role, error)
	HasRole(ctx context.Context, userID uuid.UUID, role identity.Role) (bool, error)
	Contact(ctx context.Context, userID uuid.UUID) (*identity.Contact, error)
}

type identityProvider struct {
	log     *logger.Logger
	dir     repos.DirectoryRepo
	timeout time.Duration
	metrics *observability.Metrics
	group   singleflight.Group
}

func NewIdentityProvider(log *logger.Logger, dir repos.DirectoryRepo, timeout time.Duration, metrics *observability.Metrics) IdentityProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &identityProvider{
		log:     log.With("service", "IdentityProvider"),
		dir:     dir,
		timeout: timeout,
		metrics: metrics,
	}
}

func (p *identityProvider) Roles(ctx context.Context, userID uuid.UUID) ([]identity.Role, error) {
	const op = "Identity.Roles"
	if userID == uuid.Nil {
		return nil, nil
	}
	v, err, shared := p.group.Do("roles:"+userID.String(), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctxutil.Default(ctx)), p.timeout)
		defer cancel()
		roles, err := p.dir.Roles(dbctx.Context{Ctx: ctx}, userID)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		return roles, err
	})
	if err != nil {
		return nil, p.lookupFailed(op, userID, err)
	}
	p.metrics.IncIdentityLookup(lookupOutcome(shared))
	roles, _ := v.([]identity.Role)
	return roles, nil
}

func (p *identityProvider) HasRole(ctx context.Context, userID uuid.UUID, role identity.Role) (bool, error) {
	roles, err := p.Roles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (p *identityProvider) Contact(ctx context.Context, userID uuid.UUID) (*identity.Contact, error) {
	const op = "Identity.Contact"
	v, err, shared := p.group.Do("contact:"+userID.String(), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctxutil.Default(ctx)), p.timeout)
		defer cancel()
		return p.dir.GetUser(dbctx.Context{Ctx: ctx}, userID)
	})
	if err != nil {
		return nil, p.lookupFailed(op, userID, err)
	}
	p.metrics.IncIdentityLookup(lookupOutcome(shared))
	u, _ := v.(*identity.User)
	if u == nil || !u.Active {
		return nil, nil
	}
	return &identity.Contact{UserID: u.ID, Email: u.Email, DisplayName: u.DisplayName}, nil
}

func (p *identityProvider) lookupFailed(op string, userID uuid.UUID, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		p.metrics.IncIdentityLookup("timeout")
		p.log.Warn("Identity lookup timed out", "op", op, "user_id", userID, "timeout", p.timeout.String())
		return domainagg.NewError(domainagg.CodeTransient, op, "the identity service did not answer in time, retry shortly", err)
	}
	p.metrics.IncIdentityLookup("error")
	p.log.Error("Identity lookup failed", "op", op, "user_id", userID, "error", err)
	return domainagg.NewError(domainagg.CodeTransient, op, fmt.Sprintf("identity lookup failed for %s", userID), err)
}

func lookupOutcome(shared bool) string {
	if shared {
		return "shared"
	}
	return "ok"
}
