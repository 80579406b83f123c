package services

import (
	"context"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/platform/ctxutil"
)

// resolveActor turns the authenticated caller into an Actor with fresh roles.
func resolveActor(ctx context.Context, op string, idp IdentityProvider) (certification.Actor, error) {
	userID := ctxutil.UserID(ctx)
	if userID == uuid.Nil {
		return certification.Actor{}, domainagg.NewError(domainagg.CodeForbidden, op, "authentication required", nil)
	}
	roles, err := idp.Roles(ctx, userID)
	if err != nil {
		return certification.Actor{}, err
	}
	return certification.Actor{UserID: userID, Roles: roles}, nil
}
