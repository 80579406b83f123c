package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/http/response"
	"github.com/yungbote/certification-backend/internal/platform/ctxutil"
	"github.com/yungbote/certification-backend/internal/platform/logger"
	"github.com/yungbote/certification-backend/internal/realtime"
	"github.com/yungbote/certification-backend/internal/services"
)

type EventsHandler struct {
	log *logger.Logger
	hub *realtime.Hub
	idp services.IdentityProvider
}

func NewEventsHandler(log *logger.Logger, hub *realtime.Hub, idp services.IdentityProvider) *EventsHandler {
	return &EventsHandler{log: log.With("handler", "EventsHandler"), hub: hub, idp: idp}
}

// GET /api/events
// The stream joins the caller's user channel plus one channel per role held
// at connect time. Role changes take effect on reconnect.
func (h *EventsHandler) Stream(c *gin.Context) {
	userID := ctxutil.UserID(c.Request.Context())
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
		return
	}
	roles, err := h.idp.Roles(c.Request.Context(), userID)
	if err != nil {
		h.log.Warn("Role lookup failed for event stream; user channel only", "user_id", userID.String(), "error", err)
		roles = nil
	}

	client := h.hub.NewClient(userID)
	defer h.hub.Close(client)
	h.hub.Subscribe(client, realtime.UserChannel(userID))
	for _, r := range roles {
		h.hub.Subscribe(client, realtime.RoleChannel(string(r)))
	}

	h.log.Debug("Event stream open", "user_id", userID.String(), "client_id", client.ID.String(), "roles", len(roles))
	h.hub.Stream(c.Writer, c.Request, client)
	h.log.Debug("Event stream closed", "client_id", client.ID.String())
}
