package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/certification-backend/internal/http/response"
	"github.com/yungbote/certification-backend/internal/platform/logger"
	"github.com/yungbote/certification-backend/internal/services"
)

type BadgeHandler struct {
	log      *logger.Logger
	workflow services.CertificationService
	queries  services.CertificationQueries
}

func NewBadgeHandler(log *logger.Logger, workflow services.CertificationService, queries services.CertificationQueries) *BadgeHandler {
	return &BadgeHandler{log: log.With("handler", "BadgeHandler"), workflow: workflow, queries: queries}
}

type visibilityBody struct {
	IsPublic *bool `json:"is_public" binding:"required"`
}

// GET /api/users/:id/badges?only_valid=true
// Other users' private badges are filtered out by the query service.
func (h *BadgeHandler) ListForUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	onlyValid := false
	if raw := strings.TrimSpace(c.Query("only_valid")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, invalid("only_valid must be a boolean"))
			return
		}
		onlyValid = v
	}
	rows, err := h.queries.Badges(c.Request.Context(), id, onlyValid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"badges": rows})
}

// PATCH /api/badges/:id/visibility
func (h *BadgeHandler) SetVisibility(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var body visibilityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, invalid(bindingMessage(err)))
		return
	}
	b, err := h.workflow.SetBadgeVisibility(c.Request.Context(), id, *body.IsPublic)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"badge": b})
}
