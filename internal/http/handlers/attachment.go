package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/certification-backend/internal/http/response"
	"github.com/yungbote/certification-backend/internal/platform/logger"
	"github.com/yungbote/certification-backend/internal/services"
)

type AttachmentHandler struct {
	log      *logger.Logger
	workflow services.CertificationService
}

func NewAttachmentHandler(log *logger.Logger, workflow services.CertificationService) *AttachmentHandler {
	return &AttachmentHandler{log: log.With("handler", "AttachmentHandler"), workflow: workflow}
}

type verificationBody struct {
	Verified *bool `json:"verified" binding:"required"`
}

// PATCH /api/attachments/:id/verification
func (h *AttachmentHandler) SetVerification(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var body verificationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, invalid(bindingMessage(err)))
		return
	}
	att, err := h.workflow.VerifyAttachment(c.Request.Context(), id, *body.Verified)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"attachment": att})
}
