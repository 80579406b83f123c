package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/certification-backend/internal/http/response"
	"github.com/yungbote/certification-backend/internal/services"
)

type CatalogHandler struct {
	queries services.CertificationQueries
}

func NewCatalogHandler(queries services.CertificationQueries) *CatalogHandler {
	return &CatalogHandler{queries: queries}
}

// GET /api/domains/:code/criteria
func (h *CatalogHandler) Criteria(c *gin.Context) {
	d, err := h.queries.Criteria(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"domain": d})
}
