package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/platform/apierr"
)

var statusByCode = map[domainagg.ErrorCode]int{
	domainagg.CodeNotFound:               http.StatusNotFound,
	domainagg.CodeForbidden:              http.StatusForbidden,
	domainagg.CodeInvalidTransition:      http.StatusConflict,
	domainagg.CodeInvalidInput:           http.StatusBadRequest,
	domainagg.CodeConcurrentModification: http.StatusConflict,
	domainagg.CodeUnknownAssignee:        http.StatusUnprocessableEntity,
	domainagg.CodeUnknownCriterion:       http.StatusUnprocessableEntity,
	domainagg.CodeTransient:              http.StatusServiceUnavailable,
	domainagg.CodeInternal:               http.StatusInternalServerError,
}

// StatusFor maps a domain error code onto its HTTP status.
func StatusFor(code domainagg.ErrorCode) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error renders any error returned by the service layer. Typed domain and API
// errors keep their code; anything else is an internal error whose detail is
// not leaked.
func Error(c *gin.Context, err error) {
	var api *apierr.Error
	if errors.As(err, &api) {
		status := api.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		RespondError(c, status, api.Code, api.Err)
		return
	}
	var typed *domainagg.Error
	if errors.As(err, &typed) {
		if typed.Code == domainagg.CodeInternal {
			_ = c.Error(err)
			RespondError(c, http.StatusInternalServerError, string(domainagg.CodeInternal), errors.New("internal error"))
			return
		}
		msg := domainagg.MessageOf(typed)
		if typed.Code == domainagg.CodeTransient && typed.Cause != nil && msg == typed.Cause.Error() {
			// Wrapped driver errors are logged, not shown.
			_ = c.Error(err)
			msg = "the service is temporarily unavailable, retry shortly"
		}
		RespondError(c, StatusFor(typed.Code), string(typed.Code), errors.New(msg))
		return
	}
	_ = c.Error(err)
	RespondError(c, http.StatusInternalServerError, string(domainagg.CodeInternal), errors.New("internal error"))
}
