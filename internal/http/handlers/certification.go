package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/data/repos"
	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/http/response"
	"github.com/yungbote/certification-backend/internal/platform/logger"
	"github.com/yungbote/certification-backend/internal/services"
)

type CertificationHandler struct {
	log      *logger.Logger
	workflow services.CertificationService
	queries  services.CertificationQueries
}

func NewCertificationHandler(log *logger.Logger, workflow services.CertificationService, queries services.CertificationQueries) *CertificationHandler {
	return &CertificationHandler{
		log:      log.With("handler", "CertificationHandler"),
		workflow: workflow,
		queries:  queries,
	}
}

type submitBody struct {
	CompetencyID  string `json:"competency_id" binding:"required,uuid"`
	Justification string `json:"justification" binding:"max=5000"`
	Priority      int    `json:"priority" binding:"gte=0"`
}

type assignBody struct {
	RHID    string `json:"rh_id" binding:"required,uuid"`
	Comment string `json:"comment" binding:"max=2000"`
}

type evaluationBody struct {
	CriteriaScores  map[string]int `json:"criteria_scores" binding:"required"`
	Recommendation  string         `json:"recommendation" binding:"required,cert_recommendation"`
	Comment         string         `json:"comment" binding:"max=5000"`
	DurationMinutes int            `json:"evaluation_duration_minutes" binding:"gte=0,lte=10080"`
}

type validityBody struct {
	Permanent bool       `json:"permanent"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type decisionBody struct {
	Outcome  string        `json:"outcome" binding:"required,cert_outcome"`
	Comment  string        `json:"comment" binding:"max=5000"`
	Validity *validityBody `json:"validity"`
}

type commentBody struct {
	Comment string `json:"comment" binding:"max=5000"`
}

// GET /api/certification-requests?status=PENDING,ASSIGNED
func (h *CertificationHandler) ListByStatus(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	var statuses []certification.Status
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			s, ok := certification.ParseStatus(part)
			if !ok {
				response.Error(c, invalid("unknown status "+strconv.Quote(part)))
				return
			}
			statuses = append(statuses, s)
		}
	}
	rows, err := h.queries.ListByStatus(c.Request.Context(), statuses, page)
	h.respondList(c, rows, page, err)
}

// GET /api/certification-requests/assigned
func (h *CertificationHandler) ListAssigned(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	rows, err := h.queries.ListAssigned(c.Request.Context(), page)
	h.respondList(c, rows, page, err)
}

// GET /api/certification-requests/assigned-to/:rhId
func (h *CertificationHandler) ListAssignedTo(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	rhID := uuid.Nil
	if raw := strings.TrimSpace(c.Param("rhId")); !strings.EqualFold(raw, "me") {
		var ok bool
		if rhID, ok = uuidParam(c, "rhId"); !ok {
			return
		}
	}
	rows, err := h.queries.ListAssignedTo(c.Request.Context(), rhID, page)
	h.respondList(c, rows, page, err)
}

// GET /api/certification-requests/awaiting-validation
func (h *CertificationHandler) ListAwaitingValidation(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	rows, err := h.queries.ListAwaitingValidation(c.Request.Context(), page)
	h.respondList(c, rows, page, err)
}

// GET /api/certification-requests/mine
func (h *CertificationHandler) ListMine(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	rows, err := h.queries.ListMine(c.Request.Context(), page)
	h.respondList(c, rows, page, err)
}

// GET /api/certification-requests/:id
func (h *CertificationHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	req, err := h.queries.Get(c.Request.Context(), id)
	h.respondRequest(c, req, err)
}

// GET /api/certification-requests/:id/history
func (h *CertificationHandler) History(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	rows, err := h.queries.History(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{"transitions": rows})
}

// POST /api/certification-requests (multipart or JSON without files)
func (h *CertificationHandler) Submit(c *gin.Context) {
	var in services.SubmitRequest
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			response.Error(c, invalid("malformed multipart body: "+err.Error()))
			return
		}
		competencyID, err := uuid.Parse(formValue(form, "competency_id"))
		if err != nil {
			response.Error(c, invalid("competency_id must be a UUID"))
			return
		}
		priority := 0
		if raw := formValue(form, "priority"); raw != "" {
			if priority, err = strconv.Atoi(raw); err != nil || priority < 0 {
				response.Error(c, invalid("priority must be a non-negative integer"))
				return
			}
		}
		in = services.SubmitRequest{
			CompetencyID:  competencyID,
			Justification: formValue(form, "justification"),
			Priority:      priority,
			Uploads:       multipartUploads(form),
		}
	} else {
		var body submitBody
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, invalid(bindingMessage(err)))
			return
		}
		in = services.SubmitRequest{
			CompetencyID:  uuid.MustParse(body.CompetencyID),
			Justification: strings.TrimSpace(body.Justification),
			Priority:      body.Priority,
		}
	}
	req, err := h.workflow.Submit(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SetVersion(c, req.Version)
	response.RespondCreated(c, gin.H{"request": req})
}

// POST /api/certification-requests/:id/assign
func (h *CertificationHandler) Assign(c *gin.Context) {
	h.assign(c, h.workflow.Assign)
}

// POST /api/certification-requests/:id/reassign
func (h *CertificationHandler) Reassign(c *gin.Context) {
	h.assign(c, h.workflow.Reassign)
}

func (h *CertificationHandler) assign(c *gin.Context, run func(context.Context, services.AssignRequest) (*certification.Request, error)) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	version, ok := ifMatch(c)
	if !ok {
		return
	}
	var body assignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, invalid(bindingMessage(err)))
		return
	}
	req, err := run(c.Request.Context(), services.AssignRequest{
		RequestID:       id,
		AssigneeID:      uuid.MustParse(body.RHID),
		Comment:         strings.TrimSpace(body.Comment),
		ExpectedVersion: version,
	})
	h.respondRequest(c, req, err)
}

// PUT /api/certification-requests/:id/evaluation
func (h *CertificationHandler) SaveEvaluation(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	version, ok := ifMatch(c)
	if !ok {
		return
	}
	var body evaluationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, invalid(bindingMessage(err)))
		return
	}
	rec, _ := certification.ParseRecommendation(body.Recommendation)
	req, err := h.workflow.SaveEvaluation(c.Request.Context(), services.EvaluationRequest{
		RequestID:       id,
		Scores:          body.CriteriaScores,
		Recommendation:  rec,
		Comment:         strings.TrimSpace(body.Comment),
		DurationMinutes: body.DurationMinutes,
		ExpectedVersion: version,
	})
	h.respondRequest(c, req, err)
}

// POST /api/certification-requests/:id/submit
func (h *CertificationHandler) SubmitEvaluation(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	version, ok := ifMatch(c)
	if !ok {
		return
	}
	req, err := h.workflow.SubmitEvaluation(c.Request.Context(), id, version)
	h.respondRequest(c, req, err)
}

// POST /api/certification-requests/:id/decision
func (h *CertificationHandler) Decide(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	version, ok := ifMatch(c)
	if !ok {
		return
	}
	var body decisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, invalid(bindingMessage(err)))
		return
	}
	outcome, _ := certification.ParseOutcome(body.Outcome)
	in := services.DecisionRequest{
		RequestID:       id,
		Outcome:         outcome,
		Comment:         strings.TrimSpace(body.Comment),
		ExpectedVersion: version,
	}
	if body.Validity != nil {
		in.Validity = certification.Validity{Permanent: body.Validity.Permanent, ExpiresAt: body.Validity.ExpiresAt}
	}
	req, err := h.workflow.Decide(c.Request.Context(), in)
	h.respondRequest(c, req, err)
}

// POST /api/certification-requests/:id/resubmit (multipart or JSON)
func (h *CertificationHandler) Resubmit(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	version, ok := ifMatch(c)
	if !ok {
		return
	}
	in := services.ResubmitRequest{RequestID: id, ExpectedVersion: version}
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			response.Error(c, invalid("malformed multipart body: "+err.Error()))
			return
		}
		in.Comment = formValue(form, "comment")
		in.Uploads = multipartUploads(form)
	} else {
		var body commentBody
		if err := bindOptionalJSON(c, &body); err != nil {
			response.Error(c, invalid(bindingMessage(err)))
			return
		}
		in.Comment = strings.TrimSpace(body.Comment)
	}
	req, err := h.workflow.Resubmit(c.Request.Context(), in)
	h.respondRequest(c, req, err)
}

// POST /api/certification-requests/:id/cancel
func (h *CertificationHandler) Cancel(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	version, ok := ifMatch(c)
	if !ok {
		return
	}
	var body commentBody
	if err := bindOptionalJSON(c, &body); err != nil {
		response.Error(c, invalid(bindingMessage(err)))
		return
	}
	req, err := h.workflow.Cancel(c.Request.Context(), id, strings.TrimSpace(body.Comment), version)
	h.respondRequest(c, req, err)
}

func (h *CertificationHandler) respondRequest(c *gin.Context, req *certification.Request, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SetVersion(c, req.Version)
	response.RespondOK(c, gin.H{"request": req})
}

func (h *CertificationHandler) respondList(c *gin.Context, rows []*certification.Request, page repos.Page, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"requests": rows,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}
