package v1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"recruiting-pipeline/internal/delivery/http/response"
	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/apperror"
	"recruiting-pipeline/pkg/validation"
)

// maxSubmitBytes bounds the multipart body: the largest artifact plus the session.
const maxSubmitBytes = 6 << 20

type WizardHandler struct {
	wizardUC     domain.WizardUsecase
	submissionUC domain.SubmissionUsecase
}

// CancelTokenHeader carries the token returned with a pending submission.
const CancelTokenHeader = "X-Cancel-Token"

// NewWizardHandler registers the public wizard routes. limit guards navigation and cancellation.
func NewWizardHandler(r *gin.RouterGroup, wizardUC domain.WizardUsecase, submissionUC domain.SubmissionUsecase, limit gin.HandlerFunc) {
	handler := &WizardHandler{wizardUC: wizardUC, submissionUC: submissionUC}

	wizards := r.Group("/wizards")
	wizards.Use(limit)
	{
		wizards.POST("/next", handler.Next)
		wizards.POST("/back", handler.Back)
		wizards.POST("/goto/:step", handler.GoTo)
		wizards.POST("/fields", handler.UpdateFields)
		wizards.POST("/submit", handler.Submit)
		wizards.POST("/:kind", handler.Start)
	}
	r.DELETE("/submissions/:entityId/enrichment", limit, handler.CancelEnrichment)
}

// StartWizardRequest carries the target job for job applications.
type StartWizardRequest struct {
	JobID string `json:"jobId"`
}

// WizardStepResponse is returned by navigation endpoints.
type WizardStepResponse struct {
	Session  *domain.WizardSession `json:"session"`
	Advanced bool                  `json:"advanced"`
}

// UpdateFieldsRequest merges fields into a session.
type UpdateFieldsRequest struct {
	Session *domain.WizardSession  `json:"session" binding:"required"`
	Fields  map[string]interface{} `json:"fields" binding:"required"`
}

// Start godoc
// @Summary      Start a wizard
// @Description  Creates a session on step 1 for candidate_signup, company_signup or job_application
// @Tags         wizards
// @Accept       json
// @Produce      json
// @Param        kind  path      string              true   "Wizard kind"
// @Param        body  body      StartWizardRequest  false  "Job for job_application"
// @Success      201   {object}  response.Response{data=domain.WizardSession}
// @Failure      400   {object}  response.Response
// @Router       /wizards/{kind} [post]
func (h *WizardHandler) Start(c *gin.Context) {
	var req StartWizardRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(apperror.BadRequest("Invalid request body"))
			return
		}
	}
	session, err := h.wizardUC.StartWizard(domain.WizardKind(c.Param("kind")), req.JobID)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusCreated, "Wizard started", session)
}

// Next godoc
// @Summary      Advance a wizard
// @Description  Validates the current step and moves forward when it passes. lastError carries the failure.
// @Tags         wizards
// @Accept       json
// @Produce      json
// @Param        body  body      domain.WizardSession  true  "Session"
// @Success      200   {object}  response.Response{data=WizardStepResponse}
// @Failure      400   {object}  response.Response
// @Router       /wizards/next [post]
func (h *WizardHandler) Next(c *gin.Context) {
	session, ok := h.bindSession(c)
	if !ok {
		return
	}
	advanced := h.wizardUC.Next(session)
	message := "Step completed"
	if !advanced {
		message = "Step has errors"
	}
	response.Success(c, http.StatusOK, message, WizardStepResponse{Session: session, Advanced: advanced})
}

// Back godoc
// @Summary      Go back one step
// @Tags         wizards
// @Accept       json
// @Produce      json
// @Param        body  body      domain.WizardSession  true  "Session"
// @Success      200   {object}  response.Response{data=WizardStepResponse}
// @Router       /wizards/back [post]
func (h *WizardHandler) Back(c *gin.Context) {
	session, ok := h.bindSession(c)
	if !ok {
		return
	}
	h.wizardUC.Back(session)
	response.Success(c, http.StatusOK, "Moved back", WizardStepResponse{Session: session})
}

// GoTo godoc
// @Summary      Jump to a step
// @Description  Backwards jumps always succeed; forward jumps stop at the first invalid step
// @Tags         wizards
// @Accept       json
// @Produce      json
// @Param        step  path      int                   true  "1-based step"
// @Param        body  body      domain.WizardSession  true  "Session"
// @Success      200   {object}  response.Response{data=WizardStepResponse}
// @Router       /wizards/goto/{step} [post]
func (h *WizardHandler) GoTo(c *gin.Context) {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		c.Error(apperror.BadRequest("Invalid step"))
		return
	}
	session, ok := h.bindSession(c)
	if !ok {
		return
	}
	reached := h.wizardUC.GoTo(session, step)
	response.Success(c, http.StatusOK, "Step changed", WizardStepResponse{Session: session, Advanced: reached})
}

// UpdateFields godoc
// @Summary      Update wizard fields
// @Description  Merges fields without validating; errors surface on next/submit
// @Tags         wizards
// @Accept       json
// @Produce      json
// @Param        body  body      UpdateFieldsRequest  true  "Session and fields"
// @Success      200   {object}  response.Response{data=domain.WizardSession}
// @Router       /wizards/fields [post]
func (h *WizardHandler) UpdateFields(c *gin.Context) {
	var req UpdateFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("Invalid request body"))
		return
	}
	if err := h.wizardUC.Restore(req.Session); err != nil {
		c.Error(err)
		return
	}
	h.wizardUC.UpdateFields(req.Session, req.Fields)
	response.Success(c, http.StatusOK, "Fields updated", req.Session)
}

// Submit godoc
// @Summary      Submit a wizard
// @Description  Multipart form: "session" holds the session JSON, "resume" or "logo" the file.
// @Description  Runs the submission saga; retries of the same submission replay the first result.
// @Tags         wizards
// @Accept       multipart/form-data
// @Produce      json
// @Param        session  formData  string  true   "Session JSON"
// @Param        resume   formData  file    false  "Resume (PDF/DOC/DOCX, max 5MB)"
// @Param        logo     formData  file    false  "Company logo (PNG/JPEG/SVG, max 2MB)"
// @Success      201      {object}  response.Response{data=domain.SubmissionResult}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Failure      502      {object}  response.Response
// @Router       /wizards/submit [post]
func (h *WizardHandler) Submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSubmitBytes+(64<<10))

	// 1. Session
	raw := c.PostForm("session")
	if raw == "" {
		c.Error(apperror.BadRequest("session is required"))
		return
	}
	var session domain.WizardSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		c.Error(apperror.BadRequest("Invalid session"))
		return
	}
	if err := h.wizardUC.Restore(&session); err != nil {
		c.Error(err)
		return
	}

	// 2. Attach uploaded bytes to the artifact slots
	for _, field := range []string{domain.FieldResume, domain.FieldLogo} {
		artifact, err := readArtifact(c, field)
		if err != nil {
			c.Error(err)
			return
		}
		if artifact != nil {
			session.AttachArtifact(field, artifact)
		}
	}

	// 3. Run
	result, err := h.wizardUC.Submit(c.Request.Context(), &session, domain.SubmissionMeta{ClientIP: c.ClientIP()})
	if err != nil {
		var retry *apperror.AppError
		if errors.As(err, &retry) && retry.Code == http.StatusTooManyRequests {
			if details, ok := retry.Details.(map[string]interface{}); ok {
				if after, ok := details["retryAfter"].(int); ok {
					c.Header("Retry-After", strconv.Itoa(after))
				}
			}
		}
		c.Error(err)
		return
	}
	message := "Submission completed"
	if result.Replayed {
		message = "Submission already completed"
	}
	response.Success(c, http.StatusCreated, message, result)
}

// CancelEnrichment godoc
// @Summary      Cancel pending enrichment
// @Description  Stops an enrichment dispatch that has not been acknowledged yet
// @Tags         wizards
// @Produce      json
// @Param        entityId        path      string  true  "Submitted entity"
// @Param        X-Cancel-Token  header    string  true  "Token returned by the submission"
// @Success      200       {object}  response.Response
// @Failure      404       {object}  response.Response
// @Router       /submissions/{entityId}/enrichment [delete]
func (h *WizardHandler) CancelEnrichment(c *gin.Context) {
	// a wrong token looks the same as nothing pending
	if !h.submissionUC.CancelEnrichment(c.Param("entityId"), c.GetHeader(CancelTokenHeader)) {
		c.Error(apperror.NotFound("No pending enrichment for this submission"))
		return
	}
	response.Success(c, http.StatusOK, "Enrichment cancelled", nil)
}

func (h *WizardHandler) bindSession(c *gin.Context) (*domain.WizardSession, bool) {
	var session domain.WizardSession
	if err := c.ShouldBindJSON(&session); err != nil {
		c.Error(apperror.BadRequest("Invalid session"))
		return nil, false
	}
	if err := h.wizardUC.Restore(&session); err != nil {
		c.Error(err)
		return nil, false
	}
	return &session, true
}

// readArtifact returns nil when the form has no file under field.
func readArtifact(c *gin.Context, field string) (*domain.ArtifactMeta, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.BadRequest("Upload is too large or malformed")
	}
	rule := validation.ResumeRule
	if field == domain.FieldLogo {
		rule = validation.LogoRule
	}
	if header.Size > rule.MaxBytes {
		return nil, apperror.Unprocessable(rule.TooLargeMsg)
	}
	f, err := header.Open()
	if err != nil {
		return nil, apperror.BadRequest("Could not read upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperror.BadRequest("Could not read upload")
	}
	// Browsers and curl often send octet-stream; sniff instead
	declared := header.Header.Get("Content-Type")
	if declared == "" || declared == "application/octet-stream" {
		declared = mimetype.Detect(data).String()
	}
	return &domain.ArtifactMeta{
		Filename:  header.Filename,
		MimeType:  declared,
		SizeBytes: int64(len(data)),
		Data:      data,
	}, nil
}
