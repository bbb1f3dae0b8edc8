package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"recruiting-pipeline/internal/delivery/http/response"
	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/apperror"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ApplicationHandler struct {
	lifecycleUC domain.LifecycleUsecase
	jobUC       domain.JobUsecase
}

// NewApplicationHandler registers recruiter routes; r must already require a recruiter.
func NewApplicationHandler(r *gin.RouterGroup, lifecycleUC domain.LifecycleUsecase, jobUC domain.JobUsecase) {
	handler := &ApplicationHandler{lifecycleUC: lifecycleUC, jobUC: jobUC}

	applications := r.Group("/applications")
	{
		applications.GET("/:id", handler.Get)
		applications.PATCH("/:id/status", handler.ChangeStatus)
		applications.PATCH("/:id/stage", handler.ChangeStage)
		applications.POST("/:id/notes", handler.AddNote)
		applications.GET("/:id/notes", handler.ListNotes)
	}

	jobs := r.Group("/jobs/:id/applications")
	{
		jobs.GET("", handler.ListByJob)
		jobs.GET("/export", handler.Export)
	}
}

// ChangeStatusRequest is the request payload for a status change
type ChangeStatusRequest struct {
	Status domain.ApplicationStatus `json:"status" binding:"required"`
}

// ChangeStageRequest is the request payload for a stage change
type ChangeStageRequest struct {
	Stage domain.ApplicationStage `json:"stage" binding:"required"`
}

// AddNoteRequest is the request payload for a recruiter note
type AddNoteRequest struct {
	Content string `json:"content" binding:"required"`
}

// Get godoc
// @Summary      Get application
// @Description  Returns the application with its optional enrichment. ETag carries the version.
// @Tags         applications
// @Produce      json
// @Param        id  path      string  true  "Application ID"
// @Success      200 {object}  response.Response{data=domain.Application}
// @Failure      403 {object}  response.Response
// @Failure      404 {object}  response.Response
// @Router       /applications/{id} [get]
// @Security     BearerAuth
func (h *ApplicationHandler) Get(c *gin.Context) {
	app, ok := h.ownedApplication(c)
	if !ok {
		return
	}
	response.Versioned(c, http.StatusOK, "Application retrieved", app.Version, app)
}

// ChangeStatus godoc
// @Summary      Change application status
// @Description  Any status may follow any other; the stage is left unchanged.
// @Description  Send If-Match with the ETag from GET to reject stale edits.
// @Tags         applications
// @Accept       json
// @Produce      json
// @Param        id        path      string               true   "Application ID"
// @Param        If-Match  header    string               false  "Expected version"
// @Param        body      body      ChangeStatusRequest  true   "New status"
// @Success      200       {object}  response.Response{data=domain.Application}
// @Failure      400       {object}  response.Response
// @Failure      409       {object}  response.Response
// @Failure      422       {object}  response.Response
// @Router       /applications/{id}/status [patch]
// @Security     BearerAuth
func (h *ApplicationHandler) ChangeStatus(c *gin.Context) {
	// 1. Bind
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("status is required"))
		return
	}
	version, err := ifMatch(c)
	if err != nil {
		c.Error(err)
		return
	}

	// 2. Ownership
	if _, ok := h.ownedApplication(c); !ok {
		return
	}

	// 3. Transition
	app, err := h.lifecycleUC.ChangeStatus(c.Request.Context(), c.Param("id"), req.Status, version)
	if err != nil {
		c.Error(err)
		return
	}
	response.Versioned(c, http.StatusOK, "Application status updated", app.Version, app)
}

// ChangeStage godoc
// @Summary      Change application stage
// @Description  Stages only move forward (or stay). Send If-Match to reject stale edits.
// @Tags         applications
// @Accept       json
// @Produce      json
// @Param        id        path      string              true   "Application ID"
// @Param        If-Match  header    string              false  "Expected version"
// @Param        body      body      ChangeStageRequest  true   "New stage"
// @Success      200       {object}  response.Response{data=domain.Application}
// @Failure      409       {object}  response.Response
// @Failure      422       {object}  response.Response
// @Router       /applications/{id}/stage [patch]
// @Security     BearerAuth
func (h *ApplicationHandler) ChangeStage(c *gin.Context) {
	var req ChangeStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("stage is required"))
		return
	}
	version, err := ifMatch(c)
	if err != nil {
		c.Error(err)
		return
	}
	if _, ok := h.ownedApplication(c); !ok {
		return
	}

	app, err := h.lifecycleUC.ChangeStage(c.Request.Context(), c.Param("id"), req.Stage, version)
	if err != nil {
		c.Error(err)
		return
	}
	response.Versioned(c, http.StatusOK, "Application stage updated", app.Version, app)
}

// AddNote godoc
// @Summary      Add a note
// @Tags         applications
// @Accept       json
// @Produce      json
// @Param        id    path      string          true  "Application ID"
// @Param        body  body      AddNoteRequest  true  "Note"
// @Success      201   {object}  response.Response{data=domain.Note}
// @Failure      400   {object}  response.Response
// @Router       /applications/{id}/notes [post]
// @Security     BearerAuth
func (h *ApplicationHandler) AddNote(c *gin.Context) {
	var req AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("content is required"))
		return
	}
	if _, ok := h.ownedApplication(c); !ok {
		return
	}

	note, err := h.lifecycleUC.AddNote(c.Request.Context(), c.Param("id"), req.Content,
		c.GetString(string(domain.KeyUserID)), c.GetString(string(domain.KeyUserName)))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusCreated, "Note added", note)
}

// ListNotes godoc
// @Summary      List notes
// @Tags         applications
// @Produce      json
// @Param        id  path      string  true  "Application ID"
// @Success      200 {object}  response.Response{data=[]domain.Note}
// @Router       /applications/{id}/notes [get]
// @Security     BearerAuth
func (h *ApplicationHandler) ListNotes(c *gin.Context) {
	if _, ok := h.ownedApplication(c); !ok {
		return
	}
	notes, err := h.lifecycleUC.ListNotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Notes retrieved", notes)
}

// ListByJob godoc
// @Summary      List a job's applications
// @Tags         applications
// @Produce      json
// @Param        id  path      string  true  "Job ID"
// @Success      200 {object}  response.Response{data=[]domain.Application}
// @Failure      403 {object}  response.Response
// @Router       /jobs/{id}/applications [get]
// @Security     BearerAuth
func (h *ApplicationHandler) ListByJob(c *gin.Context) {
	if !h.ownedJob(c) {
		return
	}
	apps, err := h.lifecycleUC.ListByJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Applications retrieved", apps)
}

// Export godoc
// @Summary      Export a job's applications
// @Description  Downloads an xlsx workbook with status, stage and match score per applicant
// @Tags         applications
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        id  path  string  true  "Job ID"
// @Success      200 {file}  file
// @Router       /jobs/{id}/applications/export [get]
// @Security     BearerAuth
func (h *ApplicationHandler) Export(c *gin.Context) {
	if !h.ownedJob(c) {
		return
	}
	data, filename, err := h.lifecycleUC.ExportApplications(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Attachment(c, filename, xlsxContentType, data)
}

// ownedApplication loads the application and checks it belongs to the caller's company.
func (h *ApplicationHandler) ownedApplication(c *gin.Context) (*domain.Application, bool) {
	app, err := h.lifecycleUC.GetApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return nil, false
	}
	if app.CompanyID != c.GetString(string(domain.KeyCompanyID)) {
		c.Error(apperror.Forbidden("This application belongs to another company"))
		return nil, false
	}
	return app, true
}

func (h *ApplicationHandler) ownedJob(c *gin.Context) bool {
	job, err := h.jobUC.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return false
	}
	if job.CompanyID != c.GetString(string(domain.KeyCompanyID)) {
		c.Error(apperror.Forbidden("This job belongs to another company"))
		return false
	}
	return true
}

// ifMatch parses an optional If-Match version. 0 means the header was absent.
func ifMatch(c *gin.Context) (int64, error) {
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	if raw == "" || raw == "*" {
		return 0, nil
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version < 1 {
		return 0, apperror.BadRequest("If-Match must be a version from the ETag header")
	}
	return version, nil
}
