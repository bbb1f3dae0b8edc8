package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recruiting-pipeline/internal/delivery/http/response"
	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/apperror"
)

type JobHandler struct {
	jobUC domain.JobUsecase
}

// NewJobHandler registers the public job lookup and the recruiter job routes.
func NewJobHandler(public *gin.RouterGroup, recruiter *gin.RouterGroup, jobUC domain.JobUsecase) {
	handler := &JobHandler{jobUC: jobUC}

	// Job application wizards read the posting before applying
	public.GET("/jobs/:id", handler.GetDetails)

	jobs := recruiter.Group("/jobs")
	{
		jobs.POST("", handler.Create)
		jobs.POST("/:id/close", handler.Close)
	}
}

type CreateJobRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// CreateJob godoc
// @Summary      Create a new job
// @Description  Opens a posting for the caller's company (recruiters only)
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        job  body      CreateJobRequest  true  "Job JSON"
// @Success      201  {object}  response.Response{data=domain.Job}
// @Failure      400  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /jobs [post]
// @Security     BearerAuth
func (h *JobHandler) Create(c *gin.Context) {
	// 1. Bind JSON
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}

	// 2. The usecase resolves the company from the caller
	job, err := h.jobUC.CreateJob(c.Request.Context(), c.GetString(string(domain.KeyUserID)), &domain.Job{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		c.Error(err)
		return
	}

	response.Success(c, http.StatusCreated, "Job created", job)
}

// GetJobDetails godoc
// @Summary      Get job details
// @Tags         jobs
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  response.Response{data=domain.Job}
// @Failure      404  {object}  response.Response
// @Router       /jobs/{id} [get]
func (h *JobHandler) GetDetails(c *gin.Context) {
	job, err := h.jobUC.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Job details", job)
}

// CloseJob godoc
// @Summary      Close a job
// @Description  Stops new applications. Closing a closed job is a no-op.
// @Tags         jobs
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  response.Response{data=domain.Job}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /jobs/{id}/close [post]
// @Security     BearerAuth
func (h *JobHandler) Close(c *gin.Context) {
	job, err := h.jobUC.CloseJob(c.Request.Context(), c.GetString(string(domain.KeyUserID)), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Job closed", job)
}
