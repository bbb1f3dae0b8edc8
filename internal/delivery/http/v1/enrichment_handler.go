package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"recruiting-pipeline/internal/delivery/http/response"
	"recruiting-pipeline/internal/domain"
	"recruiting-pipeline/pkg/apperror"
	"recruiting-pipeline/pkg/enrichment"
	"recruiting-pipeline/pkg/metrics"
)

type EnrichmentHandler struct {
	enrichmentUC domain.EnrichmentUsecase
}

// NewEnrichmentHandler registers the analysis service's HTTP callback. auth
// checks the shared secret.
func NewEnrichmentHandler(r *gin.RouterGroup, enrichmentUC domain.EnrichmentUsecase, auth gin.HandlerFunc) {
	handler := &EnrichmentHandler{enrichmentUC: enrichmentUC}

	internal := r.Group("/internal/enrichment")
	internal.Use(auth)
	{
		internal.POST("/applications/:id", handler.ApplicationResult)
		internal.POST("/candidates/:id", handler.CandidateResult)
	}
}

// ApplicationResult godoc
// @Summary      Deliver an application analysis
// @Description  Same payload as the result queue; entityId and entityType come from the path
// @Tags         internal
// @Accept       json
// @Produce      json
// @Param        id                   path      string  true  "Application ID"
// @Param        X-Enrichment-Secret  header    string  true  "Shared secret"
// @Success      200  {object}  response.Response{data=domain.Application}
// @Failure      400  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /internal/enrichment/applications/{id} [post]
func (h *EnrichmentHandler) ApplicationResult(c *gin.Context) {
	h.ingest(c, domain.EntityTypeApplication)
}

// CandidateResult godoc
// @Summary      Deliver a candidate resume analysis
// @Tags         internal
// @Accept       json
// @Produce      json
// @Param        id                   path      string  true  "Candidate user ID"
// @Param        X-Enrichment-Secret  header    string  true  "Shared secret"
// @Success      200  {object}  response.Response
// @Router       /internal/enrichment/candidates/{id} [post]
func (h *EnrichmentHandler) CandidateResult(c *gin.Context) {
	h.ingest(c, domain.EntityTypeCandidate)
}

func (h *EnrichmentHandler) ingest(c *gin.Context, entityType string) {
	// 1. The path is authoritative for the target
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		metrics.EnrichmentResultsTotal.WithLabelValues("http", "invalid").Inc()
		c.Error(apperror.BadRequest("Invalid JSON body"))
		return
	}
	body["entityId"] = c.Param("id")
	body["entityType"] = entityType

	// 2. Same schema as queue deliveries
	raw, err := json.Marshal(body)
	if err != nil {
		c.Error(apperror.BadRequest("Invalid JSON body"))
		return
	}
	result, err := enrichment.ParseResult(raw)
	if err != nil {
		metrics.EnrichmentResultsTotal.WithLabelValues("http", "invalid").Inc()
		c.Error(apperror.BadRequest(err.Error()))
		return
	}

	// 3. Apply
	if err := h.enrichmentUC.Ingest(c.Request.Context(), result.EntityType, result.EntityID, result.Enrichment()); err != nil {
		outcome := "error"
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code < http.StatusInternalServerError {
			outcome = "rejected"
		}
		metrics.EnrichmentResultsTotal.WithLabelValues("http", outcome).Inc()
		c.Error(err)
		return
	}
	metrics.EnrichmentResultsTotal.WithLabelValues("http", "applied").Inc()
	response.Success(c, http.StatusOK, "Enrichment applied", nil)
}
