package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recruiting-pipeline/internal/delivery/http/response"
	"recruiting-pipeline/internal/usecase"
)

// Health godoc
// @Summary      Health check
// @Description  Pings each configured dependency
// @Tags         system
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      503  {object}  response.Response
// @Router       /health [get]
func Health(healthUC usecase.HealthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, ok := healthUC.Check(c.Request.Context())
		if !ok {
			response.Error(c, http.StatusServiceUnavailable, "System degraded", status)
			return
		}
		response.Success(c, http.StatusOK, "System operational", status)
	}
}
