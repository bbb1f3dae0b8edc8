package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/v1/applications/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.CollectAndCount(HTTPRequestDuration)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/applications/abc", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	// one series per route template, plus one for unmatched
	assert.Equal(t, before+2, testutil.CollectAndCount(HTTPRequestDuration))
}

func TestCounters(t *testing.T) {
	SubmissionsTotal.WithLabelValues("candidate_signup", "success").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(SubmissionsTotal.WithLabelValues("candidate_signup", "success")))
}
