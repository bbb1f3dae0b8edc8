package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"recruiting-pipeline/internal/delivery/http/response"
)

// EnrichmentSecretHeader authenticates the enrichment service's HTTP callbacks.
const EnrichmentSecretHeader = "X-Enrichment-Secret"

// SharedSecret rejects requests whose header does not match secret. An empty
// secret disables the route.
func SharedSecret(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.Error(c, http.StatusServiceUnavailable, "Callback endpoint is not configured", nil)
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader(header)), []byte(secret)) != 1 {
			response.Error(c, http.StatusUnauthorized, "Invalid callback secret", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
