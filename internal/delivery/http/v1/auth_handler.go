package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recruiting-pipeline/internal/delivery/http/response"
	"recruiting-pipeline/internal/domain"
)

type AuthHandler struct {
	authUC domain.AuthUsecase
}

// NewAuthHandler registers profile routes. Sign-in itself happens at the identity service.
func NewAuthHandler(protected *gin.RouterGroup, authUC domain.AuthUsecase) {
	handler := &AuthHandler{authUC: authUC}

	protected.GET("/auth/me", handler.Me)
}

// Me godoc
// @Summary      Get current user
// @Description  Returns the profile document paired with the bearer token's account
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=domain.UserAccount}
// @Failure      401  {object}  response.Response
// @Router       /auth/me [get]
// @Security     BearerAuth
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authUC.GetCurrentUser(c.Request.Context(), c.GetString(string(domain.KeyUserID)))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "User details", user)
}
