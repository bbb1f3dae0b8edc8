package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"recruiting-pipeline/internal/delivery/http/response"
	"recruiting-pipeline/internal/domain"
)

// KeyFunc resolves RS256 signing keys. *auth.Provider satisfies it.
type KeyFunc func(token *jwt.Token) (interface{}, error)

// AuthMiddleware verifies the identity service's access token and loads the
// caller's profile. HS256 tokens are checked against jwtSecret, RS256 tokens
// against keys (nil disables RS256).
func AuthMiddleware(jwtSecret string, keys KeyFunc, authUC domain.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Bearer header first, cookie second
		tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if tokenString == "" {
			if cookie, err := c.Cookie("auth_token"); err == nil {
				tokenString = cookie
			}
		}
		if tokenString == "" {
			response.Error(c, http.StatusUnauthorized, "Authorization header or auth_token cookie required", nil)
			c.Abort()
			return
		}

		// 2. Verify
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			switch token.Method.(type) {
			case *jwt.SigningMethodHMAC:
				if jwtSecret == "" {
					return nil, fmt.Errorf("HS256 token received but no JWT secret is configured")
				}
				return []byte(jwtSecret), nil
			case *jwt.SigningMethodRSA:
				if keys == nil {
					return nil, fmt.Errorf("RS256 token received but no JWKS is configured")
				}
				return keys(token)
			}
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		})
		if err != nil || !token.Valid {
			response.Error(c, http.StatusUnauthorized, "Invalid token", nil)
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.Error(c, http.StatusUnauthorized, "Invalid claims", nil)
			c.Abort()
			return
		}
		sub, _ := claims["sub"].(string)

		// 3. The role comes from our profile document, not the token
		user, err := authUC.GetCurrentUser(c.Request.Context(), sub)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "User not found", nil)
			c.Abort()
			return
		}

		c.Set(string(domain.KeyUserID), user.ID)
		c.Set(string(domain.KeyUserEmail), user.Email)
		c.Set(string(domain.KeyUserRole), user.Role)
		c.Set(string(domain.KeyUserName), user.FullName)
		c.Set(string(domain.KeyCompanyID), user.CompanyID)
		c.Next()
	}
}

// RequireRecruiter admits company admins and recruiters only.
func RequireRecruiter() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !domain.IsRecruiterRole(c.GetString(string(domain.KeyUserRole))) {
			response.Error(c, http.StatusForbidden, "Only company recruiters can manage applications", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
