package middleware

import (
	"errors"
	"net/http"
	"strings"

	"tasktrack/backend/internal/models"
	"tasktrack/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Context keys set by RequireAuth for downstream handlers.
const (
	ContextUserID = "user_id"
	ContextUser   = "current_user"
)

// RequireAuth is the authentication gate. It extracts the bearer token,
// verifies it, resolves the embedded id to a live user record and attaches
// the identity to the request context. Every failure aborts the request with
// a single 401 response; no handler runs without a verified identity.
func RequireAuth(tokens *services.TokenService, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "missing_token",
				"message": "Authorization header is required",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid_token_format",
				"message": "Authorization header must use Bearer token",
			})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		userID, err := tokens.Parse(tokenStr)
		if err != nil {
			message := "Token is invalid"
			code := "invalid_token"
			if errors.Is(err, services.ErrTokenExpired) {
				message = "Token has expired"
				code = "expired_token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   code,
				"message": message,
			})
			return
		}

		// A signed token can outlive its account; stale tokens for deleted
		// users must not pass the gate.
		var user models.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error":   "user_not_found",
					"message": "User no longer exists",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "server_error",
				"message": "Failed to resolve user",
			})
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)

		c.Next()
	}
}
