package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibechecc/backend/internal/database"
	"github.com/vibechecc/backend/internal/models"
)

// RequireAdmin ensures the authenticated user has admin privileges. It
// expects an earlier auth middleware to have set "user_id" on the context
// and re-reads the user so a revoked flag takes effect immediately.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDVal, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		userID, ok := userIDVal.(string)
		if !ok || userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_user_context"})
			c.Abort()
			return
		}

		var user models.User
		if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user_not_found"})
			c.Abort()
			return
		}

		if !user.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin_access_required"})
			c.Abort()
			return
		}

		c.Next()
	}
}
