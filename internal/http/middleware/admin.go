package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminKey guards the cross-tenant administrative surface. It never accepts
// per-tenant session tokens; the only credential is the operator key checked
// against a bcrypt hash. An unconfigured hash disables the surface entirely.
func AdminKey(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyHash == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":             "not_found",
				"error_description": "Not found.",
			})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key == "" || bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "admin_unauthorized",
				"error_description": "Valid admin key required.",
			})
			return
		}
		c.Next()
	}
}
