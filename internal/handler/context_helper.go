package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/middleware"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
)

// claimsFromContext extracts the authenticated user's claims, or nil when the
// route ran without the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
