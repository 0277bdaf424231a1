package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/planfab/planfab-api/internal/middleware"
	"github.com/planfab/planfab-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
