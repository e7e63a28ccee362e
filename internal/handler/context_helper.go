package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/muni-digital/turnos-api/internal/middleware"
	"github.com/muni-digital/turnos-api/internal/models"
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

// actorID returns the authenticated employee id, or "" for anonymous kiosk
// requests on routes using OptionalJWT.
func actorID(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil {
		return ""
	}
	return claims.EmployeeID
}
