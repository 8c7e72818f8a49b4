package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// RequireRoles lets the request through only for the listed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireTimetableEditor admits roles allowed to change schedule data.
func RequireTimetableEditor() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
}

// RequireTimetableReader admits staff roles allowed to read schedule data.
func RequireTimetableReader() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher)
}
