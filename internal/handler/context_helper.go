package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

func requestedBy(c *gin.Context) string {
	if claims, ok := middleware.CurrentUser(c); ok {
		return claims.UserID
	}
	return ""
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}
