package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// Audit writes one structured log line for every successful write request.
func Audit(logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}
		fields := []zap.Field{
			zap.String("action", action),
			zap.String("resource", resource),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		}
		if claims, ok := CurrentUser(c); ok {
			fields = append(fields, zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role)))
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, zap.String("resource_id", id))
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		logger.Info("audit", fields...)
	}
}
