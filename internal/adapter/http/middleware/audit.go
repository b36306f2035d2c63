package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// AdminPathPrefix is the route group guarded by JWTAuth.
const AdminPathPrefix = "/api/v1/admin"

// AuditLog records refused back-office requests. Successful admin actions
// are audited by the order service itself.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status != http.StatusUnauthorized && status != http.StatusForbidden {
			return
		}
		if !strings.HasPrefix(c.Request.URL.Path, AdminPathPrefix) {
			return
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			Actor:        Actor(c),
			Action:       domain.AuditActionAdminDenied,
			ResourceType: "admin_route",
			ResourceID:   c.FullPath(),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
		})
	}
}
