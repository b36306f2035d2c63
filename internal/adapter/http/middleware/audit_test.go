package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_RecordsDeniedAdminRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, log *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionAdminDenied, log.Action)
			assert.Equal(t, "admin_route", log.ResourceType)
			assert.Equal(t, "/api/v1/admin/orders/:orderNumber/refund", log.ResourceID)
			assert.Contains(t, log.Details, `"status":401`)
		},
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.PUT("/api/v1/admin/orders/:orderNumber/refund", func(c *gin.Context) {
		c.AbortWithStatus(http.StatusUnauthorized)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/admin/orders/ORD202605181234/refund", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditLog_SkipsOtherRequests(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"admin success", "/api/v1/admin/orders", http.StatusOK},
		{"admin not found", "/api/v1/admin/orders", http.StatusNotFound},
		{"public unauthorized", "/api/v1/payments", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			// No Log call expected.
			mockAudit := mocks.NewMockAuditService(ctrl)

			r := gin.New()
			r.Use(AuditLog(mockAudit))
			r.GET(tt.path, func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
