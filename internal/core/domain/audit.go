package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionOrderCreate      AuditAction = "ORDER_CREATE"
	AuditActionPaymentCreate    AuditAction = "PAYMENT_CREATE"
	AuditActionAdminConfirm     AuditAction = "ADMIN_CONFIRM"
	AuditActionAdminComplete    AuditAction = "ADMIN_COMPLETE"
	AuditActionAdminCancel      AuditAction = "ADMIN_CANCEL"
	AuditActionAdminRefund      AuditAction = "ADMIN_REFUND"
	AuditActionCallbackRejected AuditAction = "CALLBACK_REJECTED"
	AuditActionAdminDenied      AuditAction = "ADMIN_DENIED"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Actor        string      `json:"actor,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
