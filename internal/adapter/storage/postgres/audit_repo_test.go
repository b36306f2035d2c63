package postgres

import (
	"context"
	"testing"

	"storefront-payments/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepository(mock)
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		Actor:        "admin@shop",
		Action:       domain.AuditActionAdminRefund,
		ResourceType: "order",
		ResourceID:   "ORD1",
		Details:      `{"note":"returned"}`,
		IPAddress:    "10.0.0.1",
		CreatedAt:    testNow,
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.Actor, "ADMIN_REFUND", "order", "ORD1", entry.Details, entry.IPAddress, testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}
