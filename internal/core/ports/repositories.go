package ports

import (
	"context"
	"time"

	"storefront-payments/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// OrderRepository defines persistence operations for orders.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	Exists(ctx context.Context, orderNumber string) (bool, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	GetByOrderNumberForUpdate(ctx context.Context, tx pgx.Tx, orderNumber string) (*domain.Order, error)
	// Save persists status, payment status and payment info.
	Save(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	AppendStatusHistory(ctx context.Context, tx pgx.Tx, orderNumber string, entry domain.StatusHistoryEntry) error
	// ClaimInventory sets the inventory marker if it is still unset.
	// It returns true only for the caller that set it.
	ClaimInventory(ctx context.Context, tx pgx.Tx, orderNumber string, at time.Time) (bool, error)
	List(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
}

// OrderListParams holds filter + pagination for listing orders.
type OrderListParams struct {
	Status        *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
	Page          int
	PageSize      int
}

// ProductRepository is the catalog collaborator. Each stock mutation is
// individually atomic.
type ProductRepository interface {
	GetByProductID(ctx context.Context, productID string) (*domain.Product, error)
	// DecrementStock removes qty units only if that many are available.
	DecrementStock(ctx context.Context, productID string, qty int) error
	IncrementPurchaseCount(ctx context.Context, productID string, qty int) error
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
