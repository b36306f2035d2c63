package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `order_number, customer, items, subtotal, shipping_fee, tax, discount, total,
		payment_method, status, payment_status, payment_info, inventory_applied_at, notes, created_at, updated_at`

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

var _ ports.OrderRepository = (*OrderRepo)(nil)

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// Create inserts a new order and its initial history within a database transaction.
func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	customer, items, info, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = tx.Exec(ctx, query,
		o.OrderNumber, customer, items, o.Subtotal, o.ShippingFee, o.Tax, o.Discount, o.Total,
		o.PaymentMethod, o.Status, o.PaymentStatus, info, o.InventoryAppliedAt, o.Notes,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, e := range o.StatusHistory {
		if err := r.AppendStatusHistory(ctx, tx, o.OrderNumber, e); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether an order number is taken.
func (r *OrderRepo) Exists(ctx context.Context, orderNumber string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)`, orderNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order exists: %w", err)
	}
	return exists, nil
}

// GetByOrderNumber fetches an order with its status history.
func (r *OrderRepo) GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	return r.getOrder(ctx, r.pool, query, orderNumber)
}

// GetByOrderNumberForUpdate fetches and row-locks an order (SELECT ... FOR UPDATE).
func (r *OrderRepo) GetByOrderNumberForUpdate(ctx context.Context, tx pgx.Tx, orderNumber string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1 FOR UPDATE`
	return r.getOrder(ctx, tx, query, orderNumber)
}

func (r *OrderRepo) getOrder(ctx context.Context, q querier, query, orderNumber string) (*domain.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, query, orderNumber))
	if err != nil || o == nil {
		return nil, err
	}

	history, err := r.loadHistory(ctx, q, orderNumber)
	if err != nil {
		return nil, err
	}
	o.StatusHistory = history
	return o, nil
}

func (r *OrderRepo) loadHistory(ctx context.Context, q querier, orderNumber string) ([]domain.StatusHistoryEntry, error) {
	rows, err := q.Query(ctx,
		`SELECT status, note, updated_by, updated_at FROM order_status_history
		 WHERE order_number = $1 ORDER BY id`, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	var history []domain.StatusHistoryEntry
	for rows.Next() {
		var e domain.StatusHistoryEntry
		if err := rows.Scan(&e.Status, &e.Note, &e.UpdatedBy, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan status history row: %w", err)
		}
		history = append(history, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history rows: %w", err)
	}
	return history, nil
}

// Save persists the mutable part of an order: statuses and payment info.
func (r *OrderRepo) Save(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	info, err := json.Marshal(o.PaymentInfo)
	if err != nil {
		return fmt.Errorf("marshal payment info: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status = $1, payment_status = $2, payment_info = $3, updated_at = $4
		 WHERE order_number = $5`,
		o.Status, o.PaymentStatus, info, o.UpdatedAt, o.OrderNumber,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", o.OrderNumber)
	}
	return nil
}

// AppendStatusHistory adds one history entry.
func (r *OrderRepo) AppendStatusHistory(ctx context.Context, tx pgx.Tx, orderNumber string, e domain.StatusHistoryEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO order_status_history (order_number, status, note, updated_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		orderNumber, e.Status, e.Note, e.UpdatedBy, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

// ClaimInventory sets inventory_applied_at if it is still NULL.
func (r *OrderRepo) ClaimInventory(ctx context.Context, tx pgx.Tx, orderNumber string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE orders SET inventory_applied_at = $1
		 WHERE order_number = $2 AND inventory_applied_at IS NULL`,
		at, orderNumber,
	)
	if err != nil {
		return false, fmt.Errorf("claim inventory: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List fetches orders with filtering and pagination, newest first.
// Listed orders carry no status history.
func (r *OrderRepo) List(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.PaymentStatus != nil {
		conditions = append(conditions, fmt.Sprintf("payment_status = $%d", argIdx))
		args = append(args, *params.PaymentStatus)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total
	var total int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM orders %s", where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, total, nil
}

// scanOrder scans one orders row. It returns nil, nil when there is no row.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                      domain.Order
		customer, items, info []byte
	)
	err := row.Scan(
		&o.OrderNumber, &customer, &items, &o.Subtotal, &o.ShippingFee, &o.Tax, &o.Discount, &o.Total,
		&o.PaymentMethod, &o.Status, &o.PaymentStatus, &info, &o.InventoryAppliedAt, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, fmt.Errorf("decode customer: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if len(info) > 0 {
		if err := json.Unmarshal(info, &o.PaymentInfo); err != nil {
			return nil, fmt.Errorf("decode payment info: %w", err)
		}
	}
	return &o, nil
}

func marshalOrderDocs(o *domain.Order) (customer, items, info []byte, err error) {
	if customer, err = json.Marshal(o.Customer); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal customer: %w", err)
	}
	if items, err = json.Marshal(o.Items); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal items: %w", err)
	}
	if info, err = json.Marshal(o.PaymentInfo); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal payment info: %w", err)
	}
	return customer, items, info, nil
}
