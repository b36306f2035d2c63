// Package memory is a process-local storage driver. It backs the "memory"
// database driver and the end-to-end tests. Row locks taken through
// GetByOrderNumberForUpdate are held until the transaction ends, like
// SELECT ... FOR UPDATE.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

// Store holds orders, products and audit entries.
type Store struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	products map[string]*domain.Product
	audit    []domain.AuditLog
	rowLocks map[string]chan struct{}
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		orders:   make(map[string]*domain.Order),
		products: make(map[string]*domain.Product),
		rowLocks: make(map[string]chan struct{}),
	}
}

// SeedProducts inserts or replaces catalog entries.
func (s *Store) SeedProducts(products ...domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		p := p
		s.products[p.ProductID] = &p
	}
}

// Product returns a copy of a catalog entry.
func (s *Store) Product(productID string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return domain.Product{}, false
	}
	return *p, true
}

// AuditEntries returns a copy of every recorded audit entry.
func (s *Store) AuditEntries() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.audit)
}

func (s *Store) rowLock(orderNumber string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[orderNumber]
	if !ok {
		l = make(chan struct{}, 1)
		s.rowLocks[orderNumber] = l
	}
	return l
}

// Orders returns the order repository view of the store.
func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }

// Products returns the product repository view of the store.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

// Audit returns the audit repository view of the store.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

// Transactor returns a DBTransactor whose transactions hold row locks.
func (s *Store) Transactor() *Transactor { return &Transactor{s: s} }

// --- Orders ---

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	s *Store
}

var _ ports.OrderRepository = (*OrderRepo)(nil)

func (r *OrderRepo) Create(_ context.Context, dbTx pgx.Tx, o *domain.Order) error {
	t, err := asTx(dbTx)
	if err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[o.OrderNumber]; ok {
		return fmt.Errorf("order %s already exists", o.OrderNumber)
	}
	r.s.orders[o.OrderNumber] = cloneOrder(o)
	t.onRollback(func() { delete(r.s.orders, o.OrderNumber) })
	return nil
}

func (r *OrderRepo) Exists(_ context.Context, orderNumber string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.orders[orderNumber]
	return ok, nil
}

func (r *OrderRepo) GetByOrderNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[orderNumber]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

// GetByOrderNumberForUpdate blocks until the row lock is free or ctx ends.
func (r *OrderRepo) GetByOrderNumberForUpdate(ctx context.Context, dbTx pgx.Tx, orderNumber string) (*domain.Order, error) {
	t, err := asTx(dbTx)
	if err != nil {
		return nil, err
	}
	if err := t.lockRow(ctx, orderNumber); err != nil {
		return nil, err
	}
	return r.GetByOrderNumber(ctx, orderNumber)
}

func (r *OrderRepo) Save(_ context.Context, dbTx pgx.Tx, o *domain.Order) error {
	t, err := asTx(dbTx)
	if err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.orders[o.OrderNumber]
	if !ok {
		return fmt.Errorf("order not found: %s", o.OrderNumber)
	}
	prev := *cur
	cur.Status = o.Status
	cur.PaymentStatus = o.PaymentStatus
	cur.PaymentInfo = domain.PaymentInfo{}.Merge(o.PaymentInfo)
	cur.UpdatedAt = o.UpdatedAt
	t.onRollback(func() {
		cur.Status, cur.PaymentStatus, cur.PaymentInfo, cur.UpdatedAt =
			prev.Status, prev.PaymentStatus, prev.PaymentInfo, prev.UpdatedAt
	})
	return nil
}

func (r *OrderRepo) AppendStatusHistory(_ context.Context, dbTx pgx.Tx, orderNumber string, e domain.StatusHistoryEntry) error {
	t, err := asTx(dbTx)
	if err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.orders[orderNumber]
	if !ok {
		return fmt.Errorf("order not found: %s", orderNumber)
	}
	n := len(cur.StatusHistory)
	cur.StatusHistory = append(cur.StatusHistory, e)
	t.onRollback(func() { cur.StatusHistory = cur.StatusHistory[:n] })
	return nil
}

func (r *OrderRepo) ClaimInventory(_ context.Context, dbTx pgx.Tx, orderNumber string, at time.Time) (bool, error) {
	t, err := asTx(dbTx)
	if err != nil {
		return false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.orders[orderNumber]
	if !ok || cur.InventoryAppliedAt != nil {
		return false, nil
	}
	cur.InventoryAppliedAt = &at
	t.onRollback(func() { cur.InventoryAppliedAt = nil })
	return true, nil
}

func (r *OrderRepo) List(_ context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []domain.Order
	for _, o := range r.s.orders {
		if params.Status != nil && o.Status != *params.Status {
			continue
		}
		if params.PaymentStatus != nil && o.PaymentStatus != *params.PaymentStatus {
			continue
		}
		c := cloneOrder(o)
		c.StatusHistory = nil
		matched = append(matched, *c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].OrderNumber > matched[j].OrderNumber
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start < 0 || start >= len(matched) {
		return nil, total, nil
	}
	end := min(start+params.PageSize, len(matched))
	return matched[start:end], total, nil
}

// --- Products ---

// ProductRepo implements ports.ProductRepository.
type ProductRepo struct {
	s *Store
}

var _ ports.ProductRepository = (*ProductRepo)(nil)

func (r *ProductRepo) GetByProductID(_ context.Context, productID string) (*domain.Product, error) {
	p, ok := r.s.Product(productID)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *ProductRepo) DecrementStock(_ context.Context, productID string, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok || p.Stock < qty {
		return fmt.Errorf("product %s: %w", productID, ports.ErrInsufficientStock)
	}
	p.Stock -= qty
	if p.Stock == 0 {
		p.Status = domain.ProductStatusOutOfStock
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *ProductRepo) IncrementPurchaseCount(_ context.Context, productID string, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok {
		return fmt.Errorf("product not found: %s", productID)
	}
	p.PurchaseCount += qty
	p.Sold += qty
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Audit ---

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

var _ ports.AuditRepository = (*AuditRepo)(nil)

func (r *AuditRepo) Create(_ context.Context, e *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *e)
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	c.StatusHistory = slices.Clone(o.StatusHistory)
	c.PaymentInfo = domain.PaymentInfo{}.Merge(o.PaymentInfo)
	if o.InventoryAppliedAt != nil {
		at := *o.InventoryAppliedAt
		c.InventoryAppliedAt = &at
	}
	return &c
}
