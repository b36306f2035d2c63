package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 18, 9, 30, 0, 0, time.UTC)

func seedOrder(t *testing.T, s *Store, orderNumber string) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder(domain.NewOrderParams{
		OrderNumber:   orderNumber,
		Items:         []domain.OrderItem{{ProductID: "P1", Quantity: 2, UnitPrice: 15000}},
		PaymentMethod: domain.PaymentMethodMoMo,
		Now:           testNow,
	})
	require.NoError(t, err)

	ctx := context.Background()
	dbTx, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Orders().Create(ctx, dbTx, o))
	require.NoError(t, dbTx.Commit(ctx))
	return o
}

func TestOrderRepo_CreateAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedOrder(t, s, "ORD1")

	exists, err := s.Orders().Exists(ctx, "ORD1")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.Orders().GetByOrderNumber(ctx, "ORD1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(30000), got.Total)
	assert.Len(t, got.StatusHistory, 1)

	missing, err := s.Orders().GetByOrderNumber(ctx, "ORD404")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepo_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedOrder(t, s, "ORD1")

	got, err := s.Orders().GetByOrderNumber(ctx, "ORD1")
	require.NoError(t, err)
	got.Status = domain.OrderStatusCompleted
	got.Items[0].Quantity = 99

	again, err := s.Orders().GetByOrderNumber(ctx, "ORD1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, again.Status)
	assert.Equal(t, 2, again.Items[0].Quantity)
}

func TestOrderRepo_RollbackUndoesWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedOrder(t, s, "ORD1")
	repo := s.Orders()

	dbTx, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)

	o, err := repo.GetByOrderNumberForUpdate(ctx, dbTx, "ORD1")
	require.NoError(t, err)
	entry, err := o.Transition(domain.OrderStatusCompleted, domain.ActorSystem, "momo-ipn", "paid", testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, dbTx, o))
	require.NoError(t, repo.AppendStatusHistory(ctx, dbTx, "ORD1", entry))
	claimed, err := repo.ClaimInventory(ctx, dbTx, "ORD1", testNow)
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, dbTx.Rollback(ctx))

	got, err := repo.GetByOrderNumber(ctx, "ORD1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, domain.PaymentStatusPending, got.PaymentStatus)
	assert.Len(t, got.StatusHistory, 1)
	assert.Nil(t, got.InventoryAppliedAt)
}

func TestOrderRepo_ClaimInventoryOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedOrder(t, s, "ORD1")

	claim := func() bool {
		dbTx, err := s.Transactor().Begin(ctx)
		require.NoError(t, err)
		defer dbTx.Rollback(ctx) //nolint:errcheck
		ok, err := s.Orders().ClaimInventory(ctx, dbTx, "ORD1", testNow)
		require.NoError(t, err)
		require.NoError(t, dbTx.Commit(ctx))
		return ok
	}

	assert.True(t, claim())
	assert.False(t, claim())
}

func TestOrderRepo_RowLockSerializes(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedOrder(t, s, "ORD1")

	first, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	_, err = s.Orders().GetByOrderNumberForUpdate(ctx, first, "ORD1")
	require.NoError(t, err)

	second, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	defer second.Rollback(ctx) //nolint:errcheck

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.Orders().GetByOrderNumberForUpdate(waitCtx, second, "ORD1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Other rows are not blocked.
	seedOrder(t, s, "ORD2")
	_, err = s.Orders().GetByOrderNumberForUpdate(ctx, second, "ORD2")
	assert.NoError(t, err)

	require.NoError(t, first.Commit(ctx))
	_, err = s.Orders().GetByOrderNumberForUpdate(ctx, second, "ORD1")
	assert.NoError(t, err)
}

func TestOrderRepo_ConcurrentTransitionsApplyOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedOrder(t, s, "ORD1")
	repo := s.Orders()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dbTx, err := s.Transactor().Begin(ctx)
			if !assert.NoError(t, err) {
				return
			}
			defer dbTx.Rollback(ctx) //nolint:errcheck

			o, err := repo.GetByOrderNumberForUpdate(ctx, dbTx, "ORD1")
			if !assert.NoError(t, err) || o.Status == domain.OrderStatusCompleted {
				return
			}
			entry, err := o.Transition(domain.OrderStatusCompleted, domain.ActorSystem, "momo-ipn", "paid", testNow)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, repo.Save(ctx, dbTx, o))
			assert.NoError(t, repo.AppendStatusHistory(ctx, dbTx, "ORD1", entry))
			assert.NoError(t, dbTx.Commit(ctx))

			mu.Lock()
			applied++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	got, err := repo.GetByOrderNumber(ctx, "ORD1")
	require.NoError(t, err)
	assert.Len(t, got.StatusHistory, 2)
}

func TestOrderRepo_List(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, n := range []string{"ORD1", "ORD2", "ORD3"} {
		seedOrder(t, s, n)
	}

	orders, total, err := s.Orders().List(ctx, ports.OrderListParams{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, orders, 2)
	assert.Equal(t, "ORD3", orders[0].OrderNumber)
	assert.Nil(t, orders[0].StatusHistory)

	completed := domain.OrderStatusCompleted
	orders, total, err = s.Orders().List(ctx, ports.OrderListParams{Status: &completed, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)

	orders, _, err = s.Orders().List(ctx, ports.OrderListParams{Page: 5, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderRepo_ForeignTx(t *testing.T) {
	s := New()
	var foreign pgx.Tx
	err := s.Orders().Create(context.Background(), foreign, &domain.Order{OrderNumber: "ORD1"})
	assert.ErrorIs(t, err, errForeignTx)
}

func TestTx_CommitThenRollback(t *testing.T) {
	s := New()
	ctx := context.Background()

	dbTx, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, dbTx.Commit(ctx))
	assert.NoError(t, dbTx.Rollback(ctx))
	assert.ErrorIs(t, dbTx.Commit(ctx), pgx.ErrTxClosed)
}

func TestProductRepo_Stock(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.SeedProducts(domain.Product{ProductID: "P1", Price: 15000, Stock: 3, Status: domain.ProductStatusActive})
	repo := s.Products()

	require.NoError(t, repo.DecrementStock(ctx, "P1", 2))
	assert.ErrorIs(t, repo.DecrementStock(ctx, "P1", 2), ports.ErrInsufficientStock)
	require.NoError(t, repo.DecrementStock(ctx, "P1", 1))
	require.NoError(t, repo.IncrementPurchaseCount(ctx, "P1", 3))

	p, err := repo.GetByProductID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, domain.ProductStatusOutOfStock, p.Status)
	assert.Equal(t, 3, p.PurchaseCount)
	assert.Equal(t, 3, p.Sold)

	assert.ErrorIs(t, repo.DecrementStock(ctx, "P404", 1), ports.ErrInsufficientStock)
	assert.Error(t, repo.IncrementPurchaseCount(ctx, "P404", 1))

	missing, err := repo.GetByProductID(ctx, "P404")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAuditRepo_Create(t *testing.T) {
	s := New()
	require.NoError(t, s.Audit().Create(context.Background(), &domain.AuditLog{Action: domain.AuditActionOrderCreate}))
	entries := s.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditActionOrderCreate, entries[0].Action)
}
