package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-payments/config"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"
	"storefront-payments/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	callbackDedupeTTL = 24 * time.Hour

	updatedByIPN    = "momo-ipn"
	updatedBySystem = "system"
)

// OrderReconcilerImpl implements ports.OrderReconciler.
//
// Every mutation of one order runs under a Redis lease (cross-instance,
// best-effort) and inside a DB transaction holding the row lock. Stock is
// adjusted after commit, at most once per order, guarded by the persisted
// inventory marker.
type OrderReconcilerImpl struct {
	orderRepo   ports.OrderRepository
	productRepo ports.ProductRepository
	transactor  ports.DBTransactor
	locker      ports.OrderLocker
	cache       ports.CallbackCache
	lockTTL     time.Duration
	lockWait    time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

var _ ports.OrderReconciler = (*OrderReconcilerImpl)(nil)

// NewOrderReconciler creates a new OrderReconcilerImpl. locker and cache may
// be nil, in which case only the database row lock serializes callers.
func NewOrderReconciler(
	orderRepo ports.OrderRepository,
	productRepo ports.ProductRepository,
	transactor ports.DBTransactor,
	locker ports.OrderLocker,
	cache ports.CallbackCache,
	lockCfg config.LockConfig,
	log zerolog.Logger,
) *OrderReconcilerImpl {
	return &OrderReconcilerImpl{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		transactor:  transactor,
		locker:      locker,
		cache:       cache,
		lockTTL:     lockCfg.TTL,
		lockWait:    lockCfg.WaitTimeout,
		now:         time.Now,
		log:         logger.Component(log, "reconciler"),
	}
}

// mutation describes one locked state change.
type mutation struct {
	target domain.OrderStatus
	actor  domain.Actor
	by     string
	note   string
	patch  func(at time.Time) domain.PaymentInfo
	// check runs against the locked order before anything changes.
	check func(order *domain.Order) error
	// mergeOnNoop merges the patch even when the order already has target status.
	mergeOnNoop bool
}

// ApplyCallback applies a verified gateway outcome to an order.
func (r *OrderReconcilerImpl) ApplyCallback(ctx context.Context, orderNumber string, result *domain.CallbackResult) (*domain.Order, error) {
	if result == nil || !result.IsValidSignature {
		return nil, apperror.ErrInvalidSignature()
	}

	key := result.DedupeKey()
	if r.cache != nil {
		seen, err := r.cache.Seen(ctx, key)
		if err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("callback cache check failed, falling through to locked path")
		}
		if seen {
			order, err := r.orderRepo.GetByOrderNumber(ctx, orderNumber)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
			}
			if order == nil {
				return nil, apperror.ErrOrderNotFound(orderNumber)
			}
			r.log.Debug().Str("order_number", orderNumber).Str("key", key).Msg("duplicate callback, already applied")
			return order, nil
		}
	}

	m := mutation{
		target: domain.OrderStatusFailed,
		actor:  domain.ActorSystem,
		by:     updatedByIPN,
		note:   fmt.Sprintf("MoMo payment failed: %s", result.Message),
		patch:  result.PaymentPatch,
	}
	if result.IsSuccess {
		m.target = domain.OrderStatusCompleted
		m.note = fmt.Sprintf("MoMo payment confirmed (transId %s)", result.TransactionID)
		m.check = func(order *domain.Order) error {
			if result.Amount != order.Total {
				return apperror.ErrAmountMismatch(order.Total, result.Amount)
			}
			return nil
		}
	}

	order, err := r.apply(ctx, orderNumber, m)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Remember(ctx, key, callbackDedupeTTL); err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("failed to remember applied callback")
		}
	}

	r.log.Info().
		Str("order_number", orderNumber).
		Str("status", string(order.Status)).
		Int("result_code", int(result.ResultCode)).
		Msg("callback applied")
	return order, nil
}

// AdminTransition applies a back-office status change. It follows the same
// state table as callbacks, with the admin-only edges enabled.
func (r *OrderReconcilerImpl) AdminTransition(ctx context.Context, orderNumber string, target domain.OrderStatus, actor, note string) (*domain.Order, error) {
	if !target.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown order status %q", target))
	}

	order, err := r.apply(ctx, orderNumber, mutation{
		target: target,
		actor:  domain.ActorAdmin,
		by:     actor,
		note:   note,
		patch: func(at time.Time) domain.PaymentInfo {
			return adminPatch(target, actor, note, at)
		},
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("order_number", orderNumber).
		Str("status", string(order.Status)).
		Str("actor", actor).
		Msg("admin transition applied")
	return order, nil
}

// MarkPaymentCreated records a freshly created payment link and moves a
// pending order to processing. An order already processing only gets the
// payment info merged.
func (r *OrderReconcilerImpl) MarkPaymentCreated(ctx context.Context, orderNumber string, info domain.PaymentInfo) (*domain.Order, error) {
	return r.apply(ctx, orderNumber, mutation{
		target:      domain.OrderStatusProcessing,
		actor:       domain.ActorSystem,
		by:          updatedBySystem,
		note:        "Payment link created",
		patch:       func(time.Time) domain.PaymentInfo { return info },
		mergeOnNoop: true,
	})
}

func adminPatch(target domain.OrderStatus, actor, note string, at time.Time) domain.PaymentInfo {
	var p domain.PaymentInfo
	switch target {
	case domain.OrderStatusConfirmed:
		p.ConfirmedAt, p.ConfirmedBy = &at, actor
	case domain.OrderStatusCompleted:
		p.CompletedAt, p.CompletedBy = &at, actor
	case domain.OrderStatusCancelled:
		p.CancelledAt, p.CancelledBy, p.CancelReason = &at, actor, note
	case domain.OrderStatusRefunded:
		p.RefundedAt, p.RefundedBy = &at, actor
	}
	if target != domain.OrderStatusCancelled {
		p.Note = note
	}
	return p
}

func (r *OrderReconcilerImpl) apply(ctx context.Context, orderNumber string, m mutation) (*domain.Order, error) {
	release, err := r.lock(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	defer release()

	dbTx, err := r.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := r.orderRepo.GetByOrderNumberForUpdate(ctx, dbTx, orderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrOrderNotFound(orderNumber)
	}

	if m.check != nil {
		if err := m.check(order); err != nil {
			return nil, err
		}
	}

	now := r.now().UTC()

	if order.Status == m.target {
		if !m.mergeOnNoop {
			return order, nil
		}
		order.PaymentInfo = order.PaymentInfo.Merge(m.patch(now))
		order.UpdatedAt = now
		if err := r.orderRepo.Save(ctx, dbTx, order); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save order: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		return order, nil
	}

	from := order.Status
	entry, err := order.Transition(m.target, m.actor, m.by, m.note, now)
	if err != nil {
		if errors.Is(err, domain.ErrTransitionDenied) {
			return nil, apperror.ErrInvalidTransition(string(from), string(m.target))
		}
		return nil, apperror.InternalError(err)
	}
	order.PaymentInfo = order.PaymentInfo.Merge(m.patch(now))

	if err := r.orderRepo.Save(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save order: %w", err))
	}
	if err := r.orderRepo.AppendStatusHistory(ctx, dbTx, orderNumber, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append status history: %w", err))
	}

	claimed := false
	if domain.AppliesInventory(m.target) && !order.InventoryApplied() {
		claimed, err = r.orderRepo.ClaimInventory(ctx, dbTx, orderNumber, now)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("claim inventory: %w", err))
		}
		if claimed {
			order.InventoryAppliedAt = &now
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	r.log.Info().
		Str("order_number", orderNumber).
		Str("from", string(from)).
		Str("to", string(m.target)).
		Str("updated_by", m.by).
		Msg("order status changed")

	if claimed {
		r.applyInventory(context.WithoutCancel(ctx), order)
	}
	return order, nil
}

// applyInventory adjusts stock and purchase counts for every line. Failures
// are logged and skipped; the committed status change stands.
func (r *OrderReconcilerImpl) applyInventory(ctx context.Context, order *domain.Order) {
	for _, it := range order.Items {
		if err := r.productRepo.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			r.log.Error().Err(err).
				Str("order_number", order.OrderNumber).
				Str("product_id", it.ProductID).
				Int("quantity", it.Quantity).
				Msg("stock decrement failed, needs manual reconciliation")
		}
		if err := r.productRepo.IncrementPurchaseCount(ctx, it.ProductID, it.Quantity); err != nil {
			r.log.Error().Err(err).
				Str("order_number", order.OrderNumber).
				Str("product_id", it.ProductID).
				Msg("purchase count update failed")
		}
	}
}

// lock takes the per-order lease. A Redis failure degrades to the row lock
// alone; only a lease held elsewhere past the wait budget is an error.
func (r *OrderReconcilerImpl) lock(ctx context.Context, orderNumber string) (func(), error) {
	noop := func() {}
	if r.locker == nil {
		return noop, nil
	}

	waitCtx := ctx
	if r.lockWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.lockWait)
		defer cancel()
	}

	token, err := r.locker.Acquire(waitCtx, orderNumber, r.lockTTL)
	if errors.Is(err, ports.ErrLockNotAcquired) {
		r.log.Warn().Str("order_number", orderNumber).Msg("order lock wait timed out")
		return nil, apperror.ErrLockTimeout(err)
	}
	if err != nil {
		r.log.Warn().Err(err).Str("order_number", orderNumber).Msg("order lock unavailable, relying on row lock")
		return noop, nil
	}

	return func() {
		if err := r.locker.Release(context.WithoutCancel(ctx), orderNumber, token); err != nil {
			r.log.Warn().Err(err).Str("order_number", orderNumber).Msg("failed to release order lock")
		}
	}, nil
}
