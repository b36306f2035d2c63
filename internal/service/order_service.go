package service

import (
	"context"
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
	orderNumberAttempts = 5
	defaultPageSize     = 20
	maxPageSize         = 100
)

// OrderServiceImpl implements ports.OrderService.
type OrderServiceImpl struct {
	orderRepo   ports.OrderRepository
	productRepo ports.ProductRepository
	transactor  ports.DBTransactor
	reconciler  ports.OrderReconciler
	auditSvc    ports.AuditService
	checkout    config.CheckoutConfig
	now         func() time.Time
	log         zerolog.Logger
}

var _ ports.OrderService = (*OrderServiceImpl)(nil)

// NewOrderService creates a new OrderServiceImpl.
func NewOrderService(
	orderRepo ports.OrderRepository,
	productRepo ports.ProductRepository,
	transactor ports.DBTransactor,
	reconciler ports.OrderReconciler,
	auditSvc ports.AuditService,
	checkout config.CheckoutConfig,
	log zerolog.Logger,
) *OrderServiceImpl {
	return &OrderServiceImpl{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		transactor:  transactor,
		reconciler:  reconciler,
		auditSvc:    auditSvc,
		checkout:    checkout,
		now:         time.Now,
		log:         logger.Component(log, "orders"),
	}
}

// CreateOrder snapshots product prices into a new pending order.
// Stock is only checked here; it is consumed when the order is paid or confirmed.
func (s *OrderServiceImpl) CreateOrder(ctx context.Context, in ports.CreateOrderInput) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, apperror.Validation("order must contain at least one item")
	}
	if !paymentMethodEnabled(in.PaymentMethod) {
		return nil, apperror.Validation(fmt.Sprintf("payment method %q is not available", in.PaymentMethod))
	}

	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, line := range in.Items {
		if line.Quantity <= 0 {
			return nil, apperror.Validation(fmt.Sprintf("quantity for %s must be positive", line.ProductID))
		}
		product, err := s.productRepo.GetByProductID(ctx, line.ProductID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get product %s: %w", line.ProductID, err))
		}
		if product == nil {
			return nil, apperror.ErrNotFound("product " + line.ProductID)
		}
		if !product.CanFulfil(line.Quantity) {
			return nil, apperror.ErrInsufficientStock(line.ProductID)
		}
		items = append(items, domain.OrderItem{
			ProductID: product.ProductID,
			Title:     product.Title,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		})
	}

	now := s.now().UTC()
	orderNumber, err := s.newOrderNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	order, err := domain.NewOrder(domain.NewOrderParams{
		OrderNumber:   orderNumber,
		Customer:      in.Customer,
		Items:         items,
		ShippingFee:   s.checkout.ShippingFee,
		Discount:      in.Discount,
		PaymentMethod: in.PaymentMethod,
		Notes:         in.Notes,
		Now:           now,
	})
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.orderRepo.Create(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create order: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		Actor:        "customer",
		Action:       domain.AuditActionOrderCreate,
		ResourceType: "order",
		ResourceID:   order.OrderNumber,
		Details:      auditDetails(map[string]any{"total": order.Total, "items": len(order.Items)}),
	})

	s.log.Info().
		Str("order_number", order.OrderNumber).
		Int64("total", order.Total).
		Str("payment_method", order.PaymentMethod).
		Msg("order created")
	return order, nil
}

func (s *OrderServiceImpl) newOrderNumber(ctx context.Context, now time.Time) (string, error) {
	for range orderNumberAttempts {
		n := domain.NewOrderNumber(now)
		exists, err := s.orderRepo.Exists(ctx, n)
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("check order number: %w", err))
		}
		if !exists {
			return n, nil
		}
	}
	return "", apperror.InternalError(fmt.Errorf("no free order number after %d attempts", orderNumberAttempts))
}

func paymentMethodEnabled(method string) bool {
	for _, m := range domain.PaymentMethods() {
		if m.ID == method {
			return m.Enabled
		}
	}
	return false
}

// GetOrder returns one order by its number.
func (s *OrderServiceImpl) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrOrderNotFound(orderNumber)
	}
	return order, nil
}

// ListOrders returns a page of orders, newest first.
func (s *OrderServiceImpl) ListOrders(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	orders, total, err := s.orderRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list orders: %w", err))
	}
	return orders, total, nil
}

// ConfirmOrder marks an order confirmed by an operator.
func (s *OrderServiceImpl) ConfirmOrder(ctx context.Context, orderNumber, actor, note string) (*domain.Order, error) {
	return s.adminAction(ctx, orderNumber, domain.OrderStatusConfirmed, domain.AuditActionAdminConfirm, actor, note)
}

// CompleteOrder marks an order completed by an operator.
func (s *OrderServiceImpl) CompleteOrder(ctx context.Context, orderNumber, actor, note string) (*domain.Order, error) {
	return s.adminAction(ctx, orderNumber, domain.OrderStatusCompleted, domain.AuditActionAdminComplete, actor, note)
}

// CancelOrder cancels an order that has not completed.
func (s *OrderServiceImpl) CancelOrder(ctx context.Context, orderNumber, actor, reason string) (*domain.Order, error) {
	if reason == "" {
		reason = "Cancelled by admin"
	}
	return s.adminAction(ctx, orderNumber, domain.OrderStatusCancelled, domain.AuditActionAdminCancel, actor, reason)
}

// RefundOrder marks a completed order refunded.
func (s *OrderServiceImpl) RefundOrder(ctx context.Context, orderNumber, actor, note string) (*domain.Order, error) {
	return s.adminAction(ctx, orderNumber, domain.OrderStatusRefunded, domain.AuditActionAdminRefund, actor, note)
}

func (s *OrderServiceImpl) adminAction(
	ctx context.Context,
	orderNumber string,
	target domain.OrderStatus,
	action domain.AuditAction,
	actor, note string,
) (*domain.Order, error) {
	if actor == "" {
		return nil, apperror.ErrForbidden()
	}

	order, err := s.reconciler.AdminTransition(ctx, orderNumber, target, actor, note)
	if err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		Actor:        actor,
		Action:       action,
		ResourceType: "order",
		ResourceID:   orderNumber,
		Details:      auditDetails(map[string]any{"status": order.Status, "note": note}),
	})
	return order, nil
}
