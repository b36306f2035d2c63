package service

import (
	"context"
	"errors"
	"testing"

	"storefront-payments/config"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/internal/core/ports/mocks"
	"storefront-payments/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type orderTestDeps struct {
	svc         *OrderServiceImpl
	orderRepo   *mocks.MockOrderRepository
	productRepo *mocks.MockProductRepository
	transactor  *mocks.MockDBTransactor
	reconciler  *mocks.MockOrderReconciler
	auditSvc    *mocks.MockAuditService
	ctrl        *gomock.Controller
}

func setupOrderService(t *testing.T) *orderTestDeps {
	ctrl := gomock.NewController(t)
	d := &orderTestDeps{
		orderRepo:   mocks.NewMockOrderRepository(ctrl),
		productRepo: mocks.NewMockProductRepository(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		reconciler:  mocks.NewMockOrderReconciler(ctrl),
		auditSvc:    mocks.NewMockAuditService(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewOrderService(
		d.orderRepo, d.productRepo, d.transactor, d.reconciler, d.auditSvc,
		config.CheckoutConfig{ShippingFee: 30000},
		newTestLogger(),
	)
	return d
}

func activeProduct(id string, price int64, stock int) *domain.Product {
	return &domain.Product{ProductID: id, Title: "Product " + id, Price: price, Stock: stock, Status: domain.ProductStatusActive}
}

// ==================== CreateOrder ====================

func TestOrderService_CreateOrder_Success(t *testing.T) {
	d := setupOrderService(t)
	defer d.ctrl.Finish()

	d.productRepo.EXPECT().GetByProductID(gomock.Any(), "P1").Return(activeProduct("P1", 15000, 10), nil)
	d.productRepo.EXPECT().GetByProductID(gomock.Any(), "P2").Return(activeProduct("P2", 20000, 1), nil)
	d.orderRepo.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
	d.orderRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, o *domain.Order) error {
			assert.Regexp(t, `^ORD\d{12}$`, o.OrderNumber)
			assert.Len(t, o.StatusHistory, 1)
			return nil
		})
	d.auditSvc.EXPECT().Log(gomock.Any(), gomock.Any())

	order, err := d.svc.CreateOrder(context.Background(), ports.CreateOrderInput{
		Customer: domain.Customer{Name: "An", Email: "an@example.com", Phone: "0900000000", Address: "1 Le Loi"},
		Items: []ports.OrderLineInput{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P2", Quantity: 1},
		},
		PaymentMethod: domain.PaymentMethodMoMo,
		Discount:      5000,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(50000), order.Subtotal)
	assert.Equal(t, int64(30000), order.ShippingFee)
	assert.Equal(t, int64(75000), order.Total)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "Product P1", order.Items[0].Title)
	assert.NoError(t, order.CheckTotals())
}

func TestOrderService_CreateOrder_RetriesTakenNumber(t *testing.T) {
	d := setupOrderService(t)
	defer d.ctrl.Finish()

	d.productRepo.EXPECT().GetByProductID(gomock.Any(), "P1").Return(activeProduct("P1", 15000, 10), nil)
	gomock.InOrder(
		d.orderRepo.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(true, nil),
		d.orderRepo.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil),
	)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
	d.orderRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	d.auditSvc.EXPECT().Log(gomock.Any(), gomock.Any())

	_, err := d.svc.CreateOrder(context.Background(), ports.CreateOrderInput{
		Items:         []ports.OrderLineInput{{ProductID: "P1", Quantity: 1}},
		PaymentMethod: domain.PaymentMethodCOD,
	})
	require.NoError(t, err)
}

func TestOrderService_CreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		in      ports.CreateOrderInput
		product *domain.Product
		code    string
	}{
		{
			name: "no items",
			in:   ports.CreateOrderInput{PaymentMethod: "momo"},
			code: apperror.CodeInvalidAmount,
		},
		{
			name: "disabled payment method",
			in:   ports.CreateOrderInput{Items: []ports.OrderLineInput{{ProductID: "P1", Quantity: 1}}, PaymentMethod: "bank_transfer"},
			code: apperror.CodeInvalidAmount,
		},
		{
			name: "zero quantity",
			in:   ports.CreateOrderInput{Items: []ports.OrderLineInput{{ProductID: "P1", Quantity: 0}}, PaymentMethod: "momo"},
			code: apperror.CodeInvalidAmount,
		},
		{
			name: "unknown product",
			in:   ports.CreateOrderInput{Items: []ports.OrderLineInput{{ProductID: "P1", Quantity: 1}}, PaymentMethod: "momo"},
			code: apperror.CodeNotFound,
		},
		{
			name:    "not enough stock",
			in:      ports.CreateOrderInput{Items: []ports.OrderLineInput{{ProductID: "P1", Quantity: 3}}, PaymentMethod: "momo"},
			product: activeProduct("P1", 1000, 2),
			code:    apperror.CodeInsufficientStock,
		},
		{
			name:    "inactive product",
			in:      ports.CreateOrderInput{Items: []ports.OrderLineInput{{ProductID: "P1", Quantity: 1}}, PaymentMethod: "momo"},
			product: &domain.Product{ProductID: "P1", Price: 1000, Stock: 5, Status: domain.ProductStatusInactive},
			code:    apperror.CodeInsufficientStock,
		},
		{
			name:    "discount larger than order",
			in:      ports.CreateOrderInput{Items: []ports.OrderLineInput{{ProductID: "P1", Quantity: 1}}, PaymentMethod: "momo", Discount: 1_000_000},
			product: activeProduct("P1", 1000, 2),
			code:    apperror.CodeInvalidAmount,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupOrderService(t)
			defer d.ctrl.Finish()

			if len(tt.in.Items) > 0 && tt.in.Items[0].Quantity > 0 && tt.in.PaymentMethod != "bank_transfer" {
				d.productRepo.EXPECT().GetByProductID(gomock.Any(), "P1").Return(tt.product, nil)
			}
			d.orderRepo.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil).AnyTimes()

			_, err := d.svc.CreateOrder(context.Background(), tt.in)
			assertAppError(t, err, tt.code)
		})
	}
}

// ==================== Get / List ====================

func TestOrderService_GetOrder(t *testing.T) {
	d := setupOrderService(t)
	defer d.ctrl.Finish()

	d.orderRepo.EXPECT().GetByOrderNumber(gomock.Any(), "ORD1").Return(pendingOrder(), nil)
	d.orderRepo.EXPECT().GetByOrderNumber(gomock.Any(), "ORD2").Return(nil, nil)
	d.orderRepo.EXPECT().GetByOrderNumber(gomock.Any(), "ORD3").Return(nil, errors.New("boom"))

	got, err := d.svc.GetOrder(context.Background(), "ORD1")
	require.NoError(t, err)
	assert.Equal(t, "ORD1", got.OrderNumber)

	_, err = d.svc.GetOrder(context.Background(), "ORD2")
	assertAppError(t, err, apperror.CodeOrderNotFound)

	_, err = d.svc.GetOrder(context.Background(), "ORD3")
	assertAppError(t, err, apperror.CodeInternal)
}

func TestOrderService_ListOrders_NormalizesPaging(t *testing.T) {
	d := setupOrderService(t)
	defer d.ctrl.Finish()

	status := domain.OrderStatusCompleted
	d.orderRepo.EXPECT().List(gomock.Any(), ports.OrderListParams{Status: &status, Page: 1, PageSize: 100}).
		Return([]domain.Order{*pendingOrder()}, int64(1), nil)

	orders, total, err := d.svc.ListOrders(context.Background(), ports.OrderListParams{Status: &status, Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, int64(1), total)
}

// ==================== Admin actions ====================

func TestOrderService_AdminActions(t *testing.T) {
	tests := []struct {
		name   string
		call   func(s *OrderServiceImpl) (*domain.Order, error)
		target domain.OrderStatus
		action domain.AuditAction
		note   string
	}{
		{"confirm", func(s *OrderServiceImpl) (*domain.Order, error) {
			return s.ConfirmOrder(context.Background(), "ORD1", "admin@shop", "ok")
		}, domain.OrderStatusConfirmed, domain.AuditActionAdminConfirm, "ok"},
		{"complete", func(s *OrderServiceImpl) (*domain.Order, error) {
			return s.CompleteOrder(context.Background(), "ORD1", "admin@shop", "")
		}, domain.OrderStatusCompleted, domain.AuditActionAdminComplete, ""},
		{"cancel default reason", func(s *OrderServiceImpl) (*domain.Order, error) {
			return s.CancelOrder(context.Background(), "ORD1", "admin@shop", "")
		}, domain.OrderStatusCancelled, domain.AuditActionAdminCancel, "Cancelled by admin"},
		{"refund", func(s *OrderServiceImpl) (*domain.Order, error) {
			return s.RefundOrder(context.Background(), "ORD1", "admin@shop", "returned")
		}, domain.OrderStatusRefunded, domain.AuditActionAdminRefund, "returned"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupOrderService(t)
			defer d.ctrl.Finish()

			updated := pendingOrder()
			updated.Status = tt.target
			d.reconciler.EXPECT().AdminTransition(gomock.Any(), "ORD1", tt.target, "admin@shop", tt.note).Return(updated, nil)
			d.auditSvc.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e *domain.AuditLog) {
				assert.Equal(t, tt.action, e.Action)
				assert.Equal(t, "admin@shop", e.Actor)
			})

			got, err := tt.call(d.svc)
			require.NoError(t, err)
			assert.Equal(t, tt.target, got.Status)
		})
	}
}

func TestOrderService_AdminAction_Errors(t *testing.T) {
	d := setupOrderService(t)
	defer d.ctrl.Finish()

	d.reconciler.EXPECT().AdminTransition(gomock.Any(), "ORD1", domain.OrderStatusCancelled, "admin@shop", "late").
		Return(nil, apperror.ErrInvalidTransition("completed", "cancelled"))
	// No audit entry for a rejected action.

	_, err := d.svc.CancelOrder(context.Background(), "ORD1", "admin@shop", "late")
	assertAppError(t, err, apperror.CodeInvalidTransition)

	_, err = d.svc.ConfirmOrder(context.Background(), "ORD1", "", "")
	assertAppError(t, err, apperror.CodeForbidden)
}
