package ports

import (
	"context"
	"errors"
	"time"

	"storefront-payments/internal/core/domain"
)

// ErrLockNotAcquired is returned by OrderLocker when the lease stays held
// by someone else until the caller's context expires.
var ErrLockNotAcquired = errors.New("order lock not acquired")

// ErrInsufficientStock is returned by ProductRepository.DecrementStock when
// the conditional decrement matched no row.
var ErrInsufficientStock = errors.New("insufficient stock")

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildSigningString(fields []domain.SignedField) string
}

// PaymentGateway creates payable links on the external gateway.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error)
}

// CallbackVerifier checks gateway notifications. It never fails; problems
// are reported through the returned result.
type CallbackVerifier interface {
	Verify(payload map[string]string) *domain.CallbackResult
}

// OrderReconciler applies verified outcomes and admin actions to orders.
type OrderReconciler interface {
	ApplyCallback(ctx context.Context, orderNumber string, result *domain.CallbackResult) (*domain.Order, error)
	AdminTransition(ctx context.Context, orderNumber string, target domain.OrderStatus, actor, note string) (*domain.Order, error)
	MarkPaymentCreated(ctx context.Context, orderNumber string, info domain.PaymentInfo) (*domain.Order, error)
}

// OrderLocker serializes mutation of one order across instances.
type OrderLocker interface {
	Acquire(ctx context.Context, orderNumber string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, orderNumber string, token string) error
}

// CallbackCache remembers gateway outcomes that were already applied.
type CallbackCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string, ttl time.Duration) error
}

// TokenService handles JWT token operations for back-office users.
type TokenService interface {
	Generate(subject string, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// RoleAdmin is the role claim required by back-office routes.
const RoleAdmin = "admin"

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Role    string
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// PaymentService is the checkout-facing payment API.
type PaymentService interface {
	CreatePayment(ctx context.Context, in CreatePaymentInput) (*domain.PaymentResult, error)
	HandleCallback(ctx context.Context, payload map[string]string) CallbackAck
	HandleReturnRedirect(ctx context.Context, query map[string]string) string
	GetPaymentStatus(ctx context.Context, orderNumber string) (*domain.Order, error)
}

// CreatePaymentInput holds validated input for creating a payment link.
type CreatePaymentInput struct {
	OrderNumber string
	Method      string
	OrderInfo   string
	// ReturnBaseURL is used when no redirect/IPN URL is configured.
	ReturnBaseURL string
	ClientIP      string
}

// CallbackAck is what the IPN endpoint answers to the gateway.
type CallbackAck struct {
	HTTPStatus int
	ResultCode int
	Message    string
}

// OrderService covers order creation, lookup and back-office actions.
type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error)
	ListOrders(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
	ConfirmOrder(ctx context.Context, orderNumber, actor, note string) (*domain.Order, error)
	CompleteOrder(ctx context.Context, orderNumber, actor, note string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderNumber, actor, reason string) (*domain.Order, error)
	RefundOrder(ctx context.Context, orderNumber, actor, note string) (*domain.Order, error)
}

// CreateOrderInput holds validated input for placing an order.
type CreateOrderInput struct {
	Customer      domain.Customer
	Items         []OrderLineInput
	PaymentMethod string
	Discount      int64
	Notes         string
}

// OrderLineInput is one requested product line.
type OrderLineInput struct {
	ProductID string
	Quantity  int
}
