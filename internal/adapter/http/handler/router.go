package handler

import (
	"storefront-payments/internal/adapter/http/middleware"
	"storefront-payments/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc     ports.PaymentService
	OrderSvc       ports.OrderService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	PublicURL      string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Storefront (public) ---
	orderHandler := NewOrderHandler(deps.OrderSvc)
	orders := v1.Group("/orders")
	{
		orders.POST("", rl("orders"), orderHandler.CreateOrder)
		orders.GET("/:orderNumber", rl("status"), orderHandler.GetOrder)
	}

	paymentHandler := NewPaymentHandler(deps.PaymentSvc, deps.PublicURL)
	payments := v1.Group("/payments")
	{
		payments.POST("", rl("payments"), paymentHandler.CreatePayment)
		payments.GET("/methods", rl("status"), paymentHandler.ListMethods)
		payments.GET("/status/:orderNumber", rl("status"), paymentHandler.GetPaymentStatus)
	}

	// --- MoMo notifications (authenticated by signature) ---
	webhookHandler := NewWebhookHandler(deps.PaymentSvc, deps.Logger)
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/momo", rl("webhook"), webhookHandler.HandleIPN)
		webhooks.GET("/momo", rl("webhook"), webhookHandler.HandleReturn)
	}

	// --- Back office (JWT-authenticated, admin role) ---
	adminHandler := NewAdminHandler(deps.OrderSvc)
	admin := v1.Group("/admin", middleware.JWTAuth(deps.TokenSvc, deps.Logger), rl("admin"))
	{
		admin.GET("/orders", adminHandler.ListOrders)
		admin.GET("/orders/:orderNumber", adminHandler.GetOrder)
		admin.PUT("/orders/:orderNumber/confirm", adminHandler.ConfirmOrder)
		admin.PUT("/orders/:orderNumber/complete", adminHandler.CompleteOrder)
		admin.PUT("/orders/:orderNumber/cancel", adminHandler.CancelOrder)
		admin.PUT("/orders/:orderNumber/refund", adminHandler.RefundOrder)
	}

	return r
}
