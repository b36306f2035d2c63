package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes exposed to API clients.
const (
	CodeInvalidAmount      = "PAY_002"
	CodeNotFound           = "PAY_004"
	CodeMalformedRequest   = "REQ_001"
	CodePayloadTooLarge    = "REQ_002"
	CodeOrderNotFound      = "ORD_001"
	CodeInvalidTransition  = "ORD_002"
	CodeInsufficientStock  = "ORD_003"
	CodeAmountMismatch     = "ORD_004"
	CodeInvalidSignature   = "SEC_002"
	CodeGatewayUnreachable = "GW_001"
	CodeGatewayRejected    = "GW_002"
	CodeGatewayBadResponse = "GW_003"
	CodeInvalidToken       = "AUTH_003"
	CodeForbidden          = "AUTH_005"
	CodeRateLimitExceeded  = "RATE_001"
	CodeInternal           = "SYS_001"
	CodeLockTimeout        = "SYS_002"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)

	// GatewayCode carries the payment gateway's resultCode for GW_002.
	GatewayCode int `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err (or anything it wraps) is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ---- Request validation ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeInvalidAmount, message, http.StatusBadRequest)
}

func ErrMalformedRequest(message string) *AppError {
	return New(CodeMalformedRequest, message, http.StatusBadRequest)
}

func ErrPayloadTooLarge() *AppError {
	return New(CodePayloadTooLarge, "Request body too large", http.StatusRequestEntityTooLarge)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Orders (ORD) ----

func ErrOrderNotFound(orderNumber string) *AppError {
	return New(CodeOrderNotFound, fmt.Sprintf("Order %s not found", orderNumber), http.StatusNotFound)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition,
		fmt.Sprintf("Cannot change order status from %s to %s", from, to),
		http.StatusConflict)
}

func ErrInsufficientStock(productID string) *AppError {
	return New(CodeInsufficientStock,
		fmt.Sprintf("Product %s does not have enough stock", productID),
		http.StatusConflict)
}

func ErrAmountMismatch(expected, got int64) *AppError {
	return New(CodeAmountMismatch,
		fmt.Sprintf("Paid amount %d does not match order total %d", got, expected),
		http.StatusConflict)
}

// ---- Security & Authentication ----

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Insufficient permissions", http.StatusForbidden)
}

// ---- Payment gateway (GW) ----

func ErrGatewayUnreachable(err error) *AppError {
	return Wrap(CodeGatewayUnreachable,
		"Payment gateway is unreachable, please retry or contact support",
		http.StatusServiceUnavailable, err)
}

func ErrGatewayRejected(code int, message string) *AppError {
	e := New(CodeGatewayRejected, message, http.StatusBadGateway)
	e.GatewayCode = code
	return e
}

func ErrGatewayBadResponse(err error) *AppError {
	return Wrap(CodeGatewayBadResponse, "Payment gateway returned an invalid response", http.StatusBadGateway, err)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
