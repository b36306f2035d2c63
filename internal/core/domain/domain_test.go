package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder(NewOrderParams{
		OrderNumber: "ORD202405170001",
		Customer:    Customer{Name: "Nguyen Van A", Email: "a@example.com", Phone: "0900000000"},
		Items: []OrderItem{
			{ProductID: "p-1", Title: "Tee", Quantity: 2, UnitPrice: 150000},
			{ProductID: "p-2", Title: "Cap", Quantity: 1, UnitPrice: 90000},
		},
		ShippingFee:   30000,
		Tax:           10000,
		Discount:      20000,
		PaymentMethod: PaymentMethodMoMo,
		Now:           testNow,
	})
	require.NoError(t, err)
	return o
}

func TestNewOrder_Totals(t *testing.T) {
	o := newTestOrder(t)

	assert.Equal(t, int64(300000), o.Items[0].Subtotal)
	assert.Equal(t, int64(90000), o.Items[1].Subtotal)
	assert.Equal(t, int64(390000), o.Subtotal)
	assert.Equal(t, int64(390000+30000+10000-20000), o.Total)
	assert.NoError(t, o.CheckTotals())

	assert.Equal(t, OrderStatusPending, o.Status)
	assert.Equal(t, PaymentStatusPending, o.PaymentStatus)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, OrderStatusPending, o.StatusHistory[0].Status)
	assert.Equal(t, "customer", o.StatusHistory[0].UpdatedBy)
}

func TestNewOrder_Rejects(t *testing.T) {
	item := OrderItem{ProductID: "p-1", Quantity: 1, UnitPrice: 1000}

	tests := []struct {
		name string
		p    NewOrderParams
		want error
	}{
		{"missing number", NewOrderParams{Items: []OrderItem{item}}, ErrMissingOrderNo},
		{"no items", NewOrderParams{OrderNumber: "ORD1"}, ErrEmptyOrder},
		{"zero quantity", NewOrderParams{OrderNumber: "ORD1", Items: []OrderItem{{ProductID: "p", Quantity: 0, UnitPrice: 1}}}, ErrInvalidQuantity},
		{"negative price", NewOrderParams{OrderNumber: "ORD1", Items: []OrderItem{{ProductID: "p", Quantity: 1, UnitPrice: -1}}}, ErrNegativeAmount},
		{"negative fee", NewOrderParams{OrderNumber: "ORD1", Items: []OrderItem{item}, ShippingFee: -5}, ErrNegativeAmount},
		{"discount above total", NewOrderParams{OrderNumber: "ORD1", Items: []OrderItem{item}, Discount: 5000}, ErrNegativeTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewOrder(tt.p)
			assert.Nil(t, o)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewOrder_TotalInvariantHoldsForManyShapes(t *testing.T) {
	for qty := 1; qty <= 5; qty++ {
		for _, price := range []int64{0, 1, 999, 125000} {
			for _, discount := range []int64{0, 1} {
				o, err := NewOrder(NewOrderParams{
					OrderNumber: "ORD1",
					Items: []OrderItem{
						{ProductID: "a", Quantity: qty, UnitPrice: price},
						{ProductID: "b", Quantity: 1, UnitPrice: 7},
					},
					ShippingFee: 15000,
					Tax:         3,
					Discount:    discount,
				})
				require.NoError(t, err)
				assert.NoError(t, o.CheckTotals())
				assert.Equal(t, price*int64(qty)+7+15000+3-discount, o.Total)
			}
		}
	}
}

func TestCheckTotals_DetectsTampering(t *testing.T) {
	o := newTestOrder(t)
	o.Total++
	assert.ErrorIs(t, o.CheckTotals(), ErrTotalsMismatch)

	o = newTestOrder(t)
	o.Items[0].Subtotal = 1
	assert.ErrorIs(t, o.CheckTotals(), ErrTotalsMismatch)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from  OrderStatus
		to    OrderStatus
		actor Actor
		want  bool
	}{
		{OrderStatusPending, OrderStatusProcessing, ActorSystem, true},
		{OrderStatusPending, OrderStatusCompleted, ActorSystem, true},
		{OrderStatusPending, OrderStatusFailed, ActorSystem, true},
		{OrderStatusProcessing, OrderStatusCompleted, ActorSystem, true},
		{OrderStatusProcessing, OrderStatusFailed, ActorSystem, true},
		{OrderStatusConfirmed, OrderStatusCompleted, ActorSystem, true},
		{OrderStatusConfirmed, OrderStatusCancelled, ActorAdmin, true},
		{OrderStatusPending, OrderStatusConfirmed, ActorSystem, false},
		{OrderStatusPending, OrderStatusConfirmed, ActorAdmin, true},
		{OrderStatusProcessing, OrderStatusConfirmed, ActorAdmin, true},
		{OrderStatusCompleted, OrderStatusRefunded, ActorSystem, false},
		{OrderStatusCompleted, OrderStatusRefunded, ActorAdmin, true},
		{OrderStatusCompleted, OrderStatusCancelled, ActorAdmin, false},
		{OrderStatusCompleted, OrderStatusFailed, ActorSystem, false},
		{OrderStatusCancelled, OrderStatusCompleted, ActorAdmin, false},
		{OrderStatusCancelled, OrderStatusCompleted, ActorSystem, false},
		{OrderStatusFailed, OrderStatusCompleted, ActorSystem, false},
		{OrderStatusRefunded, OrderStatusCompleted, ActorAdmin, false},
		{OrderStatusCompleted, OrderStatusCompleted, ActorSystem, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to, tt.actor))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(OrderStatusPending))
	assert.False(t, IsTerminal(OrderStatusProcessing))
	assert.False(t, IsTerminal(OrderStatusConfirmed))
	assert.True(t, IsTerminal(OrderStatusCompleted))
	assert.True(t, IsTerminal(OrderStatusCancelled))
	assert.True(t, IsTerminal(OrderStatusRefunded))
	assert.True(t, IsTerminal(OrderStatusFailed))
}

func TestNextPaymentStatus(t *testing.T) {
	assert.Equal(t, PaymentStatusPaid, NextPaymentStatus(PaymentStatusPending, OrderStatusCompleted))
	assert.Equal(t, PaymentStatusFailed, NextPaymentStatus(PaymentStatusPending, OrderStatusFailed))
	assert.Equal(t, PaymentStatusRefunded, NextPaymentStatus(PaymentStatusPaid, OrderStatusCancelled))
	assert.Equal(t, PaymentStatusFailed, NextPaymentStatus(PaymentStatusPending, OrderStatusCancelled))
	assert.Equal(t, PaymentStatusRefunded, NextPaymentStatus(PaymentStatusPaid, OrderStatusRefunded))
	assert.Equal(t, PaymentStatusPending, NextPaymentStatus(PaymentStatusPending, OrderStatusConfirmed))
	assert.Equal(t, PaymentStatusPending, NextPaymentStatus(PaymentStatusPending, OrderStatusProcessing))
}

func TestOrder_Transition(t *testing.T) {
	o := newTestOrder(t)
	later := testNow.Add(time.Minute)

	entry, err := o.Transition(OrderStatusCompleted, ActorSystem, "momo-ipn", "Payment received", later)
	require.NoError(t, err)

	assert.Equal(t, OrderStatusCompleted, o.Status)
	assert.Equal(t, PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, later, o.UpdatedAt)
	require.Len(t, o.StatusHistory, 2)
	assert.Equal(t, entry, o.StatusHistory[1])
	assert.Equal(t, "momo-ipn", entry.UpdatedBy)

	_, err = o.Transition(OrderStatusCancelled, ActorAdmin, "admin", "", later)
	assert.ErrorIs(t, err, ErrTransitionDenied)
	assert.Equal(t, OrderStatusCompleted, o.Status)
	assert.Len(t, o.StatusHistory, 2, "rejected transitions must not touch history")
}

func TestPaymentInfo_Merge(t *testing.T) {
	created := testNow
	paid := testNow.Add(time.Minute)
	code := 0

	base := PaymentInfo{Method: PaymentMethodMoMo, RequestID: "MOMO1", PaymentCreatedAt: &created}
	merged := base.Merge(PaymentInfo{TransactionID: "T1", ResultCode: &code, Verified: true, PaidAt: &paid})

	assert.Equal(t, PaymentMethodMoMo, merged.Method, "zero patch fields keep existing values")
	assert.Equal(t, "MOMO1", merged.RequestID)
	assert.Equal(t, "T1", merged.TransactionID)
	require.NotNil(t, merged.ResultCode)
	assert.Equal(t, 0, *merged.ResultCode)
	assert.True(t, merged.Verified)
	assert.Equal(t, created, *merged.PaymentCreatedAt)
	assert.Equal(t, paid, *merged.PaidAt)

	again := merged.Merge(PaymentInfo{})
	assert.Equal(t, merged, again, "empty patch is a no-op")

	assert.Empty(t, base.TransactionID, "merge does not mutate the receiver")

	code = 99
	assert.Equal(t, 0, *merged.ResultCode, "merged record owns its pointers")
}

func TestNewOrderNumber(t *testing.T) {
	n := NewOrderNumber(testNow)
	assert.Regexp(t, regexp.MustCompile(`^ORD20240517\d{4}$`), n)
}

func TestParseResultCode(t *testing.T) {
	assert.Equal(t, ResultCodeSuccess, ParseResultCode("0"))
	assert.Equal(t, ResultCodeSuccess, ParseResultCode(" 0 "))
	assert.Equal(t, ResultCodeUserCancelled, ParseResultCode("1006"))
	assert.Equal(t, ResultCodeUnknown, ParseResultCode(""))
	assert.Equal(t, ResultCodeUnknown, ParseResultCode("zero"))
	assert.Equal(t, ResultCodeUnknown, ParseResultCode("0.5"))
}

func TestResultCode_Message(t *testing.T) {
	assert.Equal(t, "Transaction successful", ResultCodeSuccess.Message())
	assert.Equal(t, "Transaction was cancelled by the user", ResultCodeUserCancelled.Message())
	assert.Equal(t, "Invalid transaction amount", ResultCode(21).Message())
	assert.Equal(t, "Unknown error (code 123456)", ResultCode(123456).Message())
}

func TestCallbackResult_PaymentPatch(t *testing.T) {
	ok := &CallbackResult{OrderID: "ORD1", TransactionID: "T1", ResultCode: 0, IsValidSignature: true, IsSuccess: true}
	patch := ok.PaymentPatch(testNow)
	require.NotNil(t, patch.PaidAt)
	assert.Nil(t, patch.FailedAt)
	assert.True(t, patch.Verified)
	assert.Equal(t, "ORD1:T1:0", ok.DedupeKey())

	failed := &CallbackResult{OrderID: "ORD1", TransactionID: "T2", ResultCode: 1006, IsValidSignature: true}
	patch = failed.PaymentPatch(testNow)
	assert.Nil(t, patch.PaidAt)
	require.NotNil(t, patch.FailedAt)
	assert.Equal(t, 1006, *patch.ResultCode)
}

func TestProduct_CanFulfil(t *testing.T) {
	p := &Product{Status: ProductStatusActive, Stock: 3}
	assert.True(t, p.CanFulfil(3))
	assert.False(t, p.CanFulfil(4))
	assert.False(t, p.CanFulfil(0))

	p.Status = ProductStatusInactive
	assert.False(t, p.CanFulfil(1))
}

func TestPaymentMethods(t *testing.T) {
	methods := PaymentMethods()
	require.NotEmpty(t, methods)
	assert.Equal(t, PaymentMethodMoMo, methods[0].ID)
	assert.True(t, methods[0].Enabled)
}
