package deeplink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/repository/memory"
	repoMocks "github.com/shestoi/providerhub/internal/repository/mocks"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnPaymentSuccess(orderID string) {
	r.add(Event{Outcome: OutcomeSuccess, OrderID: orderID})
}

func (r *recorder) OnPaymentCancelled() {
	r.add(Event{Outcome: OutcomeCancelled})
}

func (r *recorder) OnPaymentFailed(message string) {
	r.add(Event{Outcome: OutcomeFailed, Message: message})
}

func (r *recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newTestHandler(t *testing.T) (*Handler, *recorder) {
	t.Helper()
	h := NewHandler(zap.NewNop(), Config{}, memory.NewProcessedOrdersStore(), NewResultHub(), nil)
	rec := &recorder{}
	t.Cleanup(h.Subscribe(rec))
	return h, rec
}

func strPtr(s string) *string { return &s }

func TestHandleDeepLink_Classification(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantEvent  Event
		wantResult PaymentResult
	}{
		{
			name:       "success with order id",
			uri:        "myapp://paypal-return?status=success&orderId=ORD1",
			wantEvent:  Event{Outcome: OutcomeSuccess, OrderID: "ORD1"},
			wantResult: PaymentResult{Status: "success", OrderID: strPtr("ORD1")},
		},
		{
			name:       "approved with order id",
			uri:        "myapp://paypal-return?status=approved&orderId=ORD2",
			wantEvent:  Event{Outcome: OutcomeSuccess, OrderID: "ORD2"},
			wantResult: PaymentResult{Status: "approved", OrderID: strPtr("ORD2")},
		},
		{
			name:       "success without order id",
			uri:        "myapp://paypal-return?status=success",
			wantEvent:  Event{Outcome: OutcomeFailed, Message: "no orderId"},
			wantResult: PaymentResult{Status: "success"},
		},
		{
			name:       "cancel",
			uri:        "myapp://paypal-return?status=cancel",
			wantEvent:  Event{Outcome: OutcomeCancelled},
			wantResult: PaymentResult{Status: "cancel"},
		},
		{
			name:       "cancelled",
			uri:        "myapp://paypal-return?status=cancelled&orderId=ORD3",
			wantEvent:  Event{Outcome: OutcomeCancelled},
			wantResult: PaymentResult{Status: "cancelled", OrderID: strPtr("ORD3")},
		},
		{
			name:       "unknown status with error",
			uri:        "myapp://paypal-return?status=weird&error=card_declined",
			wantEvent:  Event{Outcome: OutcomeFailed, Message: "card_declined"},
			wantResult: PaymentResult{Status: "weird"},
		},
		{
			name:       "unknown status without error",
			uri:        "myapp://paypal-return?status=weird",
			wantEvent:  Event{Outcome: OutcomeFailed, Message: "payment failed with status: weird"},
			wantResult: PaymentResult{Status: "weird"},
		},
		{
			name:       "missing status defaults to unknown",
			uri:        "myapp://paypal-return",
			wantEvent:  Event{Outcome: OutcomeFailed, Message: "payment failed with status: "},
			wantResult: PaymentResult{Status: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, rec := newTestHandler(t)

			require.NoError(t, h.HandleDeepLink(context.Background(), tt.uri))

			assert.Equal(t, []Event{tt.wantEvent}, rec.all())
			got, ok := h.Hub().Latest()
			require.True(t, ok)
			assert.Equal(t, tt.wantResult, got)
		})
	}
}

func TestHandleDeepLink_DuplicateOrderDispatchedOnce(t *testing.T) {
	ctx := context.Background()
	h, rec := newTestHandler(t)

	uri := "myapp://paypal-return?status=success&orderId=ORD1"
	require.NoError(t, h.HandleDeepLink(ctx, uri))

	// второй доставке не должно быть видно даже после очистки результата
	h.ClearResult()
	require.NoError(t, h.HandleDeepLink(ctx, uri))

	assert.Len(t, rec.all(), 1)
	_, ok := h.Hub().Latest()
	assert.False(t, ok)
}

func TestHandleDeepLink_DuplicateDroppedEvenWithDifferentStatus(t *testing.T) {
	ctx := context.Background()
	h, rec := newTestHandler(t)

	require.NoError(t, h.HandleDeepLink(ctx, "myapp://paypal-return?status=weird&orderId=ORD1"))
	require.NoError(t, h.HandleDeepLink(ctx, "myapp://paypal-return?status=success&orderId=ORD1"))

	require.Len(t, rec.all(), 1)
	got, _ := h.Hub().Latest()
	assert.Equal(t, "weird", got.Status)
}

func TestHandleDeepLink_CancelWithoutOrderNeverDeduplicated(t *testing.T) {
	ctx := context.Background()
	store := repoMocks.NewProcessedOrdersStore(t)
	h := NewHandler(zap.NewNop(), Config{}, store, NewResultHub(), nil)
	rec := &recorder{}
	defer h.Subscribe(rec)()

	require.NoError(t, h.HandleDeepLink(ctx, "myapp://paypal-return?status=cancel"))
	require.NoError(t, h.HandleDeepLink(ctx, "myapp://paypal-return?status=cancel"))

	assert.Equal(t, []Event{{Outcome: OutcomeCancelled}, {Outcome: OutcomeCancelled}}, rec.all())
	store.AssertNotCalled(t, "MarkIfAbsent", mock.Anything, mock.Anything)
}

func TestHandleDeepLink_ForeignURIIgnored(t *testing.T) {
	for _, uri := range []string{
		"https://paypal-return?status=success&orderId=ORD1",
		"myapp://other?status=success&orderId=ORD1",
		"myapp://PAYPAL-RETURN?status=success&orderId=ORD1",
		"otherapp://paypal-return?status=cancel",
		"%zz",
		"",
	} {
		t.Run(uri, func(t *testing.T) {
			store := repoMocks.NewProcessedOrdersStore(t)
			h := NewHandler(zap.NewNop(), Config{}, store, NewResultHub(), nil)
			rec := &recorder{}
			defer h.Subscribe(rec)()

			require.NoError(t, h.HandleDeepLink(context.Background(), uri))

			assert.Empty(t, rec.all())
			_, ok := h.Hub().Latest()
			assert.False(t, ok)
			store.AssertNotCalled(t, "MarkIfAbsent", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleDeepLink_ClearProcessedOrdersAllowsRedispatch(t *testing.T) {
	ctx := context.Background()
	h, rec := newTestHandler(t)

	uri := "myapp://paypal-return?status=success&orderId=ORD1"
	require.NoError(t, h.HandleDeepLink(ctx, uri))
	require.NoError(t, h.HandleDeepLink(ctx, uri))
	require.Len(t, rec.all(), 1)

	require.NoError(t, h.ClearProcessedOrders(ctx))
	require.NoError(t, h.HandleDeepLink(ctx, uri))

	assert.Equal(t, []Event{
		{Outcome: OutcomeSuccess, OrderID: "ORD1"},
		{Outcome: OutcomeSuccess, OrderID: "ORD1"},
	}, rec.all())
}

func TestHandleDeepLink_MarkedBeforeDispatch(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(zap.NewNop(), Config{}, memory.NewProcessedOrdersStore(), NewResultHub(), nil)

	// listener, который сам повторно доставляет тот же URI, не должен вызвать второй dispatch
	calls := 0
	uri := "myapp://paypal-return?status=success&orderId=ORD1"
	defer h.Subscribe(ListenerFuncs{Success: func(string) {
		calls++
		_ = h.HandleDeepLink(ctx, uri)
	}})()

	require.NoError(t, h.HandleDeepLink(ctx, uri))
	assert.Equal(t, 1, calls)
}

func TestHandleDeepLink_StoreErrorPublishesNothing(t *testing.T) {
	store := repoMocks.NewProcessedOrdersStore(t)
	store.On("MarkIfAbsent", mock.Anything, "ORD1").Return(false, errors.New("redis down")).Once()

	h := NewHandler(zap.NewNop(), Config{}, store, NewResultHub(), nil)
	rec := &recorder{}
	defer h.Subscribe(rec)()

	err := h.HandleDeepLink(context.Background(), "myapp://paypal-return?status=success&orderId=ORD1")
	require.Error(t, err)
	assert.Empty(t, rec.all())
	_, ok := h.Hub().Latest()
	assert.False(t, ok)
}

func TestHandleDeepLink_NoListenersStillPublishes(t *testing.T) {
	h := NewHandler(zap.NewNop(), Config{}, memory.NewProcessedOrdersStore(), NewResultHub(), nil)

	require.NoError(t, h.HandleDeepLink(context.Background(), "myapp://paypal-return?status=cancel"))
	got, ok := h.Hub().Latest()
	require.True(t, ok)
	assert.Equal(t, "cancel", got.Status)
}

func TestHandleDeepLink_CustomSchemeAndHost(t *testing.T) {
	h := NewHandler(zap.NewNop(), Config{Scheme: "provider", Host: "pay"}, memory.NewProcessedOrdersStore(), NewResultHub(), nil)
	rec := &recorder{}
	defer h.Subscribe(rec)()

	require.NoError(t, h.HandleDeepLink(context.Background(), "myapp://paypal-return?status=cancel"))
	require.NoError(t, h.HandleDeepLink(context.Background(), "provider://pay?status=cancel"))
	assert.Len(t, rec.all(), 1)
}
