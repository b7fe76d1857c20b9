package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/kambashop/internal/domain"
)

func newLedger(status domain.PaymentStatus) (*OrderLedgerUC, *memOrders, *stubConversions, *stubNotifier) {
	orders := newMemOrders()
	conv := &stubConversions{}
	notifier := &stubNotifier{done: make(chan *domain.Order, 4)}
	return &OrderLedgerUC{
		Gateway:     &stubGateway{status: status},
		Orders:      orders,
		Customers:   &memCustomers{byEmail: map[string]domain.Customer{}},
		Conversions: conv,
		Dedup:       &memDedup{keys: map[string]bool{}},
		Notifier:    notifier,
	}, orders, conv, notifier
}

func verifyReq(orderNumber, eventID string) domain.VerifyRequest {
	return domain.VerifyRequest{
		IntentID:    "pi_1",
		OrderNumber: orderNumber,
		EventID:     eventID,
		Customer:    domain.CustomerIdentity{Email: "Ana@Example.com", Name: "Ana Gómez"},
	}
}

func TestLedgerVerifyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	uc, orders, conv, notifier := newLedger(domain.PaymentSucceeded)

	first, err := uc.Verify(ctx, verifyReq("KMB-2026-000001", "purchase_KMB-2026-000001_1"))
	require.NoError(t, err)
	second, err := uc.Verify(ctx, verifyReq("KMB-2026-000002", "purchase_KMB-2026-000002_2"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// la segunda verificación devuelve los identificadores de la primera
	assert.Equal(t, "KMB-2026-000001", second.OrderNumber)
	assert.Equal(t, "purchase_KMB-2026-000001_1", second.EventID)
	assert.Equal(t, domain.PaymentSucceeded, first.Status)
	assert.Equal(t, int64(5990), first.AmountMinor)
	assert.Equal(t, []string{"purchase_KMB-2026-000001_1"}, conv.sent)

	o, err := orders.FindByIntentID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "KMB-2026-000001", o.OrderNumber)
	assert.Equal(t, "ana@example.com", o.Email)
	assert.Equal(t, "EUR", o.Currency)
	assert.True(t, o.ConversionSent)
	require.NotNil(t, o.CustomerID)

	select {
	case n := <-notifier.done:
		assert.Equal(t, "KMB-2026-000001", n.OrderNumber)
	case <-time.After(time.Second):
		t.Fatal("sin notificación")
	}
	select {
	case <-notifier.done:
		t.Fatal("notificación duplicada")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLedgerConcurrentVerifySendsOneConversion(t *testing.T) {
	ctx := context.Background()
	uc, _, conv, _ := newLedger(domain.PaymentProcessing)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Verify(ctx, verifyReq("KMB-2026-000001", "purchase_KMB-2026-000001_1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	conv.mu.Lock()
	defer conv.mu.Unlock()
	assert.Len(t, conv.sent, 1)
}

func TestLedgerRetryableStatusDoesNotConvert(t *testing.T) {
	ctx := context.Background()
	uc, orders, conv, _ := newLedger(domain.PaymentRequiresPaymentMethod)
	res, err := uc.Verify(ctx, verifyReq("KMB-2026-000001", "e1"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRequiresPaymentMethod, res.Status)
	assert.Empty(t, conv.sent)

	committed, err := orders.ListCommitted(ctx)
	require.NoError(t, err)
	assert.Empty(t, committed)
}

func TestLedgerConversionFailureIsRetriedByFlag(t *testing.T) {
	ctx := context.Background()
	uc, orders, conv, _ := newLedger(domain.PaymentSucceeded)
	conv.err = errors.New("graph api 500")

	_, err := uc.Verify(ctx, verifyReq("KMB-2026-000001", "e1"))
	require.NoError(t, err)
	o, _ := orders.FindByIntentID(ctx, "pi_1")
	assert.False(t, o.ConversionSent)

	conv.err = nil
	_, err = uc.Verify(ctx, verifyReq("KMB-2026-000001", "e1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, conv.sent)
	o, _ = orders.FindByIntentID(ctx, "pi_1")
	assert.True(t, o.ConversionSent)
}

func TestLedgerWithoutDedupStore(t *testing.T) {
	ctx := context.Background()
	uc, _, conv, _ := newLedger(domain.PaymentSucceeded)
	uc.Dedup = nil
	for i := 0; i < 3; i++ {
		_, err := uc.Verify(ctx, verifyReq("KMB-2026-000001", "e1"))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"e1"}, conv.sent)
}

func TestLedgerErrors(t *testing.T) {
	ctx := context.Background()
	uc, orders, _, _ := newLedger("")
	_, err := uc.Verify(ctx, domain.VerifyRequest{})
	assert.ErrorIs(t, err, ErrMissingIntent)

	_, err = uc.Verify(ctx, verifyReq("KMB-2026-000001", "e1"))
	assert.Error(t, err)

	uc.Gateway = &stubGateway{status: domain.PaymentSucceeded}
	orders.failOn = errors.New("db caída")
	_, err = uc.Verify(ctx, verifyReq("KMB-2026-000001", "e1"))
	assert.Error(t, err)
}

func TestLedgerConversionInFlightElsewhere(t *testing.T) {
	ctx := context.Background()
	uc, orders, conv, _ := newLedger(domain.PaymentSucceeded)
	dedup := uc.Dedup.(*memDedup)
	// otra instancia ya tomó la clave y todavía no terminó
	dedup.keys["conv:pi_1"] = true

	_, err := uc.Verify(ctx, verifyReq("KMB-2026-000001", "e1"))
	require.NoError(t, err)
	assert.Empty(t, conv.sent)
	o, _ := orders.FindByIntentID(ctx, "pi_1")
	assert.False(t, o.ConversionSent)

	// la otra instancia falló y liberó la clave: el próximo verify la envía
	require.NoError(t, dedup.Release(ctx, "conv:pi_1"))
	_, err = uc.Verify(ctx, verifyReq("KMB-2026-000001", "e1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, conv.sent)
	o, _ = orders.FindByIntentID(ctx, "pi_1")
	assert.True(t, o.ConversionSent)
}
