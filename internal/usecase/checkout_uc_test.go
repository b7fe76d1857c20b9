package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/kambashop/internal/adapters/storage/memstore"
	"github.com/phenrril/kambashop/internal/domain"
)

var (
	okBilling  = domain.BillingDetails{FirstName: " Ana ", LastName: "Gómez", Email: "Ana@Example.com"}
	okShipping = domain.ShippingDetails{Address: "Gran Vía 1", City: "Madrid", PostalCode: "28001", Country: "es"}
)

func newCheckout(t *testing.T, g *stubGateway, prices ...string) (*CheckoutUC, *CartStore, *memstore.Store) {
	t.Helper()
	ctx := context.Background()
	kv := memstore.New()
	cart := NewCartStore(ctx, kv, testPricing())
	for _, p := range prices {
		_, err := cart.AddLine(ctx, product(p), domain.Variant{}, 1)
		require.NoError(t, err)
	}
	return NewCheckoutUC(kv, cart, g, "https://shop.test/checkout/confirmation"), cart, kv
}

func TestBeginEmptyCart(t *testing.T) {
	g := &stubGateway{}
	uc, _, _ := newCheckout(t, g)
	sess, err := uc.Begin(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, domain.CheckoutIdle, sess.State)
	assert.Empty(t, g.created)
}

func TestBeginSizesIntentToTotal(t *testing.T) {
	g := &stubGateway{}
	uc, _, _ := newCheckout(t, g, "50")
	sess, err := uc.Begin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutAwaitingUserInput, sess.State)
	require.NotNil(t, sess.Intent)
	assert.Equal(t, int64(5990), sess.Intent.AmountMinor)
	assert.Equal(t, "EUR", sess.Intent.Currency)
	assert.Equal(t, []int64{5990}, g.created)
}

func TestBeginReusesIntentForSameAmount(t *testing.T) {
	ctx := context.Background()
	g := &stubGateway{}
	uc, cart, _ := newCheckout(t, g, "50")
	first, err := uc.Begin(ctx)
	require.NoError(t, err)
	second, err := uc.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Intent.ID, second.Intent.ID)
	assert.Len(t, g.created, 1)

	// si el carrito cambió se pide un intento nuevo
	_, _ = cart.AddLine(ctx, product("200"), domain.Variant{}, 1)
	third, err := uc.Begin(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Intent.ID, third.Intent.ID)
	assert.Equal(t, int64(25000), third.Intent.AmountMinor)
}

func TestBeginGatewayDownStaysIdle(t *testing.T) {
	g := &stubGateway{createErr: errors.New("dial tcp: timeout")}
	uc, cart, _ := newCheckout(t, g, "50")
	sess, err := uc.Begin(context.Background())
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Equal(t, domain.CheckoutIdle, sess.State)
	assert.NotEmpty(t, sess.LastError)
	assert.Equal(t, 1, cart.Len())

	g.createErr = nil
	sess, err = uc.Begin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutAwaitingUserInput, sess.State)
	assert.Empty(t, sess.LastError)
}

func TestValidateDetails(t *testing.T) {
	assert.Empty(t, ValidateDetails(okBilling, okShipping))

	fe := ValidateDetails(domain.BillingDetails{Email: "ana@"}, domain.ShippingDetails{})
	for _, k := range []string{"firstName", "lastName", "email", "address", "city", "postalCode"} {
		assert.Contains(t, fe, k)
	}
	assert.NotContains(t, fe, "phone")

	for _, bad := range []string{"", "ana", "ana@example", "Ana <ana@example.com>", "a b@example.com"} {
		assert.False(t, validEmail(bad), bad)
	}
}

func TestSubmitValidationDoesNotTouchIntent(t *testing.T) {
	ctx := context.Background()
	g := &stubGateway{}
	uc, _, _ := newCheckout(t, g, "50")
	before, _ := uc.Begin(ctx)

	_, err := uc.Submit(ctx, domain.BillingDetails{}, okShipping)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "email")

	after := uc.Session(ctx)
	assert.Equal(t, before.State, after.State)
	assert.Equal(t, before.Intent.ID, after.Intent.ID)
	assert.Empty(t, g.confirmed)
}

func TestSubmitWithoutIntent(t *testing.T) {
	uc, _, _ := newCheckout(t, &stubGateway{}, "50")
	_, err := uc.Submit(context.Background(), okBilling, okShipping)
	assert.ErrorIs(t, err, domain.ErrNoActiveIntent)
}

func TestSubmitConfirms(t *testing.T) {
	ctx := context.Background()
	g := &stubGateway{}
	uc, _, _ := newCheckout(t, g, "50")
	sess, _ := uc.Begin(ctx)

	redirect, err := uc.Submit(ctx, okBilling, okShipping)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/checkout/confirmation?secret="+sess.Intent.ClientSecret, redirect)
	require.Len(t, g.confirmed, 1)
	assert.Equal(t, "Ana", g.confirmed[0].FirstName)
	assert.Equal(t, "ana@example.com", g.confirmed[0].Email)

	after := uc.Session(ctx)
	assert.Equal(t, domain.CheckoutConfirming, after.State)
	require.NotNil(t, after.Customer)
	assert.Equal(t, "Ana Gómez", after.Customer.Name)
	assert.Equal(t, "Gran Vía 1, Madrid, 28001, ES", after.Customer.Address)
}

func TestSubmitInlinePaymentErrorAllowsRetry(t *testing.T) {
	ctx := context.Background()
	g := &stubGateway{confirmErr: &domain.PaymentError{Code: "card_declined", Message: "Tarjeta rechazada"}}
	uc, cart, _ := newCheckout(t, g, "50")
	_, _ = uc.Begin(ctx)

	_, err := uc.Submit(ctx, okBilling, okShipping)
	var pe *domain.PaymentError
	require.True(t, errors.As(err, &pe))
	sess := uc.Session(ctx)
	assert.Equal(t, domain.CheckoutFailed, sess.State)
	assert.Equal(t, "Tarjeta rechazada", sess.LastError)
	assert.Equal(t, 1, cart.Len())

	g.confirmErr = nil
	_, err = uc.Submit(ctx, okBilling, okShipping)
	require.NoError(t, err)
}

func TestSubmitGatewayDown(t *testing.T) {
	ctx := context.Background()
	g := &stubGateway{}
	uc, _, _ := newCheckout(t, g, "50")
	_, _ = uc.Begin(ctx)
	g.confirmErr = errors.New("connection reset")

	_, err := uc.Submit(ctx, okBilling, okShipping)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Equal(t, domain.CheckoutAwaitingUserInput, uc.Session(ctx).State)
}

func TestCompleteClearsIntentOnCommit(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newCheckout(t, &stubGateway{}, "50")
	_, _ = uc.Begin(ctx)
	_, _ = uc.Submit(ctx, okBilling, okShipping)

	uc.Complete(ctx, domain.PaymentProcessing)
	sess := uc.Session(ctx)
	assert.Equal(t, domain.CheckoutProcessing, sess.State)
	assert.Nil(t, sess.Intent)
}

func TestCompleteRetryableKeepsIntent(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newCheckout(t, &stubGateway{}, "50")
	_, _ = uc.Begin(ctx)

	uc.Complete(ctx, domain.PaymentCanceled)
	sess := uc.Session(ctx)
	assert.Equal(t, domain.CheckoutCanceled, sess.State)
	require.NotNil(t, sess.Intent)

	again, err := uc.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.Intent.ID, again.Intent.ID)
	assert.Equal(t, domain.CheckoutAwaitingUserInput, again.State)
}

func TestCorruptCheckoutSessionIsIdle(t *testing.T) {
	ctx := context.Background()
	uc, _, kv := newCheckout(t, &stubGateway{}, "50")
	require.NoError(t, kv.Save(ctx, domain.CheckoutKey, []byte("{")))
	assert.Equal(t, domain.CheckoutIdle, uc.Session(ctx).State)
}

func TestTransitions(t *testing.T) {
	assert.True(t, domain.CanTransitionTo(domain.CheckoutIdle, domain.CheckoutIntentRequested))
	assert.False(t, domain.CanTransitionTo(domain.CheckoutIdle, domain.CheckoutConfirming))
	assert.True(t, domain.CanTransitionTo(domain.CheckoutConfirming, domain.CheckoutProcessing))
	assert.False(t, domain.CanTransitionTo(domain.CheckoutSucceeded, domain.CheckoutConfirming))
	assert.True(t, domain.CheckoutFailed.IsTerminal())
	assert.False(t, domain.CheckoutAwaitingUserInput.IsTerminal())
}
