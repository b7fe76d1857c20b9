package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/phenrril/kambashop/internal/domain"
)

type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeFailed    Outcome = "failed"
)

const (
	CanceledPath = "/checkout/canceled"
	FailedPath   = "/checkout/failed"

	genericVerifyError = "verification_failed"
)

type ConfirmationResult struct {
	Outcome     Outcome              `json:"outcome"`
	Status      domain.PaymentStatus `json:"status,omitempty"`
	IntentID    string               `json:"paymentIntent"`
	OrderNumber string               `json:"orderNumber,omitempty"`
	EventID     string               `json:"eventId,omitempty"`
	Amount      decimal.Decimal      `json:"amount"`
	Currency    string               `json:"currency"`
	Redirect    string               `json:"redirect,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// VerificationUC resuelve el estado final de un pago a la vuelta del proveedor.
// Cargas concurrentes de la misma confirmación (sesión + intento) comparten una sola
// resolución.
type VerificationUC struct {
	Verifier domain.OrderVerifier
	Beacon   domain.BeaconEmitter
	Now      func() time.Time

	sfg singleflight.Group
}

func NewVerificationUC(v domain.OrderVerifier, b domain.BeaconEmitter) *VerificationUC {
	return &VerificationUC{Verifier: v, Beacon: b, Now: time.Now}
}

// NewOrderIdentifiers arma el número de orden y el event id de deduplicación.
// Se generan una sola vez, antes de llamar a la verificación.
func NewOrderIdentifiers(now time.Time) (orderNumber, eventID string) {
	ms := now.UnixMilli()
	digits := strconv.FormatInt(ms, 10)
	if len(digits) > 6 {
		digits = digits[len(digits)-6:]
	}
	orderNumber = fmt.Sprintf("KMB-%d-%s", now.Year(), digits)
	eventID = fmt.Sprintf("purchase_%s_%d", orderNumber, ms)
	return orderNumber, eventID
}

// Confirmation representa una carga de la página de confirmación.
type Confirmation struct {
	uc       *VerificationUC
	kv       domain.KeyValueStore
	cart     *CartStore
	checkout *CheckoutUC
	session  string
	intentID string
	customer domain.CustomerIdentity

	once   sync.Once
	result ConfirmationResult
}

// NewConfirmation: session identifica al navegador; checkout puede ser nil si no hay
// sesión de checkout que actualizar.
func (uc *VerificationUC) NewConfirmation(kv domain.KeyValueStore, cart *CartStore, checkout *CheckoutUC, session, intentID string, customer domain.CustomerIdentity) *Confirmation {
	return &Confirmation{uc: uc, kv: kv, cart: cart, checkout: checkout, session: session, intentID: intentID, customer: customer}
}

// Resolve llama a la verificación como mucho una vez; llamadas siguientes devuelven
// el mismo resultado sin generar identificadores nuevos ni otro beacon. Otra
// Confirmation de la misma sesión e intento que corra a la vez espera y recibe el
// mismo resultado.
func (c *Confirmation) Resolve(ctx context.Context) ConfirmationResult {
	c.once.Do(func() {
		v, _, _ := c.uc.sfg.Do(c.session+"|"+c.intentID, func() (interface{}, error) {
			return c.resolve(ctx), nil
		})
		c.result = v.(ConfirmationResult)
	})
	return c.result
}

func confirmationKey(intentID string) string {
	return "confirmation:" + intentID
}

func (c *Confirmation) cached(ctx context.Context) (*ConfirmationResult, bool) {
	raw, err := c.kv.Load(ctx, confirmationKey(c.intentID))
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var res ConfirmationResult
	if err := json.Unmarshal(raw, &res); err != nil || res.OrderNumber == "" {
		return nil, false
	}
	return &res, true
}

func (c *Confirmation) remember(ctx context.Context, res ConfirmationResult) {
	b, _ := json.Marshal(res)
	if err := c.kv.Save(ctx, confirmationKey(c.intentID), b); err != nil {
		zlog.Warn().Err(err).Str("intent", c.intentID).Msg("guardar confirmación")
	}
}

func (c *Confirmation) resolve(ctx context.Context) ConfirmationResult {
	if res, ok := c.cached(ctx); ok {
		return *res
	}

	orderNumber, eventID := NewOrderIdentifiers(c.uc.Now())
	currency := c.cart.Currency()
	expected := c.cart.Total()
	res := ConfirmationResult{IntentID: c.intentID, Currency: currency}

	vr, err := c.uc.Verifier.Verify(ctx, domain.VerifyRequest{
		IntentID:    c.intentID,
		OrderNumber: orderNumber,
		EventID:     eventID,
		Customer:    c.customer,
	})
	if err != nil {
		zlog.Error().Err(err).Str("intent", c.intentID).Msg("verificar pago")
		res.Outcome = OutcomeFailed
		res.Error = genericVerifyError
		res.Redirect = outcomeURL(FailedPath, c.intentID, genericVerifyError)
		return res
	}
	res.Status = vr.Status

	switch {
	case vr.Status.Commits():
		// si la orden ya estaba registrada, mandan los identificadores guardados
		if vr.OrderNumber != "" {
			orderNumber = vr.OrderNumber
		}
		if vr.EventID != "" {
			eventID = vr.EventID
		}
		amount := expected
		if vr.AmountMinor > 0 {
			amount = FromMinorUnits(vr.AmountMinor)
		}
		c.cart.Clear(ctx)
		c.uc.Beacon.Track(ctx, "Purchase",
			domain.PurchaseProps{Value: amount, Currency: currency, OrderID: orderNumber},
			domain.TrackOptions{EventID: eventID})
		res.Outcome = OutcomeConfirmed
		res.OrderNumber = orderNumber
		res.EventID = eventID
		res.Amount = amount
		c.remember(ctx, res)
		zlog.Info().Str("intent", c.intentID).Str("order", orderNumber).Str("status", string(vr.Status)).Msg("pago confirmado")
	case vr.Status.Retryable():
		res.Outcome = OutcomeCanceled
		res.Redirect = outcomeURL(CanceledPath, c.intentID, "")
	default:
		res.Outcome = OutcomeFailed
		res.Error = string(vr.Status)
		if res.Error == "" {
			res.Error = genericVerifyError
		}
		res.Redirect = outcomeURL(FailedPath, c.intentID, res.Error)
	}
	if c.checkout != nil {
		c.checkout.Complete(ctx, vr.Status)
	}
	return res
}

func outcomeURL(path, intentID, errMsg string) string {
	q := url.Values{}
	q.Set("payment_intent", intentID)
	if errMsg != "" {
		q.Set("error", errMsg)
	}
	return path + "?" + q.Encode()
}
