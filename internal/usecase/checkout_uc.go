package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/phenrril/kambashop/internal/domain"
)

// CheckoutUC maneja la máquina de estados del checkout de una sesión.
// El estado vive en el KeyValueStore porque el redirect del proveedor corta
// cualquier estado en memoria.
type CheckoutUC struct {
	kv        domain.KeyValueStore
	cart      *CartStore
	gateway   domain.PaymentGateway
	returnURL string
	now       func() time.Time
}

func NewCheckoutUC(kv domain.KeyValueStore, cart *CartStore, gateway domain.PaymentGateway, returnURL string) *CheckoutUC {
	return &CheckoutUC{kv: kv, cart: cart, gateway: gateway, returnURL: returnURL, now: time.Now}
}

func (uc *CheckoutUC) Session(ctx context.Context) domain.CheckoutSession {
	sess := domain.CheckoutSession{State: domain.CheckoutIdle}
	raw, err := uc.kv.Load(ctx, domain.CheckoutKey)
	if err != nil {
		zlog.Warn().Err(err).Msg("leer sesión de checkout")
		return sess
	}
	if len(raw) == 0 {
		return sess
	}
	if err := json.Unmarshal(raw, &sess); err != nil || sess.State == "" {
		return domain.CheckoutSession{State: domain.CheckoutIdle}
	}
	return sess
}

func (uc *CheckoutUC) save(ctx context.Context, sess domain.CheckoutSession) {
	sess.UpdatedAt = uc.now().UTC()
	b, _ := json.Marshal(sess)
	if err := uc.kv.Save(ctx, domain.CheckoutKey, b); err != nil {
		zlog.Warn().Err(err).Msg("persistir sesión de checkout")
	}
}

// Begin crea (o reutiliza) el intento de pago por el total actual del carrito.
// Si el proveedor no responde el estado vuelve a idle y se puede reintentar.
func (uc *CheckoutUC) Begin(ctx context.Context) (domain.CheckoutSession, error) {
	sess := uc.Session(ctx)
	lines := uc.cart.Reload(ctx)
	if len(lines) == 0 {
		// el intento queda abandonado
		sess = domain.CheckoutSession{State: domain.CheckoutIdle}
		uc.save(ctx, sess)
		return sess, domain.ErrEmptyCart
	}
	amount := ToMinorUnits(uc.cart.Total())
	currency := uc.cart.Currency()

	if sess.Intent != nil && sess.Intent.AmountMinor == amount && reusableIntent(sess.State) {
		if sess.State != domain.CheckoutAwaitingUserInput {
			sess.State = domain.CheckoutAwaitingUserInput
			uc.save(ctx, sess)
		}
		return sess, nil
	}

	if sess.State == domain.CheckoutSucceeded || sess.State == domain.CheckoutProcessing {
		sess = domain.CheckoutSession{State: domain.CheckoutIdle}
	}
	if sess.State == domain.CheckoutConfirming {
		sess.State = domain.CheckoutAwaitingUserInput
	}
	if !domain.CanTransitionTo(sess.State, domain.CheckoutIntentRequested) {
		return sess, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, sess.State, domain.CheckoutIntentRequested)
	}
	sess.State = domain.CheckoutIntentRequested

	ref, err := uc.gateway.CreateIntent(ctx, amount, currency)
	if err != nil {
		zlog.Warn().Err(err).Int64("amount", amount).Msg("crear intento de pago")
		sess = domain.CheckoutSession{State: domain.CheckoutIdle, LastError: "No pudimos iniciar el pago. Probá de nuevo."}
		uc.save(ctx, sess)
		return sess, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	sess.Intent = ref
	sess.State = domain.CheckoutAwaitingUserInput
	sess.LastError = ""
	uc.save(ctx, sess)
	return sess, nil
}

func reusableIntent(s domain.CheckoutState) bool {
	switch s {
	case domain.CheckoutAwaitingUserInput, domain.CheckoutConfirming, domain.CheckoutFailed,
		domain.CheckoutRequiresNewPaymentMethod, domain.CheckoutCanceled:
		return true
	}
	return false
}

// ValidateDetails devuelve errores por campo; el teléfono es opcional.
func ValidateDetails(b domain.BillingDetails, s domain.ShippingDetails) domain.FieldErrors {
	fe := domain.FieldErrors{}
	if strings.TrimSpace(b.FirstName) == "" {
		fe["firstName"] = "requerido"
	}
	if strings.TrimSpace(b.LastName) == "" {
		fe["lastName"] = "requerido"
	}
	if !validEmail(b.Email) {
		fe["email"] = "email inválido"
	}
	if strings.TrimSpace(s.Address) == "" {
		fe["address"] = "requerido"
	}
	if strings.TrimSpace(s.City) == "" {
		fe["city"] = "requerido"
	}
	if strings.TrimSpace(s.PostalCode) == "" {
		fe["postalCode"] = "requerido"
	}
	return fe
}

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

func validEmail(raw string) bool {
	e := strings.TrimSpace(raw)
	if e == "" || !emailRe.MatchString(e) {
		return false
	}
	a, err := mail.ParseAddress(e)
	return err == nil && a.Address == e
}

// Submit valida y confirma el intento. Devuelve la URL a la que redirigir.
func (uc *CheckoutUC) Submit(ctx context.Context, billing domain.BillingDetails, shipping domain.ShippingDetails) (string, error) {
	if fe := ValidateDetails(billing, shipping); len(fe) > 0 {
		return "", &domain.ValidationError{Fields: fe}
	}
	sess := uc.Session(ctx)
	if sess.Intent == nil {
		return "", domain.ErrNoActiveIntent
	}
	if !domain.CanTransitionTo(sess.State, domain.CheckoutConfirming) {
		return "", fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, sess.State, domain.CheckoutConfirming)
	}
	billing, shipping = normalizeBilling(billing), normalizeShipping(shipping)
	sess.State = domain.CheckoutConfirming
	sess.LastError = ""
	sess.Customer = customerIdentity(billing, shipping)
	uc.save(ctx, sess)

	redirect, err := uc.gateway.ConfirmIntent(ctx, sess.Intent.ClientSecret, billing, shipping, uc.returnURL)
	if err != nil {
		var pe *domain.PaymentError
		if errors.As(err, &pe) {
			sess.State = domain.CheckoutFailed
			sess.LastError = pe.Message
			uc.save(ctx, sess)
			return "", err
		}
		zlog.Warn().Err(err).Str("intent", sess.Intent.ID).Msg("confirmar intento de pago")
		sess.State = domain.CheckoutAwaitingUserInput
		sess.LastError = "No pudimos contactar al proveedor de pagos. Probá de nuevo."
		uc.save(ctx, sess)
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return redirect, nil
}

// Complete registra el resultado que informó la verificación.
func (uc *CheckoutUC) Complete(ctx context.Context, status domain.PaymentStatus) {
	sess := uc.Session(ctx)
	target := status.CheckoutState()
	if sess.State != domain.CheckoutConfirming {
		// la sesión puede venir de otro navegador o de un reload; el resultado manda igual
		zlog.Debug().Str("from", sess.State.String()).Str("to", target.String()).Msg("checkout completado fuera de confirming")
	}
	sess.State = target
	if status.Commits() {
		sess.Intent = nil
		sess.LastError = ""
	}
	uc.save(ctx, sess)
}

func customerIdentity(b domain.BillingDetails, s domain.ShippingDetails) *domain.CustomerIdentity {
	parts := make([]string, 0, 4)
	for _, p := range []string{s.Address, s.City, s.PostalCode, s.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return &domain.CustomerIdentity{Email: b.Email, Name: b.FullName(), Phone: b.Phone, Address: strings.Join(parts, ", ")}
}

func normalizeBilling(b domain.BillingDetails) domain.BillingDetails {
	b.FirstName = strings.TrimSpace(b.FirstName)
	b.LastName = strings.TrimSpace(b.LastName)
	b.Email = strings.ToLower(strings.TrimSpace(b.Email))
	b.Phone = strings.TrimSpace(b.Phone)
	return b
}

func normalizeShipping(s domain.ShippingDetails) domain.ShippingDetails {
	s.Address = strings.TrimSpace(s.Address)
	s.City = strings.TrimSpace(s.City)
	s.PostalCode = strings.TrimSpace(s.PostalCode)
	s.Country = strings.ToUpper(strings.TrimSpace(s.Country))
	return s
}
