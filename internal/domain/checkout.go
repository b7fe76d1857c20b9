package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type CheckoutState string

const (
	CheckoutIdle                     CheckoutState = "idle"
	CheckoutIntentRequested          CheckoutState = "intent_requested"
	CheckoutAwaitingUserInput        CheckoutState = "awaiting_user_input"
	CheckoutConfirming               CheckoutState = "confirming"
	CheckoutSucceeded                CheckoutState = "succeeded"
	CheckoutProcessing               CheckoutState = "processing"
	CheckoutRequiresNewPaymentMethod CheckoutState = "requires_payment_method"
	CheckoutCanceled                 CheckoutState = "canceled"
	CheckoutFailed                   CheckoutState = "failed"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutIdle:                     {CheckoutIntentRequested},
	CheckoutIntentRequested:          {CheckoutAwaitingUserInput, CheckoutIdle},
	CheckoutAwaitingUserInput:        {CheckoutConfirming, CheckoutIntentRequested, CheckoutIdle},
	CheckoutConfirming:               {CheckoutSucceeded, CheckoutProcessing, CheckoutRequiresNewPaymentMethod, CheckoutCanceled, CheckoutFailed, CheckoutAwaitingUserInput},
	CheckoutFailed:                   {CheckoutConfirming, CheckoutAwaitingUserInput, CheckoutIntentRequested, CheckoutIdle},
	CheckoutRequiresNewPaymentMethod: {CheckoutAwaitingUserInput, CheckoutIntentRequested, CheckoutIdle},
	CheckoutCanceled:                 {CheckoutAwaitingUserInput, CheckoutIntentRequested, CheckoutIdle},
	CheckoutSucceeded:                {CheckoutIdle},
	CheckoutProcessing:               {CheckoutIdle},
}

func CanTransitionTo(from, to CheckoutState) bool {
	for _, s := range checkoutTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal: estados a los que se llega sólo después de confirmar.
func (s CheckoutState) IsTerminal() bool {
	switch s {
	case CheckoutSucceeded, CheckoutProcessing, CheckoutRequiresNewPaymentMethod, CheckoutCanceled, CheckoutFailed:
		return true
	}
	return false
}

func (s CheckoutState) String() string { return string(s) }

type PaymentStatus string

const (
	PaymentSucceeded             PaymentStatus = "succeeded"
	PaymentProcessing            PaymentStatus = "processing"
	PaymentRequiresPaymentMethod PaymentStatus = "requires_payment_method"
	PaymentCanceled              PaymentStatus = "canceled"
)

// Commits indica que los fondos quedaron comprometidos aunque la acreditación esté pendiente.
func (s PaymentStatus) Commits() bool {
	return s == PaymentSucceeded || s == PaymentProcessing
}

func (s PaymentStatus) Retryable() bool {
	return s == PaymentRequiresPaymentMethod || s == PaymentCanceled
}

func (s PaymentStatus) CheckoutState() CheckoutState {
	switch s {
	case PaymentSucceeded:
		return CheckoutSucceeded
	case PaymentProcessing:
		return CheckoutProcessing
	case PaymentRequiresPaymentMethod:
		return CheckoutRequiresNewPaymentMethod
	case PaymentCanceled:
		return CheckoutCanceled
	}
	return CheckoutFailed
}

type PaymentIntentRef struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	AmountMinor  int64  `json:"amountMinor"`
	Currency     string `json:"currency"`
}

// PaymentIntent es la vista del proveedor sobre un intento ya creado.
type PaymentIntent struct {
	ID          string
	Status      PaymentStatus
	AmountMinor int64
	Currency    string
	LastError   string
}

// CheckoutSession se persiste por sesión para sobrevivir al redirect del proveedor.
type CheckoutSession struct {
	State     CheckoutState     `json:"state"`
	Intent    *PaymentIntentRef `json:"intent,omitempty"`
	LastError string            `json:"lastError,omitempty"`
	// Customer se guarda al confirmar para acompañar la verificación a la vuelta.
	Customer  *CustomerIdentity `json:"customer,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type BillingDetails struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

func (b BillingDetails) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(b.FirstName) + " " + strings.TrimSpace(b.LastName))
}

type ShippingDetails struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country,omitempty"`
}

// FieldErrors mapea campo -> mensaje.
type FieldErrors map[string]string

type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("datos inválidos: %s", strings.Join(keys, ", "))
}

// PaymentError es un rechazo informado por el proveedor al confirmar (tarjeta rechazada, etc.).
type PaymentError struct {
	Code    string
	Message string
}

func (e *PaymentError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}
