package domain

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// KeyValueStore es el almacenamiento durable por navegador. Load devuelve nil, nil
// cuando la clave no existe.
type KeyValueStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (*PaymentIntentRef, error)
	// ConfirmIntent devuelve la URL a la que hay que redirigir al comprador.
	// Un rechazo del proveedor llega como *PaymentError.
	ConfirmIntent(ctx context.Context, clientSecret string, billing BillingDetails, shipping ShippingDetails, returnURL string) (string, error)
	RetrieveIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
}

type OrderVerifier interface {
	Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error)
}

type PurchaseProps struct {
	Value    decimal.Decimal
	Currency string
	OrderID  string
}

type TrackOptions struct {
	EventID string
}

// BeaconEmitter es fire-and-forget: no bloquea ni devuelve error.
type BeaconEmitter interface {
	Track(ctx context.Context, event string, props PurchaseProps, opts TrackOptions)
}

type ConversionSender interface {
	SendPurchase(ctx context.Context, o *Order) error
}

type Notifier interface {
	NotifyOrder(ctx context.Context, o *Order) error
}

type ProductRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	Save(ctx context.Context, p *Product) error
}

type OrderRepo interface {
	FindByIntentID(ctx context.Context, intentID string) (*Order, error)
	Save(ctx context.Context, o *Order) error
	ListCommitted(ctx context.Context) ([]Order, error)
}

type CustomerRepo interface {
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	Save(ctx context.Context, c *Customer) error
}

type OrderExporter interface {
	WriteOrders(w io.Writer, orders []Order) error
}
