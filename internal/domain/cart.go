package domain

import "github.com/shopspring/decimal"

const (
	CartKey      = "cart"
	FavoritesKey = "favorites"
	CheckoutKey  = "checkout"
)

// CartLine es una decisión de compra. Dos líneas del mismo producto/color/talle
// siguen siendo filas distintas con IDs distintos.
type CartLine struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Currency  string          `json:"currency"`
	Color     string          `json:"color,omitempty"`
	Size      string          `json:"size,omitempty"`
	ImageURL  string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Variant es la selección del usuario al agregar al carrito o a favoritos.
type Variant struct {
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

type CartTotals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	Total        decimal.Decimal `json:"total"`
}
