package usecase

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/phenrril/kambashop/internal/config"
	"github.com/phenrril/kambashop/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Pricing calcula los derivados del carrito. Nunca se guarda nada calculado.
type Pricing struct {
	Shipping config.Shipping
}

func NewPricing(s config.Shipping) Pricing {
	if s.Currency == "" {
		s.Currency = config.DefaultCurrency
	}
	return Pricing{Shipping: s}
}

func (p Pricing) Currency() string { return p.Shipping.Currency }

func (p Pricing) Subtotal(lines []domain.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		sum = sum.Add(l.LineTotal())
	}
	return sum
}

// ShippingCost es cero desde el umbral inclusive.
func (p Pricing) ShippingCost(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.Shipping.FreeThreshold) {
		return decimal.Zero
	}
	return p.Shipping.FlatFee
}

func (p Pricing) Totals(lines []domain.CartLine) domain.CartTotals {
	sub := p.Subtotal(lines)
	ship := p.ShippingCost(sub)
	return domain.CartTotals{Subtotal: sub, ShippingCost: ship, Total: sub.Add(ship)}
}

// Format renderiza "EUR 1,234.50".
func (p Pricing) Format(v decimal.Decimal) string {
	return FormatMoney(v, p.Currency())
}

func FormatMoney(v decimal.Decimal, currency string) string {
	s := v.Abs().StringFixed(2)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	n := len(intPart)
	rem := n % 3
	if rem == 0 {
		rem = 3
	}
	out := intPart[:rem]
	for i := rem; i < n; i += 3 {
		out += "," + intPart[i:i+3]
	}
	if v.IsNegative() {
		out = "-" + out
	}
	return currency + " " + out + frac
}

// ToMinorUnits redondea una sola vez sobre el total (half-up), no por línea.
func ToMinorUnits(v decimal.Decimal) int64 {
	return v.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
