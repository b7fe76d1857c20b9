package usecase

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phenrril/kambashop/internal/config"
	"github.com/phenrril/kambashop/internal/domain"
)

func testPricing() Pricing {
	return NewPricing(config.Shipping{
		FreeThreshold: config.DefaultFreeShippingThreshold,
		FlatFee:       config.DefaultShippingFlatFee,
		Currency:      "EUR",
	})
}

func product(price string, colors ...string) *domain.Product {
	return &domain.Product{
		ID:       uuid.New(),
		Slug:     "p-" + price,
		Name:     "Producto " + price,
		Price:    decimal.RequireFromString(price),
		Currency: "EUR",
		Colors:   colors,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
