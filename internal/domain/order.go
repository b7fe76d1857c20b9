package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order es el registro del lado servidor de un pago verificado.
type Order struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey"`
	IntentID       string        `gorm:"size:120;uniqueIndex"`
	OrderNumber    string        `gorm:"size:40;index"`
	EventID        string        `gorm:"size:120"`
	Status         PaymentStatus `gorm:"type:varchar(40);index"`
	AmountMinor    int64         `gorm:"not null;default:0"`
	Currency       string        `gorm:"size:3"`
	Email          string        `gorm:"size:140"`
	Name           string        `gorm:"size:140"`
	Phone          string        `gorm:"size:60"`
	Address        string        `gorm:"size:255"`
	CustomerID     *uuid.UUID    `gorm:"type:uuid;index"`
	ConversionSent bool          `gorm:"not null;default:false"`
	Notified       bool          `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) Amount() decimal.Decimal {
	return decimal.New(o.AmountMinor, -2)
}

// OrderConversionEvent se construye una única vez por checkout completado.
type OrderConversionEvent struct {
	EventID     string          `json:"eventId"`
	OrderNumber string          `json:"orderNumber"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

type CustomerIdentity struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type VerifyRequest struct {
	IntentID    string
	OrderNumber string
	EventID     string
	Customer    CustomerIdentity
}

// VerifyResult lleva el número de orden y event id registrados del lado servidor,
// que pueden ser de una verificación anterior del mismo intento.
type VerifyResult struct {
	Status      PaymentStatus `json:"status"`
	AmountMinor int64         `json:"amountMinorUnits"`
	OrderNumber string        `json:"orderNumber,omitempty"`
	EventID     string        `json:"eventId,omitempty"`
}
