package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer se arma con los datos que llegan en la verificación del pago; sirve para
// vincular órdenes del mismo comprador.
type Customer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"size:140;uniqueIndex"`
	Name      string    `gorm:"size:140"`
	Phone     string    `gorm:"size:60"`
	Address   string    `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
