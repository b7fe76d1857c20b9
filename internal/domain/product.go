package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Slug      string          `gorm:"uniqueIndex;size:140" json:"slug"`
	Name      string          `gorm:"size:180" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	Currency  string          `gorm:"size:3" json:"currency"`
	Category  string          `gorm:"size:100" json:"category"`
	Colors    []string        `gorm:"type:jsonb;serializer:json" json:"colors"`
	Sizes     []string        `gorm:"type:jsonb;serializer:json" json:"sizes"`
	Active    bool            `gorm:"default:true;index" json:"active"`
	Images    []Image         `json:"images"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`
}

// Image puede estar asociada a un color, a un color+talle o a ninguno (imagen por defecto).
type Image struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;index" json:"-"`
	URL       string    `gorm:"size:255" json:"url"`
	Color     string    `gorm:"size:60" json:"color,omitempty"`
	Size      string    `gorm:"size:20" json:"size,omitempty"`
	Alt       string    `gorm:"size:140" json:"alt,omitempty"`
	CreatedAt time.Time `json:"-"`
}

func (p *Product) FirstColor() string {
	for _, c := range p.Colors {
		if s := strings.TrimSpace(c); s != "" {
			return s
		}
	}
	return ""
}

// ImageFor resuelve la imagen por prioridad: color+talle, color, imagen por defecto.
func (p *Product) ImageFor(color, size string) string {
	color = strings.TrimSpace(color)
	size = strings.TrimSpace(size)
	if color != "" && size != "" {
		for _, im := range p.Images {
			if strings.EqualFold(im.Color, color) && strings.EqualFold(im.Size, size) {
				return im.URL
			}
		}
	}
	if color != "" {
		for _, im := range p.Images {
			if strings.EqualFold(im.Color, color) && im.Size == "" {
				return im.URL
			}
		}
		for _, im := range p.Images {
			if strings.EqualFold(im.Color, color) {
				return im.URL
			}
		}
	}
	for _, im := range p.Images {
		if im.Color == "" && im.Size == "" {
			return im.URL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}

type ProductFilter struct {
	Category string
	Query    string
	Page     int
	PageSize int
}
