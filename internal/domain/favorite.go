package domain

import "time"

type FavoriteEntry struct {
	ProductID     string    `json:"productId"`
	Name          string    `json:"name,omitempty"`
	SelectedColor string    `json:"selectedColor,omitempty"`
	SelectedSize  string    `json:"selectedSize,omitempty"`
	ImageURL      string    `json:"image,omitempty"`
	AddedAt       time.Time `json:"addedAt"`
}

// Matches compara por (productId, color) exactos. Sin color alcanza con el producto.
func (f FavoriteEntry) Matches(productID, color string) bool {
	if f.ProductID != productID {
		return false
	}
	if color == "" {
		return true
	}
	return f.SelectedColor == color
}
