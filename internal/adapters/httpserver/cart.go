package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/phenrril/kambashop/internal/domain"
	"github.com/phenrril/kambashop/internal/usecase"
)

type cartView struct {
	Lines                 []domain.CartLine `json:"lines"`
	Items                 int               `json:"items"`
	Subtotal              decimal.Decimal   `json:"subtotal"`
	ShippingCost          decimal.Decimal   `json:"shippingCost"`
	Total                 decimal.Decimal   `json:"total"`
	FormattedTotal        string            `json:"formattedTotal"`
	Currency              string            `json:"currency"`
	FreeShippingThreshold decimal.Decimal   `json:"freeShippingThreshold"`
}

func (s *Server) cartFor(w http.ResponseWriter, r *http.Request) (domain.KeyValueStore, *usecase.CartStore) {
	kv := s.Sessions.For(w, r)
	return kv, usecase.NewCartStore(r.Context(), kv, s.Pricing)
}

func (s *Server) viewCart(c *usecase.CartStore) cartView {
	lines := c.Snapshot()
	if lines == nil {
		lines = []domain.CartLine{}
	}
	items := 0
	for _, l := range lines {
		items += l.Quantity
	}
	t := c.Totals()
	return cartView{
		Lines:                 lines,
		Items:                 items,
		Subtotal:              t.Subtotal,
		ShippingCost:          t.ShippingCost,
		Total:                 t.Total,
		FormattedTotal:        c.FormattedTotal(),
		Currency:              c.Currency(),
		FreeShippingThreshold: s.Pricing.Shipping.FreeThreshold,
	}
}

func (s *Server) apiCart(w http.ResponseWriter, r *http.Request) {
	_, c := s.cartFor(w, r)
	writeJSON(w, http.StatusOK, s.viewCart(c))
}

type addLineReq struct {
	Product  string `json:"product"`
	Color    string `json:"color"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

func (s *Server) apiCartAdd(w http.ResponseWriter, r *http.Request) {
	var req addLineReq
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "json inválido")
		return
	}
	if req.Product == "" {
		badRequest(w, "product requerido")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	p, err := s.Products.Get(r.Context(), req.Product)
	if err != nil {
		respondError(w, r, err)
		return
	}
	_, c := s.cartFor(w, r)
	id, err := c.AddLine(r.Context(), p, domain.Variant{Color: req.Color, Size: req.Size}, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		LineID string `json:"lineId"`
		cartView
	}{id, s.viewCart(c)})
}

type updateLineReq struct {
	Quantity *int `json:"quantity"`
}

func (s *Server) apiCartUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateLineReq
	if err := decodeJSON(r, &req); err != nil || req.Quantity == nil {
		badRequest(w, "quantity requerido")
		return
	}
	_, c := s.cartFor(w, r)
	c.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), *req.Quantity)
	writeJSON(w, http.StatusOK, s.viewCart(c))
}

func (s *Server) apiCartRemove(w http.ResponseWriter, r *http.Request) {
	_, c := s.cartFor(w, r)
	c.RemoveLine(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, s.viewCart(c))
}

func (s *Server) apiCartClear(w http.ResponseWriter, r *http.Request) {
	_, c := s.cartFor(w, r)
	c.Clear(r.Context())
	writeJSON(w, http.StatusOK, s.viewCart(c))
}
