package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phenrril/kambashop/internal/domain"
)

// CartStore es el carrito de una sesión. El storage es la fuente de verdad:
// cada mutación relee lo persistido antes de aplicar el cambio, así dos pestañas
// (o dos requests) no se pisan.
type CartStore struct {
	mu      sync.Mutex
	kv      domain.KeyValueStore
	pricing Pricing
	lines   []domain.CartLine
	subs    listeners[domain.CartLine]
	newID   func() string
}

func NewCartStore(ctx context.Context, kv domain.KeyValueStore, pricing Pricing) *CartStore {
	s := &CartStore{kv: kv, pricing: pricing, newID: uuid.NewString}
	s.lines = sanitizeLines(loadSlice[domain.CartLine](ctx, kv, domain.CartKey, nil))
	return s
}

func sanitizeLines(in []domain.CartLine) []domain.CartLine {
	out := in[:0:0]
	for _, l := range in {
		if l.Quantity < 1 || l.ID == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Reload vuelve a leer el storage (otra pestaña pudo haber cambiado el carrito).
func (s *CartStore) Reload(ctx context.Context) []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = sanitizeLines(loadSlice(ctx, s.kv, domain.CartKey, s.lines))
	return clone(s.lines)
}

func (s *CartStore) Snapshot() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.lines)
}

func (s *CartStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Subscribe registra fn para recibir el snapshot después de cada mutación.
func (s *CartStore) Subscribe(fn func([]domain.CartLine)) func() {
	s.mu.Lock()
	id := s.subs.add(fn)
	s.mu.Unlock()
	u := &unsubscriber{fn: func() {
		s.mu.Lock()
		delete(s.subs.fns, id)
		s.mu.Unlock()
	}}
	return u.call
}

// mutate aplica fn sobre lo persistido. Si el storage no tiene lugar para el
// resultado el cambio se descarta y se devuelve domain.ErrStorageFull; cualquier
// otro error de persistencia se tolera y el carrito sigue en memoria.
func (s *CartStore) mutate(ctx context.Context, fn func([]domain.CartLine) []domain.CartLine) error {
	s.mu.Lock()
	current := sanitizeLines(loadSlice(ctx, s.kv, domain.CartKey, s.lines))
	before := clone(current)
	next := sanitizeLines(fn(current))
	if err := saveSlice(ctx, s.kv, domain.CartKey, next); errors.Is(err, domain.ErrStorageFull) {
		s.lines = before
		s.mu.Unlock()
		return err
	}
	s.lines = next
	snap := clone(s.lines)
	fns := s.subs.snapshot()
	s.mu.Unlock()

	for _, f := range fns {
		f(clone(snap))
	}
	return nil
}

// AddLine agrega siempre una línea nueva, sin fusionar con otras iguales. Devuelve
// domain.ErrStorageFull si la sesión no puede guardar otra línea.
func (s *CartStore) AddLine(ctx context.Context, p *domain.Product, v domain.Variant, qty int) (string, error) {
	if p == nil {
		return "", errors.New("producto nil")
	}
	if qty < 1 {
		return "", domain.ErrInvalidQuantity
	}
	color := strings.TrimSpace(v.Color)
	if color == "" {
		color = p.FirstColor()
	}
	size := strings.TrimSpace(v.Size)
	currency := p.Currency
	if currency == "" {
		currency = s.pricing.Currency()
	}
	line := domain.CartLine{
		ID:        s.newID(),
		ProductID: p.ID.String(),
		Name:      p.Name,
		UnitPrice: p.Price,
		Currency:  currency,
		Color:     color,
		Size:      size,
		ImageURL:  p.ImageFor(color, size),
		Quantity:  qty,
	}
	if err := s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		return append(lines, line)
	}); err != nil {
		return "", err
	}
	return line.ID, nil
}

// UpdateQuantity con qty <= 0 equivale a RemoveLine. No hay tope superior.
func (s *CartStore) UpdateQuantity(ctx context.Context, lineID string, qty int) {
	if qty <= 0 {
		s.RemoveLine(ctx, lineID)
		return
	}
	_ = s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		for i := range lines {
			if lines[i].ID == lineID {
				lines[i].Quantity = qty
			}
		}
		return lines
	})
}

// RemoveLine es idempotente.
func (s *CartStore) RemoveLine(ctx context.Context, lineID string) {
	_ = s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		out := lines[:0]
		for _, l := range lines {
			if l.ID != lineID {
				out = append(out, l)
			}
		}
		return out
	})
}

func (s *CartStore) Clear(ctx context.Context) {
	_ = s.mutate(ctx, func([]domain.CartLine) []domain.CartLine { return nil })
}

func (s *CartStore) Subtotal() decimal.Decimal {
	return s.pricing.Subtotal(s.Snapshot())
}

func (s *CartStore) ShippingCost() decimal.Decimal {
	return s.pricing.ShippingCost(s.Subtotal())
}

func (s *CartStore) Total() decimal.Decimal {
	return s.Totals().Total
}

func (s *CartStore) Totals() domain.CartTotals {
	return s.pricing.Totals(s.Snapshot())
}

func (s *CartStore) FormattedTotal() string {
	return s.pricing.Format(s.Total())
}

func (s *CartStore) Currency() string {
	return s.pricing.Currency()
}
