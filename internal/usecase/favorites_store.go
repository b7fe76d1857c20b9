package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/phenrril/kambashop/internal/domain"
)

// FavoritesStore guarda snapshots de producto por (productId, color).
type FavoritesStore struct {
	mu      sync.Mutex
	kv      domain.KeyValueStore
	entries []domain.FavoriteEntry
	subs    listeners[domain.FavoriteEntry]
	now     func() time.Time
}

func NewFavoritesStore(ctx context.Context, kv domain.KeyValueStore) *FavoritesStore {
	s := &FavoritesStore{kv: kv, now: time.Now}
	s.entries = loadSlice[domain.FavoriteEntry](ctx, kv, domain.FavoritesKey, nil)
	return s
}

func (s *FavoritesStore) Snapshot() []domain.FavoriteEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.entries)
}

func (s *FavoritesStore) Subscribe(fn func([]domain.FavoriteEntry)) func() {
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

func (s *FavoritesStore) mutate(ctx context.Context, fn func([]domain.FavoriteEntry) ([]domain.FavoriteEntry, bool)) error {
	s.mu.Lock()
	current := loadSlice(ctx, s.kv, domain.FavoritesKey, s.entries)
	before := clone(current)
	next, changed := fn(current)
	if !changed {
		s.entries = next
		s.mu.Unlock()
		return nil
	}
	if err := saveSlice(ctx, s.kv, domain.FavoritesKey, next); errors.Is(err, domain.ErrStorageFull) {
		s.entries = before
		s.mu.Unlock()
		return err
	}
	s.entries = next
	snap := clone(s.entries)
	fns := s.subs.snapshot()
	s.mu.Unlock()

	for _, f := range fns {
		f(clone(snap))
	}
	return nil
}

// Add es no-op si ya existe la clave (productId, color), con el color tal cual se
// eligió. Sin color usa el primero del producto.
func (s *FavoritesStore) Add(ctx context.Context, p *domain.Product, color, size string) error {
	if p == nil {
		return errors.New("producto nil")
	}
	colorToUse := strings.TrimSpace(color)
	if colorToUse == "" {
		colorToUse = p.FirstColor()
	}
	size = strings.TrimSpace(size)
	pid := p.ID.String()
	return s.mutate(ctx, func(entries []domain.FavoriteEntry) ([]domain.FavoriteEntry, bool) {
		for _, e := range entries {
			if e.ProductID == pid && e.SelectedColor == colorToUse {
				return entries, false
			}
		}
		return append(entries, domain.FavoriteEntry{
			ProductID:     pid,
			Name:          p.Name,
			SelectedColor: colorToUse,
			SelectedSize:  size,
			ImageURL:      p.ImageFor(colorToUse, size),
			AddedAt:       s.now().UTC(),
		}), true
	})
}

// Remove con color borra esa entrada; sin color borra todas las del producto.
func (s *FavoritesStore) Remove(ctx context.Context, productID, color string) {
	color = strings.TrimSpace(color)
	_ = s.mutate(ctx, func(entries []domain.FavoriteEntry) ([]domain.FavoriteEntry, bool) {
		out := entries[:0:0]
		for _, e := range entries {
			if !e.Matches(productID, color) {
				out = append(out, e)
			}
		}
		return out, len(out) != len(entries)
	})
}

func (s *FavoritesStore) IsFavorite(productID, color string) bool {
	color = strings.TrimSpace(color)
	for _, e := range s.Snapshot() {
		if e.Matches(productID, color) {
			return true
		}
	}
	return false
}

func (s *FavoritesStore) Clear(ctx context.Context) {
	_ = s.mutate(ctx, func(entries []domain.FavoriteEntry) ([]domain.FavoriteEntry, bool) {
		return nil, len(entries) > 0
	})
}
