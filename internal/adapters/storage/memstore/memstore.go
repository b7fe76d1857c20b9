package memstore

import (
	"context"
	"net/http"
	"sync"

	"github.com/phenrril/kambashop/internal/adapters/storage"
	"github.com/phenrril/kambashop/internal/domain"
)

// Store guarda todo en memoria. Sirve para desarrollo y tests.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
	Err  error // si se setea, Load/Save fallan con este error
}

func New() *Store {
	return &Store{data: map[string][]byte{}}
}

func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

// Provider entrega un Store por cookie de sesión, todo en memoria del proceso.
type Provider struct {
	mu       sync.Mutex
	sessions map[string]*Store
}

func NewProvider() *Provider {
	return &Provider{sessions: map[string]*Store{}}
}

func (p *Provider) For(w http.ResponseWriter, r *http.Request) domain.KeyValueStore {
	sid := storage.SessionID(w, r)
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.sessions[sid]
	if !ok {
		st = New()
		p.sessions[sid] = st
	}
	return st
}
