package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phenrril/kambashop/internal/adapters/storage"
	"github.com/phenrril/kambashop/internal/domain"
)

// Store guarda las claves de una sesión en Redis bajo session:<sid>:<key>.
type Store struct {
	client    *redis.Client
	sessionID string
	ttl       time.Duration
}

func New(client *redis.Client, sessionID string, ttl time.Duration) *Store {
	return &Store{client: client, sessionID: sessionID, ttl: ttl}
}

func (s *Store) key(k string) string {
	return fmt.Sprintf("session:%s:%s", s.sessionID, k)
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return b, nil
}

// Save renueva el TTL en cada escritura.
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

type Provider struct {
	Client *redis.Client
	TTL    time.Duration
}

func (p Provider) For(w http.ResponseWriter, r *http.Request) domain.KeyValueStore {
	return New(p.Client, storage.SessionID(w, r), p.TTL)
}
