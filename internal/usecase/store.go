package usecase

import (
	"context"
	"encoding/json"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/phenrril/kambashop/internal/domain"
)

// listeners guarda las suscripciones de un store. No es seguro para uso concurrente;
// el store dueño lo protege con su mutex.
type listeners[T any] struct {
	next int
	fns  map[int]func([]T)
}

func (l *listeners[T]) add(fn func([]T)) int {
	if l.fns == nil {
		l.fns = map[int]func([]T){}
	}
	l.next++
	l.fns[l.next] = fn
	return l.next
}

func (l *listeners[T]) snapshot() []func([]T) {
	out := make([]func([]T), 0, len(l.fns))
	for _, fn := range l.fns {
		out = append(out, fn)
	}
	return out
}

// loadSlice lee una colección persistida. Si el storage falla devuelve fallback;
// si el contenido no parsea devuelve vacío.
func loadSlice[T any](ctx context.Context, kv domain.KeyValueStore, key string, fallback []T) []T {
	raw, err := kv.Load(ctx, key)
	if err != nil {
		zlog.Warn().Err(err).Str("key", key).Msg("storage no disponible, uso copia en memoria")
		return clone(fallback)
	}
	if len(raw) == 0 {
		return nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		zlog.Warn().Err(err).Str("key", key).Msg("snapshot corrupto, se descarta")
		return nil
	}
	return out
}

// saveSlice persiste best-effort: los errores se loguean y se devuelven para que el
// store decida; sólo domain.ErrStorageFull llega a quien llamó.
func saveSlice[T any](ctx context.Context, kv domain.KeyValueStore, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		zlog.Warn().Err(err).Str("key", key).Msg("serializar colección")
		return err
	}
	if err := kv.Save(ctx, key, b); err != nil {
		zlog.Warn().Err(err).Str("key", key).Msg("no se pudo persistir, sigo en memoria")
		return err
	}
	return nil
}

func clone[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

type unsubscriber struct {
	once sync.Once
	fn   func()
}

func (u *unsubscriber) call() { u.once.Do(u.fn) }
