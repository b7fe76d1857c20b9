package circuitbreaker

import (
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

type Options struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailuresOpen uint32
	// IsSuccessful permite no contar como falla errores de negocio (ej. tarjeta rechazada).
	IsSuccessful func(err error) bool
}

func DefaultOptions() Options {
	return Options{MaxRequests: 1, Interval: time.Minute, Timeout: 30 * time.Second, FailuresOpen: 5}
}

func New[T any](name string, o Options) *gobreaker.CircuitBreaker[T] {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: o.MaxRequests,
		Interval:    o.Interval,
		Timeout:     o.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= o.FailuresOpen
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zlog.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker")
		},
		IsSuccessful: o.IsSuccessful,
	}
	return gobreaker.NewCircuitBreaker[T](st)
}
