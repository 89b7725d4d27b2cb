package events

import (
	"context"

	"reservas_api/pkg/circuitbreaker"
)

// Guarded fails fast with circuitbreaker.ErrOpen while the broker keeps failing.
type Guarded struct {
	next    Publisher
	breaker *circuitbreaker.CircuitBreaker
}

func NewGuarded(next Publisher, breaker *circuitbreaker.CircuitBreaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

func (g *Guarded) Publish(ctx context.Context, event Event) error {
	return g.breaker.Execute(func() error {
		return g.next.Publish(ctx, event)
	})
}

func (g *Guarded) Healthy() bool {
	return g.breaker.State() != circuitbreaker.StateOpen && g.next.Healthy()
}

func (g *Guarded) Close() error {
	return g.next.Close()
}
