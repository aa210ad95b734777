// Package api defines public API contracts for plugin-mmap.
package api

import "context"

// Observer receives lifecycle events after each operation completes.
// Implementations must be safe for concurrent use.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Observers fans an event out to every non-nil member in order.
type Observers []Observer

func (o Observers) Observe(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, ev)
		}
	}
}

// Stats exposes aggregate state of live mappings.
type Stats interface {
	Live() int
	MappedBytes() int64
}
