// Package calc resolves aggregate functions by column name and computes
// them. A Registry maps case-insensitive column names to Funcs; currently
// the only registered aggregate is the arithmetic mean of the Strength
// column, but the registry keeps the column set open for extension.
package calc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xraph/calcq/store"
)

// Func computes an aggregate value scoped by an asset identifier.
// An empty scope is a defined result (0.0), never an error.
type Func func(ctx context.Context, assetID string) (float64, error)

// UnsupportedColumnError reports a column with no registered aggregate.
// It is a rejected-but-not-fatal condition: the pipeline turns it into a
// result carrying the error text, not a transport failure.
type UnsupportedColumnError struct {
	Column string
}

func (e *UnsupportedColumnError) Error() string {
	return fmt.Sprintf("column %q is not supported for average calculation", e.Column)
}

// Registry maps column names to aggregate functions.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]Func),
	}
}

// Register binds an aggregate function to a column name. The match is
// case-insensitive; a later Register for the same column replaces the
// earlier one.
func (r *Registry) Register(column string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[strings.ToLower(column)] = fn
}

// Resolve returns the aggregate function for the given column name.
// Returns false if no function is registered.
func (r *Registry) Resolve(column string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[strings.ToLower(column)]
	return fn, ok
}

// Columns returns all registered column names.
func (r *Registry) Columns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cols := make([]string, 0, len(r.funcs))
	for c := range r.funcs {
		cols = append(cols, c)
	}
	return cols
}

// Compute resolves the column and runs its aggregate. An unregistered
// column returns 0.0 and an *UnsupportedColumnError.
func (r *Registry) Compute(ctx context.Context, assetID, column string) (float64, error) {
	fn, ok := r.Resolve(column)
	if !ok {
		return 0, &UnsupportedColumnError{Column: column}
	}
	return fn(ctx, assetID)
}

// Mean returns an aggregate Func computing the arithmetic mean of the
// Strength readings for an asset. Zero matching rows yield 0.0.
func Mean(signals store.SignalStore) Func {
	return func(ctx context.Context, assetID string) (float64, error) {
		values, err := signals.StrengthValues(ctx, assetID)
		if err != nil {
			return 0, fmt.Errorf("calc: read strength values for asset %s: %w", assetID, err)
		}
		if len(values) == 0 {
			return 0, nil
		}

		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	}
}

// DefaultRegistry creates a registry with the stock aggregate set:
// the "Strength" column mapped to Mean.
func DefaultRegistry(signals store.SignalStore) *Registry {
	r := NewRegistry()
	r.Register("Strength", Mean(signals))
	return r
}
