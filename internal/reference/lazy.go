package reference

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/kailas-cloud/mongomap/internal/mapping"
)

// Holder is the untyped view of a Lazy used by the converter.
type Holder interface {
	mapping.LazyHolder
	BindSource(source any, load func(context.Context) (any, error))
	Current() (any, bool)
	Source() any
}

// Lazy is a reference resolved on first Get and cached afterwards. Use it through a pointer
// field, e.g. `Owner *reference.Lazy[User] mongo:"ref:lazy"`. Safe for concurrent use.
type Lazy[T any] struct {
	mu     sync.Mutex
	loaded bool
	value  T
	source any
	load   func(context.Context) (any, error)
}

// Of returns a holder already resolved to v.
func Of[T any](v T) *Lazy[T] {
	return &Lazy[T]{loaded: true, value: v}
}

// LazyTarget returns the referenced type.
func (l *Lazy[T]) LazyTarget() reflect.Type { return reflect.TypeFor[T]() }

// Get resolves the reference once. A failed load is retried on the next call.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.value, nil
	}
	var zero T
	if l.load == nil {
		return zero, ErrNotBound
	}
	v, err := l.load(ctx)
	if err != nil {
		return zero, err
	}
	if v != nil {
		typed, ok := v.(T)
		if !ok {
			return zero, fmt.Errorf("reference: lazy load returned %T, want %s", v, l.LazyTarget())
		}
		l.value = typed
	}
	l.loaded = true
	l.load = nil
	return l.value, nil
}

// Set replaces the value and marks the holder resolved.
func (l *Lazy[T]) Set(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value, l.loaded, l.load = v, true, nil
}

// Loaded reports whether the value is available without a lookup.
func (l *Lazy[T]) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// BindSource attaches the stored reference value and the loader resolving it.
func (l *Lazy[T]) BindSource(source any, load func(context.Context) (any, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.source, l.load, l.loaded = source, load, false
}

// Current returns the resolved value, if any.
func (l *Lazy[T]) Current() (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		return nil, false
	}
	return l.value, true
}

// Source returns the stored reference value the holder was read from.
func (l *Lazy[T]) Source() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source
}
