package oncegate

import "context"

// Lazy is a memoizing value container built on Gate: the factory runs at
// most once, its result is published through the gate's release, and every
// later reader gets the memoized value. The zero value of T is a
// legitimate, permanently memoized result.
type Lazy[T any] struct {
	gate  *Gate
	fn    func() T
	value T
}

// NewLazy wraps fn in a Lazy container. fn is not invoked until the first
// Get.
func NewLazy[T any](fn func() T) *Lazy[T] {
	return &Lazy[T]{gate: New(), fn: fn}
}

// Get returns the memoized value, computing it on first access. Callers
// arriving during the computation block until the value is published; no
// caller observes a partially constructed value.
//
// Get panics with ErrReentrantAdmission when fn re-enters its own Get,
// which would otherwise be a self-deadlock.
func (l *Lazy[T]) Get() T {
	ok, err := l.gate.TryAdmit()
	if err != nil {
		panic(err)
	}
	if ok {
		defer l.gate.Release()
		l.value = l.fn()
	}
	return l.value
}

// GetContext is Get with a cancellable wait: when another caller is still
// computing and ctx is done first, GetContext returns ctx.Err() without
// consuming the admission.
func (l *Lazy[T]) GetContext(ctx context.Context) (T, error) {
	ok, err := l.gate.TryAdmitContext(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if ok {
		defer l.gate.Release()
		l.value = l.fn()
	}
	return l.value, nil
}

// Peek returns the memoized value without triggering the computation. ok
// reports whether the computation has completed, so a zero-value result is
// still told apart from "not yet computed".
func (l *Lazy[T]) Peek() (value T, ok bool) {
	if l.gate.Status() != StatusSpent {
		return value, false
	}
	return l.value, true
}

// Done reports whether the computation has completed. Non-blocking, safe to
// poll.
func (l *Lazy[T]) Done() bool {
	return l.gate.Status() == StatusSpent
}

// Status exposes the underlying gate's state for diagnostics: untapped
// before the first Get, admitted while the factory is running, spent once
// the value is memoized.
func (l *Lazy[T]) Status() Status {
	return l.gate.Status()
}
