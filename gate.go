package oncegate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// Status represents a Gate's lifecycle state. Transitions are monotonic:
// StatusUntapped -> StatusAdmitted -> StatusSpent, never reversed.
type Status int32

const (
	// StatusUntapped means the gate was only created, no admission so far.
	StatusUntapped Status = iota

	// StatusAdmitted means some goroutine is inside the guarded block and is
	// supposed to call Release.
	StatusAdmitted

	// StatusSpent is terminal. All further admission attempts fail quickly.
	StatusSpent
)

func (s Status) String() string {
	switch s {
	case StatusUntapped:
		return "untapped"
	case StatusAdmitted:
		return "admitted"
	case StatusSpent:
		return "spent"
	}
	return "faulty"
}

// Gate is a single-admission execution gate: exactly one caller is admitted
// over the gate's lifetime. Callers that arrive while the winner is inside
// the guarded block wait for Release; once the gate is spent every attempt
// fails fast without blocking.
//
// The gate's mutex is never held across the caller's guarded block, so an
// arbitrarily long critical section never slows down the spent fast path.
// A spent gate is permanently inert and cannot be reused. The zero value is
// not usable; use New.
//
// Recommended usage mirrors a scoped lock:
//
//	g := oncegate.New()
//	if ok, _ := g.TryAdmit(); ok {
//		defer g.Release()
//		// guarded block
//	}
type Gate struct {
	status int32 // Status; loaded atomically on the fast path

	mu      sync.Mutex // protects owner and status transitions
	owner   int64      // goroutine id of the winner, 0 if none yet
	spentCh chan struct{}
}

// New returns a fresh Gate in the untapped state.
func New() *Gate {
	return &Gate{spentCh: make(chan struct{})}
}

// TryAdmit grants admission to exactly one caller over the gate's lifetime.
//
// It is not necessarily the first caller that wins, but every false return
// is ordered after the winner's Release, so all writes the winner made
// before releasing are visible to the caller. The winner must eventually
// call Release. The wait is uninterruptible; see TryAdmitContext for the
// cancellable variant.
//
// Calling TryAdmit again from the goroutine that currently holds the open
// admission returns ErrReentrantAdmission instead of deadlocking.
func (g *Gate) TryAdmit() (bool, error) {
	return g.tryAdmit(nil)
}

// TryAdmitContext is the interruptible variant of TryAdmit. If ctx is done
// while waiting, it returns ctx.Err() and leaves the gate untouched: the
// admission is not consumed and remains winnable by other goroutines.
func (g *Gate) TryAdmitContext(ctx context.Context) (bool, error) {
	return g.tryAdmit(ctx)
}

func (g *Gate) tryAdmit(ctx context.Context) (bool, error) {
	if Status(atomic.LoadInt32(&g.status)) == StatusSpent {
		return false, nil
	}
	g.mu.Lock()
	switch Status(atomic.LoadInt32(&g.status)) {
	case StatusUntapped:
		atomic.StoreInt32(&g.status, int32(StatusAdmitted))
		g.owner = goid.Get()
		g.mu.Unlock()
		return true, nil
	case StatusAdmitted:
		if g.owner == goid.Get() {
			g.mu.Unlock()
			return false, ErrReentrantAdmission
		}
		g.mu.Unlock()
		if ctx == nil {
			<-g.spentCh
			return false, nil
		}
		select {
		case <-g.spentCh:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	default:
		g.mu.Unlock()
		return false, nil
	}
}

// Release spends the gate and wakes every waiter. It must be called by the
// goroutine that won the admission, typically from a defer right after
// TryAdmit returned true.
//
// Release returns ErrNeverAdmitted if no admission was ever granted and
// ErrNotOwner if the caller did not win the admission. A duplicate Release
// by the legitimate owner is a no-op. This is the sole point establishing
// the happens-before edge between the winner's writes and every observer of
// the spent state.
func (g *Gate) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if Status(atomic.LoadInt32(&g.status)) == StatusUntapped {
		return ErrNeverAdmitted
	}
	if g.owner != goid.Get() {
		return ErrNotOwner
	}
	if Status(atomic.LoadInt32(&g.status)) == StatusSpent {
		return nil
	}
	atomic.StoreInt32(&g.status, int32(StatusSpent))
	close(g.spentCh)
	return nil
}

// RunOnce runs fn under the gate's single admission, guaranteeing Release on
// every exit path including a panic inside fn. When the gate was already
// spent, RunOnce returns nil without running fn. fn's error propagates after
// the release; the gate is spent regardless of whether fn failed.
func (g *Gate) RunOnce(fn func() error) error {
	ok, err := g.TryAdmit()
	if err != nil || !ok {
		return err
	}
	defer g.Release()
	return fn()
}

// Status reports the gate's current state without blocking. Purely
// informational: unless it is already StatusSpent, the state may change
// right after the call returns.
func (g *Gate) Status() Status {
	return Status(atomic.LoadInt32(&g.status))
}

func (g *Gate) String() string {
	return fmt.Sprintf("Gate[%s]", g.Status())
}

// Call runs fn under g's single admission and returns its result. When the
// gate was already spent, orElse is returned instead. fn's error propagates
// after the gate is released; admission is single-use regardless of fn's
// outcome, so a failed fn is never retried.
func Call[T any](g *Gate, fn func() (T, error), orElse T) (T, error) {
	return CallElse(g, fn, func() (T, error) { return orElse, nil })
}

// CallElse is Call with a computed fallback: orElse is invoked only when the
// gate was already spent.
func CallElse[T any](g *Gate, fn func() (T, error), orElse func() (T, error)) (T, error) {
	ok, err := g.TryAdmit()
	if err != nil {
		var zero T
		return zero, err
	}
	if !ok {
		return orElse()
	}
	defer g.Release()
	return fn()
}
