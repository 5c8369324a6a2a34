package oncegate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateSingleAdmission(t *testing.T) {
	const loops = 50
	const workers = 20

	check := 0
	for i := 0; i < loops; i++ {
		expected := check + 1
		g := New()

		var admitted int32
		var wg sync.WaitGroup
		for j := 0; j < workers; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := g.TryAdmit()
				assert.NoError(t, err)
				if ok {
					copied := check
					time.Sleep(10 * time.Millisecond)
					check = copied + 1
					atomic.AddInt32(&admitted, 1)
					assert.NoError(t, g.Release())
				}
				// Correct in any case: a false return is ordered after the
				// winner's release.
				assert.Equal(t, expected, check)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), admitted)
		assert.Equal(t, expected, check)
	}
	assert.Equal(t, loops, check)
}

func TestGateVisibility(t *testing.T) {
	type fixture struct {
		foo1 int
		foo2 int
		foo3 int
	}

	g := New()
	var shared *fixture

	const readers = 8
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := g.TryAdmit()
			assert.NoError(t, err)
			if ok {
				// Populated as non-atomically as possible on purpose.
				shared = &fixture{}
				shared.foo1 = 42
				time.Sleep(20 * time.Millisecond)
				shared.foo2 = 42
				time.Sleep(20 * time.Millisecond)
				shared.foo3 = 42
				assert.NoError(t, g.Release())
				return
			}
			assert.Equal(t, 42, shared.foo1)
			assert.Equal(t, 42, shared.foo2)
			assert.Equal(t, 42, shared.foo3)
		}()
	}
	wg.Wait()
}

func TestGateAdmitReleaseScenario(t *testing.T) {
	g := New()
	counter := 0

	ok, err := g.TryAdmit()
	assert.NoError(t, err)
	assert.True(t, ok)

	observed := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func() {
			ok, err := g.TryAdmit()
			assert.NoError(t, err)
			assert.False(t, ok)
			observed <- counter
		}()
	}

	time.Sleep(100 * time.Millisecond)
	counter = 1
	assert.NoError(t, g.Release())

	for i := 0; i < 2; i++ {
		select {
		case <-time.NewTimer(3000 * time.Millisecond).C:
			assert.FailNow(t, "timed out waiting for blocked admissions")
		case v := <-observed:
			assert.Equal(t, 1, v)
		}
	}
}

func TestGateReentrantAdmission(t *testing.T) {
	g := New()
	ok, err := g.TryAdmit()
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.TryAdmit()
	assert.ErrorIs(t, err, ErrReentrantAdmission)
	assert.False(t, ok)

	assert.NoError(t, g.Release())
}

func TestGateReleaseNeverAdmitted(t *testing.T) {
	g := New()
	assert.ErrorIs(t, g.Release(), ErrNeverAdmitted)
}

func TestGateReleaseNotOwner(t *testing.T) {
	g := New()
	ok, err := g.TryAdmit()
	assert.NoError(t, err)
	assert.True(t, ok)

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Release()
	}()
	assert.ErrorIs(t, <-errCh, ErrNotOwner)

	assert.NoError(t, g.Release())
}

func TestGateReleaseIdempotent(t *testing.T) {
	g := New()
	ok, err := g.TryAdmit()
	assert.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, g.Release())
	assert.NoError(t, g.Release())
	assert.Equal(t, StatusSpent, g.Status())
}

func TestGateReleaseAfterSpentNotOwner(t *testing.T) {
	g := New()
	ok, err := g.TryAdmit()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, g.Release())

	// A goroutine that never won the admission gets the ownership error even
	// once the gate is spent.
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Release()
	}()
	assert.ErrorIs(t, <-errCh, ErrNotOwner)
}

func TestGateSpentFastPath(t *testing.T) {
	g := New()
	ok, err := g.TryAdmit()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, g.Release())

	start := time.Now()
	for i := 0; i < 10000; i++ {
		ok, err := g.TryAdmit()
		if ok || err != nil {
			t.Fatalf("admission on a spent gate: ok=%v err=%v", ok, err)
		}
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestGateTryAdmitContext(t *testing.T) {
	g := New()
	ok, err := g.TryAdmitContext(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := g.TryAdmitContext(ctx)
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-time.NewTimer(3000 * time.Millisecond).C:
		assert.FailNow(t, "timed out waiting for the cancelled admission")
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	}

	// Cancellation aborts the wait without consuming the admission.
	assert.Equal(t, StatusAdmitted, g.Status())
	assert.NoError(t, g.Release())

	ok, err = g.TryAdmitContext(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestGateRunOnce(t *testing.T) {
	g := New()
	runs := 0
	assert.NoError(t, g.RunOnce(func() error {
		runs++
		return nil
	}))
	assert.NoError(t, g.RunOnce(func() error {
		runs++
		return nil
	}))
	assert.Equal(t, 1, runs)
	assert.Equal(t, StatusSpent, g.Status())
}

func TestGateRunOnceError(t *testing.T) {
	g := New()
	e := errors.New("error")
	assert.ErrorIs(t, g.RunOnce(func() error { return e }), e)
	// A failed action still spends the gate; admission is single-use.
	assert.Equal(t, StatusSpent, g.Status())
	assert.NoError(t, g.RunOnce(func() error { return errors.New("unreachable") }))
}

func TestGateRunOncePanic(t *testing.T) {
	g := New()
	assert.Panics(t, func() {
		_ = g.RunOnce(func() error { panic("panic inside the guarded block") })
	})
	assert.Equal(t, StatusSpent, g.Status())
}

func TestGateCall(t *testing.T) {
	g := New()
	v, err := Call(g, func() (int, error) { return 128, nil }, -1)
	assert.NoError(t, err)
	assert.Equal(t, 128, v)

	v, err = Call(g, func() (int, error) { return 256, nil }, -1)
	assert.NoError(t, err)
	assert.Equal(t, -1, v)
}

func TestGateCallElse(t *testing.T) {
	g := New()
	e := errors.New("error")
	_, err := CallElse(g,
		func() (string, error) { return "", e },
		func() (string, error) { return "fallback", nil })
	assert.ErrorIs(t, err, e)

	v, err := CallElse(g,
		func() (string, error) { return "unreachable", nil },
		func() (string, error) { return "fallback", nil })
	assert.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestGateStatus(t *testing.T) {
	g := New()
	assert.Equal(t, StatusUntapped, g.Status())
	assert.Equal(t, "Gate[untapped]", g.String())

	ok, err := g.TryAdmit()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StatusAdmitted, g.Status())

	assert.NoError(t, g.Release())
	assert.Equal(t, StatusSpent, g.Status())
	assert.Equal(t, "spent", g.Status().String())
	assert.Equal(t, "Gate[spent]", g.String())
}
