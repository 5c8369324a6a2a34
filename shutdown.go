package oncegate

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

type hooksOptions struct {
	logger *zap.SugaredLogger
}

type HooksOption func(options *hooksOptions)

func defaultHooksOptions() *hooksOptions {
	return &hooksOptions{logger: zap.NewNop().Sugar()}
}

func applyHooksOpts(opts ...HooksOption) *hooksOptions {
	options := defaultHooksOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func LoggerOption(logger *zap.SugaredLogger) HooksOption {
	return func(options *hooksOptions) {
		options.logger = logger
	}
}

// Hooks is a process-shutdown cleanup registry. Cleanups run exactly once,
// in reverse registration order, either through an explicit Run call or when
// a terminal signal arrives after HandleSignals was set up.
type Hooks struct {
	gate   *Gate
	logger *zap.SugaredLogger

	mu  sync.Mutex // protects fns
	fns []func()
}

func NewHooks(opts ...HooksOption) *Hooks {
	options := applyHooksOpts(opts...)
	return &Hooks{gate: New(), logger: options.logger}
}

// Register adds fn to the registry. Registrations after the cleanups have
// started running are never executed.
func (h *Hooks) Register(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

// RegisterLazy registers a cleanup for l's memoized value. At shutdown fn
// runs if and only if the computation actually occurred; a lazy value that
// was never materialized needs no cleanup.
func RegisterLazy[T any](h *Hooks, l *Lazy[T], fn func(T)) {
	h.Register(func() {
		if value, ok := l.Peek(); ok {
			fn(value)
		}
	})
}

// Run executes the registered cleanups exactly once, in reverse registration
// order. Concurrent callers block until the first caller finishes; later
// calls are no-ops.
func (h *Hooks) Run() {
	_ = h.gate.RunOnce(func() error {
		h.mu.Lock()
		fns := h.fns
		h.fns = nil
		h.mu.Unlock()
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
		return nil
	})
}

// HandleSignals runs the cleanups when the process receives a terminal
// signal. The returned channel is closed once the cleanups have finished,
// letting main block until shutdown completes.
func (h *Hooks) HandleSignals() <-chan struct{} {
	done := make(chan struct{})
	ch := terminalSignalCh()
	go func() {
		defer close(done)
		sig := <-ch
		h.logger.Infow("running shutdown cleanups", "signal", sig)
		h.Run()
	}()
	return done
}

func terminalSignalCh() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	return ch
}
