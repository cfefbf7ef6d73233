// Package shutdown runs cleanup hooks when the process is asked to stop.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Hook is a named cleanup step.
type Hook struct {
	Name string
	Fn   func(context.Context) error
}

// Handler waits for a stop signal and runs hooks in reverse registration
// order, so that the last component started is the first one stopped.
type Handler struct {
	timeout  time.Duration
	signals  []os.Signal
	mu       sync.Mutex
	hooks    []Hook
	trigger  chan struct{}
	once     sync.Once
	done     chan struct{}
	onHookFn func(name string, err error)
}

// Option configures a Handler.
type Option func(*Handler)

// WithSignals replaces the default SIGINT/SIGTERM set.
func WithSignals(sig ...os.Signal) Option {
	return func(h *Handler) {
		h.signals = sig
	}
}

// WithHookObserver is called after each hook with its result.
func WithHookObserver(fn func(name string, err error)) Option {
	return func(h *Handler) {
		h.onHookFn = fn
	}
}

// NewHandler creates a handler whose hooks share one timeout.
func NewHandler(timeout time.Duration, opts ...Option) *Handler {
	h := &Handler{
		timeout: timeout,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnShutdown registers a hook.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, Hook{Name: name, Fn: fn})
}

// Trigger starts the shutdown without a signal (fatal server error, tests).
func (h *Handler) Trigger() {
	h.once.Do(func() { close(h.trigger) })
}

// Wait blocks until a signal arrives, Trigger is called or ctx is done,
// then runs the hooks. All hook errors are joined.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	if len(h.signals) > 0 {
		signal.Notify(sigCh, h.signals...)
		defer signal.Stop(sigCh)
	}

	select {
	case <-sigCh:
	case <-h.trigger:
	case <-ctx.Done():
	}
	return h.run()
}

func (h *Handler) run() error {
	defer close(h.done)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		err := hooks[i].Fn(ctx)
		if h.onHookFn != nil {
			h.onHookFn(hooks[i].Name, err)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Done is closed once every hook has run.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
