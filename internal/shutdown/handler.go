// Package shutdown turns SIGINT/SIGTERM into context cancellation.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler cancels its context on the first signal and runs cleanup
// functions once, most recently registered first.
type Handler struct {
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	mu         sync.Mutex
	cleanupFns []func()
	stop       func()
}

// New creates a new shutdown handler
func New() *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{ctx: ctx, cancel: cancel}
}

// Context is cancelled when shutdown starts.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// AddCleanup registers a cleanup function to be called on shutdown
func (h *Handler) AddCleanup(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanupFns = append(h.cleanupFns, fn)
}

// Listen starts listening for shutdown signals. A second signal exits
// immediately.
func (h *Handler) Listen() {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	h.stop = func() { signal.Stop(sigChan) }

	go func() {
		if _, ok := <-sigChan; !ok {
			return
		}
		go h.Shutdown()
		if _, ok := <-sigChan; ok {
			os.Exit(130)
		}
	}()
}

// Shutdown cancels the context and runs the cleanup functions. Calls after
// the first are no-ops.
func (h *Handler) Shutdown() {
	h.once.Do(func() {
		h.cancel()

		h.mu.Lock()
		fns := h.cleanupFns
		h.cleanupFns = nil
		h.mu.Unlock()

		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
		if h.stop != nil {
			h.stop()
		}
	})
}
