// Package artifacts loads the pre-trained, read-only files the classifiers
// depend on: the TF-IDF vectorizer and linear models exported from training.
package artifacts

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateNotLoaded State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not_loaded"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle owns one artifact and loads it at most once. A load that fails moves
// the handle to StateFailed and every later Get returns the same error; the
// artifacts on disk have to be fixed and the process restarted. The only
// exception is a load interrupted by its context, which leaves the handle
// NotLoaded.
type Handle[T any] struct {
	name string
	load func(context.Context) (T, error)

	mu    sync.Mutex
	state State
	value T
	err   error
}

func NewHandle[T any](name string, load func(context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{name: name, load: load}
}

// Ready returns a handle that already holds value.
func Ready[T any](name string, value T) *Handle[T] {
	return &Handle[T]{name: name, state: StateReady, value: value}
}

func (h *Handle[T]) Name() string { return h.name }

func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateReady:
		return h.value, nil
	case StateFailed:
		var zero T
		return zero, h.err
	}

	start := time.Now()
	value, err := h.load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			var zero T
			return zero, ctx.Err()
		}
		h.state = StateFailed
		h.err = err
		slog.Error("[Artifacts] Failed to load artifact",
			slog.String("artifact", h.name),
			slog.String("error", err.Error()))
		var zero T
		return zero, err
	}

	h.state = StateReady
	h.value = value
	slog.Info("[Artifacts] Artifact loaded",
		slog.String("artifact", h.name),
		slog.Duration("elapsed", time.Since(start)))
	return value, nil
}

func (h *Handle[T]) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the load error of a failed handle.
func (h *Handle[T]) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
