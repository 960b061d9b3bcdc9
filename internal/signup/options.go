/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package signup

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultMaxSlots   = 8
	DefaultMinPlayers = 5
)

type EngineOptionFunc func(*Engine)

// WithClock replaces time.Now, for tests and replays.
func WithClock(now func() time.Time) EngineOptionFunc {
	return func(e *Engine) {
		e.clock = now
	}
}

func WithLogger(logger *slog.Logger) EngineOptionFunc {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithPromRegistry(reg prometheus.Registerer) EngineOptionFunc {
	return func(e *Engine) {
		e.promRegistry = reg
	}
}

func WithMaxSlots(n int) EngineOptionFunc {
	return func(e *Engine) {
		e.maxSlots = n
	}
}

// WithMinPlayers sets the seat count at which a game is on.
func WithMinPlayers(n int) EngineOptionFunc {
	return func(e *Engine) {
		e.minPlayers = n
	}
}

// WithPriorityCarryover pre-seats roster members who did not play in the
// previous cycle whenever a new cycle starts.
func WithPriorityCarryover(enabled bool) EngineOptionFunc {
	return func(e *Engine) {
		e.priorityCarryover = enabled
	}
}

// WithClosedUnregister lets participants remove themselves while the window
// is closed.
func WithClosedUnregister(enabled bool) EngineOptionFunc {
	return func(e *Engine) {
		e.allowClosedUnregister = enabled
	}
}

// WithMaxAttempts bounds retries after a version conflict in the store.
func WithMaxAttempts(n int) EngineOptionFunc {
	return func(e *Engine) {
		e.maxAttempts = n
	}
}

// WithOnChange registers a callback fired after every committed change. It
// runs outside the engine's lock and may call back into the engine.
func WithOnChange(fn func()) EngineOptionFunc {
	return func(e *Engine) {
		e.onChange = fn
	}
}
