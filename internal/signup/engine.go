/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package signup runs the weekly registration cycle: it decides when a new
// cycle starts, seats priority players, and applies register and unregister
// commands against the capacity-bounded slot list.
//
// Every call reloads state from the store. Rollover is evaluated lazily on
// each call and committed together with whatever mutation triggered it, so a
// cycle's archive, reset, reseed and the first registration land as one
// snapshot. Calls are serialized in-process by a mutex and across processes by
// the store's version check.
package signup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/gamenight/internal/calendar"
	"github.com/Seednode/gamenight/internal/models"
	"github.com/Seednode/gamenight/internal/roster"
	"github.com/Seednode/gamenight/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrStorageUnavailable = errors.New("storage unavailable")

// JoinedAtLayout is how seat timestamps are shown: weekday and time of day.
const JoinedAtLayout = "Monday 15:04"

type Engine struct {
	store  storage.Store
	roster *roster.Roster
	window calendar.Window

	clock        func() time.Time
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	metrics      *engineMetrics
	onChange     func()

	maxSlots              int
	minPlayers            int
	priorityCarryover     bool
	allowClosedUnregister bool
	maxAttempts           int

	mu sync.Mutex
}

func New(st storage.Store, r *roster.Roster, w calendar.Window, opts ...EngineOptionFunc) (*Engine, error) {
	if st == nil {
		return nil, errors.New("no store")
	}
	if r == nil {
		return nil, errors.New("no roster")
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		store:       st,
		roster:      r,
		window:      w,
		clock:       time.Now,
		maxSlots:    DefaultMaxSlots,
		minPlayers:  DefaultMinPlayers,
		maxAttempts: storage.DefaultAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.maxSlots < 1 {
		return nil, fmt.Errorf("max slots must be positive: %d", e.maxSlots)
	}
	if e.minPlayers < 1 || e.minPlayers > e.maxSlots {
		return nil, fmt.Errorf("min players must be between 1 and %d: %d", e.maxSlots, e.minPlayers)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e.logger = e.logger.With("component", "signup")
	e.initMetrics(e.promRegistry)

	return e, nil
}

func (e *Engine) now() time.Time {
	return e.clock().In(e.window.Location)
}

// step is the body of one critical section. It may run more than once when
// the store reports a conflict, so it must only touch snap and its own
// captured results.
type step func(snap *models.Snapshot, now time.Time) bool

type commitResult struct {
	snap    *models.Snapshot
	now     time.Time
	rolled  bool
	seeded  int
	changed bool
}

// transact runs the maybe-rollover sequence followed by fn, and commits the
// result if anything changed.
func (e *Engine) transact(ctx context.Context, fn step) (commitResult, error) {
	var res commitResult

	e.mu.Lock()
	err := storage.Update(ctx, e.store, e.maxAttempts, func(snap *models.Snapshot) (bool, error) {
		res = commitResult{snap: snap, now: e.now()}
		res.rolled, res.seeded = e.rollover(snap, res.now)
		if fn != nil {
			res.changed = fn(snap, res.now)
		}
		return res.rolled || res.changed, nil
	})
	e.mu.Unlock()

	if err != nil {
		e.metrics.storageErrors.Inc()
		e.logger.ErrorContext(ctx, "storage failure", "error", err)
		return commitResult{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	e.metrics.slotsTaken.Set(float64(len(res.snap.Slots)))

	if res.rolled {
		e.metrics.rollovers.Inc()
		e.metrics.prioritySeated.Add(float64(res.seeded))
		e.logger.InfoContext(ctx, "started new cycle",
			"anchor", e.window.Anchor(res.now),
			"previous", res.snap.Cycle.PreviousNames,
			"seeded", res.snap.Slots.Names(),
		)
	}

	if (res.rolled || res.changed) && e.onChange != nil {
		e.onChange()
	}

	return res, nil
}

// rollover archives and clears the slot list when a weekly anchor has been
// crossed since the last reset, then seats priority players. It reports
// whether it did anything and how many players it seated.
func (e *Engine) rollover(snap *models.Snapshot, now time.Time) (bool, int) {
	if !e.window.NeedsRollover(now, snap.Cycle.LastReset) {
		return false, 0
	}

	reset := now
	if reset.Before(snap.Cycle.LastReset) {
		reset = snap.Cycle.LastReset
	}

	snap.Cycle = models.CycleRecord{
		LastReset:     reset,
		PreviousNames: snap.Slots.Names(),
	}
	snap.Slots = nil

	if !e.priorityCarryover {
		return true, 0
	}

	for _, name := range e.priority(snap.Cycle.PreviousNames) {
		if err := snap.Slots.Add(name, now, e.maxSlots); errors.Is(err, models.ErrFull) {
			break
		}
	}

	return true, len(snap.Slots)
}

// priority lists roster members, in roster order, who are not in previous.
func (e *Engine) priority(previous []string) []string {
	var names []string
	for _, name := range e.roster.Names() {
		if !slices.Contains(previous, name) {
			names = append(names, name)
		}
	}
	return names
}

// Rollover starts a new cycle if one is due. It is what a scheduled job calls;
// request paths roll over on their own.
func (e *Engine) Rollover(ctx context.Context) (bool, error) {
	res, err := e.transact(ctx, nil)
	if err != nil {
		return false, err
	}
	return res.rolled, nil
}

// Run calls Rollover every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Rollover(ctx); err != nil && ctx.Err() == nil {
				e.logger.WarnContext(ctx, "scheduled rollover failed", "error", err)
			}
		}
	}
}

// Snapshot rolls over if due and returns the read-only view of the cycle.
func (e *Engine) Snapshot(ctx context.Context) (View, error) {
	res, err := e.transact(ctx, nil)
	if err != nil {
		return View{}, err
	}
	return e.view(res.snap, res.now), nil
}

type credentialCheck struct {
	known    bool
	verified bool
}

// checkCredential runs outside the lock since hashed codes are slow to verify.
func (e *Engine) checkCredential(name, credential string) credentialCheck {
	if _, ok := e.roster.Lookup(name); !ok {
		return credentialCheck{}
	}
	return credentialCheck{known: true, verified: e.roster.Verify(name, credential)}
}

// Register claims a seat for name.
func (e *Engine) Register(ctx context.Context, name, credential string) (Outcome, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(credential) == "" {
		return e.record("register", name, InvalidInput), nil
	}

	cred := e.checkCredential(name, credential)

	var outcome Outcome
	_, err := e.transact(ctx, func(snap *models.Snapshot, now time.Time) bool {
		switch {
		case !e.window.IsOpen(now):
			outcome = RegistrationClosed
		case !cred.known:
			outcome = UnknownParticipant
		case !cred.verified:
			outcome = BadCredential
		default:
			switch err := snap.Slots.Add(name, now, e.maxSlots); {
			case errors.Is(err, models.ErrAlreadyRegistered):
				outcome = AlreadyRegistered
			case errors.Is(err, models.ErrFull):
				outcome = Full
			default:
				outcome = Registered
				return true
			}
		}
		return false
	})
	if err != nil {
		return e.record("register", name, StorageUnavailable), err
	}

	return e.record("register", name, outcome), nil
}

// Unregister gives up name's seat.
func (e *Engine) Unregister(ctx context.Context, name, credential string) (Outcome, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(credential) == "" {
		return e.record("unregister", name, InvalidInput), nil
	}

	cred := e.checkCredential(name, credential)

	var outcome Outcome
	_, err := e.transact(ctx, func(snap *models.Snapshot, now time.Time) bool {
		switch {
		case !e.allowClosedUnregister && !e.window.IsOpen(now):
			outcome = RegistrationClosed
		case !cred.known:
			outcome = UnknownParticipant
		case !cred.verified:
			outcome = BadCredential
		case !snap.Slots.Contains(name):
			outcome = NotRegistered
		default:
			_ = snap.Slots.Remove(name)
			outcome = Unregistered
			return true
		}
		return false
	})
	if err != nil {
		return e.record("unregister", name, StorageUnavailable), err
	}

	return e.record("unregister", name, outcome), nil
}

func (e *Engine) record(action, name string, outcome Outcome) Outcome {
	e.metrics.commands.WithLabelValues(action, outcome.String()).Inc()
	e.logger.Debug("command", "action", action, "name", name, "outcome", outcome.String())
	return outcome
}

// ResetCredential replaces name's personal code. Seats are keyed by name only,
// so an existing registration stays valid.
func (e *Engine) ResetCredential(ctx context.Context, name, credential string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(credential) == "" {
		return roster.ErrNoCredential
	}

	if err := e.roster.SetCredential(name, credential); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "credential reset", "name", name)

	return nil
}

// Ping checks that the store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (e *Engine) Window() calendar.Window {
	return e.window
}
