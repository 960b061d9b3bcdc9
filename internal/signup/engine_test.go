/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package signup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Seednode/gamenight/internal/calendar"
	"github.com/Seednode/gamenight/internal/models"
	"github.com/Seednode/gamenight/internal/roster"
	"github.com/Seednode/gamenight/internal/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var israel = time.FixedZone("IDT", 3*60*60)

// October 2026: the 16th and 23rd are Fridays.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.October, day, hour, minute, 0, 0, israel)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newRoster(t *testing.T, names ...string) *roster.Roster {
	t.Helper()

	players := make([]roster.Participant, len(names))
	for i, n := range names {
		players[i] = roster.Participant{Name: n, Code: "code-" + n}
	}

	r, err := roster.New(players)
	require.NoError(t, err)

	return r
}

func players(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("P%d", i+1)
	}
	return names
}

func newEngine(t *testing.T, st storage.Store, r *roster.Roster, clock *fakeClock, opts ...EngineOptionFunc) *Engine {
	t.Helper()

	opts = append([]EngineOptionFunc{WithClock(clock.Now)}, opts...)
	e, err := New(st, r, calendar.DefaultWindow(israel), opts...)
	require.NoError(t, err)

	return e
}

func register(t *testing.T, e *Engine, names ...string) {
	t.Helper()

	for _, n := range names {
		outcome, err := e.Register(context.Background(), n, "code-"+n)
		require.NoError(t, err)
		require.Equal(t, Registered, outcome, n)
	}
}

func names(t *testing.T, e *Engine) []string {
	t.Helper()

	v, err := e.Snapshot(context.Background())
	require.NoError(t, err)

	out := make([]string, len(v.Slots))
	for i, s := range v.Slots {
		out[i] = s.Name
	}
	return out
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: at(16, 19, 0)}
	r, err := roster.New([]roster.Participant{
		{Name: "Dana", Code: "abc123"},
		{Name: "Eli", Code: "x"},
	})
	require.NoError(t, err)

	e := newEngine(t, storage.NewInMemoryStore(), r, clock)

	tests := []struct {
		name       string
		player     string
		credential string
		want       Outcome
		after      []string
	}{
		{"blank name", " ", "abc123", InvalidInput, []string{}},
		{"blank code", "Dana", "  ", InvalidInput, []string{}},
		{"unknown", "Zed", "abc123", UnknownParticipant, []string{}},
		{"bad credential", "Dana", "wrongcode", BadCredential, []string{}},
		{"ok", "Dana", "abc123", Registered, []string{"Dana"}},
		{"trimmed name", " Eli ", "x", Registered, []string{"Dana", "Eli"}},
		{"again", "Dana", "abc123", AlreadyRegistered, []string{"Dana", "Eli"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Register(ctx, tc.player, tc.credential)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.after, names(t, e))
		})
	}
}

func TestRegisterClosed(t *testing.T) {
	clock := &fakeClock{now: at(20, 12, 0)}
	e := newEngine(t, storage.NewInMemoryStore(), newRoster(t, "Dana"), clock)

	got, err := e.Register(context.Background(), "Dana", "code-Dana")
	require.NoError(t, err)
	assert.Equal(t, RegistrationClosed, got)

	// Closed wins over a bad credential.
	got, err = e.Register(context.Background(), "Dana", "nope")
	require.NoError(t, err)
	assert.Equal(t, RegistrationClosed, got)

	clock.Set(at(23, 18, 0))
	got, err = e.Register(context.Background(), "Dana", "code-Dana")
	require.NoError(t, err)
	assert.Equal(t, Registered, got)
}

func TestRegisterFull(t *testing.T) {
	clock := &fakeClock{now: at(16, 19, 0)}
	e := newEngine(t, storage.NewInMemoryStore(), newRoster(t, players(10)...), clock)

	register(t, e, players(8)...)

	got, err := e.Register(context.Background(), "P9", "code-P9")
	require.NoError(t, err)
	assert.Equal(t, Full, got)

	// Already registered is reported before full.
	got, err = e.Register(context.Background(), "P1", "code-P1")
	require.NoError(t, err)
	assert.Equal(t, AlreadyRegistered, got)

	assert.Len(t, names(t, e), 8)
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: at(16, 19, 0)}
	e := newEngine(t, storage.NewInMemoryStore(), newRoster(t, "A", "B", "C", "Eli"), clock)

	register(t, e, "A", "B", "C")

	got, err := e.Unregister(ctx, "Eli", "x")
	require.NoError(t, err)
	assert.Equal(t, BadCredential, got)

	got, err = e.Unregister(ctx, "Eli", "code-Eli")
	require.NoError(t, err)
	assert.Equal(t, NotRegistered, got)

	got, err = e.Unregister(ctx, "Zed", "code-Zed")
	require.NoError(t, err)
	assert.Equal(t, UnknownParticipant, got)

	got, err = e.Unregister(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, InvalidInput, got)

	got, err = e.Unregister(ctx, "B", "code-B")
	require.NoError(t, err)
	assert.Equal(t, Unregistered, got)
	assert.Equal(t, []string{"A", "C"}, names(t, e))

	clock.Set(at(20, 9, 0))
	got, err = e.Unregister(ctx, "A", "code-A")
	require.NoError(t, err)
	assert.Equal(t, RegistrationClosed, got)
	assert.Equal(t, []string{"A", "C"}, names(t, e))
}

func TestUnregisterWhileClosedWhenAllowed(t *testing.T) {
	clock := &fakeClock{now: at(16, 19, 0)}
	e := newEngine(t, storage.NewInMemoryStore(), newRoster(t, "A", "B"), clock, WithClosedUnregister(true))

	register(t, e, "A", "B")

	clock.Set(at(20, 9, 0))
	got, err := e.Unregister(context.Background(), "A", "code-A")
	require.NoError(t, err)
	assert.Equal(t, Unregistered, got)

	got, err = e.Register(context.Background(), "A", "code-A")
	require.NoError(t, err)
	assert.Equal(t, RegistrationClosed, got)

	assert.Equal(t, []string{"B"}, names(t, e))
}

func TestPriorityCarryover(t *testing.T) {
	ctx := context.Background()
	st := storage.NewInMemoryStore()

	require.NoError(t, st.Commit(ctx, 0, &models.Snapshot{
		Cycle: models.CycleRecord{LastReset: at(9, 18, 0)},
		Slots: models.SlotList{{Name: "A", JoinedAt: at(9, 19, 0)}, {Name: "B", JoinedAt: at(9, 19, 5)}},
	}))

	clock := &fakeClock{now: at(16, 18, 0)}
	e := newEngine(t, st, newRoster(t, "A", "B", "C", "D"), clock, WithPriorityCarryover(true))

	v, err := e.Snapshot(ctx)
	require.NoError(t, err)

	require.Len(t, v.Slots, 2)
	assert.Equal(t, "C", v.Slots[0].Name)
	assert.Equal(t, "D", v.Slots[1].Name)
	assert.Equal(t, 6, v.Capacity-v.Taken)
	assert.Equal(t, []string{"C", "D"}, v.Priority)
	assert.True(t, at(16, 18, 0).Equal(v.LastReset))

	rec, err := storage.ReadCycleRecord(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, rec.PreviousNames)
}

func TestPriorityCarryoverCapsAtCapacity(t *testing.T) {
	clock := &fakeClock{now: at(16, 19, 0)}
	e := newEngine(t, storage.NewInMemoryStore(), newRoster(t, players(10)...), clock, WithPriorityCarryover(true))

	// First ever run: nobody played last cycle, so the first eight roster
	// members are seated.
	assert.Equal(t, players(8), names(t, e))

	got, err := e.Register(context.Background(), "P9", "code-P9")
	require.NoError(t, err)
	assert.Equal(t, Full, got)

	// Next week P9 and P10 missed out and get seated first.
	clock.Set(at(23, 18, 30))
	assert.Equal(t, []string{"P9", "P10"}, names(t, e))
}

func TestFirstRunWithoutCarryover(t *testing.T) {
	ctx := context.Background()
	st := storage.NewInMemoryStore()
	clock := &fakeClock{now: at(21, 12, 0)}
	e := newEngine(t, st, newRoster(t, "A", "B"), clock)

	v, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, v.Slots)
	assert.Empty(t, v.Priority)
	assert.Equal(t, StateClosed, v.State)

	rec, err := storage.ReadCycleRecord(ctx, st)
	require.NoError(t, err)
	assert.True(t, at(21, 12, 0).Equal(rec.LastReset))
}

func TestRolloverIdempotentWithinWeek(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	clock := &fakeClock{now: at(16, 18, 0)}
	e := newEngine(t, storage.NewInMemoryStore(), newRoster(t, "A", "B", "C"), clock, WithPromRegistry(reg))

	rolled, err := e.Rollover(ctx)
	require.NoError(t, err)
	assert.True(t, rolled)

	register(t, e, "A", "B")

	for now := at(16, 18, 1); now.Before(at(23, 18, 0)); now = now.Add(53 * time.Minute) {
		clock.Set(now)
		rolled, err := e.Rollover(ctx)
		require.NoError(t, err)
		require.False(t, rolled, "rolled over again at %s", now)
		require.Equal(t, []string{"A", "B"}, names(t, e))
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.rollovers))

	clock.Set(at(23, 18, 0))
	rolled, err = e.Rollover(ctx)
	require.NoError(t, err)
	assert.True(t, rolled)
	assert.Empty(t, names(t, e))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.rollovers))
}

func TestRolloverCommitsWithRegistration(t *testing.T) {
	ctx := context.Background()
	st := storage.NewInMemoryStore()
	clock := &fakeClock{now: at(16, 19, 0)}
	e := newEngine(t, st, newRoster(t, "A", "B", "C"), clock)

	register(t, e, "A", "B")
	before, err := st.Load(ctx)
	require.NoError(t, err)

	clock.Set(at(23, 18, 0))
	register(t, e, "C")

	after, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Version+1, after.Version)
	assert.Equal(t, []string{"A", "B"}, after.Cycle.PreviousNames)
	assert.Equal(t, []string{"C"}, after.Slots.Names())
}

func TestLastResetNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	st := storage.NewInMemoryStore()
	clock := &fakeClock{now: at(23, 18, 0)}
	e := newEngine(t, st, newRoster(t, "A"), clock)

	_, err := e.Rollover(ctx)
	require.NoError(t, err)

	clock.Set(at(17, 10, 0))
	rolled, err := e.Rollover(ctx)
	require.NoError(t, err)
	assert.False(t, rolled)

	rec, err := storage.ReadCycleRecord(ctx, st)
	require.NoError(t, err)
	assert.True(t, at(23, 18, 0).Equal(rec.LastReset))
}

func TestStates(t *testing.T) {
	clock := &fakeClock{now: at(16, 19, 0)}
	e := newEngine(t, storage.NewInMemoryStore(), newRoster(t, players(8)...), clock)

	want := []State{
		StateUnderfilled, // 0
		StateUnderfilled,
		StateUnderfilled,
		StateUnderfilled,
		StateUnderfilled, // 4
		StateNearFull,    // 5
		StateOpen,        // 6
		StateLastSeat,    // 7
		StateFull,        // 8
	}

	for n, state := range want {
		if n > 0 {
			register(t, e, fmt.Sprintf("P%d", n))
		}
		v, err := e.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, state, v.State, "with %d players", n)
		assert.Equal(t, n, v.Taken)
	}

	clock.Set(at(20, 9, 0))
	v, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateClosed, v.State)
	assert.False(t, v.Open)
	assert.Equal(t, at(23, 18, 0), v.OpensAt)
	assert.Equal(t, at(26, 22, 0), v.ClosesAt)
}

func TestComputeStateThresholds(t *testing.T) {
	assert.Equal(t, StateNearFull, ComputeState(true, 5, 5, 8))
	assert.Equal(t, StateLastSeat, ComputeState(true, 3, 3, 4))
	assert.Equal(t, StateFull, ComputeState(true, 4, 4, 4))
	assert.Equal(t, StateClosed, ComputeState(false, 8, 5, 8))
}

func TestViewSeats(t *testing.T) {
	clock := &fakeClock{now: at(16, 19, 0)}
	e := newEngine(t, storage.NewInMemoryStore(), newRoster(t, players(8)...), clock)

	for i, n := range players(8) {
		clock.Set(at(17, 10, i))
		register(t, e, n)
	}

	v, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, v.Slots, 8)

	for i, seat := range v.Slots {
		assert.Equal(t, i+1, seat.Position)
		assert.Equal(t, i == 7, seat.Alternate, seat.Name)
	}
	assert.Equal(t, "Saturday 10:00", v.Slots[0].Joined)
	assert.Equal(t, "Saturday 10:07", v.Slots[7].Joined)
	assert.True(t, v.Open)
	assert.Equal(t, at(16, 18, 0), v.OpensAt)
}

func TestConcurrentLastSeat(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: at(16, 19, 0)}
	e := newEngine(t, storage.NewInMemoryStore(), newRoster(t, players(9)...), clock)

	register(t, e, players(7)...)

	results := make(chan Outcome, 2)
	var wg sync.WaitGroup
	for _, n := range []string{"P8", "P9"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Register(ctx, n, "code-"+n)
			assert.NoError(t, err)
			results <- got
		}()
	}
	wg.Wait()
	close(results)

	counts := map[Outcome]int{}
	for o := range results {
		counts[o]++
	}
	assert.Equal(t, map[Outcome]int{Registered: 1, Full: 1}, counts)
	assert.Len(t, names(t, e), 8)
}

func TestConcurrentEnginesShareRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	clock := &fakeClock{now: at(16, 19, 0)}
	r := newRoster(t, players(20)...)

	// Separate engines model separate processes: no shared mutex, only the
	// store's version check.
	engines := make([]*Engine, 4)
	for i := range engines {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		engines[i] = newEngine(t, storage.NewRedisStore(client, "test"), r, clock, WithMaxAttempts(100))
	}

	var (
		wg         sync.WaitGroup
		registered atomic.Int32
		full       atomic.Int32
	)
	for i, n := range players(20) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := engines[i%len(engines)].Register(ctx, n, "code-"+n)
			if !assert.NoError(t, err) {
				return
			}
			switch got {
			case Registered:
				registered.Add(1)
			case Full:
				full.Add(1)
			default:
				t.Errorf("unexpected outcome %s for %s", got, n)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), registered.Load())
	assert.Equal(t, int32(12), full.Load())

	final := names(t, engines[0])
	require.Len(t, final, 8)
	seen := map[string]bool{}
	for _, n := range final {
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}

// flakyStore fails every call while broken is set.
type flakyStore struct {
	*storage.InMemoryStore
	broken atomic.Bool
}

func (s *flakyStore) Load(ctx context.Context) (*models.Snapshot, error) {
	if s.broken.Load() {
		return nil, fmt.Errorf("%w: connection refused", storage.ErrUnavailable)
	}
	return s.InMemoryStore.Load(ctx)
}

func (s *flakyStore) Commit(ctx context.Context, expected uint64, next *models.Snapshot) error {
	if s.broken.Load() {
		return fmt.Errorf("%w: connection refused", storage.ErrUnavailable)
	}
	return s.InMemoryStore.Commit(ctx, expected, next)
}

func (s *flakyStore) Ping(ctx context.Context) error {
	if s.broken.Load() {
		return fmt.Errorf("%w: connection refused", storage.ErrUnavailable)
	}
	return nil
}

func TestStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	st := &flakyStore{InMemoryStore: storage.NewInMemoryStore()}
	clock := &fakeClock{now: at(16, 19, 0)}
	e := newEngine(t, st, newRoster(t, "A", "B"), clock)

	register(t, e, "A")

	st.broken.Store(true)

	got, err := e.Register(ctx, "B", "code-B")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Equal(t, StorageUnavailable, got)

	got, err = e.Unregister(ctx, "A", "code-A")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Equal(t, StorageUnavailable, got)

	_, err = e.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, e.Ping(ctx), ErrStorageUnavailable)

	st.broken.Store(false)
	assert.Equal(t, []string{"A"}, names(t, e))
	assert.NoError(t, e.Ping(ctx))
}

func TestResetCredential(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: at(16, 19, 0)}
	e := newEngine(t, storage.NewInMemoryStore(), newRoster(t, "Dana"), clock)

	register(t, e, "Dana")

	require.NoError(t, e.ResetCredential(ctx, "Dana", "fresh"))
	assert.Equal(t, []string{"Dana"}, names(t, e))

	got, err := e.Unregister(ctx, "Dana", "code-Dana")
	require.NoError(t, err)
	assert.Equal(t, BadCredential, got)

	got, err = e.Unregister(ctx, "Dana", "fresh")
	require.NoError(t, err)
	assert.Equal(t, Unregistered, got)

	assert.ErrorIs(t, e.ResetCredential(ctx, "Zed", "x"), roster.ErrUnknownParticipant)
	assert.ErrorIs(t, e.ResetCredential(ctx, "Dana", " "), roster.ErrNoCredential)
}

func TestOnChange(t *testing.T) {
	var calls atomic.Int32
	clock := &fakeClock{now: at(16, 19, 0)}
	e := newEngine(t, storage.NewInMemoryStore(), newRoster(t, "A", "B"), clock,
		WithOnChange(func() { calls.Add(1) }))

	_, err := e.Snapshot(context.Background()) // first rollover
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	register(t, e, "A")
	assert.Equal(t, int32(2), calls.Load())

	_, err = e.Register(context.Background(), "A", "code-A")
	require.NoError(t, err)
	_, err = e.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunRollsOverOnSchedule(t *testing.T) {
	st := storage.NewInMemoryStore()
	clock := &fakeClock{now: at(16, 18, 0)}
	e := newEngine(t, st, newRoster(t, "A"), clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		rec, err := storage.ReadCycleRecord(context.Background(), st)
		return err == nil && !rec.LastReset.IsZero()
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestNewValidates(t *testing.T) {
	r := newRoster(t, "A")
	w := calendar.DefaultWindow(israel)

	_, err := New(nil, r, w)
	assert.Error(t, err)

	_, err = New(storage.NewInMemoryStore(), nil, w)
	assert.Error(t, err)

	_, err = New(storage.NewInMemoryStore(), r, calendar.DefaultWindow(nil))
	assert.Error(t, err)

	_, err = New(storage.NewInMemoryStore(), r, w, WithMaxSlots(0))
	assert.Error(t, err)

	_, err = New(storage.NewInMemoryStore(), r, w, WithMinPlayers(9))
	assert.Error(t, err)
}

func TestOutcomeMessagesAreDistinct(t *testing.T) {
	seen := map[string]Outcome{}
	for o := Registered; o <= StorageUnavailable; o++ {
		msg := o.Message()
		require.NotEmpty(t, msg, o.String())
		prev, dup := seen[msg]
		assert.False(t, dup, "%s and %s share a message", o, prev)
		seen[msg] = o
	}
}
