/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package signup

import (
	"time"

	"github.com/Seednode/gamenight/internal/models"
)

// Seat is a slot entry as a renderer sees it. Position is 1-indexed in
// registration order; the last seat of a full table is the alternate.
type Seat struct {
	Name      string    `json:"name"`
	JoinedAt  time.Time `json:"joined_at"`
	Joined    string    `json:"joined"`
	Position  int       `json:"position"`
	Alternate bool      `json:"alternate"`
}

// View is the read-only projection handed to the presentation layer.
type View struct {
	Open       bool      `json:"open"`
	State      State     `json:"state"`
	Message    string    `json:"message"`
	Slots      []Seat    `json:"slots"`
	Priority   []string  `json:"priority"`
	Capacity   int       `json:"capacity"`
	MinPlayers int       `json:"min_players"`
	Taken      int       `json:"taken"`
	OpensAt    time.Time `json:"opens_at"`
	ClosesAt   time.Time `json:"closes_at"`
	LastReset  time.Time `json:"last_reset"`
}

func (e *Engine) view(snap *models.Snapshot, now time.Time) View {
	open := e.window.IsOpen(now)

	opensAt := e.window.Anchor(now)
	if !open {
		opensAt = e.window.NextOpen(now)
	}

	v := View{
		Open:       open,
		State:      ComputeState(open, len(snap.Slots), e.minPlayers, e.maxSlots),
		Slots:      make([]Seat, len(snap.Slots)),
		Priority:   []string{},
		Capacity:   e.maxSlots,
		MinPlayers: e.minPlayers,
		Taken:      len(snap.Slots),
		OpensAt:    opensAt,
		ClosesAt:   e.window.CloseAfter(opensAt),
		LastReset:  snap.Cycle.LastReset,
	}
	v.Message = v.State.Message()

	for i, entry := range snap.Slots {
		position := i + 1
		v.Slots[i] = Seat{
			Name:      entry.Name,
			JoinedAt:  entry.JoinedAt,
			Joined:    entry.JoinedAt.In(e.window.Location).Format(JoinedAtLayout),
			Position:  position,
			Alternate: IsAlternate(position, e.maxSlots),
		}
	}

	if e.priorityCarryover {
		v.Priority = append(v.Priority, e.priority(snap.Cycle.PreviousNames)...)
	}

	return v
}

// IsAlternate reports whether a 1-indexed position is the on-call seat: the
// last seat of the table.
func IsAlternate(position, maxSlots int) bool {
	return position >= maxSlots
}
