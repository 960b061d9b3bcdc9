/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package models

import (
	"errors"
	"slices"
	"time"
)

var (
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotRegistered     = errors.New("not registered")
	ErrFull              = errors.New("all slots are taken")
)

// SlotEntry is one claimed seat. Name references a roster participant.
type SlotEntry struct {
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// SlotList is ordered by registration time, unique by name.
type SlotList []SlotEntry

// CycleRecord is the durable bookkeeping between cycles. A zero LastReset
// means no cycle has ever been started.
type CycleRecord struct {
	LastReset     time.Time `json:"last_reset"`
	PreviousNames []string  `json:"previous_names"`
}

// Snapshot is everything that is persisted, committed as a unit. Version is
// bumped by the store on every successful commit.
type Snapshot struct {
	Version uint64      `json:"version"`
	Cycle   CycleRecord `json:"cycle"`
	Slots   SlotList    `json:"slots"`
}

func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return &Snapshot{}
	}

	return &Snapshot{
		Version: s.Version,
		Cycle: CycleRecord{
			LastReset:     s.Cycle.LastReset,
			PreviousNames: slices.Clone(s.Cycle.PreviousNames),
		},
		Slots: s.Slots.Clone(),
	}
}

func (l SlotList) Index(name string) int {
	return slices.IndexFunc(l, func(e SlotEntry) bool { return e.Name == name })
}

func (l SlotList) Contains(name string) bool {
	return l.Index(name) >= 0
}

func (l SlotList) Names() []string {
	names := make([]string, len(l))
	for i, e := range l {
		names[i] = e.Name
	}

	return names
}

func (l SlotList) Clone() SlotList {
	if l == nil {
		return nil
	}

	return slices.Clone(l)
}

// Add appends name unless it is already present or the list is at capacity.
func (l *SlotList) Add(name string, at time.Time, capacity int) error {
	switch {
	case l.Contains(name):
		return ErrAlreadyRegistered
	case len(*l) >= capacity:
		return ErrFull
	}

	*l = append(*l, SlotEntry{Name: name, JoinedAt: at})

	return nil
}

// Remove deletes name, keeping the relative order of everyone else.
func (l *SlotList) Remove(name string) error {
	i := l.Index(name)
	if i < 0 {
		return ErrNotRegistered
	}

	*l = slices.Delete(*l, i, i+1)

	return nil
}
