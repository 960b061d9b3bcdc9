/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package signup

// State is derived from the window and the number of taken seats on every
// request; it is never stored.
type State string

const (
	StateClosed      State = "CLOSED"
	StateUnderfilled State = "OPEN_UNDERFILLED"
	StateOpen        State = "OPEN"
	StateNearFull    State = "OPEN_NEAR_FULL"
	StateLastSeat    State = "OPEN_LAST_SEAT"
	StateFull        State = "OPEN_FULL"
)

// ComputeState maps the window and seat count onto a State. When thresholds
// coincide, Full beats LastSeat, which beats NearFull.
func ComputeState(open bool, taken, minPlayers, maxSlots int) State {
	switch {
	case !open:
		return StateClosed
	case taken >= maxSlots:
		return StateFull
	case taken == maxSlots-1:
		return StateLastSeat
	case taken == minPlayers:
		return StateNearFull
	case taken < minPlayers:
		return StateUnderfilled
	default:
		return StateOpen
	}
}

var stateMessages = map[State]string{
	StateClosed:      "Registration is closed right now.",
	StateUnderfilled: "Not enough players yet. No game for now.",
	StateOpen:        "We have a game! Seats are still available.",
	StateNearFull:    "That's enough for a game. Grab a seat while they last!",
	StateLastSeat:    "Hurry, only one seat left!",
	StateFull:        "The game is full.",
}

func (s State) Message() string {
	return stateMessages[s]
}
