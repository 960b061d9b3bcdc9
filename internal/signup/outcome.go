/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package signup

// Outcome is the result of a register or unregister command. Every rejection
// has its own value so callers can tell exactly which rule fired.
type Outcome int

const (
	Registered Outcome = iota
	Unregistered
	InvalidInput
	RegistrationClosed
	UnknownParticipant
	BadCredential
	AlreadyRegistered
	NotRegistered
	Full
	StorageUnavailable
)

var outcomeNames = map[Outcome]string{
	Registered:         "registered",
	Unregistered:       "unregistered",
	InvalidInput:       "invalid_input",
	RegistrationClosed: "registration_closed",
	UnknownParticipant: "unknown_participant",
	BadCredential:      "bad_credential",
	AlreadyRegistered:  "already_registered",
	NotRegistered:      "not_registered",
	Full:               "full",
	StorageUnavailable: "storage_unavailable",
}

var outcomeMessages = map[Outcome]string{
	Registered:         "You're in! See you at the table.",
	Unregistered:       "You have been removed from the list.",
	InvalidInput:       "Please enter both a name and a personal code.",
	RegistrationClosed: "Registration is closed right now.",
	UnknownParticipant: "That name is not on the player roster.",
	BadCredential:      "Wrong personal code.",
	AlreadyRegistered:  "You are already registered.",
	NotRegistered:      "You are not registered right now.",
	Full:               "The game is full.",
	StorageUnavailable: "Something went wrong on our side. Please try again in a moment.",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Message is the user-facing text for o.
func (o Outcome) Message() string {
	return outcomeMessages[o]
}

// OK reports whether the command changed the slot list.
func (o Outcome) OK() bool {
	return o == Registered || o == Unregistered
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
