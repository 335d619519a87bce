package chat

import "strings"

// State is the phase of a Session.
type State int

const (
	StateAwaitingName State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingName:
		return "awaiting_name"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrNameTaken    = errorString("name_taken")
	ErrNameInvalid  = errorString("name_invalid")
	ErrServerClosed = errorString("server_closed")
)

type errorString string

func (e errorString) Error() string { return string(e) }

// normalizeName trims the proposed name and rejects names that cannot be
// carried in a CLIENTLIST line.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, ",") {
		return "", ErrNameInvalid
	}
	return name, nil
}
