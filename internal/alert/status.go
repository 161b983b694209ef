package alert

import (
	"fmt"
	"strings"
)

// Status is the lifecycle stage of an alert.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusEscalated    Status = "escalated"
)

// transitions defines the allowed lifecycle moves. Resolved is terminal.
var transitions = map[Status][]Status{
	StatusActive:       {StatusAcknowledged, StatusResolved, StatusEscalated},
	StatusAcknowledged: {StatusResolved, StatusEscalated},
	StatusEscalated:    {StatusAcknowledged, StatusResolved},
	StatusResolved:     {},
}

// ParseStatus parses a case-insensitive status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status: %q", s)
	}
	return st, nil
}

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the lifecycle permits moving from s to next.
// A same-status update is always permitted (field edits without a lifecycle
// change go through the same path).
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further lifecycle moves are allowed.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

func (s Status) String() string {
	return string(s)
}
