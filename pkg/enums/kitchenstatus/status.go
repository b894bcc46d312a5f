package kitchenstatus

import (
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	if len(s.Name) == 0 {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

type Enum struct {
	Queued  Status
	Cooking Status
	Ready   Status
	Bumped  Status
}

var Statuses = Enum{
	Queued:  Status{Name: "queued"},
	Cooking: Status{Name: "cooking"},
	Ready:   Status{Name: "ready"},
	Bumped:  Status{Name: "bumped"},
}

// All is ordered along the ticket state machine.
var All = []Status{
	Statuses.Queued,
	Statuses.Cooking,
	Statuses.Ready,
	Statuses.Bumped,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// Next returns the immediate successor of status. The machine is strictly
// linear, so bumped and unknown statuses have none.
func Next(status string) (string, bool) {
	for i, s := range All {
		if s.Name == status && i+1 < len(All) {
			return All[i+1].Name, true
		}
	}
	return "", false
}

// CanAdvance reports whether to is the immediate successor of from.
func CanAdvance(from, to string) bool {
	next, ok := Next(from)
	return ok && next == to
}

// IsTerminal reports whether no further mutation is allowed.
func IsTerminal(status string) bool {
	return status == Statuses.Bumped.Name
}

// IsActive reports whether a ticket in status still belongs on a station board.
func IsActive(status string) bool {
	return ByName(status) != nil && !IsTerminal(status)
}
