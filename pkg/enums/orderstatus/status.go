package orderstatus

import "strings"

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(s.Name, "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	Placed    Status
	Accepted  Status
	InKitchen Status
	Ready     Status
	Served    Status
	Completed Status
	Canceled  Status
	Refunded  Status
}

var Statuses = Enum{
	Placed:    Status{Name: "placed"},
	Accepted:  Status{Name: "accepted"},
	InKitchen: Status{Name: "in_kitchen"},
	Ready:     Status{Name: "ready"},
	Served:    Status{Name: "served"},
	Completed: Status{Name: "completed"},
	Canceled:  Status{Name: "canceled"},
	Refunded:  Status{Name: "refunded"},
}

var All = []Status{
	Statuses.Placed,
	Statuses.Accepted,
	Statuses.InKitchen,
	Statuses.Ready,
	Statuses.Served,
	Statuses.Completed,
	Statuses.Canceled,
	Statuses.Refunded,
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
