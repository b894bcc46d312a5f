package orderstatus

// transitions lists the legal successors of every order status.
// refunded has no incoming edge: refunds are an administrative action outside this table.
var transitions = map[string][]string{
	"placed":     {"accepted", "canceled"},
	"accepted":   {"in_kitchen", "canceled"},
	"in_kitchen": {"ready", "canceled"},
	"ready":      {"served", "canceled"},
	"served":     {"completed"},
	"completed":  {},
	"canceled":   {},
	"refunded":   {},
}

var timestampFields = map[string]string{
	"placed":     "placedAt",
	"accepted":   "acceptedAt",
	"in_kitchen": "inKitchenAt",
	"ready":      "readyAt",
	"served":     "servedAt",
	"completed":  "completedAt",
	"canceled":   "canceledAt",
	"refunded":   "refundedAt",
}

// CanTransition reports whether to is a declared successor of from.
// Unknown and terminal statuses admit no transition.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TimestampField returns the timestamps slot stamped when status is entered,
// or "" when the status has none.
func TimestampField(status string) string {
	return timestampFields[status]
}

// Successors returns a copy of the legal successors of status.
func Successors(status string) []string {
	next := transitions[status]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether status is known and has no outgoing edge.
func IsTerminal(status string) bool {
	next, ok := transitions[status]
	return ok && len(next) == 0
}

// IsValid reports whether status is a known order status.
func IsValid(status string) bool {
	_, ok := transitions[status]
	return ok
}
