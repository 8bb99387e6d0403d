package agreement

// Status is the agreement lifecycle state. Agreements are born in draft and
// only accept payments while active. Completed and terminated are terminal.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
	StatusDisputed   Status = "disputed"
)

var transitions = map[Status][]Status{
	StatusDraft:    {StatusActive, StatusTerminated},
	StatusActive:   {StatusCompleted, StatusTerminated, StatusDisputed},
	StatusDisputed: {StatusActive, StatusTerminated},
}

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusActive, StatusCompleted, StatusTerminated, StatusDisputed:
		return true
	default:
		return false
	}
}

// ValidTransition reports whether the edge from -> to is part of the
// lifecycle. Terminal states have no outgoing edges.
func ValidTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
