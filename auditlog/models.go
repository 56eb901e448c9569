package auditlog

import "time"

// Known audit actions.
const (
	ActionSearch         = "search"
	ActionViewDetails    = "view_details"
	ActionCheckConflicts = "check_conflicts"
)

// Actor identifies the admin performing a lookup. It is built at the request
// boundary from the verified token and the remote address, and passed
// explicitly; the log layer never reads ambient session state.
type Actor struct {
	AdminID   string
	AdminName string
	IP        string
}

// Entry is one append-only audit row.
type Entry struct {
	ID         int64
	Actor      Actor
	ClientID   int64
	Action     string
	SearchTerm *string
	Timestamp  time.Time
}
