package vespa

// SessionState is where a Session is in the token lifecycle.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateRefreshPending
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAuthenticated:
		return "Authenticated"
	case StateRefreshPending:
		return "RefreshPending"
	default:
		return "Unknown"
	}
}
