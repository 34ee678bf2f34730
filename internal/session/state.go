package session

import "github.com/felixgeelhaar/vhub/internal/identity"

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateLoading:
		return "LOADING"
	case StateAnonymous:
		return "ANONYMOUS"
	case StateAuthenticated:
		return "AUTHENTICATED"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is a point-in-time copy of the session, the input to route decisions.
// User is shared with the Manager and must not be mutated.
type Snapshot struct {
	Token   string
	User    *identity.User
	Loading bool
}

// Authenticated reports whether the snapshot carries both a token and a user.
func (s Snapshot) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Role derives the access role of the snapshot's user.
func (s Snapshot) Role() identity.Role {
	if !s.Authenticated() {
		return identity.RoleVolunteer
	}
	return identity.RoleOf(s.User)
}

// Transition describes one state change.
type Transition struct {
	From   State
	To     State
	Reason string
}

// Transition reasons.
const (
	ReasonHydrate = "hydrate"
	ReasonLogin   = "login"
	ReasonLogout  = "logout"
	ReasonExpired = "expired"
)
