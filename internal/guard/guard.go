// Package guard decides whether a screen may render for the current session.
package guard

import (
	"github.com/felixgeelhaar/vhub/internal/identity"
	"github.com/felixgeelhaar/vhub/internal/nav"
	"github.com/felixgeelhaar/vhub/internal/session"
)

// Requirement is the access level a route demands.
type Requirement int

const (
	Public Requirement = iota
	Authenticated
	AdminOnly
	OrgOrAdmin
)

func (r Requirement) String() string {
	switch r {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case AdminOnly:
		return "admin-only"
	case OrgOrAdmin:
		return "org-or-admin"
	default:
		return "unknown"
	}
}

// MarshalText renders the requirement by name.
func (r Requirement) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Decision is the guard's verdict for one navigation.
type Decision int

const (
	// Pending means the session is still hydrating: show a placeholder, neither render nor redirect.
	Pending Decision = iota
	Render
	RedirectToLogin
	RedirectToHome
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Render:
		return "render"
	case RedirectToLogin:
		return "redirect-to-login"
	case RedirectToHome:
		return "redirect-to-home"
	default:
		return "unknown"
	}
}

// MarshalText renders the decision by name.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Target is the location a redirect sends the client to, or "" for non-redirects.
func (d Decision) Target() string {
	switch d {
	case RedirectToLogin:
		return nav.LoginPath
	case RedirectToHome:
		return nav.HomePath
	default:
		return ""
	}
}

// IsRedirect reports whether d moves the client elsewhere.
func (d Decision) IsRedirect() bool {
	return d == RedirectToLogin || d == RedirectToHome
}

// Decide applies the access rules in order. It is a pure function of its inputs.
func Decide(snap session.Snapshot, req Requirement) Decision {
	if snap.Loading {
		return Pending
	}
	if req == Public {
		return Render
	}
	if snap.Token == "" {
		return RedirectToLogin
	}

	role := snap.Role()
	switch req {
	case AdminOnly:
		if role != identity.RoleAdmin {
			return RedirectToHome
		}
	case OrgOrAdmin:
		if !role.CanPublish() {
			return RedirectToHome
		}
	}
	return Render
}
