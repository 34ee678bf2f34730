package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/vhub/internal/guard"
	"github.com/felixgeelhaar/vhub/internal/identity"
	"github.com/felixgeelhaar/vhub/internal/session"
	"github.com/felixgeelhaar/vhub/internal/ux"
)

type userView struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	FullName string `json:"full_name,omitempty" yaml:"full_name,omitempty"`
}

// statusView is what auth login and auth status print.
type statusView struct {
	State         string             `json:"state" yaml:"state"`
	Authenticated bool               `json:"authenticated" yaml:"authenticated"`
	Role          string             `json:"role" yaml:"role"`
	User          *userView          `json:"user,omitempty" yaml:"user,omitempty"`
	Token         *session.TokenInfo `json:"token,omitempty" yaml:"token,omitempty"`
	Store         string             `json:"store" yaml:"store"`
	Verified      *bool              `json:"verified,omitempty" yaml:"verified,omitempty"`
}

// newStatusView describes snap. profile, when set, replaces the stored user for display.
func newStatusView(rt *runtime, state session.State, snap session.Snapshot, profile *identity.User) statusView {
	view := statusView{
		State:         state.String(),
		Authenticated: snap.Authenticated(),
		Role:          snap.Role().String(),
		Store:         rt.cfg.Store.Backend,
	}

	user := snap.User
	if profile != nil {
		user = profile
	}
	if view.Authenticated && user != nil {
		view.User = &userView{ID: user.ID, Email: user.Email, FullName: user.FullName}
	}
	if snap.Token != "" {
		if info, err := session.InspectToken(snap.Token); err == nil {
			view.Token = info
		}
	}
	return view
}

func (v statusView) Text(s *ux.Styles) string {
	var b strings.Builder

	if v.Authenticated {
		b.WriteString(s.Render(ux.SuccessStyle, "Logged in"))
	} else {
		b.WriteString(s.Render(ux.WarningStyle, "Not logged in"))
	}
	b.WriteString("\n")

	b.WriteString(s.Field("State", v.State) + "\n")
	b.WriteString(s.Field("Role", v.Role) + "\n")
	if v.User != nil {
		if v.User.Email != "" {
			b.WriteString(s.Field("Email", v.User.Email) + "\n")
		}
		if v.User.FullName != "" {
			b.WriteString(s.Field("Name", v.User.FullName) + "\n")
		}
		if v.User.ID != "" {
			b.WriteString(s.Field("User ID", v.User.ID) + "\n")
		}
	}
	if v.Token != nil && v.Token.ExpiresAt != nil {
		b.WriteString(s.Field("Token expires", v.Token.ExpiresAt.Format("2006-01-02 15:04 MST")) + "\n")
	}
	b.WriteString(s.Field("Store", v.Store))

	if v.Verified != nil {
		b.WriteString("\n")
		if *v.Verified {
			b.WriteString(s.Render(ux.SuccessStyle, "Token accepted by the API"))
		} else {
			b.WriteString(s.Render(ux.ErrorStyle, "Token not accepted by the API"))
		}
	}
	if !v.Authenticated {
		b.WriteString("\n" + s.Render(ux.MutedStyle, "Use 'vhub auth login' to sign in."))
	}
	return b.String()
}

type registeredView struct {
	Created map[string]any `json:"created" yaml:"created"`
}

func (v registeredView) Text(s *ux.Styles) string {
	var b strings.Builder
	b.WriteString(s.Render(ux.SuccessStyle, "Account created"))

	keys := make([]string, 0, len(v.Created))
	for k := range v.Created {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n" + s.Field(k, fmt.Sprint(v.Created[k])))
	}
	b.WriteString("\n" + s.Render(ux.MutedStyle, "Run 'vhub auth login' to sign in."))
	return b.String()
}

type routeCheckView struct {
	guard.Result `yaml:",inline"`
	Role         string `json:"role" yaml:"role"`
}

func (v routeCheckView) Text(s *ux.Styles) string {
	var b strings.Builder
	b.WriteString(s.Field("Location", v.Location) + "\n")
	if v.Matched {
		b.WriteString(s.Field("Route", v.Route.Path) + "\n")
		b.WriteString(s.Field("Requires", v.Requirement.String()) + "\n")
	} else {
		b.WriteString(s.Field("Route", s.Render(ux.MutedStyle, "no match")) + "\n")
	}
	b.WriteString(s.Field("Role", v.Role) + "\n")

	decision := v.Decision.String()
	switch v.Decision {
	case guard.Render:
		decision = s.Render(ux.SuccessStyle, decision)
	case guard.RedirectToLogin, guard.RedirectToHome:
		decision = s.Render(ux.WarningStyle, decision) + " -> " + v.Target
	}
	b.WriteString(s.Field("Decision", decision))
	return b.String()
}

type routeListView struct {
	Routes []routeRow `json:"routes" yaml:"routes"`
}

type routeRow struct {
	Path        string            `json:"path" yaml:"path"`
	Requirement guard.Requirement `json:"requirement" yaml:"requirement"`
}

func (v routeListView) Text(s *ux.Styles) string {
	width := 0
	for _, r := range v.Routes {
		if len(r.Path) > width {
			width = len(r.Path)
		}
	}

	var b strings.Builder
	b.WriteString(s.Render(ux.TitleStyle, "Routes"))
	for _, r := range v.Routes {
		b.WriteString(fmt.Sprintf("\n  %-*s  %s", width, r.Path, s.Render(ux.LabelStyle, r.Requirement.String())))
	}
	return b.String()
}
