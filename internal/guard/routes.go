package guard

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/felixgeelhaar/vhub/internal/nav"
	"github.com/felixgeelhaar/vhub/internal/session"
)

// RoleRequirement is the role clause of a route declaration.
type RoleRequirement string

const (
	RoleAny        RoleRequirement = ""
	RoleAdmin      RoleRequirement = "admin"
	RoleOrgOrAdmin RoleRequirement = "org-or-admin"
)

// Route declares one screen. Path uses gorilla/mux syntax ("/opportunities/{id}").
type Route struct {
	Path         string          `json:"path" yaml:"path"`
	RequiresAuth bool            `json:"requires_auth" yaml:"requires_auth"`
	RequiredRole RoleRequirement `json:"required_role,omitempty" yaml:"required_role,omitempty"`
}

// RequirementOf converts a route declaration into a Requirement. A role clause implies
// authentication.
func RequirementOf(r Route) Requirement {
	switch r.RequiredRole {
	case RoleAdmin:
		return AdminOnly
	case RoleOrgOrAdmin:
		return OrgOrAdmin
	}
	if r.RequiresAuth {
		return Authenticated
	}
	return Public
}

// DefaultRoutes is the Volunteer Hub screen table.
func DefaultRoutes() []Route {
	public := func(p string) Route { return Route{Path: p} }
	authed := func(p string) Route { return Route{Path: p, RequiresAuth: true} }
	org := func(p string) Route { return Route{Path: p, RequiresAuth: true, RequiredRole: RoleOrgOrAdmin} }
	admin := func(p string) Route { return Route{Path: p, RequiresAuth: true, RequiredRole: RoleAdmin} }

	return []Route{
		public("/"),
		public("/opportunities"),
		public("/opportunities/{id}"),
		public("/resources"),
		public("/resources/{id}"),
		public("/calendar"),
		public(nav.LoginPath),
		public("/register"),
		public("/about"),

		authed("/profile"),
		authed("/dashboard"),
		authed("/notifications"),
		authed("/messages"),
		authed("/groups"),
		org("/post-opportunity"),
		org("/post-resource"),
		org("/org/volunteers"),

		admin("/admin"),
		admin("/admin/users"),
		admin("/admin/hours"),
		admin("/admin/reviews"),
		admin("/admin/volunteers"),
	}
}

// Table resolves locations to routes.
type Table struct {
	routes  []Route
	router  *mux.Router
	indexOf map[*mux.Route]int
}

// NewTable builds a Table. Invalid patterns are reported. Matching ignores a trailing
// slash and letter case, so "/Profile/" resolves to "/profile".
func NewTable(routes []Route) (*Table, error) {
	router := mux.NewRouter().StrictSlash(true)
	indexOf := make(map[*mux.Route]int, len(routes))
	for i, r := range routes {
		route := router.NewRoute().Path(r.Path)
		if err := route.GetError(); err != nil {
			return nil, fmt.Errorf("route %q: %w", r.Path, err)
		}
		if r.Path != strings.ToLower(r.Path) {
			return nil, fmt.Errorf("route %q: paths must be lower case", r.Path)
		}
		indexOf[route] = i
	}
	return &Table{routes: routes, router: router, indexOf: indexOf}, nil
}

// DefaultTable is NewTable(DefaultRoutes()).
func DefaultTable() *Table {
	t, err := NewTable(DefaultRoutes())
	if err != nil {
		panic(err)
	}
	return t
}

// Routes returns the declared routes in order.
func (t *Table) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// Resolve finds the route for location (query and fragment ignored) and its path variables.
func (t *Table) Resolve(location string) (Route, map[string]string, bool) {
	u, err := url.Parse(location)
	if err != nil || u.Path == "" {
		return Route{}, nil, false
	}

	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: strings.ToLower(u.Path)}}
	var match mux.RouteMatch
	if !t.router.Match(req, &match) || match.Route == nil {
		return Route{}, nil, false
	}

	idx, ok := t.indexOf[match.Route]
	if !ok {
		return Route{}, nil, false
	}
	route := t.routes[idx]
	return route, pathVars(route.Path, u.Path, match.Vars), true
}

// pathVars reads variables from the original path so their case survives the
// lower-cased match.
func pathVars(template, path string, matched map[string]string) map[string]string {
	if len(matched) == 0 {
		return matched
	}
	tmpl := strings.Split(strings.Trim(template, "/"), "/")
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(tmpl) != len(segs) {
		return matched
	}
	vars := make(map[string]string, len(matched))
	for i, seg := range tmpl {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name, _, _ := strings.Cut(seg[1:len(seg)-1], ":")
		vars[name] = segs[i]
	}
	return vars
}

// Result is the outcome of navigating to a location.
type Result struct {
	Location    string            `json:"location" yaml:"location"`
	Matched     bool              `json:"matched" yaml:"matched"`
	Route       Route             `json:"route" yaml:"route"`
	Vars        map[string]string `json:"vars,omitempty" yaml:"vars,omitempty"`
	Requirement Requirement       `json:"requirement" yaml:"requirement"`
	Decision    Decision          `json:"decision" yaml:"decision"`
	// Target is where the client ends up, "" while pending.
	Target string `json:"target" yaml:"target"`
}

// Navigate resolves location and applies Decide. Unknown locations redirect home.
func (t *Table) Navigate(snap session.Snapshot, location string) Result {
	route, vars, ok := t.Resolve(location)
	if !ok {
		return Result{
			Location: location,
			Route:    Route{Path: "*"},
			Decision: RedirectToHome,
			Target:   nav.HomePath,
		}
	}

	req := RequirementOf(route)
	decision := Decide(snap, req)
	res := Result{
		Location:    location,
		Matched:     true,
		Route:       route,
		Vars:        vars,
		Requirement: req,
		Decision:    decision,
	}
	switch {
	case decision == Render:
		res.Target = location
	case decision.IsRedirect():
		res.Target = decision.Target()
	}
	return res
}

// Follow navigates and moves navigator to where the decision leads. Pending leaves it in place.
func (t *Table) Follow(navigator nav.Navigator, snap session.Snapshot, location string) Result {
	res := t.Navigate(snap, location)
	if res.Target != "" {
		navigator.Navigate(res.Target)
	}
	return res
}
