package identity

// Role is the coarse permission class of a principal.
type Role string

const (
	RoleVolunteer    Role = "volunteer"    // Default for every account
	RoleOrganization Role = "organization" // May publish opportunities and resources
	RoleAdmin        Role = "admin"        // Full moderation access
)

// ParseRole maps a raw attribute value onto a Role.
// Anything missing or unrecognized is a volunteer; matching is exact.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleAdmin:
		return RoleAdmin
	case RoleOrganization:
		return RoleOrganization
	case RoleVolunteer:
		return RoleVolunteer
	default:
		return RoleVolunteer
	}
}

// RoleOf derives the role embedded in a user record.
//
// The role lives under metadata.role. Records issued by the hosted backend carry it
// under user_metadata.role instead, so that is consulted when metadata has no role.
func RoleOf(u *User) Role {
	if u == nil {
		return RoleVolunteer
	}
	if raw, ok := u.Metadata.role(); ok {
		return ParseRole(raw)
	}
	if raw, ok := u.UserMetadata.role(); ok {
		return ParseRole(raw)
	}
	return RoleVolunteer
}

// String returns the role name
func (r Role) String() string {
	return string(r)
}

// IsAdmin reports whether r is the admin role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// CanPublish reports whether r may post opportunities and resources.
func (r Role) CanPublish() bool {
	return r == RoleOrganization || r == RoleAdmin
}
