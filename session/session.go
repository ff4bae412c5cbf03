package session

// Role identifies the access level a user holds within their tenant.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleSalesperson Role = "salesperson"
)

// DefaultAvatarRef is used when the auth API returns no avatar for the user.
const DefaultAvatarRef = "/images/avatar-placeholder.png"

// Session is the authenticated identity, tenant scope and bearer token for
// the current user. A Session is either fully populated and valid or absent:
// a stored profile that fails validation is corrupt and gets discarded, never
// repaired or merged.
type Session struct {
	UserID     string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName"`
	AvatarRef  string `json:"avatarRef"`
	Token      string `json:"-"` // stored separately, never inside the profile
}

// Valid reports whether the session can be trusted. Every valid session is
// scoped to exactly one tenant and carries a bearer token.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != "" && s.TenantID != "" && s.Token != ""
}

// applyDefaults fills the fields the auth API may omit.
func (s *Session) applyDefaults() {
	if s.TenantName == "" {
		s.TenantName = s.Username
	}
	if s.AvatarRef == "" {
		s.AvatarRef = DefaultAvatarRef
	}
}
