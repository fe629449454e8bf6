package auth

import (
	"strings"

	"placecell.org/internal/nav"
	"placecell.org/internal/portal"
)

// Role is the portal role carried by a principal.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
	RoleCDPC    Role = "cdpc"
)

// ParseRole normalizes a role string; ok is false for roles the portal does not know.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleCDPC:
		return RoleCDPC, true
	}
	return "", false
}

// Endpoints are the server paths one kind of principal authenticates against.
type Endpoints struct {
	Register  string
	VerifyOTP string
	Login     string
	Logout    string
	Profile   string
}

// Kind describes one principal population: where it registers, where it
// lands after login and which role it gets when the server omits one.
type Kind struct {
	Name          string
	Endpoints     Endpoints
	Home          string
	RegisterRoute string
	VerifyRoute   string
	DefaultRole   Role
}

var (
	Student = Kind{
		Name: "student",
		Endpoints: Endpoints{
			Register:  "/auth/register",
			VerifyOTP: "/auth/verify-otp",
			Login:     "/auth/login",
			Logout:    "/auth/logout",
			Profile:   "/auth/profile",
		},
		Home:          nav.StudentDashboard,
		RegisterRoute: nav.Register,
		VerifyRoute:   nav.VerifyOTP,
		DefaultRole:   RoleStudent,
	}
	Officer = Kind{
		Name: "officer",
		Endpoints: Endpoints{
			Register:  "/auth/tpo/register",
			VerifyOTP: "/auth/tpo/verify-otp",
			Login:     "/auth/tpo/login",
			Logout:    "/auth/tpo/logout",
			Profile:   "/auth/tpo/profile",
		},
		Home:          nav.TPODashboard,
		RegisterRoute: nav.TPORegister,
		VerifyRoute:   nav.TPOVerifyOTP,
		DefaultRole:   RoleAdmin,
	}
)

// KindOf maps a role onto its population.
func KindOf(role Role) (Kind, error) {
	switch role {
	case RoleStudent:
		return Student, nil
	case RoleAdmin, RoleCDPC:
		return Officer, nil
	}
	return Kind{}, ErrUnknownRole
}

// Principal is the authenticated identity persisted alongside the token.
type Principal struct {
	ID         portal.ID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	RegNo      string    `json:"reg_no,omitempty"`
	Department string    `json:"department,omitempty"`
}

// Validate checks the fields every principal must carry.
func (p Principal) Validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return ErrInvalidPrincipal
	}
	if _, ok := ParseRole(string(p.Role)); !ok {
		return ErrUnknownRole
	}
	return nil
}

// Kind returns the population the principal belongs to.
func (p Principal) Kind() (Kind, error) { return KindOf(p.Role) }

// IsOfficer reports whether the principal may use placement-officer features.
func (p Principal) IsOfficer() bool { return p.Role == RoleAdmin || p.Role == RoleCDPC }

// UserRecord is the user object returned by login and OTP verification.
// Students and officers populate different name fields.
type UserRecord struct {
	ID          portal.ID `json:"id"`
	Email       string    `json:"email"`
	StudentName string    `json:"student_name,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	TPOName     string    `json:"tpo_name,omitempty"`
	AdminName   string    `json:"admin_name,omitempty"`
	RegNo       string    `json:"reg_no,omitempty"`
	Department  string    `json:"department,omitempty"`
	Role        string    `json:"role,omitempty"`
}

// Principal converts the server record for the given kind. Students are
// always role student; officers keep the server role and fall back to the
// kind default.
func (u UserRecord) Principal(kind Kind) (Principal, error) {
	role := kind.DefaultRole
	if kind.Name != Student.Name {
		if parsed, ok := ParseRole(u.Role); ok && parsed != RoleStudent {
			role = parsed
		}
	}
	p := Principal{
		ID:         u.ID,
		Email:      strings.TrimSpace(u.Email),
		Name:       u.displayName(),
		Role:       role,
		RegNo:      u.RegNo,
		Department: u.Department,
	}
	if err := p.Validate(); err != nil {
		return Principal{}, err
	}
	return p, nil
}

func (u UserRecord) displayName() string {
	for _, name := range []string{u.StudentName, u.TPOName, u.AdminName} {
		if s := strings.TrimSpace(name); s != "" {
			return s
		}
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
