package authflow

import (
	"strconv"
	"strings"

	"placecell.org/internal/auth"
)

// Form is a registration payload for one kind of principal.
type Form interface {
	Kind() auth.Kind
	EmailAddress() string
	Validate() error
	Payload() map[string]any
}

// StudentForm is the student self-registration form.
type StudentForm struct {
	Email           string
	FirstName       string
	LastName        string
	RegNo           string
	Degree          string
	Specialization  string
	Password        string
	DOB             string
	Gender          string
	CurrentGPA      string
	ContactNo       string
	Backlogs        string
	Batch           string
	Skills          []string
	ResumeURL       string
	CertificateURLs []string
}

func (f StudentForm) Kind() auth.Kind      { return auth.Student }
func (f StudentForm) EmailAddress() string { return strings.TrimSpace(f.Email) }

// Validate applies the campus registration rules: required fields, the
// college email pattern, a ten digit phone, GPA in [0,10] and non-negative
// backlogs.
func (f StudentForm) Validate() error {
	v := &validator{}
	for _, fv := range [][2]string{
		{"email", f.Email},
		{"first_name", f.FirstName},
		{"last_name", f.LastName},
		{"reg_no", f.RegNo},
		{"degree", f.Degree},
		{"specialization", f.Specialization},
		{"password", f.Password},
		{"dob", f.DOB},
		{"gender", f.Gender},
		{"current_gpa", f.CurrentGPA},
		{"contact_no", f.ContactNo},
		{"backlogs", f.Backlogs},
	} {
		v.required(fv[0], fv[1])
	}
	v.match("email", f.Email, campusEmailPattern, "email must be a valid college email address")
	v.match("contact_no", f.ContactNo, contactPattern, "contact number must be 10 digits")
	v.floatRange("current_gpa", f.CurrentGPA, 0, 10, "current GPA must be between 0 and 10")
	v.nonNegativeInt("backlogs", f.Backlogs, "backlogs must be a non-negative number")
	v.date("dob", f.DOB)
	v.oneOf("gender", f.Gender, []string{"Male", "Female", "Other"})
	return v.err()
}

func (f StudentForm) Payload() map[string]any {
	gpa, _ := strconv.ParseFloat(strings.TrimSpace(f.CurrentGPA), 64)
	backlogs, _ := strconv.Atoi(strings.TrimSpace(f.Backlogs))
	p := map[string]any{
		"email":          strings.TrimSpace(f.Email),
		"first_name":     strings.TrimSpace(f.FirstName),
		"last_name":      strings.TrimSpace(f.LastName),
		"reg_no":         strings.TrimSpace(f.RegNo),
		"degree":         strings.TrimSpace(f.Degree),
		"specialization": strings.TrimSpace(f.Specialization),
		"password":       f.Password,
		"dob":            strings.TrimSpace(f.DOB),
		"gender":         strings.TrimSpace(f.Gender),
		"current_gpa":    gpa,
		"contact_no":     strings.TrimSpace(f.ContactNo),
		"backlogs":       backlogs,
	}
	if s := strings.TrimSpace(f.Batch); s != "" {
		p["batch"] = s
	}
	if len(f.Skills) > 0 {
		p["skills"] = f.Skills
	}
	if s := strings.TrimSpace(f.ResumeURL); s != "" {
		p["resume_url"] = s
	}
	if len(f.CertificateURLs) > 0 {
		p["certificate_urls"] = f.CertificateURLs
	}
	return p
}

// OfficerForm is the placement officer registration form.
type OfficerForm struct {
	Name       string
	Email      string
	Password   string
	Role       string
	Department string
}

func (f OfficerForm) Kind() auth.Kind      { return auth.Officer }
func (f OfficerForm) EmailAddress() string { return strings.TrimSpace(f.Email) }

func (f OfficerForm) role() string {
	if r := strings.TrimSpace(f.Role); r != "" {
		return strings.ToLower(r)
	}
	return string(auth.RoleAdmin)
}

func (f OfficerForm) Validate() error {
	v := &validator{}
	v.required("admin_name", f.Name)
	v.required("email", f.Email)
	v.required("password", f.Password)
	v.required("department", f.Department)
	v.match("email", f.Email, genericEmailPattern, "email must be a valid email address")
	if !v.failed("password") && len(f.Password) < 8 {
		v.fail("password", "password must be at least 8 characters")
	}
	v.oneOf("role", f.role(), []string{string(auth.RoleAdmin), string(auth.RoleCDPC)})
	return v.err()
}

func (f OfficerForm) Payload() map[string]any {
	return map[string]any{
		"admin_name": strings.TrimSpace(f.Name),
		"email":      strings.TrimSpace(f.Email),
		"password":   f.Password,
		"role":       f.role(),
		"department": strings.TrimSpace(f.Department),
	}
}
