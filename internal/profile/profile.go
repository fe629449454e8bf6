// Package profile reads and edits the signed-in account's profile.
package profile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"placecell.org/internal/apiclient"
	"placecell.org/internal/audit"
	"placecell.org/internal/offers"
	"placecell.org/internal/portal"
)

const (
	studentPath = "/auth/profile"
	officerPath = "/auth/tpo/profile"
	dobLayout   = "2006-01-02"
)

var ErrNothingToUpdate = errors.New("profile: no fields to update")

var contactPattern = regexp.MustCompile(`^[0-9]{10}$`)

// Gateway is the slice of the API client profiles need.
type Gateway interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
	PatchMultipart(ctx context.Context, path string, form *apiclient.Form, out any) error
}

// ValidationError lists the fields a patch got wrong.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = e.Fields[k]
	}
	return "profile: " + strings.Join(parts, "; ")
}

// Document is a file uploaded with a profile patch.
type Document struct {
	Name string
	Data []byte
}

// StudentPatch carries only the fields being changed. Email and
// registration number cannot be changed.
type StudentPatch struct {
	FirstName      *string
	LastName       *string
	ContactNo      *string
	DOB            *string
	Gender         *string
	Specialization *string
	Degree         *string
	Batch          *string
	Skills         []string
	CurrentGPA     *float64
	Backlogs       *int
	Resume         *Document
}

func (p StudentPatch) validate() error {
	fields := map[string]string{}
	if p.ContactNo != nil && !contactPattern.MatchString(strings.TrimSpace(*p.ContactNo)) {
		fields["contact_no"] = "Contact number must be 10 digits"
	}
	if p.DOB != nil {
		if _, err := time.Parse(dobLayout, strings.TrimSpace(*p.DOB)); err != nil {
			fields["dob"] = "Date of birth must be YYYY-MM-DD"
		}
	}
	if p.CurrentGPA != nil && (*p.CurrentGPA < 0 || *p.CurrentGPA > 10) {
		fields["current_gpa"] = "GPA must be between 0 and 10"
	}
	if p.Backlogs != nil && *p.Backlogs < 0 {
		fields["backlogs"] = "Backlogs must be a non-negative number"
	}
	if p.FirstName != nil && strings.TrimSpace(*p.FirstName) == "" {
		fields["first_name"] = "First name cannot be empty"
	}
	if p.Resume != nil {
		if _, err := offers.PageCount(p.Resume.Data); err != nil {
			fields["resume_url"] = "Resume must be a PDF"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (p StudentPatch) form() *apiclient.Form {
	f := &apiclient.Form{}
	for _, kv := range []struct {
		key string
		v   *string
	}{
		{"first_name", p.FirstName},
		{"last_name", p.LastName},
		{"contact_no", p.ContactNo},
		{"dob", p.DOB},
		{"gender", p.Gender},
		{"specialization", p.Specialization},
		{"degree", p.Degree},
		{"batch", p.Batch},
	} {
		if kv.v != nil {
			f.Set(kv.key, strings.TrimSpace(*kv.v))
		}
	}
	if p.Skills != nil {
		f.Set("skills", strings.Join(p.Skills, ","))
	}
	if p.CurrentGPA != nil {
		f.Set("current_gpa", strconv.FormatFloat(*p.CurrentGPA, 'f', -1, 64))
	}
	if p.Backlogs != nil {
		f.Set("backlogs", strconv.Itoa(*p.Backlogs))
	}
	if p.Resume != nil {
		f.Attach(apiclient.File{
			Field:       "resume_url",
			Name:        filepath.Base(p.Resume.Name),
			ContentType: "application/pdf",
			Data:        p.Resume.Data,
		})
	}
	return f
}

// Student fetches the signed-in student's profile.
func Student(ctx context.Context, client Gateway) (portal.StudentProfile, error) {
	var p portal.StudentProfile
	if err := client.GetJSON(ctx, studentPath, nil, &p); err != nil {
		return portal.StudentProfile{}, fmt.Errorf("student profile: %w", err)
	}
	return p, nil
}

// UpdateStudent sends the set fields and returns the server's message with
// the updated profile.
func UpdateStudent(ctx context.Context, client Gateway, patch StudentPatch) (portal.StudentProfile, string, error) {
	if err := patch.validate(); err != nil {
		return portal.StudentProfile{}, "", err
	}
	form := patch.form()
	if form.Len() == 0 {
		return portal.StudentProfile{}, "", ErrNothingToUpdate
	}
	var resp struct {
		Message string                `json:"message"`
		User    portal.StudentProfile `json:"user"`
	}
	if err := client.PatchMultipart(ctx, studentPath, form, &resp); err != nil {
		return portal.StudentProfile{}, "", fmt.Errorf("update student profile: %w", err)
	}
	_ = audit.LogEvent(ctx, "profile.update", map[string]any{"kind": "student"})
	return resp.User, resp.Message, nil
}

// OfficerPatch carries the officer fields the portal lets officers change.
type OfficerPatch struct {
	Name       *string
	Department *string
}

// Officer fetches the signed-in officer's profile.
func Officer(ctx context.Context, client Gateway) (portal.OfficerProfile, error) {
	var p portal.OfficerProfile
	if err := client.GetJSON(ctx, officerPath, nil, &p); err != nil {
		return portal.OfficerProfile{}, fmt.Errorf("officer profile: %w", err)
	}
	return normalize(p), nil
}

// UpdateOfficer changes the officer's name and/or department.
func UpdateOfficer(ctx context.Context, client Gateway, patch OfficerPatch) (portal.OfficerProfile, string, error) {
	form := &apiclient.Form{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return portal.OfficerProfile{}, "", &ValidationError{Fields: map[string]string{"admin_name": "Name cannot be empty"}}
		}
		form.Set("admin_name", name)
	}
	if patch.Department != nil {
		form.Set("department", strings.TrimSpace(*patch.Department))
	}
	if form.Len() == 0 {
		return portal.OfficerProfile{}, "", ErrNothingToUpdate
	}
	var resp struct {
		Message string                `json:"message"`
		User    portal.OfficerProfile `json:"user"`
	}
	if err := client.PatchMultipart(ctx, officerPath, form, &resp); err != nil {
		return portal.OfficerProfile{}, "", fmt.Errorf("update officer profile: %w", err)
	}
	_ = audit.LogEvent(ctx, "profile.update", map[string]any{"kind": "officer"})
	return normalize(resp.User), resp.Message, nil
}

func normalize(p portal.OfficerProfile) portal.OfficerProfile {
	if p.Name == "" {
		p.Name = p.AdminName
	}
	p.AdminName = ""
	return p
}
