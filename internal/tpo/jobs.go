package tpo

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
	"sync"

	"placecell.org/internal/apiclient"
	"placecell.org/internal/audit"
	"placecell.org/internal/ids"
	"placecell.org/internal/portal"
)

const (
	tpoJobsPath   = "/job/tpo/jobs"
	createJobPath = "/job/create"

	DefaultPageSize = 10
)

var (
	ErrInvalidID         = errors.New("tpo: id is required")
	ErrNothingToUpdate   = errors.New("tpo: no fields to update")
	ErrUnsupportedFile   = errors.New("tpo: attachment must be a PDF, JPEG or PNG")
	ErrNoCompanySelected = errors.New("tpo: select a company first")
	ErrOutOfScope        = errors.New("tpo: student or job does not belong to the selected company")
)

var urlPattern = regexp.MustCompile(`^(https?://)?([\w-]+\.)+[\w-]+(/[\w\-./?%&=]*)?$`)

// Gateway is the slice of the API client officer features need.
type Gateway interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
	PostJSON(ctx context.Context, path string, in, out any) error
	PutJSON(ctx context.Context, path string, in, out any) error
	Delete(ctx context.Context, path string, out any) error
	PostMultipart(ctx context.Context, path string, form *apiclient.Form, out any) error
	PutMultipart(ctx context.Context, path string, form *apiclient.Form, out any) error
	GetRaw(ctx context.Context, path string, query url.Values) ([]byte, string, error)
}

// Attachment is an optional file sent with a job posting.
type Attachment struct {
	Name string
	Data []byte
}

func (a *Attachment) contentType() (string, error) {
	switch strings.ToLower(filepath.Ext(a.Name)) {
	case ".pdf":
		return "application/pdf", nil
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".png":
		return "image/png", nil
	}
	return "", ErrUnsupportedFile
}

// JobInput is a new posting. Package, MinGPA and MaxBacklogs are numeric on
// the wire.
type JobInput struct {
	Role              string
	Location          string
	Description       string
	Package           float64
	InterviewDate     string
	LastDateToApply   string
	GenderEligibility string
	MaxBacklogs       int
	MinGPA            float64
	CompanyName       string
	CompanyType       string
	Website           string
	CompanyInfo       string
	ContactPerson     string
	Address           string
	ServiceAgreement  string
	RegistrationLink  string
}

// ValidationError maps form fields to problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range sortedKeys(e.Fields) {
		parts = append(parts, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate applies the posting rules: required text, a positive package,
// non-negative backlogs, GPA within [0,10] and well-formed links.
func (in JobInput) Validate() error {
	fields := map[string]string{}
	for _, fv := range [][2]string{
		{"role", in.Role},
		{"job_location", in.Location},
		{"job_description", in.Description},
		{"date_of_interview", in.InterviewDate},
		{"last_date_to_apply", in.LastDateToApply},
		{"gender_eligibility", in.genderEligibility()},
		{"company_name", in.CompanyName},
		{"company_type", in.CompanyType},
		{"website", in.Website},
		{"description", in.CompanyInfo},
	} {
		if strings.TrimSpace(fv[1]) == "" {
			fields[fv[0]] = strings.ReplaceAll(fv[0], "_", " ") + " is required"
		}
	}
	if in.Package <= 0 {
		fields["package"] = "Package must be a positive number"
	}
	if in.MaxBacklogs < 0 {
		fields["max_backlogs"] = "Max backlogs must be a non-negative number"
	}
	if in.MinGPA < 0 || in.MinGPA > 10 {
		fields["min_gpa"] = "Min GPA must be between 0 and 10"
	}
	for field, link := range map[string]string{"website": in.Website, "links_for_registrations": in.RegistrationLink} {
		if _, taken := fields[field]; !taken && link != "" && !urlPattern.MatchString(link) {
			fields[field] = "Please enter a valid URL"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (in JobInput) genderEligibility() string {
	if g := strings.TrimSpace(in.GenderEligibility); g != "" {
		return g
	}
	return "all"
}

func (in JobInput) form() *apiclient.Form {
	f := &apiclient.Form{}
	f.Set("role", strings.TrimSpace(in.Role)).
		Set("job_location", strings.TrimSpace(in.Location)).
		Set("job_description", in.Description).
		Set("package", formatFloat(in.Package)).
		Set("date_of_interview", in.InterviewDate).
		Set("last_date_to_apply", in.LastDateToApply).
		Set("gender_eligibility", in.genderEligibility()).
		Set("max_backlogs", strconv.Itoa(in.MaxBacklogs)).
		Set("min_gpa", formatFloat(in.MinGPA)).
		Set("company_name", strings.TrimSpace(in.CompanyName)).
		Set("company_type", in.CompanyType).
		Set("website", in.Website).
		Set("description", in.CompanyInfo).
		Set("contact_person", in.ContactPerson).
		Set("address", in.Address).
		Set("service_agreement", in.ServiceAgreement).
		Set("links_for_registrations", in.RegistrationLink)
	return f
}

// JobPatch carries only the fields being changed.
type JobPatch struct {
	Role              *string
	CompanyID         *string
	Location          *string
	Description       *string
	ServiceAgreement  *string
	RegistrationLink  *string
	Package           *float64
	MinGPA            *float64
	MaxBacklogs       *int
	InterviewDate     *string
	LastDateToApply   *string
	GenderEligibility *string
}

func (p JobPatch) form() *apiclient.Form {
	f := &apiclient.Form{}
	setStr := func(key string, v *string) {
		if v != nil {
			f.Set(key, *v)
		}
	}
	setStr("role", p.Role)
	setStr("company_id", p.CompanyID)
	setStr("job_location", p.Location)
	setStr("job_description", p.Description)
	setStr("service_agreement", p.ServiceAgreement)
	setStr("links_for_registrations", p.RegistrationLink)
	if p.Package != nil {
		f.Set("package", formatFloat(*p.Package))
	}
	if p.MinGPA != nil {
		f.Set("min_gpa", formatFloat(*p.MinGPA))
	}
	if p.MaxBacklogs != nil {
		f.Set("max_backlogs", strconv.Itoa(*p.MaxBacklogs))
	}
	setStr("date_of_interview", p.InterviewDate)
	setStr("last_date_to_apply", p.LastDateToApply)
	setStr("gender_eligibility", p.GenderEligibility)
	return f
}

// Validate checks the numeric ranges of the fields that are set.
func (p JobPatch) Validate() error {
	fields := map[string]string{}
	if p.Package != nil && *p.Package <= 0 {
		fields["package"] = "Package must be a positive number"
	}
	if p.MaxBacklogs != nil && *p.MaxBacklogs < 0 {
		fields["max_backlogs"] = "Max backlogs must be a non-negative number"
	}
	if p.MinGPA != nil && (*p.MinGPA < 0 || *p.MinGPA > 10) {
		fields["min_gpa"] = "Min GPA must be between 0 and 10"
	}
	if p.RegistrationLink != nil && *p.RegistrationLink != "" && !urlPattern.MatchString(*p.RegistrationLink) {
		fields["links_for_registrations"] = "Please enter a valid URL"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

type tpoJobsResponse struct {
	Jobs        []portal.PostedJob `json:"jobs"`
	Total       int                `json:"total"`
	Pages       int                `json:"pages"`
	CurrentPage int                `json:"current_page"`
}

// Manager is the officer's job management view. Deletes and edits patch the
// local list immediately; the list can drift from the server (another
// officer's changes) until the next ListJobs, which Stale reports.
type Manager struct {
	client Gateway

	mu         sync.RWMutex
	jobs       []portal.PostedJob
	pagination portal.Pagination
	stale      bool
}

func NewManager(client Gateway) *Manager {
	return &Manager{client: client}
}

// ListJobs loads one page of the officer's postings and clears staleness.
func (m *Manager) ListJobs(ctx context.Context, page, perPage int) error {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	var resp tpoJobsResponse
	q := url.Values{"page": {strconv.Itoa(page)}, "per_page": {strconv.Itoa(perPage)}}
	if err := m.client.GetJSON(ctx, tpoJobsPath, q, &resp); err != nil {
		return fmt.Errorf("list posted jobs: %w", err)
	}
	current := resp.CurrentPage
	if current == 0 {
		current = page
	}
	m.mu.Lock()
	m.jobs = resp.Jobs
	m.pagination = portal.Pagination{Page: current, Pages: resp.Pages, Total: resp.Total, PerPage: perPage}
	m.stale = false
	m.mu.Unlock()
	return nil
}

// Jobs returns the local list.
func (m *Manager) Jobs() []portal.PostedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]portal.PostedJob, len(m.jobs))
	copy(out, m.jobs)
	return out
}

// Pagination returns the envelope of the last load.
func (m *Manager) Pagination() portal.Pagination {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pagination
}

// Stale reports whether local patches were applied since the last load.
func (m *Manager) Stale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stale
}

// CreateJob validates and submits a posting with an optional attachment.
func (m *Manager) CreateJob(ctx context.Context, in JobInput, file *Attachment) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	form := in.form()
	if err := attach(form, "files", file); err != nil {
		return "", err
	}
	var resp struct {
		Message string    `json:"message"`
		JobID   portal.ID `json:"job_id"`
	}
	ctx = apiclient.WithIdempotencyKey(ctx, ids.IdempotencyKey())
	if err := m.client.PostMultipart(ctx, createJobPath, form, &resp); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	m.mu.Lock()
	m.stale = true
	m.mu.Unlock()
	_ = audit.LogEvent(ctx, "job.create", map[string]any{"job_id": string(resp.JobID), "company": in.CompanyName})
	return resp.Message, nil
}

// UpdateJob sends only the fields set in patch, plus an optional file.
func (m *Manager) UpdateJob(ctx context.Context, id portal.ID, patch JobPatch, file *Attachment) (string, error) {
	if strings.TrimSpace(string(id)) == "" {
		return "", ErrInvalidID
	}
	if err := patch.Validate(); err != nil {
		return "", err
	}
	form := patch.form()
	if err := attach(form, "file", file); err != nil {
		return "", err
	}
	if form.Len() == 0 {
		return "", ErrNothingToUpdate
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := m.client.PutMultipart(ctx, "/job/"+url.PathEscape(string(id)), form, &resp); err != nil {
		return "", fmt.Errorf("update job %s: %w", id, err)
	}
	m.mu.Lock()
	for i := range m.jobs {
		if m.jobs[i].ID != id {
			continue
		}
		if patch.Role != nil {
			m.jobs[i].Role = *patch.Role
		}
		if patch.Location != nil {
			m.jobs[i].Location = *patch.Location
		}
		if patch.Package != nil {
			m.jobs[i].Package = *patch.Package
		}
		if patch.MinGPA != nil {
			m.jobs[i].MinGPA = *patch.MinGPA
		}
		if patch.LastDateToApply != nil {
			m.jobs[i].LastDateToApply = *patch.LastDateToApply
		}
	}
	m.stale = true
	m.mu.Unlock()
	_ = audit.LogEvent(ctx, "job.update", map[string]any{"job_id": string(id)})
	return resp.Message, nil
}

// DeleteJob removes the posting on the server and then from the local list.
func (m *Manager) DeleteJob(ctx context.Context, id portal.ID) error {
	if strings.TrimSpace(string(id)) == "" {
		return ErrInvalidID
	}
	if err := m.client.Delete(ctx, "/job/"+url.PathEscape(string(id)), nil); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	m.mu.Lock()
	kept := m.jobs[:0]
	for _, j := range m.jobs {
		if j.ID != id {
			kept = append(kept, j)
		}
	}
	m.jobs = kept
	m.stale = true
	m.mu.Unlock()
	_ = audit.LogEvent(ctx, "job.delete", map[string]any{"job_id": string(id)})
	return nil
}

func attach(form *apiclient.Form, field string, file *Attachment) error {
	if file == nil {
		return nil
	}
	ct, err := file.contentType()
	if err != nil {
		return err
	}
	form.Attach(apiclient.File{Field: field, Name: file.Name, ContentType: ct, Data: file.Data})
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
