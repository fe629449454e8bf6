package tpo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"placecell.org/internal/audit"
	"placecell.org/internal/portal"
)

const (
	companiesPath      = "/placed/companies"
	placedStudentsPath = "/placed/placed_students"
	allPlacedPath      = "/placements/all-placed-students"
	appliedReportPath  = "/reports/applied-students/"

	placementDateLayout = "2006-01-02"
)

// PlacementInput is the officer's placement form. Empty strings and a nil
// salary are left out of updates.
type PlacementInput struct {
	StudentID      portal.ID
	JobID          portal.ID
	InterviewDate  string
	JoiningDate    string
	OfferLetterURL string
	SalaryOffered  *float64
}

func (in PlacementInput) validate() error {
	fields := map[string]string{}
	for field, v := range map[string]string{"date_of_interview": in.InterviewDate, "joining_date": in.JoiningDate} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(placementDateLayout, v); err != nil {
			fields[field] = strings.ReplaceAll(field, "_", " ") + " must be YYYY-MM-DD"
		}
	}
	if in.SalaryOffered != nil && *in.SalaryOffered < 0 {
		fields["salary_offered"] = "Salary must be a non-negative number"
	}
	if in.OfferLetterURL != "" && !urlPattern.MatchString(in.OfferLetterURL) {
		fields["offer_letter_url"] = "Please enter a valid URL"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (in PlacementInput) payload(companyID portal.ID, full bool) map[string]any {
	body := map[string]any{"company_id": wireID(companyID)}
	if full || in.StudentID != "" {
		body["student_id"] = wireID(in.StudentID)
	}
	if full || in.JobID != "" {
		body["job_id"] = wireID(in.JobID)
	}
	for key, v := range map[string]string{
		"date_of_interview": in.InterviewDate,
		"joining_date":      in.JoiningDate,
		"offer_letter_url":  in.OfferLetterURL,
	} {
		if v != "" {
			body[key] = v
		}
	}
	if in.SalaryOffered != nil {
		body["salary_offered"] = *in.SalaryOffered
	}
	return body
}

// wireID sends numeric ids as JSON numbers, which the portal's integer
// columns expect.
func wireID(id portal.ID) any {
	if n, ok := id.Int(); ok {
		return n
	}
	return string(id)
}

// Placements drives the company → student/job cascade used to record
// placements. Choices are narrowed to the selected company so a student
// or job from another company cannot be linked.
type Placements struct {
	client Gateway

	mu        sync.RWMutex
	companies []portal.Company
	selected  portal.ID
	students  []portal.CompanyStudent
	jobs      []portal.CompanyJob
}

func NewPlacements(client Gateway) *Placements {
	return &Placements{client: client}
}

// Companies loads the companies an officer can place students with.
func (p *Placements) Companies(ctx context.Context) ([]portal.Company, error) {
	var companies []portal.Company
	if err := p.client.GetJSON(ctx, companiesPath, nil, &companies); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	p.mu.Lock()
	p.companies = companies
	p.mu.Unlock()
	return companies, nil
}

// SelectCompany loads the students and jobs scoped to company id. The
// previous selection stays in place if either request fails.
func (p *Placements) SelectCompany(ctx context.Context, id portal.ID) error {
	if strings.TrimSpace(string(id)) == "" {
		return ErrInvalidID
	}
	base := companiesPath + "/" + url.PathEscape(string(id))

	var students struct {
		Students []portal.CompanyStudent `json:"students"`
	}
	if err := p.client.GetJSON(ctx, base+"/students", nil, &students); err != nil {
		return fmt.Errorf("company %s students: %w", id, err)
	}
	var jobs struct {
		Jobs []portal.CompanyJob `json:"jobs"`
	}
	if err := p.client.GetJSON(ctx, base+"/jobs", nil, &jobs); err != nil {
		return fmt.Errorf("company %s jobs: %w", id, err)
	}

	p.mu.Lock()
	p.selected = id
	p.students = students.Students
	p.jobs = jobs.Jobs
	p.mu.Unlock()
	return nil
}

// Selected returns the selected company id, or "".
func (p *Placements) Selected() portal.ID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selected
}

// Students returns the selectable students of the selected company.
func (p *Placements) Students() []portal.CompanyStudent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]portal.CompanyStudent, len(p.students))
	copy(out, p.students)
	return out
}

// Jobs returns the selectable jobs of the selected company.
func (p *Placements) Jobs() []portal.CompanyJob {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]portal.CompanyJob, len(p.jobs))
	copy(out, p.jobs)
	return out
}

// checkScope requires a selected company and that any student or job named
// in the input belongs to it.
func (p *Placements) checkScope(in PlacementInput, full bool) (portal.ID, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.selected == "" {
		return "", ErrNoCompanySelected
	}
	if full && (in.StudentID == "" || in.JobID == "") {
		return "", &ValidationError{Fields: map[string]string{"student_id": "student and job are required"}}
	}
	if in.StudentID != "" {
		found := false
		for _, s := range p.students {
			if s.ID == in.StudentID {
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("%w: student %s", ErrOutOfScope, in.StudentID)
		}
	}
	if in.JobID != "" {
		found := false
		for _, j := range p.jobs {
			if j.ID == in.JobID {
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("%w: job %s", ErrOutOfScope, in.JobID)
		}
	}
	return p.selected, nil
}

// CreatePlacedStudent records a placement for the selected company.
func (p *Placements) CreatePlacedStudent(ctx context.Context, in PlacementInput) (portal.ID, string, error) {
	company, err := p.checkScope(in, true)
	if err != nil {
		return "", "", err
	}
	if err := in.validate(); err != nil {
		return "", "", err
	}
	var resp struct {
		Message     string    `json:"message"`
		PlacementID portal.ID `json:"placement_id"`
	}
	if err := p.client.PostJSON(ctx, placedStudentsPath, in.payload(company, true), &resp); err != nil {
		return "", "", fmt.Errorf("create placement: %w", err)
	}
	_ = audit.LogEvent(ctx, "placement.create", map[string]any{
		"placement_id": string(resp.PlacementID),
		"student_id":   string(in.StudentID),
		"company_id":   string(company),
		"job_id":       string(in.JobID),
	})
	return resp.PlacementID, resp.Message, nil
}

// UpdatePlacedStudent changes the fields set in in. The student and job, if
// given, must still belong to the selected company.
func (p *Placements) UpdatePlacedStudent(ctx context.Context, id portal.ID, in PlacementInput) (string, error) {
	if strings.TrimSpace(string(id)) == "" {
		return "", ErrInvalidID
	}
	company, err := p.checkScope(in, false)
	if err != nil {
		return "", err
	}
	if err := in.validate(); err != nil {
		return "", err
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := p.client.PutJSON(ctx, placedStudentsPath+"/"+url.PathEscape(string(id)), in.payload(company, false), &resp); err != nil {
		return "", fmt.Errorf("update placement %s: %w", id, err)
	}
	_ = audit.LogEvent(ctx, "placement.update", map[string]any{"placement_id": string(id), "company_id": string(company)})
	return resp.Message, nil
}

// GetPlacedStudent fetches one placement for editing.
func (p *Placements) GetPlacedStudent(ctx context.Context, id portal.ID) (portal.PlacedStudent, error) {
	if strings.TrimSpace(string(id)) == "" {
		return portal.PlacedStudent{}, ErrInvalidID
	}
	var ps portal.PlacedStudent
	if err := p.client.GetJSON(ctx, placedStudentsPath+"/"+url.PathEscape(string(id)), nil, &ps); err != nil {
		return portal.PlacedStudent{}, fmt.Errorf("get placement %s: %w", id, err)
	}
	return ps, nil
}

// DeletePlacedStudent removes a placement record.
func (p *Placements) DeletePlacedStudent(ctx context.Context, id portal.ID) (string, error) {
	if strings.TrimSpace(string(id)) == "" {
		return "", ErrInvalidID
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := p.client.Delete(ctx, placedStudentsPath+"/"+url.PathEscape(string(id)), &resp); err != nil {
		return "", fmt.Errorf("delete placement %s: %w", id, err)
	}
	_ = audit.LogEvent(ctx, "placement.delete", map[string]any{"placement_id": string(id)})
	return resp.Message, nil
}

// PlacedPage is one page of the all-placements report.
type PlacedPage struct {
	Students   []portal.PlacedStudent
	Pagination portal.Pagination
}

// ListPlacedStudents pages through every recorded placement.
func (p *Placements) ListPlacedStudents(ctx context.Context, page, perPage int) (PlacedPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	var resp struct {
		Data       []portal.PlacedStudent `json:"data"`
		Pagination struct {
			Total       int `json:"total"`
			Pages       int `json:"pages"`
			CurrentPage int `json:"current_page"`
			PerPage     int `json:"per_page"`
		} `json:"pagination"`
	}
	q := url.Values{"page": {strconv.Itoa(page)}, "per_page": {strconv.Itoa(perPage)}}
	if err := p.client.GetJSON(ctx, allPlacedPath, q, &resp); err != nil {
		return PlacedPage{}, fmt.Errorf("list placements: %w", err)
	}
	pg := portal.Pagination{
		Page:    resp.Pagination.CurrentPage,
		Pages:   resp.Pagination.Pages,
		Total:   resp.Pagination.Total,
		PerPage: resp.Pagination.PerPage,
	}
	if pg.Page == 0 {
		pg.Page = page
	}
	if pg.PerPage == 0 {
		pg.PerPage = perPage
	}
	return PlacedPage{Students: resp.Data, Pagination: pg}, nil
}

// AppliedStudents lists the applicants of one job.
func (p *Placements) AppliedStudents(ctx context.Context, jobID portal.ID) (portal.AppliedStudents, error) {
	if strings.TrimSpace(string(jobID)) == "" {
		return portal.AppliedStudents{}, ErrInvalidID
	}
	var out portal.AppliedStudents
	if err := p.client.GetJSON(ctx, appliedReportPath+url.PathEscape(string(jobID)), nil, &out); err != nil {
		return portal.AppliedStudents{}, fmt.Errorf("applied students for job %s: %w", jobID, err)
	}
	return out, nil
}

// AppliedStudentsWorkbook downloads the server-rendered spreadsheet of a
// job's applicants.
func (p *Placements) AppliedStudentsWorkbook(ctx context.Context, jobID portal.ID) ([]byte, error) {
	if strings.TrimSpace(string(jobID)) == "" {
		return nil, ErrInvalidID
	}
	data, _, err := p.client.GetRaw(ctx, appliedReportPath+url.PathEscape(string(jobID)), url.Values{"format": {"excel"}})
	if err != nil {
		return nil, fmt.Errorf("applied students workbook for job %s: %w", jobID, err)
	}
	return data, nil
}
