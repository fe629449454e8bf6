package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"placecell.org/internal/apiclient"
	"placecell.org/internal/audit"
	"placecell.org/internal/ids"
	"placecell.org/internal/portal"
)

const (
	studentJobsPath = "/job/student-jobs"
	eligibleCount   = "/job/student/eligible-jobs"

	// DefaultPageSize matches the portal's default per_page.
	DefaultPageSize = 10
	windowSize      = 5
)

var (
	ErrMissingJob = errors.New("jobs: no job selected; open one from the listing")
	ErrInvalidID  = errors.New("jobs: job id is required")
)

// Gateway is the slice of the API client the listing needs.
type Gateway interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
	PostJSON(ctx context.Context, path string, in, out any) error
}

type listResponse struct {
	Jobs       []portal.Job      `json:"jobs"`
	Pagination portal.Pagination `json:"pagination"`
}

// Listing holds one page of jobs the student is eligible for. Eligibility is
// decided by the server; nothing is filtered here.
type Listing struct {
	client Gateway

	mu         sync.RWMutex
	jobs       []portal.Job
	pagination portal.Pagination
	applied    map[portal.ID]bool
}

func New(client Gateway) *Listing {
	return &Listing{client: client, applied: make(map[portal.ID]bool)}
}

// ListEligible fetches page (1-based) of the eligible listing. Once the page
// count is known, requests outside [1, pages] are ignored and leave the
// current page in place.
func (l *Listing) ListEligible(ctx context.Context, page, perPage int) error {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	l.mu.RLock()
	known := l.pagination.Pages
	l.mu.RUnlock()
	if page < 1 || (known > 0 && page > known) {
		return nil
	}

	var resp listResponse
	q := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
	if err := l.client.GetJSON(ctx, studentJobsPath, q, &resp); err != nil {
		return fmt.Errorf("list eligible jobs: %w", err)
	}
	if resp.Pagination.Page == 0 {
		resp.Pagination.Page = page
	}
	if resp.Pagination.PerPage == 0 {
		resp.Pagination.PerPage = perPage
	}

	l.mu.Lock()
	l.jobs = resp.Jobs
	l.pagination = resp.Pagination
	l.mu.Unlock()
	return nil
}

// Jobs returns the current page.
func (l *Listing) Jobs() []portal.Job {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]portal.Job, len(l.jobs))
	copy(out, l.jobs)
	return out
}

// Pagination returns the envelope of the last successful fetch.
func (l *Listing) Pagination() portal.Pagination {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pagination
}

// Window returns the page numbers to offer around the current page.
func (l *Listing) Window() []int {
	p := l.Pagination()
	return PageWindow(p.Page, p.Pages)
}

// PageWindow returns at most five consecutive page numbers that include
// current, kept centred where possible and clamped to [1, total].
func PageWindow(current, total int) []int {
	if total <= 0 {
		return nil
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}
	if total <= windowSize {
		out := make([]int, total)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}
	start := current - windowSize/2
	if start < 1 {
		start = 1
	}
	if start > total-windowSize+1 {
		start = total - windowSize + 1
	}
	out := make([]int, windowSize)
	for i := range out {
		out[i] = start + i
	}
	return out
}

// Apply registers the student for job id. Only that job is marked applied,
// and only after the server accepts.
func (l *Listing) Apply(ctx context.Context, id portal.ID) (string, error) {
	if strings.TrimSpace(string(id)) == "" {
		return "", ErrInvalidID
	}
	var resp struct {
		Message string `json:"message"`
	}
	ctx = apiclient.WithIdempotencyKey(ctx, ids.IdempotencyKey())
	if err := l.client.PostJSON(ctx, "/job/"+url.PathEscape(string(id))+"/register", nil, &resp); err != nil {
		return "", fmt.Errorf("apply to job %s: %w", id, err)
	}
	l.mu.Lock()
	l.applied[id] = true
	l.mu.Unlock()
	_ = audit.LogEvent(ctx, "job.apply", map[string]any{"job_id": string(id)})
	return resp.Message, nil
}

// Applied reports whether Apply succeeded for id in this session.
func (l *Listing) Applied(id portal.ID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.applied[id]
}

// Get fetches the full posting for the detail view.
func (l *Listing) Get(ctx context.Context, id portal.ID) (portal.JobDetail, error) {
	if strings.TrimSpace(string(id)) == "" {
		return portal.JobDetail{}, ErrMissingJob
	}
	var resp struct {
		Message string           `json:"message"`
		Job     portal.JobDetail `json:"job"`
	}
	if err := l.client.GetJSON(ctx, "/job/get-job/"+url.PathEscape(string(id)), nil, &resp); err != nil {
		return portal.JobDetail{}, fmt.Errorf("get job %s: %w", id, err)
	}
	if l.Applied(id) {
		resp.Job.AlreadyApplied = true
	}
	return resp.Job, nil
}

// Detail guards views opened without a job record, e.g. a stale link.
func Detail(job *portal.JobDetail) (portal.JobDetail, error) {
	if job == nil || job.ID == "" {
		return portal.JobDetail{}, ErrMissingJob
	}
	return *job, nil
}

// EligibleCount returns how many jobs the student currently qualifies for.
func (l *Listing) EligibleCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"eligible_jobs_count"`
	}
	if err := l.client.GetJSON(ctx, eligibleCount, nil, &resp); err != nil {
		return 0, fmt.Errorf("eligible job count: %w", err)
	}
	return resp.Count, nil
}
