package applications

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"placecell.org/internal/portal"
)

const appliedJobsPath = "/job/student/applied-jobs"

// DefaultPageSize is the number of applications shown per page.
const DefaultPageSize = 5

// EmptyNotice is shown when the selected bucket has no applications.
const EmptyNotice = "no jobs in this category"

var (
	ErrNotLoaded       = errors.New("applications: not loaded")
	ErrUnknownBucket   = errors.New("applications: unknown bucket")
	ErrPageOutOfRange  = errors.New("applications: page out of range")
	ErrNoSelection     = errors.New("applications: no application at that position; pick one from the list")
	ErrInvalidPageSize = errors.New("applications: page size must be positive")
)

// Bucket is a display category derived from the server's job_status.
type Bucket string

const (
	Upcoming     Bucket = "Upcoming"
	Ongoing      Bucket = "Ongoing"
	Completed    Bucket = "Completed"
	Offers       Bucket = "Offers"
	Unclassified Bucket = "Unclassified"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{Upcoming, Ongoing, Completed, Offers, Unclassified}

// ParseBucket accepts bucket names case-insensitively.
func ParseBucket(raw string) (Bucket, error) {
	for _, b := range Buckets {
		if strings.EqualFold(strings.TrimSpace(raw), string(b)) {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBucket, raw)
}

// Classify maps a server status to its bucket. Anything the portal has not
// defined lands in Unclassified instead of disappearing.
func Classify(status string) Bucket {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "upcoming":
		return Upcoming
	case "ongoing":
		return Ongoing
	case "completed":
		return Completed
	case "offers", "offer":
		return Offers
	}
	return Unclassified
}

// Getter is the slice of the API client the tracker needs.
type Getter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// Tracker holds a student's applications fetched once, then filtered and
// paged locally. Switching buckets never refetches.
type Tracker struct {
	client Getter

	mu       sync.RWMutex
	loaded   bool
	student  portal.StudentSummary
	all      []portal.Application
	filtered []portal.Application
	bucket   Bucket
	page     int
	size     int
}

// New returns a tracker showing the Upcoming bucket with the default page size.
func New(client Getter) *Tracker {
	return &Tracker{client: client, bucket: Upcoming, size: DefaultPageSize}
}

// Load fetches the full application list in one request and reapplies the
// current bucket.
func (t *Tracker) Load(ctx context.Context) error {
	var resp portal.AppliedJobs
	if err := t.client.GetJSON(ctx, appliedJobsPath, nil, &resp); err != nil {
		return fmt.Errorf("load applications: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loaded = true
	t.student = resp.Student
	t.all = resp.Applications
	t.refilter()
	return nil
}

// Select switches to bucket b and returns to the first page.
func (t *Tracker) Select(b Bucket) error {
	if _, err := ParseBucket(string(b)); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bucket = b
	t.refilter()
	return nil
}

// SetPageSize changes the page size and returns to the first page.
func (t *Tracker) SetPageSize(n int) error {
	if n <= 0 {
		return ErrInvalidPageSize
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.size = n
	t.page = 0
	return nil
}

// SetPage moves to zero-based page n of the filtered subset.
func (t *Tracker) SetPage(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 0 || (n > 0 && n >= t.pagesLocked()) {
		return ErrPageOutOfRange
	}
	t.page = n
	return nil
}

func (t *Tracker) refilter() {
	t.filtered = t.filtered[:0]
	for _, a := range t.all {
		if Classify(a.Status) == t.bucket {
			t.filtered = append(t.filtered, a)
		}
	}
	t.page = 0
}

func (t *Tracker) pagesLocked() int {
	if len(t.filtered) == 0 {
		return 0
	}
	return (len(t.filtered) + t.size - 1) / t.size
}

// Bucket returns the selected bucket.
func (t *Tracker) Bucket() Bucket {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bucket
}

// CurrentPage returns the zero-based page index.
func (t *Tracker) CurrentPage() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.page
}

// Pages returns the page count of the filtered subset.
func (t *Tracker) Pages() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pagesLocked()
}

// Page returns the applications on the current page, in server order.
func (t *Tracker) Page() []portal.Application {
	t.mu.RLock()
	defer t.mu.RUnlock()
	start := t.page * t.size
	if start >= len(t.filtered) {
		return nil
	}
	end := start + t.size
	if end > len(t.filtered) {
		end = len(t.filtered)
	}
	out := make([]portal.Application, end-start)
	copy(out, t.filtered[start:end])
	return out
}

// Filtered returns every application in the selected bucket.
func (t *Tracker) Filtered() []portal.Application {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]portal.Application, len(t.filtered))
	copy(out, t.filtered)
	return out
}

// Empty reports whether the selected bucket has nothing to show.
func (t *Tracker) Empty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.filtered) == 0
}

// Counts returns the number of applications per bucket.
func (t *Tracker) Counts() map[Bucket]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[Bucket]int, len(Buckets))
	for _, b := range Buckets {
		counts[b] = 0
	}
	for _, a := range t.all {
		counts[Classify(a.Status)]++
	}
	return counts
}

// Student returns the summary block from the last load.
func (t *Tracker) Student() (portal.StudentSummary, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.loaded {
		return portal.StudentSummary{}, ErrNotLoaded
	}
	return t.student, nil
}

// View returns the full record at position i of the current page.
func (t *Tracker) View(i int) (portal.Application, error) {
	page := t.Page()
	if i < 0 || i >= len(page) {
		return portal.Application{}, ErrNoSelection
	}
	return page[i], nil
}

// Interview is one entry of the interview calendar.
type Interview struct {
	Date        time.Time
	Application portal.Application
}

// InterviewCalendar lists every application with a scheduled interview date,
// soonest first. "TBD" and unparseable dates are left out.
func (t *Tracker) InterviewCalendar() []Interview {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Interview
	for _, a := range t.all {
		if d, ok := portal.ParseDate(a.InterviewDate); ok {
			out = append(out, Interview{Date: d, Application: a})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
