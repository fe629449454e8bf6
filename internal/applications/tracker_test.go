package applications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"placecell.org/internal/portal"
)

type fakeGetter struct {
	calls int
	body  string
	err   error
}

func (f *fakeGetter) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if path != appliedJobsPath {
		return fmt.Errorf("unexpected path %s", path)
	}
	return json.Unmarshal([]byte(f.body), out)
}

func appliedBody(statuses ...string) string {
	apps := make([]map[string]any, 0, len(statuses))
	for i, s := range statuses {
		apps = append(apps, map[string]any{
			"application_id": i + 1,
			"job_id":         100 + i,
			"job_role":       fmt.Sprintf("Role %d", i+1),
			"job_status":     s,
			"interview_date": "TBD",
			"company":        map[string]any{"company_id": 1, "company_name": "Acme"},
		})
	}
	data, _ := json.Marshal(map[string]any{
		"student":            map[string]any{"student_id": 7, "full_name": "Asha Rao", "cgpa": 8.4},
		"applications":       apps,
		"total_applications": len(apps),
	})
	return string(data)
}

func ids(apps []portal.Application) []string {
	out := make([]string, len(apps))
	for i, a := range apps {
		out[i] = string(a.ID)
	}
	return out
}

func TestSelectFiltersLocallyPreservingOrder(t *testing.T) {
	g := &fakeGetter{body: appliedBody("Upcoming", "Offers", "Upcoming", "Completed", "Upcoming", "Ongoing")}
	tr := New(g)
	if err := tr.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := ids(tr.Page()); fmt.Sprint(got) != "[1 3 5]" {
		t.Fatalf("upcoming page=%v", got)
	}
	if err := tr.Select(Offers); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := ids(tr.Page()); fmt.Sprint(got) != "[2]" {
		t.Fatalf("offers page=%v", got)
	}
	if g.calls != 1 {
		t.Fatalf("switching buckets refetched: %d calls", g.calls)
	}
}

func TestPagingAndTabSwitchResetsPage(t *testing.T) {
	statuses := make([]string, 12)
	for i := range statuses {
		statuses[i] = "Upcoming"
	}
	statuses = append(statuses, "Ongoing")
	tr := New(&fakeGetter{body: appliedBody(statuses...)})
	if err := tr.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tr.Pages() != 3 {
		t.Fatalf("pages=%d, want 3", tr.Pages())
	}
	if err := tr.SetPage(2); err != nil {
		t.Fatalf("SetPage: %v", err)
	}
	if got := ids(tr.Page()); fmt.Sprint(got) != "[11 12]" {
		t.Fatalf("last page=%v", got)
	}
	if err := tr.SetPage(3); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}

	if err := tr.Select(Ongoing); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if tr.CurrentPage() != 0 {
		t.Fatalf("page not reset: %d", tr.CurrentPage())
	}
	if err := tr.Select(Upcoming); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := tr.SetPageSize(10); err != nil {
		t.Fatalf("SetPageSize: %v", err)
	}
	if tr.Pages() != 2 || len(tr.Page()) != 10 {
		t.Fatalf("pages=%d len=%d", tr.Pages(), len(tr.Page()))
	}
	if err := tr.SetPageSize(0); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
}

func TestUnknownStatusesAreSurfaced(t *testing.T) {
	tr := New(&fakeGetter{body: appliedBody("Upcoming", "Rejected", "", "offer")})
	if err := tr.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	counts := tr.Counts()
	if counts[Unclassified] != 2 || counts[Offers] != 1 || counts[Upcoming] != 1 {
		t.Fatalf("counts=%v", counts)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total != 4 {
		t.Fatalf("applications lost: %d of 4 counted", total)
	}
	if err := tr.Select(Unclassified); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := ids(tr.Page()); fmt.Sprint(got) != "[2 3]" {
		t.Fatalf("unclassified page=%v", got)
	}
}

func TestEmptyBucketAndView(t *testing.T) {
	tr := New(&fakeGetter{body: appliedBody("Upcoming", "Upcoming")})
	if err := tr.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	app, err := tr.View(1)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if app.ID != "2" || app.Company.Name != "Acme" || app.JobID != "101" {
		t.Fatalf("unexpected application %+v", app)
	}
	if _, err := tr.View(5); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}

	if err := tr.Select(Completed); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !tr.Empty() || len(tr.Page()) != 0 || tr.Pages() != 0 {
		t.Fatal("expected empty bucket")
	}
	if err := tr.SetPage(0); err != nil {
		t.Fatalf("page 0 of empty bucket must be valid: %v", err)
	}
	if _, err := tr.View(0); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
}

func TestLoadFailureKeepsPreviousState(t *testing.T) {
	g := &fakeGetter{body: appliedBody("Upcoming")}
	tr := New(g)
	if _, err := tr.Student(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	if err := tr.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	g.err = errors.New("network down")
	if err := tr.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(tr.Page()) != 1 {
		t.Fatal("failed reload must keep previous data")
	}
	s, err := tr.Student()
	if err != nil || s.FullName != "Asha Rao" {
		t.Fatalf("Student=%+v,%v", s, err)
	}
}

func TestInterviewCalendar(t *testing.T) {
	body := `{"applications":[
		{"application_id":1,"interview_date":"Mar. 10, 2025","job_status":"Upcoming"},
		{"application_id":2,"interview_date":"TBD","job_status":"Upcoming"},
		{"application_id":3,"interview_date":"Feb. 01, 2025","job_status":"Ongoing"}
	]}`
	tr := New(&fakeGetter{body: body})
	if err := tr.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cal := tr.InterviewCalendar()
	if len(cal) != 2 || cal[0].Application.ID != "3" || cal[1].Application.ID != "1" {
		t.Fatalf("calendar=%+v", cal)
	}
}

func TestParseBucket(t *testing.T) {
	if b, err := ParseBucket("offers"); err != nil || b != Offers {
		t.Fatalf("ParseBucket=%q,%v", b, err)
	}
	if _, err := ParseBucket("pending"); !errors.Is(err, ErrUnknownBucket) {
		t.Fatalf("expected ErrUnknownBucket, got %v", err)
	}
}
