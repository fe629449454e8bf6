package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
)

type stubGateway struct {
	mu      sync.Mutex
	bodies  map[string]string
	fail    map[string]error
	queries map[string]url.Values
}

func (s *stubGateway) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	s.mu.Lock()
	if s.queries == nil {
		s.queries = map[string]url.Values{}
	}
	s.queries[path] = query
	body, err := s.bodies[path], s.fail[path]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), out)
}

const appliedBody = `{"applications":[
	{"application_id":1,"job_status":"Upcoming"},
	{"application_id":2,"job_status":"Offers"},
	{"application_id":3,"job_status":"Completed"}]}`

func TestStudentCounts(t *testing.T) {
	g := &stubGateway{bodies: map[string]string{
		appliedJobsPath:  appliedBody,
		eligibleJobsPath: `{"eligible_jobs_count":9}`,
	}}
	got, err := Student(context.Background(), g)
	if err != nil {
		t.Fatalf("Student: %v", err)
	}
	if got != (StudentCounts{Eligible: 9, Applied: 3, Offers: 1}) {
		t.Fatalf("counts=%+v", got)
	}
}

func TestStudentEligibleIsOptional(t *testing.T) {
	g := &stubGateway{
		bodies: map[string]string{appliedJobsPath: appliedBody},
		fail:   map[string]error{eligibleJobsPath: errors.New("timeout")},
	}
	got, err := Student(context.Background(), g)
	if err != nil || got.Eligible != 0 || got.Applied != 3 {
		t.Fatalf("Student=%+v,%v", got, err)
	}

	g.fail[appliedJobsPath] = errors.New("down")
	if _, err := Student(context.Background(), g); err == nil {
		t.Fatal("applied-jobs failure must surface")
	}
}

func TestReportsToleratePartialFailure(t *testing.T) {
	g := &stubGateway{
		bodies: map[string]string{},
		fail:   map[string]error{reportsPrefix + HighestPackages: errors.New("500")},
	}
	for _, name := range ReportNames {
		g.bodies[reportsPrefix+name] = `{"message":"` + name + `","data":[{"x":1}],"total":1}`
	}
	reports := Reports(context.Background(), g, 2024)
	if len(reports) != len(ReportNames) {
		t.Fatalf("got %d reports", len(reports))
	}
	for i, r := range reports {
		if r.Name != ReportNames[i] {
			t.Fatalf("report %d is %s, want %s", i, r.Name, ReportNames[i])
		}
	}
	failed := Failed(reports)
	if len(failed) != 1 || failed[0].Name != HighestPackages || !strings.Contains(failed[0].Err.Error(), "highest-packages") {
		t.Fatalf("failed=%+v", failed)
	}
	if reports[0].Total == nil || *reports[0].Total != 1 || string(reports[0].Data) != `[{"x":1}]` {
		t.Fatalf("placed report=%+v", reports[0])
	}
	if g.queries[reportsPrefix+TotalJobs].Get("year") != "2024" {
		t.Fatal("year filter missing")
	}
	if g.queries[reportsPrefix+TotalCompanies] != nil {
		t.Fatal("total-companies takes no year")
	}
}
