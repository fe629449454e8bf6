package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"placecell.org/internal/applications"
	"placecell.org/internal/obs"
	"placecell.org/internal/portal"
)

const (
	appliedJobsPath  = "/job/student/applied-jobs"
	eligibleJobsPath = "/job/student/eligible-jobs"
	reportsPrefix    = "/reports/"
)

// Gateway is the slice of the API client dashboards need.
type Gateway interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// StudentCounts is the student dashboard header.
type StudentCounts struct {
	Eligible int `json:"eligible" yaml:"eligible"`
	Applied  int `json:"applied" yaml:"applied"`
	Offers   int `json:"offers" yaml:"offers"`
}

// Student fetches the applied-jobs list and the eligible-jobs count in
// parallel. The eligible count is best-effort and reads 0 when unavailable.
func Student(ctx context.Context, client Gateway) (StudentCounts, error) {
	var (
		wg          sync.WaitGroup
		applied     portal.AppliedJobs
		appliedErr  error
		eligible    struct{ Count int `json:"eligible_jobs_count"` }
		eligibleErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		appliedErr = client.GetJSON(ctx, appliedJobsPath, nil, &applied)
	}()
	go func() {
		defer wg.Done()
		eligibleErr = client.GetJSON(ctx, eligibleJobsPath, nil, &eligible)
	}()
	wg.Wait()

	if appliedErr != nil {
		return StudentCounts{}, fmt.Errorf("student dashboard: %w", appliedErr)
	}
	if eligibleErr != nil {
		obs.Log(obs.LevelWarn, "eligible job count unavailable", map[string]any{"error": eligibleErr.Error()})
		eligible.Count = 0
	}
	out := StudentCounts{Eligible: eligible.Count, Applied: len(applied.Applications)}
	for _, a := range applied.Applications {
		if applications.Classify(a.Status) == applications.Offers {
			out.Offers++
		}
	}
	return out, nil
}

// Report names served under /reports/.
const (
	PlacedStudents           = "placed-students"
	TotalCompanies           = "total-companies"
	TotalJobs                = "total-jobs"
	HighestPackages          = "highest-packages"
	StudentsPlacedPerCompany = "students-placed-per-company"
	PlacedStudentsBreakdown  = "placed-students-breakdown"
)

// ReportNames lists the officer dashboard reports in display order.
var ReportNames = []string{
	PlacedStudents,
	TotalCompanies,
	TotalJobs,
	HighestPackages,
	StudentsPlacedPerCompany,
	PlacedStudentsBreakdown,
}

// yearless reports ignore the year filter.
var yearless = map[string]bool{TotalCompanies: true}

// Report is one report's result. Data is left raw since every report has
// its own row shape. Err is set when the report could not be loaded.
type Report struct {
	Name    string          `json:"name" yaml:"name"`
	Message string          `json:"message,omitempty" yaml:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty" yaml:"-"`
	Total   *int            `json:"total,omitempty" yaml:"total,omitempty"`
	Err     error           `json:"-" yaml:"-"`
}

// Reports loads every officer report concurrently for year (0 for all
// years). A failing report is recorded in its Err and does not affect the
// others.
func Reports(ctx context.Context, client Gateway, year int) []Report {
	out := make([]Report, len(ReportNames))
	var wg sync.WaitGroup
	for i, name := range ReportNames {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			var q url.Values
			if year > 0 && !yearless[name] {
				q = url.Values{"year": {strconv.Itoa(year)}}
			}
			var body struct {
				Message string          `json:"message"`
				Data    json.RawMessage `json:"data"`
				Total   *int            `json:"total"`
			}
			r := Report{Name: name}
			if err := client.GetJSON(ctx, reportsPrefix+name, q, &body); err != nil {
				r.Err = fmt.Errorf("report %s: %w", name, err)
			} else {
				r.Message, r.Data, r.Total = body.Message, body.Data, body.Total
			}
			out[i] = r
		}(i, name)
	}
	wg.Wait()
	return out
}

// Failed returns the reports that could not be loaded.
func Failed(reports []Report) []Report {
	var out []Report
	for _, r := range reports {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
