package portalmock

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"placecell.org/internal/export"
	"placecell.org/internal/obs"
	"placecell.org/internal/portal"
)

// inYear reports whether a YYYY-MM-DD date falls in year. Undated records
// match every year.
func inYear(date string, year int) bool {
	if year == 0 || date == "" {
		return true
	}
	t, err := time.Parse(dateOnly, date)
	return err != nil || t.Year() == year
}

func (s *Server) placementsIn(year int) []*placement {
	var out []*placement
	for _, p := range s.sortedPlacements() {
		if inYear(p.Joining, year) {
			out = append(out, p)
		}
	}
	return out
}

func salaryOf(p *placement) float64 {
	if p.Salary == nil {
		return 0
	}
	return *p.Salary
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	year := parsePositiveInt(r.URL.Query().Get("year"), 0, 1900, 3000)

	s.mu.Lock()
	defer s.mu.Unlock()
	var data any
	var total int
	switch name := r.PathValue("name"); name {
	case "placed-students":
		rows := make([]map[string]any, 0)
		for _, p := range s.placementsIn(year) {
			rows = append(rows, s.placementJSON(p))
		}
		data, total = rows, len(rows)
	case "total-companies":
		total = len(s.companies)
		data = map[string]any{"total_companies": total}
	case "total-jobs":
		for _, j := range s.jobs {
			if year == 0 || j.Posted.Year() == year {
				total++
			}
		}
		data = map[string]any{"total_jobs": total}
	case "highest-packages":
		list := s.placementsIn(year)
		sort.SliceStable(list, func(a, b int) bool { return salaryOf(list[a]) > salaryOf(list[b]) })
		if len(list) > 10 {
			list = list[:10]
		}
		rows := make([]map[string]any, 0, len(list))
		for _, p := range list {
			row := s.placementJSON(p)
			rows = append(rows, map[string]any{
				"student_name":   row["student_name"],
				"company_name":   row["company_name"],
				"salary_offered": p.Salary,
			})
		}
		data, total = rows, len(rows)
	case "students-placed-per-company":
		counts := map[string]int{}
		for _, p := range s.placementsIn(year) {
			counts[s.companyName(p.CompanyID)]++
		}
		data, total = countRows(counts, "company_name"), len(counts)
	case "placed-students-breakdown":
		counts := map[string]int{}
		for _, p := range s.placementsIn(year) {
			if st, ok := s.students[p.StudentID]; ok {
				counts[st.Degree+" "+st.Specialization]++
			}
		}
		data, total = countRows(counts, "program"), len(counts)
	default:
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("Unknown report %q", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Report generated successfully", "data": data, "total": total})
}

func countRows(counts map[string]int, label string) []map[string]any {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if counts[keys[a]] != counts[keys[b]] {
			return counts[keys[a]] > counts[keys[b]]
		}
		return keys[a] < keys[b]
	})
	rows := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, map[string]any{label: k, "placed_count": counts[k]})
	}
	return rows
}

func (s *Server) appliedStudentsReport(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Invalid job id")
		return
	}
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		writeError(w, r, http.StatusNotFound, "Job not found")
		return
	}
	var list portal.AppliedStudents
	list.Job.ID = portal.ID(strconv.Itoa(j.ID))
	list.Job.Role = j.Role
	list.Job.CompanyName = s.companyName(j.CompanyID)
	list.Students = []portal.Applicant{}
	for _, a := range s.applications {
		if a.JobID != jobID {
			continue
		}
		st, ok := s.students[a.StudentID]
		if !ok {
			continue
		}
		cgpa := st.GPA
		list.Students = append(list.Students, portal.Applicant{
			ApplicationID: portal.ID(strconv.Itoa(a.ID)),
			StudentID:     portal.ID(strconv.Itoa(st.ID)),
			FullName:      st.fullName(),
			RollNumber:    st.RegNo,
			Email:         st.Email,
			Branch:        st.Specialization,
			CGPA:          &cgpa,
			AppliedDate:   a.Applied.Format(longDate),
		})
	}
	s.mu.Unlock()

	if r.URL.Query().Get("format") != "excel" {
		writeJSON(w, http.StatusOK, list)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, export.Applicants(list)); err != nil {
		obs.Log(obs.LevelError, "applied_students_export_failed", map[string]any{"job_id": jobID, "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "Failed to generate report")
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="applied_students_job_%d.xlsx"`, jobID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
