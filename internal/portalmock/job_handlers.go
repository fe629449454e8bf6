package portalmock

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"placecell.org/internal/audit"
)

const (
	maxUploadMemory = 8 << 20
	idempotencyKey  = "Idempotency-Key"
)

func interviewLabel(t time.Time) string {
	if t.IsZero() {
		return "TBD"
	}
	return t.Format(shortDate)
}

func (s *Server) companyName(id int) string {
	if c, ok := s.companies[id]; ok {
		return c.Name
	}
	return ""
}

func (s *Server) jobSummary(j *job) map[string]any {
	return map[string]any{
		"id":                 j.ID,
		"role":               j.Role,
		"company_id":         j.CompanyID,
		"company_name":       s.companyName(j.CompanyID),
		"job_location":       j.Location,
		"package":            j.Package,
		"posted_date":        j.Posted.Format(dateOnly),
		"date_of_interview":  interviewLabel(j.Interview),
		"last_date_to_apply": j.LastDate.Format(dateOnly),
		"min_gpa":            j.MinGPA,
		"max_backlogs":       j.MaxBacklogs,
		"gender_eligibility": j.GenderEligibility,
	}
}

// sortedJobs returns every posting, newest first.
func (s *Server) sortedJobs() []*job {
	out := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].Posted.Equal(out[b].Posted) {
			return out[a].Posted.After(out[b].Posted)
		}
		return out[a].ID > out[b].ID
	})
	return out
}

func (s *Server) hasApplied(studentID, jobID int) *application {
	for _, a := range s.applications {
		if a.StudentID == studentID && a.JobID == jobID {
			return a
		}
	}
	return nil
}

func genderMatches(eligibility, gender string) bool {
	e := strings.ToLower(strings.TrimSpace(eligibility))
	return e == "" || e == "all" || e == strings.ToLower(strings.TrimSpace(gender))
}

// openTo reports whether st may still apply to j.
func (s *Server) openTo(st *student, j *job) bool {
	return st.GPA >= j.MinGPA &&
		st.Backlogs <= j.MaxBacklogs &&
		!j.LastDate.Before(s.today()) &&
		genderMatches(j.GenderEligibility, st.Gender) &&
		s.hasApplied(st.ID, j.ID) == nil
}

func (s *Server) studentJobs(w http.ResponseWriter, r *http.Request) {
	id, _ := caller(r)
	page := parsePositiveInt(r.URL.Query().Get("page"), 1, 1, 1<<20)
	perPage := parsePositiveInt(r.URL.Query().Get("per_page"), 10, 1, 100)

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Student not found")
		return
	}
	var open []*job
	for _, j := range s.sortedJobs() {
		if s.openTo(st, j) {
			open = append(open, j)
		}
	}
	start, end, pages := paginate(len(open), page, perPage)
	jobs := make([]map[string]any, 0, end-start)
	for _, j := range open[start:end] {
		jobs = append(jobs, s.jobSummary(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs": jobs,
		"pagination": map[string]any{
			"page":     page,
			"pages":    pages,
			"total":    len(open),
			"per_page": perPage,
		},
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Invalid job id")
		return
	}
	uid, p := caller(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Job not found")
		return
	}
	detail := s.jobSummary(j)
	detail["job_description"] = j.Description
	detail["service_agreement"] = j.ServiceAgreement
	detail["links_for_registrations"] = j.RegistrationLink
	detail["file_paths"] = j.Files
	if c, ok := s.companies[j.CompanyID]; ok {
		detail["company_type"] = c.Type
		detail["website"] = c.Website
		detail["description"] = c.Description
	}
	if !p.IsOfficer() && s.hasApplied(uid, j.ID) != nil {
		detail["already_applied"] = true
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Job fetched successfully", "job": detail})
}

func (s *Server) applyJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Invalid job id")
		return
	}
	uid, _ := caller(r)
	key := strings.TrimSpace(r.Header.Get(idempotencyKey))

	s.mu.Lock()
	defer s.mu.Unlock()
	if key != "" {
		if appID, seen := s.idempotent["apply:"+key]; seen {
			writeJSON(w, http.StatusCreated, map[string]any{"message": "Successfully registered for the job", "application_id": appID})
			return
		}
	}
	st, ok := s.students[uid]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Student not found")
		return
	}
	j, ok := s.jobs[jobID]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Job not found")
		return
	}
	if s.hasApplied(uid, jobID) != nil {
		writeError(w, r, http.StatusBadRequest, "You have already registered for this job")
		return
	}
	if j.LastDate.Before(s.today()) {
		writeError(w, r, http.StatusBadRequest, "Application deadline has passed")
		return
	}
	if st.GPA < j.MinGPA || st.Backlogs > j.MaxBacklogs || !genderMatches(j.GenderEligibility, st.Gender) {
		writeError(w, r, http.StatusForbidden, "You are not eligible for this job")
		return
	}
	a := &application{ID: s.id(), JobID: jobID, StudentID: uid, Applied: s.now().UTC()}
	s.applications = append(s.applications, a)
	if key != "" {
		s.idempotent["apply:"+key] = a.ID
	}
	_ = audit.LogEvent(r.Context(), "portal.job.applied", map[string]any{"job_id": jobID, "student_id": uid})
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Successfully registered for the job", "application_id": a.ID})
}

// applicationStatus derives the tracker bucket the portal reports for a.
func (s *Server) applicationStatus(a *application, j *job) string {
	for _, p := range s.placements {
		if p.StudentID == a.StudentID && p.JobID == a.JobID {
			return "Offers"
		}
	}
	today := s.today()
	switch {
	case !j.Interview.IsZero() && j.Interview.Equal(today):
		return "Ongoing"
	case !j.Interview.IsZero() && j.Interview.Before(today):
		return "Completed"
	case j.Interview.IsZero() && j.LastDate.Before(today):
		return "Completed"
	}
	return "Upcoming"
}

func (s *Server) appliedJobs(w http.ResponseWriter, r *http.Request) {
	uid, _ := caller(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[uid]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Student not found")
		return
	}
	apps := make([]map[string]any, 0)
	for _, a := range s.applications {
		if a.StudentID != uid {
			continue
		}
		j, ok := s.jobs[a.JobID]
		if !ok {
			continue
		}
		c, ok := s.companies[j.CompanyID]
		if !ok {
			c = &company{ID: j.CompanyID}
		}
		apps = append(apps, map[string]any{
			"application_id": a.ID,
			"job_id":         j.ID,
			"job_role":       j.Role,
			"job_package":    j.Package,
			"job_location":   j.Location,
			"company": map[string]any{
				"company_id":   c.ID,
				"company_name": c.Name,
				"website":      c.Website,
				"company_type": c.Type,
			},
			"interview_date":     interviewLabel(j.Interview),
			"published_on":       j.Posted.Format(shortDate),
			"last_date_to_apply": j.LastDate.Format(shortDate),
			"applied_date":       a.Applied.Format(longDate),
			"job_status":         s.applicationStatus(a, j),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"student": map[string]any{
			"student_id":  st.ID,
			"full_name":   st.fullName(),
			"email":       st.Email,
			"roll_number": st.RegNo,
			"cgpa":        st.GPA,
		},
		"applications":       apps,
		"total_applications": len(apps),
	})
}

func (s *Server) eligibleJobs(w http.ResponseWriter, r *http.Request) {
	uid, _ := caller(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[uid]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Student not found")
		return
	}
	count := 0
	for _, j := range s.jobs {
		if st.GPA >= j.MinGPA {
			count++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"eligible_jobs_count": count})
}

func (s *Server) officerJobs(w http.ResponseWriter, r *http.Request) {
	page := parsePositiveInt(r.URL.Query().Get("page"), 1, 1, 1<<20)
	perPage := parsePositiveInt(r.URL.Query().Get("per_page"), 10, 1, 100)

	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedJobs()
	start, end, pages := paginate(len(all), page, perPage)
	jobs := make([]map[string]any, 0, end-start)
	for _, j := range all[start:end] {
		jobs = append(jobs, map[string]any{
			"job_id":             j.ID,
			"company_name":       s.companyName(j.CompanyID),
			"job_role":           j.Role,
			"job_location":       j.Location,
			"min_gpa":            j.MinGPA,
			"package":            j.Package,
			"posted_date":        j.Posted.Format(dateOnly),
			"last_date_to_apply": j.LastDate.Format(dateOnly),
			"created_by":         j.CreatedBy,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":         jobs,
		"total":        len(all),
		"pages":        pages,
		"current_page": page,
	})
}

// uploadForm is the parsed multipart body of a create or update request.
type uploadForm struct {
	values map[string][]string
	files  []*multipart.FileHeader
}

func parseJobForm(r *http.Request) (uploadForm, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return uploadForm{}, err
	}
	files := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	return uploadForm{values: r.MultipartForm.Value, files: files}, nil
}

func (f uploadForm) get(key string) (string, bool) {
	v, ok := f.values[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return strings.TrimSpace(v[0]), true
}

// apply copies the fields present in f onto j. Company fields are handled
// by the caller.
func (f uploadForm) apply(j *job) error {
	if v, ok := f.get("role"); ok {
		j.Role = v
	}
	if v, ok := f.get("job_location"); ok {
		j.Location = v
	}
	if v, ok := f.get("job_description"); ok {
		j.Description = v
	}
	if v, ok := f.get("service_agreement"); ok {
		j.ServiceAgreement = v
	}
	if v, ok := f.get("links_for_registrations"); ok {
		j.RegistrationLink = v
	}
	if v, ok := f.get("gender_eligibility"); ok && v != "" {
		j.GenderEligibility = v
	}
	for key, dst := range map[string]*float64{"package": &j.Package, "min_gpa": &j.MinGPA} {
		v, ok := f.get(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("Invalid %s", key)
		}
		*dst = n
	}
	if v, ok := f.get("max_backlogs"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return errors.New("Invalid max_backlogs")
		}
		j.MaxBacklogs = n
	}
	for key, dst := range map[string]*time.Time{"date_of_interview": &j.Interview, "last_date_to_apply": &j.LastDate} {
		v, ok := f.get(key)
		if !ok || v == "" {
			continue
		}
		t, err := time.Parse(dateOnly, v)
		if err != nil {
			return fmt.Errorf("Invalid %s, expected YYYY-MM-DD", key)
		}
		*dst = t
	}
	return nil
}

// storeFiles keeps each upload under a fresh path and returns the paths.
func (s *Server) storeFiles(folder string, files []*multipart.FileHeader) ([]string, error) {
	var paths []string
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		path := "uploads/" + folder + "/" + uuid.NewString() + "/" + filepath.Base(fh.Filename)
		s.uploads[path] = data
		paths = append(paths, path)
	}
	return paths, nil
}

// companyFor finds the company named name or registers it.
func (s *Server) companyFor(name string, f uploadForm) *company {
	var c *company
	for _, existing := range s.companies {
		if strings.EqualFold(existing.Name, name) {
			c = existing
			break
		}
	}
	if c == nil {
		c = &company{ID: s.id(), Name: name}
		s.companies[c.ID] = c
	}
	if v, ok := f.get("company_type"); ok && v != "" {
		c.Type = v
	}
	if v, ok := f.get("website"); ok && v != "" {
		c.Website = v
	}
	if v, ok := f.get("description"); ok && v != "" {
		c.Description = v
	}
	return c
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	uid, _ := caller(r)
	form, err := parseJobForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}
	var missing []string
	for _, key := range []string{"role", "company_name", "package", "last_date_to_apply"} {
		if v, _ := form.get(key); v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		writeError(w, r, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}
	key := strings.TrimSpace(r.Header.Get(idempotencyKey))

	s.mu.Lock()
	defer s.mu.Unlock()
	if key != "" {
		if jobID, seen := s.idempotent["job:"+key]; seen {
			writeJSON(w, http.StatusCreated, map[string]any{"message": "Job created successfully", "job_id": jobID})
			return
		}
	}
	j := &job{AdminID: uid, GenderEligibility: "all", Posted: s.now().UTC().Truncate(24 * time.Hour)}
	if err := form.apply(j); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	paths, err := s.storeFiles("jobs", form.files)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	name, _ := form.get("company_name")
	j.CompanyID = s.companyFor(name, form).ID
	j.Files = paths
	if o, ok := s.officers[uid]; ok {
		j.CreatedBy = o.Name
	}
	j.ID = s.id()
	s.jobs[j.ID] = j
	if key != "" {
		s.idempotent["job:"+key] = j.ID
	}
	_ = audit.LogEvent(r.Context(), "portal.job.created", map[string]any{"job_id": j.ID, "admin_id": uid})
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Job created successfully", "job_id": j.ID})
}

// ownedJob loads the job in the path and checks the caller posted it.
func (s *Server) ownedJob(w http.ResponseWriter, r *http.Request) (*job, bool) {
	jobID, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Invalid job id")
		return nil, false
	}
	uid, _ := caller(r)
	j, ok := s.jobs[jobID]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Job not found")
		return nil, false
	}
	if j.AdminID != uid {
		writeError(w, r, http.StatusForbidden, "You can only modify jobs you posted")
		return nil, false
	}
	return j, true
}

func (s *Server) updateJob(w http.ResponseWriter, r *http.Request) {
	form, err := parseJobForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.ownedJob(w, r)
	if !ok {
		return
	}
	updated := *j
	if err := form.apply(&updated); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if v, ok := form.get("company_id"); ok && v != "" {
		cid, err := strconv.Atoi(v)
		if _, known := s.companies[cid]; err != nil || !known {
			writeError(w, r, http.StatusBadRequest, "Invalid company_id")
			return
		}
		updated.CompanyID = cid
	}
	paths, err := s.storeFiles("jobs", form.files)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	updated.Files = append(updated.Files, paths...)
	*j = updated
	_ = audit.LogEvent(r.Context(), "portal.job.updated", map[string]any{"job_id": j.ID})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Job updated successfully"})
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.ownedJob(w, r)
	if !ok {
		return
	}
	delete(s.jobs, j.ID)
	kept := s.applications[:0]
	for _, a := range s.applications {
		if a.JobID != j.ID {
			kept = append(kept, a)
		}
	}
	s.applications = kept
	_ = audit.LogEvent(r.Context(), "portal.job.deleted", map[string]any{"job_id": j.ID})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Job deleted successfully"})
}
