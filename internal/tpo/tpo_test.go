package tpo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"placecell.org/internal/apiclient"
)

type recorded struct {
	method string
	path   string
	query  string
	fields map[string]string
	files  map[string]string
	body   map[string]any
}

type officerPortal struct {
	mu    sync.Mutex
	calls []recorded
}

func (p *officerPortal) record(r *http.Request) recorded {
	rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			rec.fields = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				rec.fields[k] = v[0]
			}
			rec.files = map[string]string{}
			for k, fhs := range r.MultipartForm.File {
				rec.files[k] = fhs[0].Filename
			}
		}
	case strings.HasPrefix(ct, "application/json"):
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &rec.body)
	}
	p.mu.Lock()
	p.calls = append(p.calls, rec)
	p.mu.Unlock()
	return rec
}

func (p *officerPortal) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *officerPortal) last() recorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

func (p *officerPortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.record(r)
	write := func(status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
	switch {
	case r.URL.Path == "/job/tpo/jobs":
		write(200, `{"jobs":[{"job_id":1,"job_role":"SDE","company_name":"Acme"},{"job_id":2,"job_role":"QA","company_name":"Acme"},{"job_id":3,"job_role":"PM","company_name":"Globex"}],"total":3,"pages":1,"current_page":1}`)
	case r.URL.Path == "/job/create":
		write(201, `{"message":"Job created successfully","job_id":9}`)
	case strings.HasPrefix(r.URL.Path, "/job/") && r.Method == http.MethodPut:
		write(200, `{"message":"Job updated successfully"}`)
	case r.URL.Path == "/job/3" && r.Method == http.MethodDelete:
		write(403, `{"message":"You can only delete jobs you posted"}`)
	case strings.HasPrefix(r.URL.Path, "/job/") && r.Method == http.MethodDelete:
		write(200, `{"message":"Job deleted"}`)
	case r.URL.Path == "/placed/companies":
		write(200, `[{"company_id":1,"company_name":"Acme"},{"company_id":2,"company_name":"Globex"}]`)
	case r.URL.Path == "/placed/companies/1/students":
		write(200, `{"students":[{"student_id":7,"first_name":"Asha","last_name":"Rao","reg_no":"21CS001"}]}`)
	case r.URL.Path == "/placed/companies/1/jobs":
		write(200, `{"jobs":[{"job_id":1,"job_role":"SDE"}]}`)
	case r.URL.Path == "/placed/companies/2/students":
		write(200, `{"students":[{"student_id":8,"first_name":"Ravi","last_name":"K"}]}`)
	case r.URL.Path == "/placed/companies/2/jobs":
		write(500, `{"error":"boom"}`)
	case r.URL.Path == "/placed/placed_students" && r.Method == http.MethodPost:
		write(201, `{"message":"Placed student added successfully","placement_id":42}`)
	case r.URL.Path == "/placed/placed_students/42" && r.Method == http.MethodGet:
		write(200, `{"placement_id":42,"student_id":7,"company_id":1,"job_id":1,"date_of_interview":"2025-03-10","joining_date":null,"salary_offered":null,"offer_letter_url":null}`)
	case strings.HasPrefix(r.URL.Path, "/placed/placed_students/") && r.Method != http.MethodGet:
		write(200, `{"message":"Placed student updated successfully"}`)
	case r.URL.Path == "/placements/all-placed-students":
		write(200, `{"message":"List of placed students","data":[{"placement_id":42,"student_id":7,"student_name":"Asha Rao","reg_no":"21CS001","company_name":"Acme","job_role":"SDE","salary_offered":12.5,"placement_status":"Pending"}],"pagination":{"total":11,"pages":2,"current_page":2,"per_page":10}}`)
	case r.URL.Path == "/reports/applied-students/1" && r.URL.Query().Get("format") == "excel":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = io.WriteString(w, "PK\x03\x04xlsx")
	case r.URL.Path == "/reports/applied-students/1":
		write(200, `{"job":{"job_id":1,"job_role":"SDE","company_name":"Acme"},"students":[{"application_id":5,"student_id":7,"full_name":"Asha Rao","roll_number":"21CS001","email":"asha@college.edu","branch":"CSE","cgpa":8.4,"applied_date":"Mar. 01, 2025, 10:00 AM."}]}`)
	default:
		write(404, `{"message":"not found"}`)
	}
}

func newGateway(t *testing.T) (*apiclient.Client, *officerPortal) {
	t.Helper()
	p := &officerPortal{}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	c, err := apiclient.New(srv.URL, apiclient.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	return c, p
}

func validJob() JobInput {
	return JobInput{
		Role:            "SDE",
		Location:        "Bengaluru",
		Description:     "Backend work",
		Package:         12.5,
		InterviewDate:   "2025-03-10",
		LastDateToApply: "2025-03-01",
		MaxBacklogs:     0,
		MinGPA:          7,
		CompanyName:     "Acme",
		CompanyType:     "Product",
		Website:         "https://acme.example.com",
		CompanyInfo:     "Widgets",
	}
}

func TestCreateJobValidationMakesNoCall(t *testing.T) {
	c, p := newGateway(t)
	m := NewManager(c)
	ctx := context.Background()

	bad := validJob()
	bad.Role = ""
	bad.Package = 0
	bad.MinGPA = 11
	bad.MaxBacklogs = -1
	bad.Website = "not a url"
	_, err := m.CreateJob(ctx, bad, nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	keys := sortedKeys(verr.Fields)
	if fmt.Sprint(keys) != "[max_backlogs min_gpa package role website]" {
		t.Fatalf("fields=%v", keys)
	}
	if verr.Fields["role"] != "role is required" {
		t.Fatalf("role message=%q", verr.Fields["role"])
	}

	if _, err := m.CreateJob(ctx, validJob(), &Attachment{Name: "job.docx", Data: []byte("x")}); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("expected ErrUnsupportedFile, got %v", err)
	}
	if p.count() != 0 {
		t.Fatalf("invalid input reached the portal: %d calls", p.count())
	}
}

func TestCreateJobSendsMultipart(t *testing.T) {
	c, p := newGateway(t)
	m := NewManager(c)
	msg, err := m.CreateJob(context.Background(), validJob(), &Attachment{Name: "jd.pdf", Data: []byte("%PDF-1.4")})
	if err != nil || msg != "Job created successfully" {
		t.Fatalf("CreateJob=%q,%v", msg, err)
	}
	got := p.last()
	if got.method != http.MethodPost || got.path != "/job/create" {
		t.Fatalf("unexpected call %s %s", got.method, got.path)
	}
	if got.fields["package"] != "12.5" || got.fields["gender_eligibility"] != "all" || got.fields["max_backlogs"] != "0" {
		t.Fatalf("fields=%v", got.fields)
	}
	if got.files["files"] != "jd.pdf" {
		t.Fatalf("files=%v", got.files)
	}
	if !m.Stale() {
		t.Fatal("create must mark the list stale")
	}
}

func TestUpdateJobSendsOnlySetFields(t *testing.T) {
	c, p := newGateway(t)
	m := NewManager(c)
	ctx := context.Background()
	if err := m.ListJobs(ctx, 1, 10); err != nil {
		t.Fatalf("ListJobs: %v", err)
	}

	role, pkg := "Senior SDE", 20.0
	if _, err := m.UpdateJob(ctx, "1", JobPatch{Role: &role, Package: &pkg}, &Attachment{Name: "jd.png", Data: []byte{0x89}}); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	got := p.last()
	if got.method != http.MethodPut || got.path != "/job/1" {
		t.Fatalf("unexpected call %s %s", got.method, got.path)
	}
	keys := make([]string, 0, len(got.fields))
	for k := range got.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if fmt.Sprint(keys) != "[package role]" || got.files["file"] != "jd.png" {
		t.Fatalf("fields=%v files=%v", got.fields, got.files)
	}
	if jobs := m.Jobs(); jobs[0].Role != "Senior SDE" || jobs[0].Package != 20 {
		t.Fatalf("local patch missing: %+v", jobs[0])
	}

	calls := p.count()
	if _, err := m.UpdateJob(ctx, "1", JobPatch{}, nil); !errors.Is(err, ErrNothingToUpdate) {
		t.Fatalf("expected ErrNothingToUpdate, got %v", err)
	}
	bad := -2
	if _, err := m.UpdateJob(ctx, "1", JobPatch{MaxBacklogs: &bad}, nil); err == nil {
		t.Fatal("expected validation error")
	}
	if p.count() != calls {
		t.Fatal("rejected updates must not reach the portal")
	}
}

func TestDeleteJobRemovesLocallyUntilReload(t *testing.T) {
	c, _ := newGateway(t)
	m := NewManager(c)
	ctx := context.Background()
	if err := m.ListJobs(ctx, 0, 0); err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if pg := m.Pagination(); pg.Page != 1 || pg.Total != 3 || pg.PerPage != DefaultPageSize {
		t.Fatalf("pagination=%+v", pg)
	}

	if err := m.DeleteJob(ctx, "2"); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	jobs := m.Jobs()
	if len(jobs) != 2 || jobs[0].ID != "1" || jobs[1].ID != "3" {
		t.Fatalf("jobs after delete=%+v", jobs)
	}
	if !m.Stale() {
		t.Fatal("expected stale after delete")
	}

	err := m.DeleteJob(ctx, "3")
	if !errors.Is(err, apiclient.ErrForbidden) || apiclient.MessageOr(err, "") != "You can only delete jobs you posted" {
		t.Fatalf("unexpected error %v", err)
	}
	if len(m.Jobs()) != 2 {
		t.Fatal("failed delete must keep the job")
	}

	if err := m.ListJobs(ctx, 1, 10); err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if m.Stale() || len(m.Jobs()) != 3 {
		t.Fatal("reload must reconcile with the server")
	}
}

func TestPlacementCascadeScope(t *testing.T) {
	c, p := newGateway(t)
	pl := NewPlacements(c)
	ctx := context.Background()
	salary := 12.5
	in := PlacementInput{StudentID: "7", JobID: "1", InterviewDate: "2025-03-10", SalaryOffered: &salary}

	if _, _, err := pl.CreatePlacedStudent(ctx, in); !errors.Is(err, ErrNoCompanySelected) {
		t.Fatalf("expected ErrNoCompanySelected, got %v", err)
	}
	if p.count() != 0 {
		t.Fatal("unselected company reached the portal")
	}

	companies, err := pl.Companies(ctx)
	if err != nil || len(companies) != 2 || companies[1].Name != "Globex" {
		t.Fatalf("Companies=%+v,%v", companies, err)
	}
	if err := pl.SelectCompany(ctx, "1"); err != nil {
		t.Fatalf("SelectCompany: %v", err)
	}
	if s := pl.Students(); len(s) != 1 || s[0].Name() != "Asha Rao" {
		t.Fatalf("students=%+v", s)
	}

	calls := p.count()
	for _, bad := range []PlacementInput{
		{StudentID: "8", JobID: "1"},
		{StudentID: "7", JobID: "3"},
	} {
		if _, _, err := pl.CreatePlacedStudent(ctx, bad); !errors.Is(err, ErrOutOfScope) {
			t.Fatalf("expected ErrOutOfScope for %+v, got %v", bad, err)
		}
	}
	if _, _, err := pl.CreatePlacedStudent(ctx, PlacementInput{StudentID: "7", JobID: "1", JoiningDate: "03/10/2025"}); err == nil {
		t.Fatal("expected date validation error")
	}
	if p.count() != calls {
		t.Fatal("out-of-scope placement reached the portal")
	}

	id, msg, err := pl.CreatePlacedStudent(ctx, in)
	if err != nil || id != "42" || msg != "Placed student added successfully" {
		t.Fatalf("CreatePlacedStudent=%q,%q,%v", id, msg, err)
	}
	body := p.last().body
	if body["company_id"] != float64(1) || body["student_id"] != float64(7) || body["salary_offered"] != 12.5 {
		t.Fatalf("body=%v", body)
	}
	if _, ok := body["joining_date"]; ok {
		t.Fatal("empty fields must be left out")
	}

	if err := pl.SelectCompany(ctx, "2"); err == nil {
		t.Fatal("expected jobs fetch failure")
	}
	if pl.Selected() != "1" || len(pl.Jobs()) != 1 {
		t.Fatal("failed selection must keep the previous scope")
	}

	if _, err := pl.UpdatePlacedStudent(ctx, "42", PlacementInput{JobID: "3"}); !errors.Is(err, ErrOutOfScope) {
		t.Fatalf("expected ErrOutOfScope, got %v", err)
	}
	if _, err := pl.UpdatePlacedStudent(ctx, "42", PlacementInput{JoiningDate: "2025-07-01"}); err != nil {
		t.Fatalf("UpdatePlacedStudent: %v", err)
	}
	got := p.last()
	if got.method != http.MethodPut || got.body["joining_date"] != "2025-07-01" {
		t.Fatalf("update call=%+v", got)
	}
	if _, ok := got.body["student_id"]; ok {
		t.Fatal("unset student must not be sent")
	}
}

func TestPlacementRecords(t *testing.T) {
	c, p := newGateway(t)
	pl := NewPlacements(c)
	ctx := context.Background()

	ps, err := pl.GetPlacedStudent(ctx, "42")
	if err != nil || ps.StudentID != "7" || ps.SalaryOffered != 0 || ps.InterviewDate != "2025-03-10" {
		t.Fatalf("GetPlacedStudent=%+v,%v", ps, err)
	}
	if _, err := pl.DeletePlacedStudent(ctx, "42"); err != nil {
		t.Fatalf("DeletePlacedStudent: %v", err)
	}
	if p.last().method != http.MethodDelete {
		t.Fatal("expected DELETE")
	}

	page, err := pl.ListPlacedStudents(ctx, 2, 10)
	if err != nil {
		t.Fatalf("ListPlacedStudents: %v", err)
	}
	if page.Pagination.Page != 2 || page.Pagination.Pages != 2 || page.Students[0].Status != "Pending" {
		t.Fatalf("page=%+v", page)
	}
	if q := p.last().query; q != "page=2&per_page=10" {
		t.Fatalf("query=%s", q)
	}

	applied, err := pl.AppliedStudents(ctx, "1")
	if err != nil || len(applied.Students) != 1 || applied.Job.CompanyName != "Acme" {
		t.Fatalf("AppliedStudents=%+v,%v", applied, err)
	}
	if s := applied.Students[0]; s.RollNumber != "21CS001" || s.CGPA == nil || *s.CGPA != 8.4 {
		t.Fatalf("applicant=%+v", s)
	}
	data, err := pl.AppliedStudentsWorkbook(ctx, "1")
	if err != nil || !strings.HasPrefix(string(data), "PK") {
		t.Fatalf("workbook=%q,%v", data, err)
	}
	if _, err := pl.AppliedStudents(ctx, ""); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := pl.GetPlacedStudent(ctx, "9"); !errors.Is(err, apiclient.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
