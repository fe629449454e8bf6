package portalmock_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"placecell.org/internal/apiclient"
	"placecell.org/internal/applications"
	"placecell.org/internal/auth"
	"placecell.org/internal/authflow"
	"placecell.org/internal/dashboard"
	"placecell.org/internal/jobs"
	"placecell.org/internal/offers"
	"placecell.org/internal/portal"
	"placecell.org/internal/portalmock"
	"placecell.org/internal/session"
	"placecell.org/internal/tpo"
)

var today = time.Date(2025, time.March, 1, 9, 30, 0, 0, time.UTC)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type user struct {
	store  *session.Store
	client *apiclient.Client
	flow   *authflow.Controller
}

func newUser(t *testing.T, baseURL string, kind auth.Kind) *user {
	t.Helper()
	store, err := session.New(session.NewMemoryStorage())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	client, err := apiclient.New(baseURL,
		apiclient.WithTokenSource(store),
		apiclient.WithUnauthorizedHandler(func(ctx context.Context) { _ = store.Logout(ctx) }),
	)
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	store.SetInvalidator(client)
	flow, err := authflow.New(kind, client, store)
	if err != nil {
		t.Fatalf("authflow.New: %v", err)
	}
	return &user{store: store, client: client, flow: flow}
}

func startPortal(t *testing.T, opts ...portalmock.Option) (*portalmock.Server, string) {
	t.Helper()
	opts = append([]portalmock.Option{portalmock.WithClock(func() time.Time { return today })}, opts...)
	srv, err := portalmock.New("portal-test-secret", opts...)
	if err != nil {
		t.Fatalf("portalmock.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

func signUpOfficer(t *testing.T, ctx context.Context, base string) *user {
	t.Helper()
	officer := newUser(t, base, auth.Officer)
	if _, err := officer.flow.Register(ctx, authflow.OfficerForm{
		Name:       "Meera Iyer",
		Email:      "tpo@mvgrce.edu.in",
		Password:   "placement-2025",
		Department: "Training & Placement",
	}); err != nil {
		t.Fatalf("officer register: %v", err)
	}
	p, err := officer.flow.VerifyOTP(ctx, portalmock.DefaultOTP)
	if err != nil {
		t.Fatalf("officer verify: %v", err)
	}
	if p.Role != auth.RoleAdmin || p.Name != "Meera Iyer" {
		t.Fatalf("officer principal=%+v", p)
	}
	return officer
}

func signUpStudent(t *testing.T, ctx context.Context, base string) (*user, auth.Principal) {
	t.Helper()
	student := newUser(t, base, auth.Student)
	if _, err := student.flow.Register(ctx, authflow.StudentForm{
		Email:          "21331A0501@mvgrce.edu.in",
		FirstName:      "Asha",
		LastName:       "Rao",
		RegNo:          "21331A0501",
		Degree:         "B.Tech",
		Specialization: "CSE",
		Password:       "secret123",
		DOB:            "2003-04-05",
		Gender:         "Female",
		CurrentGPA:     "8.4",
		ContactNo:      "9876543210",
		Backlogs:       "0",
	}); err != nil {
		t.Fatalf("student register: %v", err)
	}
	if _, err := student.flow.VerifyOTP(ctx, "654321"); err == nil {
		t.Fatal("wrong otp must fail")
	}
	p, err := student.flow.VerifyOTP(ctx, portalmock.DefaultOTP)
	if err != nil {
		t.Fatalf("student verify: %v", err)
	}
	return student, p
}

func postJob(t *testing.T, ctx context.Context, officer *user, role string, minGPA float64) portal.ID {
	t.Helper()
	mgr := tpo.NewManager(officer.client)
	if _, err := mgr.CreateJob(ctx, tpo.JobInput{
		Role:            role,
		Location:        "Hyderabad",
		Description:     "Graduate hire",
		Package:         12.5,
		InterviewDate:   "2025-03-25",
		LastDateToApply: "2025-03-20",
		MinGPA:          minGPA,
		CompanyName:     "Acme Systems",
		CompanyType:     "Product",
		Website:         "https://acme.example.com",
		CompanyInfo:     "Makes everything",
	}, &tpo.Attachment{Name: "jd.pdf", Data: []byte("%PDF-1.4")}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := mgr.ListJobs(ctx, 1, 10); err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	for _, j := range mgr.Jobs() {
		if j.Role == role {
			return j.ID
		}
	}
	t.Fatalf("posted job %q not listed: %+v", role, mgr.Jobs())
	return ""
}

func TestPlacementLifecycle(t *testing.T) {
	ctx := context.Background()
	srv, base := startPortal(t)

	officer := signUpOfficer(t, ctx, base)
	jobID := postJob(t, ctx, officer, "SDE", 7.5)
	postJob(t, ctx, officer, "Research Engineer", 9.5)

	student, me := signUpStudent(t, ctx, base)
	listing := jobs.New(student.client)
	if err := listing.ListEligible(ctx, 1, 10); err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if got := listing.Jobs(); len(got) != 1 || got[0].ID != jobID || got[0].CompanyName != "Acme Systems" {
		t.Fatalf("eligible jobs=%+v", got)
	}
	detail, err := listing.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(detail.Files) != 1 {
		t.Fatalf("job files=%v", detail.Files)
	}
	if data, ok := srv.Upload(detail.Files[0]); !ok || string(data) != "%PDF-1.4" {
		t.Fatalf("upload %q missing", detail.Files[0])
	}

	if _, err := listing.Apply(ctx, jobID); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := jobs.New(student.client).Apply(ctx, jobID); apiclient.MessageOr(err, "") != "You have already registered for this job" {
		t.Fatalf("second apply err=%v", err)
	}
	if err := listing.ListEligible(ctx, 1, 10); err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if got := listing.Jobs(); len(got) != 0 {
		t.Fatalf("applied job still listed: %+v", got)
	}

	tracker := applications.New(student.client)
	if err := tracker.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c := tracker.Counts(); c[applications.Upcoming] != 1 {
		t.Fatalf("counts=%v", c)
	}

	placements := tpo.NewPlacements(officer.client)
	companies, err := placements.Companies(ctx)
	if err != nil || len(companies) != 1 {
		t.Fatalf("Companies=%+v,%v", companies, err)
	}
	if err := placements.SelectCompany(ctx, companies[0].ID); err != nil {
		t.Fatalf("SelectCompany: %v", err)
	}
	if s := placements.Students(); len(s) != 1 || s[0].ID != me.ID {
		t.Fatalf("company students=%+v", s)
	}
	salary := 12.0
	placementID, _, err := placements.CreatePlacedStudent(ctx, tpo.PlacementInput{
		StudentID:     me.ID,
		JobID:         jobID,
		JoiningDate:   "2025-07-01",
		SalaryOffered: &salary,
	})
	if err != nil {
		t.Fatalf("CreatePlacedStudent: %v", err)
	}
	page, err := placements.ListPlacedStudents(ctx, 1, 10)
	if err != nil || len(page.Students) != 1 || page.Students[0].StudentName != "Asha Rao" {
		t.Fatalf("placed=%+v,%v", page, err)
	}

	if err := tracker.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c := tracker.Counts(); c[applications.Offers] != 1 || c[applications.Upcoming] != 0 {
		t.Fatalf("counts after placement=%v", c)
	}

	book := offers.New(student.client)
	list, err := book.List(ctx, me.ID)
	if err != nil || len(list) != 1 || list[0].Status != offers.NotSubmitted || list[0].PlacementID != placementID {
		t.Fatalf("offers=%+v,%v", list, err)
	}
	if _, err := book.Update(ctx, offers.Update{StudentID: me.ID, PlacementID: placementID, Status: "Yes"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := book.Offers(); got[0].Status != "Yes" {
		t.Fatalf("status=%q", got[0].Status)
	}

	counts, err := dashboard.Student(ctx, student.client)
	if err != nil {
		t.Fatalf("dashboard.Student: %v", err)
	}
	if counts != (dashboard.StudentCounts{Eligible: 1, Applied: 1, Offers: 1}) {
		t.Fatalf("counts=%+v", counts)
	}

	reports := dashboard.Reports(ctx, officer.client, 2025)
	if failed := dashboard.Failed(reports); len(failed) != 0 {
		t.Fatalf("failed reports: %+v", failed[0].Err)
	}
	book2, err := placements.AppliedStudentsWorkbook(ctx, jobID)
	if err != nil || !bytes.HasPrefix(book2, []byte("PK")) {
		t.Fatalf("workbook len=%d err=%v", len(book2), err)
	}
}

func TestOfficerCannotUseStudentRoutes(t *testing.T) {
	ctx := context.Background()
	_, base := startPortal(t)
	officer := signUpOfficer(t, ctx, base)
	err := jobs.New(officer.client).ListEligible(ctx, 1, 10)
	if !errors.Is(err, apiclient.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if !officer.store.LoggedIn() {
		t.Fatal("403 must not end the session")
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	_, base := startPortal(t)
	student, _ := signUpStudent(t, ctx, base)
	token := student.store.Token()

	if err := student.flow.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if student.store.LoggedIn() {
		t.Fatal("store still logged in")
	}

	stale, err := apiclient.New(base, apiclient.WithTokenSource(staticToken(token)))
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	err = stale.GetJSON(ctx, auth.Student.Endpoints.Profile, nil, nil)
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		t.Fatalf("revoked token err=%v", err)
	}

	if _, err := student.flow.Login(ctx, "21331A0501@mvgrce.edu.in", "wrong-pass"); apiclient.MessageOr(err, "") != "Invalid credentials" {
		t.Fatalf("bad login err=%v", err)
	}
	if _, err := student.flow.Login(ctx, "21331A0501@mvgrce.edu.in", "secret123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestUnauthorizedForcesLocalLogout(t *testing.T) {
	ctx := context.Background()
	_, base := startPortal(t)
	student, p := signUpStudent(t, ctx, base)

	if err := student.store.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := student.store.Login(ctx, p, "not-a-valid-token"); err != nil {
		t.Fatalf("store.Login: %v", err)
	}
	err := applications.New(student.client).Load(ctx)
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if student.store.LoggedIn() {
		t.Fatal("401 must force a local logout")
	}
}

func TestRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, base := startPortal(t, portalmock.WithRegistry(reg))
	ctx := context.Background()
	signUpStudent(t, ctx, base)
	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n == 0 {
		t.Fatal("expected request metrics")
	}
}

func TestSeedDemoAccountsCanSignIn(t *testing.T) {
	srv, base := startPortal(t)
	if err := srv.SeedDemo(); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	ctx := context.Background()

	student := newUser(t, base, auth.Student)
	if _, err := student.flow.Login(ctx, portalmock.DemoStudentEmail, portalmock.DemoStudentPassword); err != nil {
		t.Fatalf("student login: %v", err)
	}
	tracker := applications.New(student.client)
	if err := tracker.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c := tracker.Counts(); c[applications.Completed] != 1 {
		t.Fatalf("counts=%v", c)
	}

	officer := newUser(t, base, auth.Officer)
	p, err := officer.flow.Login(ctx, portalmock.DemoOfficerEmail, portalmock.DemoOfficerPassword)
	if err != nil || !p.IsOfficer() {
		t.Fatalf("officer login=%+v,%v", p, err)
	}
	mgr := tpo.NewManager(officer.client)
	if err := mgr.ListJobs(ctx, 1, 10); err != nil || len(mgr.Jobs()) != 4 {
		t.Fatalf("jobs=%+v,%v", mgr.Jobs(), err)
	}
}
