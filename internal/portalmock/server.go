// Package portalmock is an in-memory stand-in for the placement portal's
// HTTP API. It backs the client's integration tests and the local
// portalmock binary.
package portalmock

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"placecell.org/internal/auth"
	"placecell.org/internal/obs"
)

const (
	// DefaultOTP is the code every registration expects unless WithOTP is set.
	DefaultOTP = "123456"

	tokenTTL  = time.Hour
	dateOnly  = "2006-01-02"
	longDate  = "Jan. 02, 2006, 03:04 PM."
	shortDate = "Jan. 02, 2006"
)

type student struct {
	ID             int
	Email          string
	FirstName      string
	LastName       string
	RegNo          string
	Degree         string
	Specialization string
	Gender         string
	DOB            string
	ContactNo      string
	Batch          string
	GPA            float64
	Backlogs       int
	Skills         []string
	ResumeURL      string
	Certificates   []string
	PasswordHash   string
}

func (s *student) fullName() string { return strings.TrimSpace(s.FirstName + " " + s.LastName) }

type officer struct {
	ID           int
	Name         string
	Email        string
	Department   string
	Role         auth.Role
	PasswordHash string
}

type pendingRegistration struct {
	student *student
	officer *officer
}

type company struct {
	ID          int
	Name        string
	Type        string
	Website     string
	Description string
}

type job struct {
	ID                int
	CompanyID         int
	AdminID           int
	Role              string
	Location          string
	Description       string
	ServiceAgreement  string
	RegistrationLink  string
	GenderEligibility string
	Package           float64
	MinGPA            float64
	MaxBacklogs       int
	Posted            time.Time
	Interview         time.Time
	LastDate          time.Time
	Files             []string
	CreatedBy         string
}

type application struct {
	ID        int
	JobID     int
	StudentID int
	Applied   time.Time
}

type placement struct {
	ID             int
	StudentID      int
	CompanyID      int
	JobID          int
	Interview      string
	Joining        string
	Salary         *float64
	OfferLetterURL string
	Status         string
	Feedback       string
}

// Option configures a Server.
type Option func(*Server)

// WithOTP sets the code registrations must confirm with.
func WithOTP(code string) Option {
	return func(s *Server) { s.otp = code }
}

// WithClock fixes the server's notion of now, for deadline and status tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithRateLimit enables per-client rate limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.ratePerSec = perSecond
		s.rateBurst = burst
	}
}

// WithRegistry registers request metrics with reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(s *Server) { s.metrics = obs.NewHTTPMetrics(reg, "portalmock", "http") }
}

// Server is the fake portal. All state lives in memory behind one mutex.
type Server struct {
	signer     *auth.Signer
	otp        string
	now        func() time.Time
	ratePerSec float64
	rateBurst  int
	metrics    *obs.HTTPMetrics
	mux        *http.ServeMux

	mu           sync.Mutex
	nextID       int
	students     map[int]*student
	officers     map[int]*officer
	pending      map[string]pendingRegistration
	companies    map[int]*company
	jobs         map[int]*job
	applications []*application
	placements   map[int]*placement
	revoked      map[string]bool
	idempotent   map[string]int
	uploads      map[string][]byte
}

// New builds a server signing tokens with secret.
func New(secret string, opts ...Option) (*Server, error) {
	signer, err := auth.NewSigner(secret)
	if err != nil {
		return nil, err
	}
	s := &Server{
		signer:     signer,
		otp:        DefaultOTP,
		now:        time.Now,
		students:   make(map[int]*student),
		officers:   make(map[int]*officer),
		pending:    make(map[string]pendingRegistration),
		companies:  make(map[int]*company),
		jobs:       make(map[int]*job),
		placements: make(map[int]*placement),
		revoked:    make(map[string]bool),
		idempotent: make(map[string]int),
		uploads:    make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux = http.NewServeMux()
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	m := s.mux
	m.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "portalmock"})
	})

	m.HandleFunc("POST /auth/register", s.registerStudent)
	m.HandleFunc("POST /auth/verify-otp", s.verifyStudent)
	m.HandleFunc("POST /auth/login", s.loginStudent)
	m.HandleFunc("POST /auth/logout", s.withAuth(studentsOnly, s.logout))
	m.HandleFunc("GET /auth/profile", s.withAuth(studentsOnly, s.studentProfile))
	m.HandleFunc("PATCH /auth/profile", s.withAuth(studentsOnly, s.updateStudentProfile))
	m.HandleFunc("POST /auth/tpo/register", s.registerOfficer)
	m.HandleFunc("POST /auth/tpo/verify-otp", s.verifyOfficer)
	m.HandleFunc("POST /auth/tpo/login", s.loginOfficer)
	m.HandleFunc("POST /auth/tpo/logout", s.withAuth(officersOnly, s.logout))
	m.HandleFunc("GET /auth/tpo/profile", s.withAuth(officersOnly, s.officerProfile))
	m.HandleFunc("PATCH /auth/tpo/profile", s.withAuth(officersOnly, s.updateOfficerProfile))

	m.HandleFunc("GET /job/student-jobs", s.withAuth(studentsOnly, s.studentJobs))
	m.HandleFunc("GET /job/get-job/{id}", s.withAuth(anyUser, s.getJob))
	m.HandleFunc("POST /job/{id}/register", s.withAuth(studentsOnly, s.applyJob))
	m.HandleFunc("GET /job/student/applied-jobs", s.withAuth(studentsOnly, s.appliedJobs))
	m.HandleFunc("GET /job/student/eligible-jobs", s.withAuth(studentsOnly, s.eligibleJobs))
	m.HandleFunc("GET /job/tpo/jobs", s.withAuth(officersOnly, s.officerJobs))
	m.HandleFunc("POST /job/create", s.withAuth(officersOnly, s.createJob))
	m.HandleFunc("PUT /job/{id}", s.withAuth(officersOnly, s.updateJob))
	m.HandleFunc("DELETE /job/{id}", s.withAuth(officersOnly, s.deleteJob))

	m.HandleFunc("GET /placed/companies", s.withAuth(officersOnly, s.listCompanies))
	m.HandleFunc("GET /placed/companies/{id}/students", s.withAuth(officersOnly, s.companyStudents))
	m.HandleFunc("GET /placed/companies/{id}/jobs", s.withAuth(officersOnly, s.companyJobs))
	m.HandleFunc("POST /placed/placed_students", s.withAuth(officersOnly, s.createPlacement))
	m.HandleFunc("GET /placed/placed_students/{id}", s.withAuth(officersOnly, s.getPlacement))
	m.HandleFunc("PUT /placed/placed_students/{id}", s.withAuth(officersOnly, s.updatePlacement))
	m.HandleFunc("DELETE /placed/placed_students/{id}", s.withAuth(officersOnly, s.deletePlacement))
	m.HandleFunc("GET /placements/all-placed-students", s.withAuth(officersOnly, s.allPlacements))
	m.HandleFunc("GET /placements/get/{id}", s.withAuth(anyUser, s.studentPlacements))
	m.HandleFunc("POST /placements/upload-offer-letter", s.withAuth(studentsOnly, s.uploadOfferLetter))

	m.HandleFunc("GET /reports/applied-students/{id}", s.withAuth(officersOnly, s.appliedStudentsReport))
	m.HandleFunc("GET /reports/{name}", s.withAuth(officersOnly, s.report))
}

// Handler returns the server wrapped in its middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = MaxBodyBytes(h, 8<<20)
	if s.ratePerSec > 0 {
		burst := s.rateBurst
		if burst <= 0 {
			burst = 1
		}
		h = RateLimit(h, burst, s.ratePerSec)
	}
	h = LoggingJSON(h)
	if s.metrics != nil {
		h = s.metrics.Instrument(h)
	}
	return RequestID(h)
}

// Upload returns a file stored by a job posting or offer-letter upload.
func (s *Server) Upload(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.uploads[path]
	return data, ok
}

func (s *Server) id() int {
	s.nextID++
	return s.nextID
}

func (s *Server) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

type tokenIDKey struct{}

func withTokenID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tokenIDKey{}, id)
}

func tokenIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(tokenIDKey{}).(string)
	return id
}
