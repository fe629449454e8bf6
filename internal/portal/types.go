package portal

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ID is a server identifier. The portal emits integers for most records and
// strings for a few, so both decode into the same string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("portal: id must be a string or number")
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Int returns the numeric form used by endpoints that expect integers.
func (id ID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// Pagination mirrors the server's page envelope.
type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
	PerPage int `json:"per_page"`
}

// Job is one entry of the student eligible-jobs listing.
type Job struct {
	ID                ID      `json:"id"`
	Role              string  `json:"role"`
	CompanyID         ID      `json:"company_id"`
	CompanyName       string  `json:"company_name"`
	Location          string  `json:"job_location"`
	Package           float64 `json:"package"`
	PostedDate        string  `json:"posted_date"`
	InterviewDate     string  `json:"date_of_interview"`
	LastDateToApply   string  `json:"last_date_to_apply"`
	MinGPA            float64 `json:"min_gpa"`
	MaxBacklogs       int     `json:"max_backlogs"`
	GenderEligibility string  `json:"gender_eligibility"`
}

// JobDetail is the full posting shown on the job detail view.
type JobDetail struct {
	Job
	Description           string   `json:"job_description"`
	ServiceAgreement      string   `json:"service_agreement"`
	RegistrationLink      string   `json:"links_for_registrations"`
	CompanyType           string   `json:"company_type"`
	Website               string   `json:"website"`
	CompanyDescription    string   `json:"description"`
	Files                 []string `json:"file_paths,omitempty"`
	AlreadyApplied        bool     `json:"already_applied,omitempty"`
	ApplicationsRemaining *int     `json:"applications_remaining,omitempty"`
}

// Company is the employer block embedded in applications and placements.
type Company struct {
	ID      ID     `json:"company_id"`
	Name    string `json:"company_name"`
	Website string `json:"website,omitempty"`
	Type    string `json:"company_type,omitempty"`
}

// Application is a student's registration for one job. Status is driven by
// the server and arrives as job_status.
type Application struct {
	ID              ID      `json:"application_id"`
	JobID           ID      `json:"job_id"`
	Role            string  `json:"job_role"`
	Package         float64 `json:"job_package"`
	Location        string  `json:"job_location"`
	Company         Company `json:"company"`
	InterviewDate   string  `json:"interview_date"`
	PublishedOn     string  `json:"published_on"`
	LastDateToApply string  `json:"last_date_to_apply"`
	AppliedDate     string  `json:"applied_date"`
	Status          string  `json:"job_status"`
}

// StudentSummary heads the applied-jobs response.
type StudentSummary struct {
	ID         ID      `json:"student_id"`
	FullName   string  `json:"full_name"`
	Email      string  `json:"email"`
	RollNumber string  `json:"roll_number"`
	CGPA       float64 `json:"cgpa"`
}

// AppliedJobs is the body of GET /job/student/applied-jobs.
type AppliedJobs struct {
	Student           StudentSummary `json:"student"`
	Applications      []Application  `json:"applications"`
	TotalApplications int            `json:"total_applications"`
}

// PostedJob is one row of the officer's job management listing.
type PostedJob struct {
	ID              ID      `json:"job_id"`
	CompanyName     string  `json:"company_name"`
	Role            string  `json:"job_role"`
	Location        string  `json:"job_location"`
	MinGPA          float64 `json:"min_gpa"`
	Package         float64 `json:"package"`
	PostedDate      string  `json:"posted_date"`
	LastDateToApply string  `json:"last_date_to_apply"`
	CreatedBy       string  `json:"created_by"`
}

// PlacedStudent is the officer-side placement record.
type PlacedStudent struct {
	ID              ID      `json:"placement_id"`
	StudentID       ID      `json:"student_id"`
	StudentName     string  `json:"student_name,omitempty"`
	RegNo           string  `json:"reg_no,omitempty"`
	CompanyID       ID      `json:"company_id"`
	CompanyName     string  `json:"company_name,omitempty"`
	JobID           ID      `json:"job_id"`
	Role            string  `json:"job_role,omitempty"`
	InterviewDate   string  `json:"date_of_interview"`
	JoiningDate     string  `json:"joining_date"`
	SalaryOffered   float64 `json:"salary_offered"`
	OfferLetterURL  string  `json:"offer_letter_url"`
	Status          string  `json:"placement_status,omitempty"`
	WillingnessSent bool    `json:"willingness_sent,omitempty"`
}

// CompanyStudent is a selectable student inside the placement cascade.
type CompanyStudent struct {
	ID        ID     `json:"student_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RegNo     string `json:"reg_no,omitempty"`
}

func (s CompanyStudent) Name() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// CompanyJob is a selectable job inside the placement cascade.
type CompanyJob struct {
	ID   ID     `json:"job_id"`
	Role string `json:"job_role"`
}

// Offer is a placement as the student sees it. Status is the student's
// join willingness ("Yes"/"No"), or "Not Submitted".
type Offer struct {
	PlacementID    ID      `json:"id"`
	StudentID      ID      `json:"student_id"`
	CompanyID      ID      `json:"company_id"`
	CompanyName    string  `json:"company_name"`
	Role           string  `json:"job_role"`
	SalaryOffered  float64 `json:"salary_offered"`
	JoiningDate    string  `json:"joining_date"`
	InterviewDate  string  `json:"date_of_interview"`
	OfferLetterURL string  `json:"offer_letter_url"`
	Status         string  `json:"status"`
	Feedback       string  `json:"feedback,omitempty"`
}

// StudentProfile is the body of GET /auth/profile.
type StudentProfile struct {
	ID              ID       `json:"student_id,omitempty"`
	Email           string   `json:"email"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	RegNo           string   `json:"reg_no"`
	Degree          string   `json:"degree"`
	Specialization  string   `json:"specialization"`
	Gender          string   `json:"gender"`
	DOB             string   `json:"dob"`
	CurrentGPA      float64  `json:"current_gpa"`
	Backlogs        int      `json:"backlogs"`
	ContactNo       string   `json:"contact_no"`
	Batch           string   `json:"batch"`
	Skills          []string `json:"skills"`
	ResumeURL       string   `json:"resume_url"`
	CertificateURLs []string `json:"certificate_urls"`
}

func (p StudentProfile) Name() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// OfficerProfile is the body of GET /auth/tpo/profile. Updates echo the
// name back as admin_name, so both keys decode.
type OfficerProfile struct {
	Name       string `json:"tpo_name"`
	AdminName  string `json:"admin_name,omitempty"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Role       string `json:"role"`
}

// Applicant is one row of the per-job applied-students report.
type Applicant struct {
	ApplicationID ID       `json:"application_id"`
	StudentID     ID       `json:"student_id"`
	FullName      string   `json:"full_name"`
	RollNumber    string   `json:"roll_number"`
	Email         string   `json:"email"`
	Branch        string   `json:"branch"`
	CGPA          *float64 `json:"cgpa"`
	AppliedDate   string   `json:"applied_date"`
}

// AppliedStudents is the body of GET /reports/applied-students/:job_id.
type AppliedStudents struct {
	Job struct {
		ID          ID     `json:"job_id"`
		Role        string `json:"job_role"`
		CompanyName string `json:"company_name"`
	} `json:"job"`
	Students []Applicant `json:"students"`
}

// InterviewDateLayout is how the portal renders interview dates (e.g. "Jan. 02, 2006").
const InterviewDateLayout = "Jan. 02, 2006"

// ParseDate accepts the portal's display and ISO date forms.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "TBD") {
		return time.Time{}, false
	}
	for _, layout := range []string{InterviewDateLayout, "Jan 02, 2006", "2006-01-02", time.RFC3339, time.RFC1123} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
