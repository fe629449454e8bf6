package portalmock

import (
	"time"

	"placecell.org/internal/auth"
)

// Demo credentials created by SeedDemo.
const (
	DemoOfficerEmail    = "tpo@mvgrce.edu.in"
	DemoOfficerPassword = "placement-2025"
	DemoStudentEmail    = "21331a0501@mvgrce.edu.in"
	DemoStudentPassword = "secret123"
)

type demoJob struct {
	company, kind, website string
	role, location         string
	pkg, minGPA            float64
	interviewIn, closesIn  int
}

var demoJobs = []demoJob{
	{"Acme Systems", "Product", "https://acme.example.com", "Software Engineer", "Hyderabad", 12.5, 7.0, 21, 14},
	{"Acme Systems", "Product", "https://acme.example.com", "QA Engineer", "Hyderabad", 8, 6.5, 21, 14},
	{"Globex", "Service", "https://globex.example.com", "Graduate Analyst", "Bengaluru", 6.5, 6.0, 0, 7},
	{"Initech", "Consulting", "https://initech.example.com", "Business Analyst", "Pune", 7.2, 6.0, -3, -10},
}

// SeedDemo adds one officer, one student and a handful of postings so the
// binary is usable without registering first.
func (s *Server) SeedDemo() error {
	officerHash, err := hashPassword(DemoOfficerPassword)
	if err != nil {
		return err
	}
	studentHash, err := hashPassword(DemoStudentPassword)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o := &officer{ID: s.id(), Name: "Meera Iyer", Email: DemoOfficerEmail, Department: "Training & Placement", Role: auth.RoleAdmin, PasswordHash: officerHash}
	s.officers[o.ID] = o
	st := &student{
		ID: s.id(), Email: DemoStudentEmail, FirstName: "Asha", LastName: "Rao", RegNo: "21331A0501",
		Degree: "B.Tech", Specialization: "CSE", Gender: "Female", DOB: "2003-04-05",
		ContactNo: "9876543210", Batch: "2021-2025", GPA: 8.4, PasswordHash: studentHash,
	}
	s.students[st.ID] = st

	today := s.today()
	companies := map[string]*company{}
	for _, d := range demoJobs {
		c, ok := companies[d.company]
		if !ok {
			c = &company{ID: s.id(), Name: d.company, Type: d.kind, Website: d.website}
			s.companies[c.ID] = c
			companies[d.company] = c
		}
		j := &job{
			ID:                s.id(),
			CompanyID:         c.ID,
			AdminID:           o.ID,
			Role:              d.role,
			Location:          d.location,
			GenderEligibility: "all",
			Package:           d.pkg,
			MinGPA:            d.minGPA,
			MaxBacklogs:       1,
			Posted:            today.AddDate(0, 0, -7),
			Interview:         today.AddDate(0, 0, d.interviewIn),
			LastDate:          today.AddDate(0, 0, d.closesIn),
			CreatedBy:         o.Name,
		}
		s.jobs[j.ID] = j
		if d.closesIn < 0 {
			s.applications = append(s.applications, &application{ID: s.id(), JobID: j.ID, StudentID: st.ID, Applied: j.Posted.Add(26 * time.Hour)})
		}
	}
	return nil
}
