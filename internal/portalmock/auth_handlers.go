package portalmock

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"placecell.org/internal/audit"
	"placecell.org/internal/auth"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type studentRegistration struct {
	Email           string   `json:"email"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	RegNo           string   `json:"reg_no"`
	Degree          string   `json:"degree"`
	Specialization  string   `json:"specialization"`
	Password        string   `json:"password"`
	DOB             string   `json:"dob"`
	Gender          string   `json:"gender"`
	CurrentGPA      float64  `json:"current_gpa"`
	ContactNo       string   `json:"contact_no"`
	Backlogs        int      `json:"backlogs"`
	Batch           string   `json:"batch"`
	Skills          []string `json:"skills"`
	ResumeURL       string   `json:"resume_url"`
	CertificateURLs []string `json:"certificate_urls"`
}

type officerRegistration struct {
	Name       string `json:"admin_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (s *Server) emailTaken(email string) bool {
	for _, st := range s.students {
		if strings.EqualFold(st.Email, email) {
			return true
		}
	}
	for _, o := range s.officers {
		if strings.EqualFold(o.Email, email) {
			return true
		}
	}
	return false
}

func (s *Server) registerStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRegistration
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) || req.FirstName == "" || req.RegNo == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "Missing required fields")
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to register")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(email) {
		writeError(w, r, http.StatusBadRequest, "Email already registered")
		return
	}
	s.pending[email] = pendingRegistration{student: &student{
		Email:          email,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		RegNo:          strings.TrimSpace(req.RegNo),
		Degree:         req.Degree,
		Specialization: req.Specialization,
		Gender:         req.Gender,
		DOB:            req.DOB,
		ContactNo:      req.ContactNo,
		Batch:          req.Batch,
		GPA:            req.CurrentGPA,
		Backlogs:       req.Backlogs,
		Skills:         req.Skills,
		ResumeURL:      req.ResumeURL,
		Certificates:   req.CertificateURLs,
		PasswordHash:   hash,
	}}
	writeJSON(w, http.StatusOK, map[string]any{"message": "OTP sent to your email. Please verify to complete registration."})
}

func (s *Server) registerOfficer(w http.ResponseWriter, r *http.Request) {
	var req officerRegistration
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	role, ok := auth.ParseRole(req.Role)
	if req.Role == "" {
		role, ok = auth.RoleAdmin, true
	}
	if !emailPattern.MatchString(email) || strings.TrimSpace(req.Name) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "Missing required fields")
		return
	}
	if !ok || role == auth.RoleStudent {
		writeError(w, r, http.StatusBadRequest, "Invalid role")
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to register")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(email) {
		writeError(w, r, http.StatusBadRequest, "Email already registered")
		return
	}
	s.pending[email] = pendingRegistration{officer: &officer{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Department:   req.Department,
		Role:         role,
		PasswordHash: hash,
	}}
	writeJSON(w, http.StatusOK, map[string]any{"message": "OTP sent to your email. Please verify to complete registration."})
}

// confirm consumes the pending registration for email when otp matches.
func (s *Server) confirm(w http.ResponseWriter, r *http.Request, officers bool) (pendingRegistration, bool) {
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return pendingRegistration{}, false
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.OTP == "" {
		writeError(w, r, http.StatusBadRequest, "Email and OTP are required")
		return pendingRegistration{}, false
	}
	p, ok := s.pending[email]
	if !ok || (officers && p.officer == nil) || (!officers && p.student == nil) {
		writeError(w, r, http.StatusBadRequest, "OTP expired or invalid request")
		return pendingRegistration{}, false
	}
	if req.OTP != s.otp {
		writeError(w, r, http.StatusBadRequest, "Invalid OTP")
		return pendingRegistration{}, false
	}
	delete(s.pending, email)
	return p, true
}

func (s *Server) verifyStudent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.confirm(w, r, false)
	if !ok {
		return
	}
	st := p.student
	st.ID = s.id()
	s.students[st.ID] = st
	token, err := s.signer.Issue(strconv.Itoa(st.ID), auth.RoleStudent, st.Email, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "portal.student.registered", map[string]any{"student_id": st.ID})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Registration verified successfully",
		"access_token": token,
		"user": map[string]any{
			"id":             st.ID,
			"email":          st.Email,
			"first_name":     st.FirstName,
			"last_name":      st.LastName,
			"reg_no":         st.RegNo,
			"degree":         st.Degree,
			"specialization": st.Specialization,
		},
	})
}

func (s *Server) verifyOfficer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.confirm(w, r, true)
	if !ok {
		return
	}
	o := p.officer
	o.ID = s.id()
	s.officers[o.ID] = o
	token, err := s.signer.Issue(strconv.Itoa(o.ID), o.Role, o.Email, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Registration verified successfully",
		"access_token": token,
		"user":         officerUser(o),
	})
}

func officerUser(o *officer) map[string]any {
	return map[string]any{
		"id":         o.ID,
		"email":      o.Email,
		"admin_name": o.Name,
		"department": o.Department,
		"role":       string(o.Role),
	}
}

func (s *Server) loginStudent(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	s.mu.Lock()
	var found *student
	for _, st := range s.students {
		if st.Email == email {
			found = st
			break
		}
	}
	s.mu.Unlock()
	if found == nil || verifyPassword(found.PasswordHash, req.Password) != nil {
		writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, err := s.signer.Issue(strconv.Itoa(found.ID), auth.RoleStudent, found.Email, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Login Successful",
		"access_token": token,
		"user": map[string]any{
			"id":           found.ID,
			"email":        found.Email,
			"student_name": found.fullName(),
			"reg_no":       found.RegNo,
			"role":         string(auth.RoleStudent),
		},
	})
}

func (s *Server) loginOfficer(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	s.mu.Lock()
	var found *officer
	for _, o := range s.officers {
		if o.Email == email {
			found = o
			break
		}
	}
	s.mu.Unlock()
	if found == nil || verifyPassword(found.PasswordHash, req.Password) != nil {
		writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, err := s.signer.Issue(strconv.Itoa(found.ID), found.Role, found.Email, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Login Successful",
		"access_token": token,
		"user":         officerUser(found),
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if jti := tokenIDFromContext(r.Context()); jti != "" {
		s.mu.Lock()
		s.revoked[jti] = true
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Successfully logged out"})
}

