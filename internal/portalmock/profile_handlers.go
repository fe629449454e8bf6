package portalmock

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func studentProfileJSON(st *student) map[string]any {
	skills := st.Skills
	if skills == nil {
		skills = []string{}
	}
	certs := st.Certificates
	if certs == nil {
		certs = []string{}
	}
	return map[string]any{
		"student_id":       st.ID,
		"email":            st.Email,
		"first_name":       st.FirstName,
		"last_name":        st.LastName,
		"reg_no":           st.RegNo,
		"degree":           st.Degree,
		"specialization":   st.Specialization,
		"gender":           st.Gender,
		"dob":              st.DOB,
		"current_gpa":      st.GPA,
		"backlogs":         st.Backlogs,
		"contact_no":       st.ContactNo,
		"batch":            st.Batch,
		"skills":           skills,
		"resume_url":       st.ResumeURL,
		"certificate_urls": certs,
	}
}

func (s *Server) studentProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := caller(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Student not found")
		return
	}
	writeJSON(w, http.StatusOK, studentProfileJSON(st))
}

// updateStudentProfile applies the multipart fields present in the request.
// Email and registration number are fixed.
func (s *Server) updateStudentProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}
	form := uploadForm{values: r.MultipartForm.Value, files: r.MultipartForm.File["resume_url"]}
	id, _ := caller(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Student not found")
		return
	}
	next := *st
	for key, dst := range map[string]*string{
		"first_name":     &next.FirstName,
		"last_name":      &next.LastName,
		"contact_no":     &next.ContactNo,
		"gender":         &next.Gender,
		"specialization": &next.Specialization,
		"degree":         &next.Degree,
		"batch":          &next.Batch,
	} {
		if v, ok := form.get(key); ok {
			*dst = v
		}
	}
	if v, ok := form.get("dob"); ok {
		if _, err := time.Parse(dateOnly, v); err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid date format for dob (use YYYY-MM-DD)")
			return
		}
		next.DOB = v
	}
	if v, ok := form.get("skills"); ok {
		next.Skills = nil
		for _, skill := range strings.Split(v, ",") {
			if skill = strings.TrimSpace(skill); skill != "" {
				next.Skills = append(next.Skills, skill)
			}
		}
	}
	if v, ok := form.get("current_gpa"); ok {
		gpa, err := strconv.ParseFloat(v, 64)
		if err != nil || gpa < 0 || gpa > 10 {
			writeError(w, r, http.StatusBadRequest, "Invalid current_gpa")
			return
		}
		next.GPA = gpa
	}
	if v, ok := form.get("backlogs"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "Invalid backlogs")
			return
		}
		next.Backlogs = n
	}
	if len(form.files) > 0 {
		if !strings.EqualFold(filepath.Ext(form.files[0].Filename), ".pdf") {
			writeError(w, r, http.StatusBadRequest, "Invalid resume file type")
			return
		}
		paths, err := s.storeFiles("profile", form.files[:1])
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "Failed to store resume")
			return
		}
		next.ResumeURL = paths[0]
	}
	*st = next
	writeJSON(w, http.StatusOK, map[string]any{"message": "Profile updated successfully", "user": studentProfileJSON(st)})
}

func (s *Server) officerProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := caller(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.officers[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Officer not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tpo_name":   o.Name,
		"email":      o.Email,
		"department": o.Department,
		"role":       string(o.Role),
	})
}

func (s *Server) updateOfficerProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}
	form := uploadForm{values: r.MultipartForm.Value}
	id, _ := caller(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.officers[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Officer not found")
		return
	}
	if v, ok := form.get("admin_name"); ok && v != "" {
		o.Name = v
	}
	if v, ok := form.get("department"); ok {
		o.Department = v
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user": map[string]any{
			"admin_name": o.Name,
			"email":      o.Email,
			"department": o.Department,
			"role":       string(o.Role),
		},
	})
}
