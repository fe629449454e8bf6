package portalmock

import (
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"placecell.org/internal/audit"
	"placecell.org/internal/portal"
)

type placementRequest struct {
	CompanyID      portal.ID `json:"company_id"`
	StudentID      portal.ID `json:"student_id"`
	JobID          portal.ID `json:"job_id"`
	InterviewDate  *string   `json:"date_of_interview"`
	JoiningDate    *string   `json:"joining_date"`
	OfferLetterURL *string   `json:"offer_letter_url"`
	SalaryOffered  *float64  `json:"salary_offered"`
}

func intID(id portal.ID) int {
	n, ok := id.Int()
	if !ok {
		return 0
	}
	return int(n)
}

func (s *Server) placementJSON(p *placement) map[string]any {
	out := map[string]any{
		"placement_id":      p.ID,
		"student_id":        p.StudentID,
		"company_id":        p.CompanyID,
		"company_name":      s.companyName(p.CompanyID),
		"job_id":            p.JobID,
		"date_of_interview": p.Interview,
		"joining_date":      p.Joining,
		"salary_offered":    p.Salary,
		"offer_letter_url":  p.OfferLetterURL,
		"placement_status":  p.Status,
	}
	if st, ok := s.students[p.StudentID]; ok {
		out["student_name"] = st.fullName()
		out["reg_no"] = st.RegNo
	}
	if j, ok := s.jobs[p.JobID]; ok {
		out["job_role"] = j.Role
	}
	return out
}

func (s *Server) sortedPlacements() []*placement {
	out := make([]*placement, 0, len(s.placements))
	for _, p := range s.placements {
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	return out
}

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.companies))
	ids := make([]int, 0, len(s.companies))
	for id := range s.companies {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		c := s.companies[id]
		out = append(out, map[string]any{
			"company_id":   c.ID,
			"company_name": c.Name,
			"website":      c.Website,
			"company_type": c.Type,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// companyScope loads the company in the path.
func (s *Server) companyScope(w http.ResponseWriter, r *http.Request) (*company, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Invalid company id")
		return nil, false
	}
	c, ok := s.companies[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Company not found")
		return nil, false
	}
	return c, true
}

// companyStudents lists students who applied to any of the company's jobs.
func (s *Server) companyStudents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companyScope(w, r)
	if !ok {
		return
	}
	seen := map[int]bool{}
	out := make([]map[string]any, 0)
	for _, a := range s.applications {
		j, ok := s.jobs[a.JobID]
		if !ok || j.CompanyID != c.ID || seen[a.StudentID] {
			continue
		}
		st, ok := s.students[a.StudentID]
		if !ok {
			continue
		}
		seen[st.ID] = true
		out = append(out, map[string]any{
			"student_id": st.ID,
			"first_name": st.FirstName,
			"last_name":  st.LastName,
			"reg_no":     st.RegNo,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": out})
}

func (s *Server) companyJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companyScope(w, r)
	if !ok {
		return
	}
	out := make([]map[string]any, 0)
	for _, j := range s.sortedJobs() {
		if j.CompanyID == c.ID {
			out = append(out, map[string]any{"job_id": j.ID, "job_role": j.Role})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

// applyPlacement validates req against the current records and copies it
// onto p. It returns a client-facing message on failure.
func (s *Server) applyPlacement(p *placement, req placementRequest) string {
	if req.CompanyID != "" {
		cid := intID(req.CompanyID)
		if _, ok := s.companies[cid]; !ok {
			return "Company not found"
		}
		p.CompanyID = cid
	}
	if req.StudentID != "" {
		sid := intID(req.StudentID)
		if _, ok := s.students[sid]; !ok {
			return "Student not found"
		}
		p.StudentID = sid
	}
	if req.JobID != "" {
		p.JobID = intID(req.JobID)
	}
	if j, ok := s.jobs[p.JobID]; !ok || j.CompanyID != p.CompanyID {
		return "Job does not belong to the selected company"
	}
	for _, d := range []*string{req.InterviewDate, req.JoiningDate} {
		if d == nil || *d == "" {
			continue
		}
		if _, err := time.Parse(dateOnly, *d); err != nil {
			return "Dates must be YYYY-MM-DD"
		}
	}
	if req.InterviewDate != nil {
		p.Interview = *req.InterviewDate
	}
	if req.JoiningDate != nil {
		p.Joining = *req.JoiningDate
	}
	if req.OfferLetterURL != nil {
		p.OfferLetterURL = strings.TrimSpace(*req.OfferLetterURL)
	}
	if req.SalaryOffered != nil {
		if *req.SalaryOffered < 0 {
			return "Salary must be a non-negative number"
		}
		salary := *req.SalaryOffered
		p.Salary = &salary
	}
	return ""
}

func (s *Server) createPlacement(w http.ResponseWriter, r *http.Request) {
	var req placementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.CompanyID == "" || req.StudentID == "" || req.JobID == "" {
		writeError(w, r, http.StatusBadRequest, "company_id, student_id and job_id are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &placement{}
	if msg := s.applyPlacement(p, req); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	for _, existing := range s.placements {
		if existing.StudentID == p.StudentID && existing.JobID == p.JobID {
			writeError(w, r, http.StatusConflict, "Student is already placed for this job")
			return
		}
	}
	p.ID = s.id()
	s.placements[p.ID] = p
	_ = audit.LogEvent(r.Context(), "portal.placement.created", map[string]any{"placement_id": p.ID, "student_id": p.StudentID})
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Placed student added successfully", "placement_id": p.ID})
}

func (s *Server) placementInPath(w http.ResponseWriter, r *http.Request) (*placement, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Invalid placement id")
		return nil, false
	}
	p, ok := s.placements[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, "Placed student not found")
		return nil, false
	}
	return p, true
}

func (s *Server) getPlacement(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.placementInPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.placementJSON(p))
}

func (s *Server) updatePlacement(w http.ResponseWriter, r *http.Request) {
	var req placementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.placementInPath(w, r)
	if !ok {
		return
	}
	updated := *p
	if msg := s.applyPlacement(&updated, req); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	*p = updated
	_ = audit.LogEvent(r.Context(), "portal.placement.updated", map[string]any{"placement_id": p.ID})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Placed student updated successfully"})
}

func (s *Server) deletePlacement(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.placementInPath(w, r)
	if !ok {
		return
	}
	delete(s.placements, p.ID)
	_ = audit.LogEvent(r.Context(), "portal.placement.deleted", map[string]any{"placement_id": p.ID})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Placed student deleted successfully"})
}

func (s *Server) allPlacements(w http.ResponseWriter, r *http.Request) {
	page := parsePositiveInt(r.URL.Query().Get("page"), 1, 1, 1<<20)
	perPage := parsePositiveInt(r.URL.Query().Get("per_page"), 10, 1, 100)
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedPlacements()
	start, end, pages := paginate(len(all), page, perPage)
	data := make([]map[string]any, 0, end-start)
	for _, p := range all[start:end] {
		data = append(data, s.placementJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": data,
		"pagination": map[string]any{
			"total":        len(all),
			"pages":        pages,
			"current_page": page,
			"per_page":     perPage,
		},
	})
}

func (s *Server) offerJSON(p *placement) map[string]any {
	status := p.Status
	if status == "" {
		status = "Not Submitted"
	}
	out := map[string]any{
		"id":                p.ID,
		"student_id":        p.StudentID,
		"company_id":        p.CompanyID,
		"company_name":      s.companyName(p.CompanyID),
		"salary_offered":    p.Salary,
		"joining_date":      p.Joining,
		"date_of_interview": p.Interview,
		"offer_letter_url":  p.OfferLetterURL,
		"status":            status,
	}
	if j, ok := s.jobs[p.JobID]; ok {
		out["job_role"] = j.Role
	}
	if p.Feedback != "" {
		out["feedback"] = p.Feedback
	}
	return out
}

// studentPlacements lists a student's offers. Students may only read their own.
func (s *Server) studentPlacements(w http.ResponseWriter, r *http.Request) {
	sid, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Invalid student id")
		return
	}
	uid, who := caller(r)
	if !who.IsOfficer() && uid != sid {
		writeError(w, r, http.StatusForbidden, "You can only view your own placements")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make([]map[string]any, 0)
	for _, p := range s.sortedPlacements() {
		if p.StudentID == sid {
			data = append(data, s.offerJSON(p))
		}
	}
	if len(data) == 0 {
		writeError(w, r, http.StatusNotFound, "Student has not been placed yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Placement details fetched successfully", "data": data})
}

func (s *Server) uploadOfferLetter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}
	uid, _ := caller(r)
	sid, _ := strconv.Atoi(r.FormValue("student_id"))
	pid, _ := strconv.Atoi(r.FormValue("placement_id"))
	if sid == 0 || pid == 0 {
		writeError(w, r, http.StatusBadRequest, "student_id and placement_id are required")
		return
	}
	if sid != uid {
		writeError(w, r, http.StatusForbidden, "You can only update your own placements")
		return
	}
	status := strings.TrimSpace(r.FormValue("status"))
	if status != "" && status != "Yes" && status != "No" {
		writeError(w, r, http.StatusBadRequest, "Status must be Yes or No")
		return
	}
	feedback := strings.TrimSpace(r.FormValue("feedback"))

	var letter []byte
	var letterName string
	if file, header, err := r.FormFile("offer_letter_url"); err == nil {
		letter, err = io.ReadAll(file)
		file.Close()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}
		letterName = filepath.Base(header.Filename)
		if !strings.EqualFold(filepath.Ext(letterName), ".pdf") {
			writeError(w, r, http.StatusBadRequest, "Offer letter must be a PDF")
			return
		}
	}
	if letter == nil && status == "" && feedback == "" {
		writeError(w, r, http.StatusBadRequest, "Nothing to update")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.placements[pid]
	if !ok || p.StudentID != sid {
		writeError(w, r, http.StatusNotFound, "Placement not found")
		return
	}
	if letter != nil {
		path := "uploads/offers/" + uuid.NewString() + "/" + letterName
		s.uploads[path] = letter
		p.OfferLetterURL = path
	}
	if status != "" {
		p.Status = status
	}
	if feedback != "" {
		p.Feedback = feedback
	}
	_ = audit.LogEvent(r.Context(), "portal.offer.updated", map[string]any{"placement_id": p.ID, "status": p.Status})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "Details updated successfully",
		"offer_letter":     p.OfferLetterURL,
		"placement_status": p.Status,
		"placement_id":     p.ID,
	})
}
