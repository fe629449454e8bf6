package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"placecell.org/internal/portal"
)

func readBack(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows(%s): %v", sheet, err)
	}
	return rows
}

func TestApplicationsWorkbook(t *testing.T) {
	apps := []portal.Application{
		{Role: "SDE", Company: portal.Company{Name: "Acme"}, Package: 12.5, InterviewDate: "TBD", Status: "Upcoming"},
		{Role: "Analyst", Company: portal.Company{Name: "Globex"}, Package: 8, Status: "Upcoming"},
	}
	var buf bytes.Buffer
	if err := Write(&buf, Applications("Upcoming", apps)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rows := readBack(t, buf.Bytes(), "Upcoming")
	if len(rows) != 3 {
		t.Fatalf("rows=%v", rows)
	}
	if rows[0][0] != "Company" || rows[1][0] != "Acme" || rows[1][2] != "12.5" || rows[2][1] != "Analyst" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestApplicantsWorkbook(t *testing.T) {
	cgpa := 8.4
	var list portal.AppliedStudents
	list.Job.CompanyName = "A company name that is far too long for a sheet"
	list.Students = []portal.Applicant{
		{FullName: "Asha Rao", RollNumber: "21CS001", CGPA: &cgpa},
		{FullName: "Ravi K", RollNumber: "21CS002"},
	}
	var buf bytes.Buffer
	if err := Write(&buf, Applicants(list)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sheet := sheetName(list.Job.CompanyName, "")
	if len([]rune(sheet)) != 31 {
		t.Fatalf("sheet name %q not trimmed", sheet)
	}
	rows := readBack(t, buf.Bytes(), sheet)
	if rows[1][1] != "Asha Rao" || rows[1][4] != "8.4" {
		t.Fatalf("row=%v", rows[1])
	}
	if len(rows[2]) > 4 && rows[2][4] != "" {
		t.Fatalf("missing cgpa must be blank: %v", rows[2])
	}
}

func TestWriteRejectsEmptyTable(t *testing.T) {
	if err := Write(&bytes.Buffer{}, Table{}); !errors.Is(err, ErrNoColumns) {
		t.Fatalf("expected ErrNoColumns, got %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, Placements(nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if rows := readBack(t, buf.Bytes(), "Placements"); len(rows) != 1 {
		t.Fatalf("rows=%v", rows)
	}
}
