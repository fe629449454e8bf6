package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"placecell.org/internal/portal"
)

// ContentType is the MIME type of the workbooks written here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var ErrNoColumns = errors.New("export: table has no columns")

// Table is one worksheet: a header row followed by data rows.
type Table struct {
	Sheet   string
	Headers []string
	Widths  []float64
	Rows    [][]any
}

// Write renders t as a single-sheet workbook.
func Write(w io.Writer, t Table) error {
	if len(t.Headers) == 0 {
		return ErrNoColumns
	}
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("name sheet: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	for i, h := range t.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("header %s: %w", cell, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(t.Headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for r, row := range t.Rows {
		for c, v := range row {
			if c >= len(t.Headers) {
				break
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("cell %s: %w", cell, err)
			}
		}
	}

	for i, width := range t.Widths {
		if i >= len(t.Headers) || width <= 0 {
			continue
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("width %s: %w", col, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Applications lays out a student's applications, one row each.
func Applications(bucket string, apps []portal.Application) Table {
	t := Table{
		Sheet:   sheetName(bucket, "Applications"),
		Headers: []string{"Company", "Role", "Package (LPA)", "Location", "Interview", "Applied", "Status"},
		Widths:  []float64{24, 24, 14, 18, 16, 16, 12},
	}
	for _, a := range apps {
		t.Rows = append(t.Rows, []any{a.Company.Name, a.Role, a.Package, a.Location, a.InterviewDate, a.AppliedDate, a.Status})
	}
	return t
}

// Applicants lays out the students who applied to one job.
func Applicants(list portal.AppliedStudents) Table {
	t := Table{
		Sheet:   sheetName(list.Job.CompanyName, "Applicants"),
		Headers: []string{"Roll Number", "Full Name", "Email", "Branch", "CGPA", "Applied"},
		Widths:  []float64{14, 24, 30, 12, 8, 24},
	}
	for _, s := range list.Students {
		var cgpa any = ""
		if s.CGPA != nil {
			cgpa = *s.CGPA
		}
		t.Rows = append(t.Rows, []any{s.RollNumber, s.FullName, s.Email, s.Branch, cgpa, s.AppliedDate})
	}
	return t
}

// Placements lays out recorded placements.
func Placements(list []portal.PlacedStudent) Table {
	t := Table{
		Sheet:   "Placements",
		Headers: []string{"Reg No", "Student", "Company", "Role", "Salary", "Joining", "Status"},
		Widths:  []float64{14, 24, 24, 24, 10, 12, 12},
	}
	for _, p := range list {
		t.Rows = append(t.Rows, []any{p.RegNo, p.StudentName, p.CompanyName, p.Role, p.SalaryOffered, p.JoiningDate, p.Status})
	}
	return t
}

// sheetName trims to the 31 characters Excel allows.
func sheetName(name, fallback string) string {
	if name == "" {
		name = fallback
	}
	r := []rune(name)
	if len(r) > 31 {
		r = r[:31]
	}
	return string(r)
}
