package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"placecell.org/internal/applications"
	"placecell.org/internal/dashboard"
	"placecell.org/internal/export"
	"placecell.org/internal/jobs"
	"placecell.org/internal/offers"
	"placecell.org/internal/portal"
)

func newJobsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Browse and apply to jobs you are eligible for",
	}

	var page, size int
	list := &cobra.Command{
		Use:   "list",
		Short: "List eligible jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.student(); err != nil {
				return err
			}
			l := jobs.New(a.client)
			if err := l.ListEligible(cmd.Context(), page, size); err != nil {
				return err
			}
			type view struct {
				Jobs       []portal.Job      `json:"jobs"`
				Pagination portal.Pagination `json:"pagination"`
			}
			v := view{Jobs: l.Jobs(), Pagination: l.Pagination()}
			return a.render(v, func(tw *tabwriter.Writer) {
				if len(v.Jobs) == 0 {
					row(tw, "No eligible jobs right now")
					return
				}
				row(tw, "ID", "COMPANY", "ROLE", "PACKAGE", "LOCATION", "APPLY BY")
				for _, j := range v.Jobs {
					row(tw, j.ID, j.CompanyName, j.Role, money(j.Package), j.Location, j.LastDateToApply)
				}
				row(tw)
				row(tw, fmt.Sprintf("Page %d of %d  %s", v.Pagination.Page, v.Pagination.Pages, pageWindow(l.Window(), v.Pagination.Page)))
			})
		},
	}
	list.Flags().IntVar(&page, "page", 1, "Page number")
	list.Flags().IntVar(&size, "size", jobs.DefaultPageSize, "Jobs per page")

	show := &cobra.Command{
		Use:   "show JOB_ID",
		Short: "Show a job posting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.student(); err != nil {
				return err
			}
			j, err := jobs.New(a.client).Get(cmd.Context(), portal.ID(args[0]))
			if err != nil {
				return err
			}
			return a.render(j, func(tw *tabwriter.Writer) {
				row(tw, "Company", j.CompanyName)
				row(tw, "Role", j.Role)
				row(tw, "Package", money(j.Package))
				row(tw, "Location", j.Location)
				row(tw, "Interview", j.InterviewDate)
				row(tw, "Apply by", j.LastDateToApply)
				row(tw, "Min GPA", j.MinGPA)
				row(tw, "Max backlogs", j.MaxBacklogs)
				row(tw, "Gender", j.GenderEligibility)
				if j.ServiceAgreement != "" {
					row(tw, "Service agreement", j.ServiceAgreement)
				}
				if j.RegistrationLink != "" {
					row(tw, "Registration", j.RegistrationLink)
				}
				if j.Description != "" {
					row(tw, "Description", j.Description)
				}
				for _, f := range j.Files {
					row(tw, "Attachment", f)
				}
				row(tw, "Applied", yesNo(j.AlreadyApplied))
			})
		},
	}

	apply := &cobra.Command{
		Use:   "apply JOB_ID",
		Short: "Register for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.student(); err != nil {
				return err
			}
			msg, err := jobs.New(a.client).Apply(a.ctx(cmd.Context()), portal.ID(args[0]))
			if err != nil {
				return err
			}
			return a.message(msg, map[string]any{"job_id": args[0]})
		},
	}

	cmd.AddCommand(list, show, apply)
	return cmd
}

func pageWindow(window []int, current int) string {
	parts := make([]string, len(window))
	for i, p := range window {
		if p == current {
			parts[i] = "[" + strconv.Itoa(p) + "]"
		} else {
			parts[i] = strconv.Itoa(p)
		}
	}
	return strings.Join(parts, " ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newApplicationsCmd(a *app) *cobra.Command {
	var (
		tab        string
		page, size int
		exportPath string
	)
	cmd := &cobra.Command{
		Use:     "applications",
		Aliases: []string{"apps"},
		Short:   "Track your applications by status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.student(); err != nil {
				return err
			}
			bucket, err := applications.ParseBucket(tab)
			if err != nil {
				return err
			}
			t := applications.New(a.client)
			if err := t.Load(cmd.Context()); err != nil {
				return err
			}
			if err := t.Select(bucket); err != nil {
				return err
			}
			if err := t.SetPageSize(size); err != nil {
				return err
			}
			if err := t.SetPage(page - 1); err != nil {
				return err
			}
			if exportPath != "" {
				return a.writeWorkbook(exportPath, export.Applications(string(bucket), t.Filtered()))
			}

			student, _ := t.Student()
			counts := t.Counts()
			type view struct {
				Student      portal.StudentSummary       `json:"student"`
				Tab          applications.Bucket         `json:"tab"`
				Counts       map[applications.Bucket]int `json:"counts"`
				Page         int                         `json:"page"`
				Pages        int                         `json:"pages"`
				Applications []portal.Application        `json:"applications"`
			}
			v := view{
				Student:      student,
				Tab:          bucket,
				Counts:       counts,
				Page:         t.CurrentPage() + 1,
				Pages:        t.Pages(),
				Applications: t.Page(),
			}
			return a.render(v, func(tw *tabwriter.Writer) {
				tabs := make([]string, 0, len(applications.Buckets))
				for _, b := range applications.Buckets {
					label := fmt.Sprintf("%s (%d)", b, counts[b])
					if b == bucket {
						label = "*" + label
					}
					tabs = append(tabs, label)
				}
				row(tw, strings.Join(tabs, "  "))
				row(tw)
				if len(v.Applications) == 0 {
					row(tw, "No applications in this tab")
					return
				}
				row(tw, "ID", "COMPANY", "ROLE", "PACKAGE", "INTERVIEW", "APPLIED", "STATUS")
				for _, app := range v.Applications {
					row(tw, app.ID, app.Company.Name, app.Role, money(app.Package), app.InterviewDate, app.AppliedDate, app.Status)
				}
				row(tw)
				row(tw, fmt.Sprintf("Page %d of %d", v.Page, v.Pages))
			})
		},
	}
	cmd.Flags().StringVar(&tab, "tab", string(applications.Upcoming), "Status tab: Upcoming, Ongoing, Completed, Offers or Unclassified")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&size, "size", applications.DefaultPageSize, "Applications per page")
	cmd.Flags().StringVar(&exportPath, "export", "", "Write the selected tab to an .xlsx file instead of printing it")
	return cmd
}

func newCalendarCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "calendar",
		Short: "List scheduled interviews, soonest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.student(); err != nil {
				return err
			}
			t := applications.New(a.client)
			if err := t.Load(cmd.Context()); err != nil {
				return err
			}
			type entry struct {
				Date    string    `json:"date"`
				JobID   portal.ID `json:"job_id"`
				Company string    `json:"company"`
				Role    string    `json:"role"`
				Status  string    `json:"status"`
			}
			var entries []entry
			for _, iv := range t.InterviewCalendar() {
				entries = append(entries, entry{
					Date:    iv.Date.Format(time.DateOnly),
					JobID:   iv.Application.JobID,
					Company: iv.Application.Company.Name,
					Role:    iv.Application.Role,
					Status:  iv.Application.Status,
				})
			}
			return a.render(entries, func(tw *tabwriter.Writer) {
				if len(entries) == 0 {
					row(tw, "No interviews scheduled")
					return
				}
				row(tw, "DATE", "COMPANY", "ROLE", "STATUS")
				for _, e := range entries {
					row(tw, e.Date, e.Company, e.Role, e.Status)
				}
			})
		},
	}
}

func newOffersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offers",
		Short: "See your offers and tell the placement cell whether you will join",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List placements recorded for you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.student()
			if err != nil {
				return err
			}
			list, err := offers.New(a.client).List(cmd.Context(), p.ID)
			if err != nil {
				return err
			}
			return a.render(list, func(tw *tabwriter.Writer) {
				if len(list) == 0 {
					row(tw, "No offers yet")
					return
				}
				row(tw, "ID", "COMPANY", "ROLE", "SALARY", "JOINING", "WILLING", "LETTER")
				for _, o := range list {
					row(tw, o.PlacementID, o.CompanyName, o.Role, money(o.SalaryOffered), o.JoiningDate, o.Status, o.OfferLetterURL)
				}
			})
		},
	}

	var status, feedback, letter string
	update := &cobra.Command{
		Use:   "update PLACEMENT_ID",
		Short: "Answer an offer and upload the signed letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.student()
			if err != nil {
				return err
			}
			u := offers.Update{
				StudentID:   p.ID,
				PlacementID: portal.ID(args[0]),
				Feedback:    feedback,
				Status:      status,
			}
			if letter != "" {
				data, err := readFile(letter)
				if err != nil {
					return err
				}
				u.Letter = &offers.Letter{Name: filepath.Base(letter), Data: data}
			}
			msg, err := offers.New(a.client).Update(a.ctx(cmd.Context()), u)
			if err != nil {
				return err
			}
			return a.message(msg, map[string]any{"placement_id": args[0]})
		},
	}
	update.Flags().StringVar(&status, "status", "", "Willing to join: Yes or No")
	update.Flags().StringVar(&feedback, "feedback", "", "Note for the placement cell")
	update.Flags().StringVar(&letter, "letter", "", "Signed offer letter (PDF)")

	cmd.AddCommand(list, update)
	return cmd
}

func newDashboardCmd(a *app) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the summary for the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.principal()
			if err != nil {
				return err
			}
			if p.IsOfficer() {
				return a.showReports(cmd, year)
			}
			counts, err := dashboard.Student(cmd.Context(), a.client)
			if err != nil {
				return err
			}
			return a.render(counts, func(tw *tabwriter.Writer) {
				row(tw, "Eligible jobs", counts.Eligible)
				row(tw, "Applied", counts.Applied)
				row(tw, "Offers", counts.Offers)
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "Placement year for officer reports (0 for all years)")
	return cmd
}

// showReports prints every officer report. Failed reports are listed and
// turn the exit status non-zero after the rest are shown.
func (a *app) showReports(cmd *cobra.Command, year int) error {
	reports := dashboard.Reports(cmd.Context(), a.client, year)
	failed := dashboard.Failed(reports)
	err := a.render(reports, func(tw *tabwriter.Writer) {
		row(tw, "REPORT", "TOTAL", "STATUS")
		for _, r := range reports {
			total, state := "-", "ok"
			if r.Total != nil {
				total = strconv.Itoa(*r.Total)
			}
			if r.Err != nil {
				state = r.Err.Error()
			}
			row(tw, r.Name, total, state)
		}
	})
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		errs := make([]error, len(failed))
		for i, r := range failed {
			errs[i] = r.Err
		}
		return errors.Join(errs...)
	}
	return nil
}

// writeWorkbook renders t as an .xlsx file at path.
func (a *app) writeWorkbook(path string, t export.Table) error {
	var buf bytes.Buffer
	if err := export.Write(&buf, t); err != nil {
		return err
	}
	return a.saveFile(path, buf.Bytes())
}

func (a *app) saveFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return a.message(fmt.Sprintf("Wrote %s", path), map[string]any{"path": path, "bytes": len(data)})
}
