package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"placecell.org/internal/export"
	"placecell.org/internal/portal"
	"placecell.org/internal/tpo"
)

func newTPOCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tpo",
		Short: "Placement officer tools",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.Context()); err != nil {
				return err
			}
			_, err := a.officer()
			return err
		},
	}
	cmd.AddCommand(
		newTPOJobsCmd(a),
		newTPOPlacementsCmd(a),
		newTPOAppliedCmd(a),
		&cobra.Command{
			Use:   "reports",
			Short: "Show every placement report",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				year, err := cmd.Flags().GetInt("year")
				if err != nil {
					return err
				}
				return a.showReports(cmd, year)
			},
		},
	)
	cmd.PersistentFlags().Int("year", 0, "Placement year for reports (0 for all years)")
	return cmd
}

func attachment(path string) (*tpo.Attachment, error) {
	if path == "" {
		return nil, nil
	}
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return &tpo.Attachment{Name: filepath.Base(path), Data: data}, nil
}

func newTPOJobsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage job postings",
	}

	var page, size int
	list := &cobra.Command{
		Use:   "list",
		Short: "List posted jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := tpo.NewManager(a.client)
			if err := m.ListJobs(cmd.Context(), page, size); err != nil {
				return err
			}
			type view struct {
				Jobs       []portal.PostedJob `json:"jobs"`
				Pagination portal.Pagination  `json:"pagination"`
			}
			v := view{Jobs: m.Jobs(), Pagination: m.Pagination()}
			return a.render(v, func(tw *tabwriter.Writer) {
				if len(v.Jobs) == 0 {
					row(tw, "No jobs posted yet")
					return
				}
				row(tw, "ID", "COMPANY", "ROLE", "PACKAGE", "MIN GPA", "APPLY BY", "POSTED BY")
				for _, j := range v.Jobs {
					row(tw, j.ID, j.CompanyName, j.Role, money(j.Package), j.MinGPA, j.LastDateToApply, j.CreatedBy)
				}
				row(tw)
				row(tw, fmt.Sprintf("Page %d of %d (%d jobs)", v.Pagination.Page, v.Pagination.Pages, v.Pagination.Total))
			})
		},
	}
	list.Flags().IntVar(&page, "page", 1, "Page number")
	list.Flags().IntVar(&size, "size", tpo.DefaultPageSize, "Jobs per page")

	var (
		in       tpo.JobInput
		fileFlag string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Post a new job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := attachment(fileFlag)
			if err != nil {
				return err
			}
			msg, err := tpo.NewManager(a.client).CreateJob(a.ctx(cmd.Context()), in, file)
			if err != nil {
				return err
			}
			return a.message(msg, nil)
		},
	}
	cf := create.Flags()
	cf.StringVar(&in.Role, "role", "", "Job role")
	cf.StringVar(&in.Location, "location", "", "Job location")
	cf.StringVar(&in.Description, "description", "", "Job description")
	cf.Float64Var(&in.Package, "package", 0, "Package in LPA")
	cf.StringVar(&in.InterviewDate, "interview", "", "Interview date, YYYY-MM-DD")
	cf.StringVar(&in.LastDateToApply, "apply-by", "", "Last date to apply, YYYY-MM-DD")
	cf.StringVar(&in.GenderEligibility, "gender", "all", "Gender eligibility: all, male or female")
	cf.IntVar(&in.MaxBacklogs, "max-backlogs", 0, "Maximum active backlogs")
	cf.Float64Var(&in.MinGPA, "min-gpa", 0, "Minimum GPA")
	cf.StringVar(&in.CompanyName, "company", "", "Company name")
	cf.StringVar(&in.CompanyType, "company-type", "", "Company type, e.g. Product")
	cf.StringVar(&in.Website, "website", "", "Company website")
	cf.StringVar(&in.CompanyInfo, "company-info", "", "About the company")
	cf.StringVar(&in.ContactPerson, "contact-person", "", "Company contact person")
	cf.StringVar(&in.Address, "address", "", "Company address")
	cf.StringVar(&in.ServiceAgreement, "service-agreement", "", "Service agreement terms")
	cf.StringVar(&in.RegistrationLink, "registration-link", "", "External registration link")
	cf.StringVar(&fileFlag, "file", "", "Attachment (PDF, JPEG or PNG)")

	var (
		patch      jobPatchFlags
		updateFile string
	)
	update := &cobra.Command{
		Use:   "update JOB_ID",
		Short: "Change fields of a posted job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := attachment(updateFile)
			if err != nil {
				return err
			}
			msg, err := tpo.NewManager(a.client).UpdateJob(a.ctx(cmd.Context()), portal.ID(args[0]), patch.build(cmd.Flags()), file)
			if err != nil {
				return err
			}
			return a.message(msg, map[string]any{"job_id": args[0]})
		},
	}
	patch.bind(update.Flags())
	update.Flags().StringVar(&updateFile, "file", "", "Replacement attachment (PDF, JPEG or PNG)")

	del := &cobra.Command{
		Use:   "delete JOB_ID",
		Short: "Delete a posted job and its applications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tpo.NewManager(a.client).DeleteJob(a.ctx(cmd.Context()), portal.ID(args[0])); err != nil {
				return err
			}
			return a.message("Job deleted", map[string]any{"job_id": args[0]})
		},
	}

	cmd.AddCommand(list, create, update, del)
	return cmd
}

// jobPatchFlags holds update flag values; only flags the user set end up in
// the patch.
type jobPatchFlags struct {
	role, companyID, location, description string
	serviceAgreement, registrationLink     string
	interview, applyBy, gender             string
	pkg, minGPA                            float64
	maxBacklogs                            int
}

func (p *jobPatchFlags) bind(f *pflag.FlagSet) {
	f.StringVar(&p.role, "role", "", "Job role")
	f.StringVar(&p.companyID, "company-id", "", "Move the job to another company")
	f.StringVar(&p.location, "location", "", "Job location")
	f.StringVar(&p.description, "description", "", "Job description")
	f.StringVar(&p.serviceAgreement, "service-agreement", "", "Service agreement terms")
	f.StringVar(&p.registrationLink, "registration-link", "", "External registration link")
	f.StringVar(&p.interview, "interview", "", "Interview date, YYYY-MM-DD")
	f.StringVar(&p.applyBy, "apply-by", "", "Last date to apply, YYYY-MM-DD")
	f.StringVar(&p.gender, "gender", "", "Gender eligibility: all, male or female")
	f.Float64Var(&p.pkg, "package", 0, "Package in LPA")
	f.Float64Var(&p.minGPA, "min-gpa", 0, "Minimum GPA")
	f.IntVar(&p.maxBacklogs, "max-backlogs", 0, "Maximum active backlogs")
}

func (p *jobPatchFlags) build(f *pflag.FlagSet) tpo.JobPatch {
	var out tpo.JobPatch
	str := func(name string, v string) *string {
		if !f.Changed(name) {
			return nil
		}
		return &v
	}
	out.Role = str("role", p.role)
	out.CompanyID = str("company-id", p.companyID)
	out.Location = str("location", p.location)
	out.Description = str("description", p.description)
	out.ServiceAgreement = str("service-agreement", p.serviceAgreement)
	out.RegistrationLink = str("registration-link", p.registrationLink)
	out.InterviewDate = str("interview", p.interview)
	out.LastDateToApply = str("apply-by", p.applyBy)
	out.GenderEligibility = str("gender", p.gender)
	if f.Changed("package") {
		out.Package = &p.pkg
	}
	if f.Changed("min-gpa") {
		out.MinGPA = &p.minGPA
	}
	if f.Changed("max-backlogs") {
		out.MaxBacklogs = &p.maxBacklogs
	}
	return out
}

type placementFlags struct {
	company, student, job string
	interview, joining    string
	offerURL              string
	salary                float64
}

func (p *placementFlags) bind(f *pflag.FlagSet) {
	f.StringVar(&p.company, "company", "", "Company ID")
	f.StringVar(&p.student, "student", "", "Student ID")
	f.StringVar(&p.job, "job", "", "Job ID")
	f.StringVar(&p.interview, "interview", "", "Interview date, YYYY-MM-DD")
	f.StringVar(&p.joining, "joining", "", "Joining date, YYYY-MM-DD")
	f.StringVar(&p.offerURL, "offer-url", "", "Link to the offer letter")
	f.Float64Var(&p.salary, "salary", 0, "Salary offered in LPA")
}

func (p *placementFlags) input(f *pflag.FlagSet) tpo.PlacementInput {
	in := tpo.PlacementInput{
		StudentID:      portal.ID(p.student),
		JobID:          portal.ID(p.job),
		InterviewDate:  p.interview,
		JoiningDate:    p.joining,
		OfferLetterURL: p.offerURL,
	}
	if f.Changed("salary") {
		in.SalaryOffered = &p.salary
	}
	return in
}

func newTPOPlacementsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "placements",
		Short: "Record and review placed students",
	}

	companies := &cobra.Command{
		Use:   "companies",
		Short: "List companies, or the students and jobs of one with --company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tpo.NewPlacements(a.client)
			company, _ := cmd.Flags().GetString("company")
			if company == "" {
				list, err := p.Companies(cmd.Context())
				if err != nil {
					return err
				}
				return a.render(list, func(tw *tabwriter.Writer) {
					row(tw, "ID", "COMPANY", "TYPE", "WEBSITE")
					for _, c := range list {
						row(tw, c.ID, c.Name, c.Type, c.Website)
					}
				})
			}
			if err := p.SelectCompany(cmd.Context(), portal.ID(company)); err != nil {
				return err
			}
			type view struct {
				Students []portal.CompanyStudent `json:"students"`
				Jobs     []portal.CompanyJob     `json:"jobs"`
			}
			v := view{Students: p.Students(), Jobs: p.Jobs()}
			return a.render(v, func(tw *tabwriter.Writer) {
				row(tw, "JOB ID", "ROLE")
				for _, j := range v.Jobs {
					row(tw, j.ID, j.Role)
				}
				row(tw)
				row(tw, "STUDENT ID", "NAME", "REG NO")
				for _, s := range v.Students {
					row(tw, s.ID, s.Name(), s.RegNo)
				}
			})
		},
	}
	companies.Flags().String("company", "", "Company ID to expand")

	var addFlags placementFlags
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a placement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addFlags.company == "" {
				return fmt.Errorf("%w: pass --company", tpo.ErrNoCompanySelected)
			}
			p := tpo.NewPlacements(a.client)
			ctx := a.ctx(cmd.Context())
			if err := p.SelectCompany(ctx, portal.ID(addFlags.company)); err != nil {
				return err
			}
			id, msg, err := p.CreatePlacedStudent(ctx, addFlags.input(cmd.Flags()))
			if err != nil {
				return err
			}
			return a.message(msg, map[string]any{"placement_id": id})
		},
	}
	addFlags.bind(add.Flags())

	var editFlags placementFlags
	edit := &cobra.Command{
		Use:   "edit PLACEMENT_ID",
		Short: "Change a recorded placement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tpo.NewPlacements(a.client)
			ctx := a.ctx(cmd.Context())
			id := portal.ID(args[0])
			company := portal.ID(editFlags.company)
			if company == "" {
				current, err := p.GetPlacedStudent(ctx, id)
				if err != nil {
					return err
				}
				company = current.CompanyID
			}
			if err := p.SelectCompany(ctx, company); err != nil {
				return err
			}
			msg, err := p.UpdatePlacedStudent(ctx, id, editFlags.input(cmd.Flags()))
			if err != nil {
				return err
			}
			return a.message(msg, map[string]any{"placement_id": args[0]})
		},
	}
	editFlags.bind(edit.Flags())

	show := &cobra.Command{
		Use:   "show PLACEMENT_ID",
		Short: "Show one placement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := tpo.NewPlacements(a.client).GetPlacedStudent(cmd.Context(), portal.ID(args[0]))
			if err != nil {
				return err
			}
			return a.render(ps, func(tw *tabwriter.Writer) {
				row(tw, "Student", ps.StudentName)
				row(tw, "Reg No", ps.RegNo)
				row(tw, "Company", ps.CompanyName)
				row(tw, "Role", ps.Role)
				row(tw, "Interview", ps.InterviewDate)
				row(tw, "Joining", ps.JoiningDate)
				row(tw, "Salary", money(ps.SalaryOffered))
				row(tw, "Offer letter", ps.OfferLetterURL)
				row(tw, "Willing to join", ps.Status)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete PLACEMENT_ID",
		Short: "Delete a placement record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := tpo.NewPlacements(a.client).DeletePlacedStudent(a.ctx(cmd.Context()), portal.ID(args[0]))
			if err != nil {
				return err
			}
			return a.message(msg, map[string]any{"placement_id": args[0]})
		},
	}

	var (
		page, size int
		exportPath string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List placed students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := tpo.NewPlacements(a.client).ListPlacedStudents(cmd.Context(), page, size)
			if err != nil {
				return err
			}
			if exportPath != "" {
				return a.writeWorkbook(exportPath, export.Placements(pg.Students))
			}
			type view struct {
				Placements []portal.PlacedStudent `json:"placements"`
				Pagination portal.Pagination      `json:"pagination"`
			}
			v := view{Placements: pg.Students, Pagination: pg.Pagination}
			return a.render(v, func(tw *tabwriter.Writer) {
				if len(v.Placements) == 0 {
					row(tw, "No placements recorded")
					return
				}
				row(tw, "ID", "REG NO", "STUDENT", "COMPANY", "ROLE", "SALARY", "JOINING", "WILLING")
				for _, ps := range v.Placements {
					row(tw, ps.ID, ps.RegNo, ps.StudentName, ps.CompanyName, ps.Role, money(ps.SalaryOffered), ps.JoiningDate, ps.Status)
				}
				row(tw)
				row(tw, fmt.Sprintf("Page %d of %d (%d placed)", v.Pagination.Page, v.Pagination.Pages, v.Pagination.Total))
			})
		},
	}
	list.Flags().IntVar(&page, "page", 1, "Page number")
	list.Flags().IntVar(&size, "size", tpo.DefaultPageSize, "Placements per page")
	list.Flags().StringVar(&exportPath, "export", "", "Write this page to an .xlsx file instead of printing it")

	cmd.AddCommand(companies, add, edit, show, del, list)
	return cmd
}

func newTPOAppliedCmd(a *app) *cobra.Command {
	var excel string
	cmd := &cobra.Command{
		Use:   "applied JOB_ID",
		Short: "List the students who applied to a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tpo.NewPlacements(a.client)
			id := portal.ID(args[0])
			if excel != "" {
				data, err := p.AppliedStudentsWorkbook(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.saveFile(excel, data)
			}
			list, err := p.AppliedStudents(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.render(list, func(tw *tabwriter.Writer) {
				row(tw, fmt.Sprintf("%s, %s (%d applicants)", list.Job.Role, list.Job.CompanyName, len(list.Students)))
				row(tw)
				row(tw, "ROLL NO", "NAME", "EMAIL", "BRANCH", "CGPA", "APPLIED")
				for _, s := range list.Students {
					cgpa := "-"
					if s.CGPA != nil {
						cgpa = fmt.Sprint(*s.CGPA)
					}
					row(tw, s.RollNumber, s.FullName, s.Email, s.Branch, cgpa, s.AppliedDate)
				}
			})
		},
	}
	cmd.Flags().StringVar(&excel, "excel", "", "Save the portal's spreadsheet to this path instead")
	return cmd
}
