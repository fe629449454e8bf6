package main

import (
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"placecell.org/internal/portal"
	"placecell.org/internal/profile"
)

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your portal profile",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.principal()
			if err != nil {
				return err
			}
			if p.IsOfficer() {
				op, err := profile.Officer(cmd.Context(), a.client)
				if err != nil {
					return err
				}
				return a.showOfficerProfile(op)
			}
			sp, err := profile.Student(cmd.Context(), a.client)
			if err != nil {
				return err
			}
			return a.showStudentProfile(sp)
		},
	}

	var (
		first, last, contact, dob, gender string
		spec, degree, batch, resume       string
		name, department                  string
		skills                            []string
		gpa                               float64
		backlogs                          int
	)
	update := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields; only the flags you pass are sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.principal()
			if err != nil {
				return err
			}
			f := cmd.Flags()
			set := func(flag string, v *string) *string {
				if !f.Changed(flag) {
					return nil
				}
				return v
			}
			ctx := a.ctx(cmd.Context())
			if p.IsOfficer() {
				op, msg, err := profile.UpdateOfficer(ctx, a.client, profile.OfficerPatch{
					Name:       set("name", &name),
					Department: set("department", &department),
				})
				if err != nil {
					return err
				}
				a.note(msg)
				return a.showOfficerProfile(op)
			}
			patch := profile.StudentPatch{
				FirstName:      set("first-name", &first),
				LastName:       set("last-name", &last),
				ContactNo:      set("contact", &contact),
				DOB:            set("dob", &dob),
				Gender:         set("gender", &gender),
				Specialization: set("specialization", &spec),
				Degree:         set("degree", &degree),
				Batch:          set("batch", &batch),
			}
			if f.Changed("skill") {
				patch.Skills = skills
			}
			if f.Changed("gpa") {
				patch.CurrentGPA = &gpa
			}
			if f.Changed("backlogs") {
				patch.Backlogs = &backlogs
			}
			if resume != "" {
				data, err := readFile(resume)
				if err != nil {
					return err
				}
				patch.Resume = &profile.Document{Name: filepath.Base(resume), Data: data}
			}
			sp, msg, err := profile.UpdateStudent(ctx, a.client, patch)
			if err != nil {
				return err
			}
			a.note(msg)
			return a.showStudentProfile(sp)
		},
	}
	f := update.Flags()
	f.StringVar(&first, "first-name", "", "First name")
	f.StringVar(&last, "last-name", "", "Last name")
	f.StringVar(&contact, "contact", "", "Ten digit phone number")
	f.StringVar(&dob, "dob", "", "Date of birth, YYYY-MM-DD")
	f.StringVar(&gender, "gender", "", "Male, Female or Other")
	f.StringVar(&spec, "specialization", "", "Branch or specialization")
	f.StringVar(&degree, "degree", "", "Degree")
	f.StringVar(&batch, "batch", "", "Batch, e.g. 2021-2025")
	f.StringSliceVar(&skills, "skill", nil, "Skill (repeatable; replaces the list)")
	f.Float64Var(&gpa, "gpa", 0, "Current GPA")
	f.IntVar(&backlogs, "backlogs", 0, "Active backlogs")
	f.StringVar(&resume, "resume", "", "Resume to upload (PDF)")
	f.StringVar(&name, "name", "", "Officer name")
	f.StringVar(&department, "department", "", "Officer department")

	cmd.AddCommand(show, update)
	return cmd
}

func (a *app) showStudentProfile(p portal.StudentProfile) error {
	return a.render(p, func(tw *tabwriter.Writer) {
		row(tw, "Name", p.Name())
		row(tw, "Email", p.Email)
		row(tw, "Reg No", p.RegNo)
		row(tw, "Degree", strings.TrimSpace(p.Degree+" "+p.Specialization))
		row(tw, "Batch", p.Batch)
		row(tw, "GPA", p.CurrentGPA)
		row(tw, "Backlogs", p.Backlogs)
		row(tw, "Contact", p.ContactNo)
		if len(p.Skills) > 0 {
			row(tw, "Skills", strings.Join(p.Skills, ", "))
		}
		if p.ResumeURL != "" {
			row(tw, "Resume", p.ResumeURL)
		}
	})
}

func (a *app) showOfficerProfile(p portal.OfficerProfile) error {
	return a.render(p, func(tw *tabwriter.Writer) {
		row(tw, "Name", p.Name)
		row(tw, "Email", p.Email)
		row(tw, "Department", p.Department)
		row(tw, "Role", p.Role)
	})
}
