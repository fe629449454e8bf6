package main

import (
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"placecell.org/internal/auth"
	"placecell.org/internal/authflow"
)

func kindFor(officer bool) auth.Kind {
	if officer {
		return auth.Officer
	}
	return auth.Student
}

func newRegisterCmd(a *app) *cobra.Command {
	var (
		officer bool
		otp     string
		sf      authflow.StudentForm
		of      authflow.OfficerForm
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and confirm it with the emailed OTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flow, err := authflow.New(kindFor(officer), a.client, a.store)
			if err != nil {
				return err
			}
			if sf.Email, err = a.prompt("Email: ", sf.Email); err != nil {
				return err
			}
			if sf.Password, err = a.prompt("Password: ", sf.Password); err != nil {
				return err
			}
			var form authflow.Form = sf
			if officer {
				of.Email, of.Password = sf.Email, sf.Password
				form = of
			}

			msg, err := flow.Register(ctx, form)
			if err != nil {
				return err
			}
			a.note(msg)
			code, err := a.prompt("OTP sent to "+flow.PendingEmail()+": ", otp)
			if err != nil {
				return err
			}
			p, err := flow.VerifyOTP(ctx, code)
			if err != nil {
				return err
			}
			return a.showPrincipal(p)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&officer, "officer", false, "Register a placement officer instead of a student")
	f.StringVar(&otp, "otp", "", "OTP to confirm with (prompted when empty)")
	f.StringVar(&sf.Email, "email", "", "Email address")
	f.StringVar(&sf.Password, "password", "", "Password")
	f.StringVar(&sf.FirstName, "first-name", "", "First name")
	f.StringVar(&sf.LastName, "last-name", "", "Last name")
	f.StringVar(&sf.RegNo, "reg-no", "", "Registration number")
	f.StringVar(&sf.Degree, "degree", "", "Degree, e.g. B.Tech")
	f.StringVar(&sf.Specialization, "specialization", "", "Branch or specialization")
	f.StringVar(&sf.DOB, "dob", "", "Date of birth, YYYY-MM-DD")
	f.StringVar(&sf.Gender, "gender", "", "Male, Female or Other")
	f.StringVar(&sf.CurrentGPA, "gpa", "", "Current GPA")
	f.StringVar(&sf.ContactNo, "contact", "", "Ten digit phone number")
	f.StringVar(&sf.Backlogs, "backlogs", "0", "Number of active backlogs")
	f.StringVar(&sf.Batch, "batch", "", "Batch, e.g. 2021-2025")
	f.StringSliceVar(&sf.Skills, "skill", nil, "Skill (repeatable)")
	f.StringVar(&sf.ResumeURL, "resume-url", "", "Link to resume")
	f.StringSliceVar(&sf.CertificateURLs, "certificate-url", nil, "Link to a certificate (repeatable)")
	f.StringVar(&of.Name, "name", "", "Officer name")
	f.StringVar(&of.Department, "department", "", "Officer department")
	f.StringVar(&of.Role, "role", "", "Officer role: admin or cdpc")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var (
		officer         bool
		email, password string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := authflow.New(kindFor(officer), a.client, a.store)
			if err != nil {
				return err
			}
			if email, err = a.prompt("Email: ", email); err != nil {
				return err
			}
			if password, err = a.prompt("Password: ", password); err != nil {
				return err
			}
			p, err := flow.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return a.showPrincipal(p)
		},
	}
	cmd.Flags().BoolVar(&officer, "officer", false, "Sign in as a placement officer")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when empty)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session here and on the portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.store.LoggedIn() {
				return a.message("Not signed in", nil)
			}
			if err := a.store.Logout(a.ctx(cmd.Context())); err != nil {
				return err
			}
			return a.message("Signed out", nil)
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.principal()
			if err != nil {
				return err
			}
			return a.showPrincipal(p)
		},
	}
}

func (a *app) showPrincipal(p auth.Principal) error {
	type view struct {
		auth.Principal
		ExpiresAt string `json:"expires_at,omitempty"`
	}
	v := view{Principal: p}
	if exp, ok := a.store.ExpiresAt(); ok {
		v.ExpiresAt = exp.Local().Format(time.RFC1123)
	}
	return a.render(v, func(tw *tabwriter.Writer) {
		row(tw, "Name", p.Name)
		row(tw, "Email", p.Email)
		row(tw, "Role", p.Role)
		if p.RegNo != "" {
			row(tw, "Reg No", p.RegNo)
		}
		if p.Department != "" {
			row(tw, "Department", p.Department)
		}
		if v.ExpiresAt != "" {
			row(tw, "Session expires", v.ExpiresAt)
		}
	})
}
