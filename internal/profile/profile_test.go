package profile_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"placecell.org/internal/apiclient"
	"placecell.org/internal/portalmock"
	"placecell.org/internal/profile"
)

type tokenBox struct{ v atomic.Value }

func (b *tokenBox) Token() string {
	s, _ := b.v.Load().(string)
	return s
}

func signIn(t *testing.T, loginPath, email, password string) *apiclient.Client {
	t.Helper()
	srv, err := portalmock.New("profile-test-secret")
	if err != nil {
		t.Fatalf("portalmock.New: %v", err)
	}
	if err := srv.SeedDemo(); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	box := &tokenBox{}
	client, err := apiclient.New(ts.URL, apiclient.WithTokenSource(box))
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	var resp struct {
		Token string `json:"access_token"`
	}
	if err := client.PostJSON(context.Background(), loginPath, map[string]string{"email": email, "password": password}, &resp); err != nil {
		t.Fatalf("login: %v", err)
	}
	box.v.Store(resp.Token)
	return client
}

func TestStudentProfileUpdate(t *testing.T) {
	ctx := context.Background()
	client := signIn(t, "/auth/login", portalmock.DemoStudentEmail, portalmock.DemoStudentPassword)

	p, err := profile.Student(ctx, client)
	if err != nil {
		t.Fatalf("Student: %v", err)
	}
	if p.Name() != "Asha Rao" || p.RegNo != "21331A0501" {
		t.Fatalf("profile=%+v", p)
	}

	contact := "9000000001"
	gpa := 8.9
	updated, msg, err := profile.UpdateStudent(ctx, client, profile.StudentPatch{
		ContactNo:  &contact,
		CurrentGPA: &gpa,
		Skills:     []string{"Go", " SQL "},
	})
	if err != nil {
		t.Fatalf("UpdateStudent: %v", err)
	}
	if msg != "Profile updated successfully" {
		t.Fatalf("message=%q", msg)
	}
	if updated.ContactNo != contact || updated.CurrentGPA != gpa || len(updated.Skills) != 2 || updated.Skills[1] != "SQL" {
		t.Fatalf("updated=%+v", updated)
	}
	if updated.Email != p.Email || updated.RegNo != p.RegNo {
		t.Fatalf("fixed fields changed: %+v", updated)
	}
}

func TestStudentPatchValidation(t *testing.T) {
	ctx := context.Background()
	client := signIn(t, "/auth/login", portalmock.DemoStudentEmail, portalmock.DemoStudentPassword)

	if _, _, err := profile.UpdateStudent(ctx, client, profile.StudentPatch{}); !errors.Is(err, profile.ErrNothingToUpdate) {
		t.Fatalf("empty patch err=%v", err)
	}

	bad := "12345"
	dob := "05/04/2003"
	gpa := 11.0
	_, _, err := profile.UpdateStudent(ctx, client, profile.StudentPatch{
		ContactNo:  &bad,
		DOB:        &dob,
		CurrentGPA: &gpa,
		Resume:     &profile.Document{Name: "cv.pdf", Data: []byte("not a pdf")},
	})
	var verr *profile.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"contact_no", "dob", "current_gpa", "resume_url"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("missing %s in %v", field, verr.Fields)
		}
	}
}

func TestOfficerProfileUpdate(t *testing.T) {
	ctx := context.Background()
	client := signIn(t, "/auth/tpo/login", portalmock.DemoOfficerEmail, portalmock.DemoOfficerPassword)

	p, err := profile.Officer(ctx, client)
	if err != nil {
		t.Fatalf("Officer: %v", err)
	}
	if p.Name != "Meera Iyer" || p.Role != "admin" {
		t.Fatalf("profile=%+v", p)
	}

	dept := "Career Development"
	updated, _, err := profile.UpdateOfficer(ctx, client, profile.OfficerPatch{Department: &dept})
	if err != nil {
		t.Fatalf("UpdateOfficer: %v", err)
	}
	if updated.Department != dept || updated.Name != "Meera Iyer" {
		t.Fatalf("updated=%+v", updated)
	}

	empty := "  "
	var verr *profile.ValidationError
	if _, _, err := profile.UpdateOfficer(ctx, client, profile.OfficerPatch{Name: &empty}); !errors.As(err, &verr) {
		t.Fatalf("blank name err=%v", err)
	}
}
