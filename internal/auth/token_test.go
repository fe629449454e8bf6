package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSignerRoundTrip(t *testing.T) {
	s, err := NewSigner("test-secret")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	token, err := s.Issue("42", RoleCDPC, "tpo@college.edu", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "42" || claims.Role != "cdpc" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	exp, ok := TokenExpiry(token)
	if !ok {
		t.Fatal("expected expiry to be readable")
	}
	if d := time.Until(exp); d < 59*time.Minute || d > time.Hour+time.Minute {
		t.Fatalf("unexpected expiry distance %v", d)
	}
}

func TestSignerRejects(t *testing.T) {
	if _, err := NewSigner(" "); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}

	s, _ := NewSigner("one")
	other, _ := NewSigner("two")
	token, err := other.Issue("1", RoleStudent, "", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := s.Issue("1", RoleStudent, "", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	s.now = time.Now
	if _, err := s.Verify(expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
	if _, ok := TokenExpiry("garbage"); ok {
		t.Fatal("expected garbage token to have no expiry")
	}
}

func TestUserRecordPrincipal(t *testing.T) {
	cases := []struct {
		name     string
		kind     Kind
		record   UserRecord
		wantRole Role
		wantName string
		wantErr  error
	}{
		{
			name:     "student ignores server role",
			kind:     Student,
			record:   UserRecord{ID: "7", Email: "s@x.in", StudentName: "Asha", Role: "admin"},
			wantRole: RoleStudent,
			wantName: "Asha",
		},
		{
			name:     "officer keeps cdpc",
			kind:     Officer,
			record:   UserRecord{ID: "3", TPOName: "Ravi", Role: "cdpc"},
			wantRole: RoleCDPC,
			wantName: "Ravi",
		},
		{
			name:     "officer defaults to admin",
			kind:     Officer,
			record:   UserRecord{ID: "3", FirstName: "Ravi", LastName: "K"},
			wantRole: RoleAdmin,
			wantName: "Ravi K",
		},
		{
			name:    "missing id",
			kind:    Student,
			record:  UserRecord{Email: "s@x.in"},
			wantErr: ErrInvalidPrincipal,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := tc.record.Principal(tc.kind)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Principal: %v", err)
			}
			if p.Role != tc.wantRole || p.Name != tc.wantName {
				t.Fatalf("got role=%q name=%q", p.Role, p.Name)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	for role, want := range map[Role]string{RoleStudent: "student", RoleAdmin: "officer", RoleCDPC: "officer"} {
		k, err := KindOf(role)
		if err != nil || k.Name != want {
			t.Fatalf("KindOf(%q)=%q,%v", role, k.Name, err)
		}
	}
	if _, err := KindOf("guest"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := ContextWithPrincipal(context.Background(), Principal{ID: "9", Role: RoleStudent})
	id, ok := UserIDFromContext(ctx)
	if !ok || id != "9" {
		t.Fatalf("UserIDFromContext=%q,%v", id, ok)
	}
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("expected empty context to have no principal")
	}
}
