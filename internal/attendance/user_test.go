package attendance

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"Ada@Example.COM":    "Ada@example.com",
		"  bob@Host.Org  ":   "bob@host.org",
		"no-at-sign":         "no-at-sign",
		"a@b@C.example":      "a@b@c.example",
		"UPPER.local@domain": "UPPER.local@domain",
		"   ":                "   ",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	m := NewUserManager(newTestRepo(t))

	u, err := m.CreateUser(ctx, "Grace@NAVY.mil", "cobol", UserFields{FirstName: "Grace"})
	if err != nil {
		t.Fatal(err)
	}
	if u.ID == 0 || u.Email != "Grace@navy.mil" {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.IsStaff || u.IsSuperuser || !u.IsActive {
		t.Fatalf("unexpected flags %+v", u)
	}
	if u.Password == "cobol" || !u.CheckPassword("cobol") || u.CheckPassword("fortran") {
		t.Fatal("password not hashed correctly")
	}
	if u.String() != "Grace@navy.mil" {
		t.Fatalf("String() = %q", u.String())
	}

	if _, err := m.CreateUser(ctx, "Grace@navy.MIL", "x", UserFields{}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email err = %v", err)
	}

	var verr *ValidationError
	if _, err := m.CreateUser(ctx, "", "x", UserFields{}); !errors.As(err, &verr) || verr.Field != "email" {
		t.Fatalf("empty email err = %v", err)
	}
	if _, err := m.CreateUser(ctx, "p@x.example", "", UserFields{}); !errors.As(err, &verr) || verr.Field != "password" {
		t.Fatalf("empty password err = %v", err)
	}
	if _, err := m.CreateUser(ctx, "long@x.example", strings.Repeat("x", 73), UserFields{}); !errors.As(err, &verr) || verr.Field != "password" {
		t.Fatalf("73 byte password err = %v", err)
	}
	if _, err := m.CreateUser(ctx, "edge@x.example", strings.Repeat("x", 72), UserFields{}); err != nil {
		t.Fatalf("72 byte password err = %v", err)
	}
}

func TestCreateSuperuser(t *testing.T) {
	ctx := context.Background()
	m := NewUserManager(newTestRepo(t))

	u, err := m.CreateSuperuser(ctx, "root@uni.example", "pw", UserFields{})
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsStaff || !u.IsSuperuser || !u.IsActive {
		t.Fatalf("superuser flags %+v", u)
	}

	no := false
	var verr *ValidationError
	if _, err := m.CreateSuperuser(ctx, "a@uni.example", "pw", UserFields{IsStaff: &no}); !errors.As(err, &verr) || verr.Field != "is_staff" {
		t.Fatalf("is_staff=false err = %v", err)
	}
	if _, err := m.CreateSuperuser(ctx, "b@uni.example", "pw", UserFields{IsSuperuser: &no}); !errors.As(err, &verr) || verr.Field != "is_superuser" {
		t.Fatalf("is_superuser=false err = %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	m := NewUserManager(newTestRepo(t))

	if _, err := m.CreateUser(ctx, "ok@uni.example", "pw", UserFields{}); err != nil {
		t.Fatal(err)
	}
	no := false
	if _, err := m.CreateUser(ctx, "off@uni.example", "pw", UserFields{IsActive: &no}); err != nil {
		t.Fatal(err)
	}

	u, err := m.Authenticate(ctx, "ok@UNI.example", "pw")
	if err != nil || u.LastLogin == nil {
		t.Fatalf("Authenticate = %+v, %v", u, err)
	}
	if _, err := m.Authenticate(ctx, "ok@uni.example", "bad"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := m.Authenticate(ctx, "nobody@uni.example", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}
	if _, err := m.Authenticate(ctx, "off@uni.example", "pw"); !errors.Is(err, ErrInactiveUser) {
		t.Fatalf("inactive user err = %v", err)
	}
}
