package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an account identified by its email address.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Email       string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password    string     `gorm:"size:128;not null" json:"-"`
	FirstName   string     `gorm:"size:150;not null" json:"first_name"`
	LastName    string     `gorm:"size:150;not null" json:"last_name"`
	IsStudent   bool       `gorm:"not null" json:"is_student"`
	IsTeacher   bool       `gorm:"not null" json:"is_teacher"`
	IsStaff     bool       `gorm:"not null" json:"is_staff"`
	IsSuperuser bool       `gorm:"not null" json:"is_superuser"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	DateJoined  time.Time  `gorm:"not null" json:"date_joined"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

func (u User) String() string { return u.Email }

// SetPassword stores a bcrypt hash of raw.
func (u *User) SetPassword(raw string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// CheckPassword reports whether raw matches the stored hash.
func (u *User) CheckPassword(raw string) bool {
	if u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(raw)) == nil
}

// NormalizeEmail lower-cases the domain part of an address. Strings without
// an "@" are returned unchanged.
func NormalizeEmail(email string) string {
	trimmed := strings.TrimSpace(email)
	at := strings.LastIndex(trimmed, "@")
	if at < 0 {
		return email
	}
	return trimmed[:at] + "@" + strings.ToLower(trimmed[at+1:])
}

// UserFields are the optional attributes accepted when creating a user.
// Nil flags take the manager's defaults.
type UserFields struct {
	FirstName   string
	LastName    string
	IsStudent   bool
	IsTeacher   bool
	IsStaff     *bool
	IsSuperuser *bool
	IsActive    *bool
}

type credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// UserManager creates and authenticates users.
type UserManager struct {
	repo *Repository
}

// NewUserManager creates a manager backed by repo.
func NewUserManager(repo *Repository) *UserManager {
	return &UserManager{repo: repo}
}

// buildUser validates and assembles a user without persisting it.
func buildUser(email, password string, extra UserFields) (*User, error) {
	if err := validateStruct(credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}
	if len(password) > maxPasswordBytes {
		return nil, invalid("password", "must be at most %d bytes", maxPasswordBytes)
	}
	u := &User{
		Email:       NormalizeEmail(email),
		FirstName:   extra.FirstName,
		LastName:    extra.LastName,
		IsStudent:   extra.IsStudent,
		IsTeacher:   extra.IsTeacher,
		IsStaff:     boolOr(extra.IsStaff, false),
		IsSuperuser: boolOr(extra.IsSuperuser, false),
		IsActive:    boolOr(extra.IsActive, true),
		DateJoined:  now().UTC(),
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser creates and saves a user with the given email and password.
func (m *UserManager) CreateUser(ctx context.Context, email, password string, extra UserFields) (*User, error) {
	u, err := buildUser(email, password, extra)
	if err != nil {
		return nil, err
	}
	if err := m.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateSuperuser creates a user with staff, superuser and active flags set.
// Explicitly asking for either privilege flag to be false is rejected.
func (m *UserManager) CreateSuperuser(ctx context.Context, email, password string, extra UserFields) (*User, error) {
	yes := true
	if extra.IsStaff == nil {
		extra.IsStaff = &yes
	}
	if extra.IsSuperuser == nil {
		extra.IsSuperuser = &yes
	}
	if extra.IsActive == nil {
		extra.IsActive = &yes
	}
	if !*extra.IsStaff {
		return nil, invalid("is_staff", "superuser must have is_staff=true")
	}
	if !*extra.IsSuperuser {
		return nil, invalid("is_superuser", "superuser must have is_superuser=true")
	}
	return m.CreateUser(ctx, email, password, extra)
}

// Authenticate returns the active user matching the credentials and stamps
// its last login time.
func (m *UserManager) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := m.repo.UserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}
	at := now().UTC()
	if err := m.repo.TouchLastLogin(ctx, u.ID, at); err != nil {
		return nil, err
	}
	u.LastLogin = &at
	return u, nil
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}
