package attendance

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DefaultValidTime is how many minutes a fresh access token stays valid.
const DefaultValidTime = 90

// tokenBytes of randomness encode to a 14 character URL-safe token.
const tokenBytes = 10

// now is the clock used for token stamps and expiry checks.
var now = time.Now

// GenerateToken returns a random URL-safe token string.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// AccessToken is a short-lived secret gating enrollment into a course
// session. ValidTime is in minutes.
type AccessToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Token     string    `gorm:"size:20;not null" json:"token"`
	Created   time.Time `gorm:"not null" json:"created"`
	ValidTime int       `gorm:"not null" json:"valid_time"`
}

// BeforeCreate stamps the token and creation time on first insert. Rows that
// already carry a primary key keep their values.
func (t *AccessToken) BeforeCreate(*gorm.DB) error {
	if t.ID != 0 {
		return nil
	}
	tok, err := GenerateToken()
	if err != nil {
		return err
	}
	t.Token = tok
	t.Created = now().UTC()
	if t.ValidTime <= 0 {
		t.ValidTime = DefaultValidTime
	}
	return nil
}

// IsTokenValid reports whether given equals the stored token.
func (t *AccessToken) IsTokenValid(given string) bool {
	if t == nil || t.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(t.Token), []byte(given)) == 1
}

// ExpiresAt is the instant the token stops being valid. A positive
// customValidTime (minutes) replaces the stored window.
func (t *AccessToken) ExpiresAt(customValidTime int) time.Time {
	minutes := t.ValidTime
	if customValidTime > 0 {
		minutes = customValidTime
	}
	return t.Created.Add(time.Duration(minutes) * time.Minute)
}

// IsTokenExpired reports whether the current time is at or past ExpiresAt.
func (t *AccessToken) IsTokenExpired(customValidTime int) bool {
	return t.IsTokenExpiredAt(now(), customValidTime)
}

// IsTokenExpiredAt is IsTokenExpired against an explicit instant.
func (t *AccessToken) IsTokenExpiredAt(at time.Time, customValidTime int) bool {
	return !at.Before(t.ExpiresAt(customValidTime))
}

func (t AccessToken) String() string {
	return fmt.Sprintf("created: %s, valid for %d", t.Created.Format(time.RFC3339), t.ValidTime)
}
