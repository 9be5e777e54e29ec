package attendance

import (
	"context"
	"testing"
	"time"
)

func TestTokenExpiry(t *testing.T) {
	clock := useClock(t, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	repo := newTestRepo(t)

	tok := &AccessToken{}
	if err := repo.SaveAccessToken(context.Background(), tok); err != nil {
		t.Fatal(err)
	}
	if tok.ValidTime != DefaultValidTime || len(tok.Token) == 0 {
		t.Fatalf("unexpected token %+v", tok)
	}
	if tok.IsTokenExpired(0) {
		t.Fatal("fresh token reported expired")
	}

	clock.advance(89 * time.Minute)
	if tok.IsTokenExpired(0) {
		t.Fatal("token expired before valid_time elapsed")
	}
	if !tok.IsTokenExpired(30) {
		t.Fatal("custom valid time ignored")
	}

	clock.advance(time.Minute)
	if !tok.IsTokenExpired(0) {
		t.Fatal("token still valid after valid_time minutes")
	}
	if want := time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC); !tok.ExpiresAt(0).Equal(want) {
		t.Fatalf("ExpiresAt = %s, want %s", tok.ExpiresAt(0), want)
	}
}

func TestTokenValid(t *testing.T) {
	tok := &AccessToken{Token: "abc123"}
	if !tok.IsTokenValid("abc123") {
		t.Fatal("exact match rejected")
	}
	for _, given := range []string{"", "abc12", "abc1234", "ABC123"} {
		if tok.IsTokenValid(given) {
			t.Fatalf("IsTokenValid(%q) = true", given)
		}
	}
	var missing *AccessToken
	if missing.IsTokenValid("") {
		t.Fatal("nil token accepted")
	}
}

func TestSecondSaveKeepsToken(t *testing.T) {
	clock := useClock(t, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	repo := newTestRepo(t)
	ctx := context.Background()

	tok := &AccessToken{ValidTime: 15}
	if err := repo.SaveAccessToken(ctx, tok); err != nil {
		t.Fatal(err)
	}
	first, created := tok.Token, tok.Created

	clock.advance(time.Hour)
	tok.ValidTime = 20
	if err := repo.SaveAccessToken(ctx, tok); err != nil {
		t.Fatal(err)
	}
	var stored AccessToken
	if err := repo.db.First(&stored, tok.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Token != first || !stored.Created.Equal(created) {
		t.Fatalf("second save changed token: %q/%s -> %q/%s", first, created, stored.Token, stored.Created)
	}
	if stored.ValidTime != 20 {
		t.Fatalf("valid_time = %d, want 20", stored.ValidTime)
	}
}

func TestGenerateTokenIsURLSafe(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		tok, err := GenerateToken()
		if err != nil {
			t.Fatal(err)
		}
		if len(tok) != 14 {
			t.Fatalf("token %q has length %d", tok, len(tok))
		}
		for _, r := range tok {
			ok := r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			if !ok {
				t.Fatalf("token %q contains %q", tok, r)
			}
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}
