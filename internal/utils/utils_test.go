package utils

import (
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Old Dhaka Food Walk":       "old-dhaka-food-walk",
		"  Sundarbans -- 3 Days!! ": "sundarbans-3-days",
		"Café Crème Tour":           "cafe-creme-tour",
		"???":                       "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "ana@example.com", "TOURIST", 5)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(tok.Exp) <= 0 {
		t.Fatal("token already expired")
	}
	id, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.UserID != 42 || id.Email != "ana@example.com" || id.Role != "TOURIST" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if _, err := ParseAccessToken("other", tok.Token); err != ErrInvalidToken {
		t.Fatalf("wrong secret: want ErrInvalidToken, got %v", err)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "", "GUIDE", -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken("s3cret", tok.Token); err != ErrInvalidToken {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestPasswordAndRefreshHash(t *testing.T) {
	h, err := HashPassword("pa55word", 4)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(h, "pa55word") || VerifyPassword(h, "nope") {
		t.Fatal("bcrypt verification mismatch")
	}
	rt, err := NewRefreshToken(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rt.Raw) != 96 || len(HashRefreshRaw(rt.Raw)) != 64 {
		t.Fatalf("unexpected sizes raw=%d", len(rt.Raw))
	}
}

func TestHashPasswordRules(t *testing.T) {
	if _, err := HashPassword("short", 4); err != ErrWeakPassword {
		t.Fatalf("want ErrWeakPassword, got %v", err)
	}
	h, err := HashPassword("long enough", 99)
	if err != nil || !VerifyPassword(h, "long enough") {
		t.Fatalf("out-of-range cost must fall back to the default: %v", err)
	}
}
