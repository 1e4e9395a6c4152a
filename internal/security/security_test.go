package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var fastParams = Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPasswordWithParams("Sup3r$ecret", fastParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(string(hash), "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding %q", hash)
	}

	ok, err := VerifyPassword("Sup3r$ecret", hash)
	if err != nil || !ok {
		t.Fatalf("VerifyPassword(correct) = %v, %v", ok, err)
	}
	ok, err = VerifyPassword("wrong", hash)
	if err != nil || ok {
		t.Fatalf("VerifyPassword(wrong) = %v, %v", ok, err)
	}
}

func TestVerifyPasswordMalformed(t *testing.T) {
	for _, in := range []string{"", "plain", "$bcrypt$v=19$m=1,t=1,p=1$a$b", "$argon2id$v=1$m=1,t=1,p=1$a$b"} {
		if _, err := VerifyPassword("x", []byte(in)); !errors.Is(err, ErrMalformedHash) {
			t.Errorf("VerifyPassword(%q) err = %v, want ErrMalformedHash", in, err)
		}
	}
}

func TestCheckPasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		want     error
	}{
		{"Ab1!", ErrPasswordTooShort},
		{"abcdefg1!", ErrPasswordNoUpper},
		{"Abcdefgh!", ErrPasswordNoDigit},
		{"Abcdefgh1", ErrPasswordNoSymbol},
		{"Abcdefg1!", nil},
		{"Ünïcode9#", nil},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			if got := CheckPasswordStrength(tt.password); !errors.Is(got, tt.want) {
				t.Fatalf("CheckPasswordStrength(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestAccessToken(t *testing.T) {
	token, err := GenerateAccessToken("secret", "u1", "s1", "admin", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseAccessToken(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u1" || claims.SessionID != "s1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := ParseAccessToken(token, "other"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret err = %v", err)
	}

	expired, _ := GenerateAccessToken("secret", "u1", "s1", "user", -time.Minute)
	if _, err := ParseAccessToken(expired, "secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token err = %v", err)
	}
}

func TestOpaqueToken(t *testing.T) {
	a, hashA, err := NewOpaqueToken(32)
	if err != nil {
		t.Fatal(err)
	}
	b, _, _ := NewOpaqueToken(32)
	if a == b {
		t.Fatal("tokens repeat")
	}
	if string(HashToken(a)) != string(hashA) {
		t.Fatal("hash mismatch")
	}
}

func TestCSRF(t *testing.T) {
	digest := CSRFDigest("k", "s1", "tok")
	if !CheckCSRF("k", "s1", "tok", digest) {
		t.Fatal("valid token rejected")
	}
	if CheckCSRF("k", "s2", "tok", digest) {
		t.Fatal("token accepted for another session")
	}
	if CheckCSRF("k", "s1", "", digest) || CheckCSRF("k", "s1", "tok", "") {
		t.Fatal("empty values accepted")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in    string
		leak  string
		keeps string
	}{
		{"login failed password=hunter2 user=bob", "hunter2", "user=bob"},
		{"refresh_token: abc.def", "abc.def", "refresh_token"},
		{"Authorization: Bearer eyJhbGciOi.x.y", "eyJhbGciOi", "Bearer"},
		{"lookup email=bob@example.com", "bob@example.com", "lookup"},
		{"dial postgres://app:s3cret@db:5432/app", "s3cret", "db:5432"},
	}
	for _, tt := range tests {
		got := Sanitize(tt.in)
		if strings.Contains(got, tt.leak) {
			t.Errorf("Sanitize(%q) = %q leaks %q", tt.in, got, tt.leak)
		}
		if !strings.Contains(got, tt.keeps) {
			t.Errorf("Sanitize(%q) = %q lost %q", tt.in, got, tt.keeps)
		}
	}
}
