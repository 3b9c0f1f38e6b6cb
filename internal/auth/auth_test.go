package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct horse" || !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash %q does not look like bcrypt", hash)
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Errorf("CheckPassword() with right password = %v", err)
	}
	if err := CheckPassword(hash, "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("CheckPassword() with wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("0123456789abcdef", time.Hour)
	want := Identity{UserID: 42, Username: "alice"}

	signed, expires, err := tokens.Issue(want)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if d := time.Until(expires); d < 59*time.Minute || d > time.Hour {
		t.Errorf("expiry in %v, want about 1h", d)
	}

	got, err := tokens.Parse(signed)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got != want {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens("0123456789abcdef", time.Hour)
	valid, _, _ := tokens.Issue(Identity{UserID: 1, Username: "bob"})

	expired := NewTokens("0123456789abcdef", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue(Identity{UserID: 1, Username: "bob"})

	otherSecret, _, _ := NewTokens("another-secret-value", time.Hour).Issue(Identity{UserID: 1})

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 1, "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"username": "x", "exp": time.Now().Add(time.Hour).Unix()})
	anonymous, _ := noUser.SignedString([]byte("0123456789abcdef"))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"tampered", valid + "x"},
		{"expired", old},
		{"wrong secret", otherSecret},
		{"alg none", unsigned},
		{"missing user id", anonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokens.Parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if got := OwnerFromContext(ctx); got != 0 {
		t.Errorf("OwnerFromContext() on empty context = %d, want 0", got)
	}

	ctx = WithIdentity(ctx, Identity{UserID: 9, Username: "carol"})
	if got := OwnerFromContext(ctx); got != 9 {
		t.Errorf("OwnerFromContext() = %d, want 9", got)
	}
	id, ok := FromContext(ctx)
	if !ok || id.Username != "carol" {
		t.Errorf("FromContext() = %+v, %v", id, ok)
	}
}
