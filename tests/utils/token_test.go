package testutil

import (
	"testing"
	"time"

	"taskboard/auth"
)

func TestTestTokenVerifiesWithSharedSecret(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "s3cret")
	tok, err := TestTokenWithOptions("user-7", TokenOptions{Name: "Ada", Email: "ada@example.com", Audience: "taskboard"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	a := auth.NewHS256([]byte("s3cret"), "taskboard", "")
	id, err := a.IdentityFromToken(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Subject != "user-7" || id.Name != "Ada" || id.Email != "ada@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestTestTokenDefaultsSecret(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "")
	tok, err := TestToken("user-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.NewHS256([]byte(DefaultSecret), "", "").UserIDFromToken(tok); err != nil {
		t.Fatalf("verify with default secret: %v", err)
	}
	if _, err := auth.NewHS256([]byte("other"), "", "").UserIDFromToken(tok); err == nil {
		t.Fatalf("expected verification with another secret to fail")
	}
}

func TestTestTokenRequiresUser(t *testing.T) {
	if _, err := TestTokenWithOptions("", TokenOptions{TTL: time.Minute}); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}
