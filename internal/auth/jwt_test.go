package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"
)

func testManager(t *testing.T, issuer string) *JWTManager {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewJWTManagerFromKeys(key, &key.PublicKey, issuer)
}

func TestIssueAndVerify(t *testing.T) {
	m := testManager(t, "crimemap")

	tok, exp, err := m.IssueToken("loader", []string{RoleImporter}, time.Hour)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Errorf("Unexpected expiry %v", exp)
	}

	claims, err := m.VerifyToken(tok)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if claims["sub"] != "loader" || !HasRole(claims, RoleImporter) || HasRole(claims, "admin") {
		t.Errorf("Unexpected claims %v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	m := testManager(t, "crimemap")
	other := testManager(t, "crimemap")
	foreign := testManager(t, "someone-else")

	expired, _, _ := m.IssueToken("loader", nil, -time.Minute)
	if _, err := m.VerifyToken(expired); err == nil {
		t.Error("Expected expired token to fail")
	}

	forged, _, _ := other.IssueToken("loader", nil, time.Hour)
	if _, err := m.VerifyToken(forged); err == nil {
		t.Error("Expected token from another key to fail")
	}

	wrongIssuer, _, _ := foreign.IssueToken("loader", nil, time.Hour)
	if _, err := foreign.VerifyToken(wrongIssuer); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	mixed := NewJWTManagerFromKeys(nil, foreign.publicKey, "crimemap")
	if _, err := mixed.VerifyToken(wrongIssuer); err == nil {
		t.Error("Expected token from another issuer to fail")
	}
}

func TestVerifyOnlyManagerCannotSign(t *testing.T) {
	m := testManager(t, "crimemap")
	verifier := NewJWTManagerFromKeys(nil, m.publicKey, "crimemap")
	if _, _, err := verifier.IssueToken("x", nil, time.Hour); !errors.Is(err, ErrNoSigningKey) {
		t.Errorf("Expected ErrNoSigningKey, got %v", err)
	}
}
