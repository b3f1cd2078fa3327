package auth

import (
	"testing"
	"time"
)

func TestGenerateAndValidateAdminToken(t *testing.T) {
	mgr := NewJWTManager("test-secret-key-123")
	token, err := mgr.GenerateAdminToken("operator-42")
	if err != nil {
		t.Fatalf("generate admin token: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.OperatorID != "operator-42" {
		t.Errorf("expected operator_id=operator-42, got %s", claims.OperatorID)
	}
	if claims.Subject != "operator-42" {
		t.Errorf("expected subject=operator-42, got %s", claims.Subject)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	mgr1 := NewJWTManager("secret-one")
	mgr2 := NewJWTManager("secret-two")

	token, err := mgr1.GenerateAdminToken("operator-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = mgr2.ValidateToken(token)
	if err == nil {
		t.Error("expected validation to fail with wrong secret")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	mgr := NewJWTManager("test-secret")
	_, err := mgr.ValidateToken("not-a-jwt")
	if err == nil {
		t.Error("expected error for garbage token")
	}
	_, err = mgr.ValidateToken("")
	if err == nil {
		t.Error("expected error for empty token")
	}
}

func TestExpiredToken(t *testing.T) {
	mgr := &JWTManager{
		secret:      []byte("test-secret"),
		tokenExpiry: -1 * time.Second,
	}
	token, err := mgr.GenerateAdminToken("operator-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = mgr.ValidateToken(token)
	if err == nil {
		t.Error("expected error for expired token")
	}
}

func TestDifferentOperatorsGetDifferentTokens(t *testing.T) {
	mgr := NewJWTManager("test-secret")
	t1, _ := mgr.GenerateAdminToken("alice")
	t2, _ := mgr.GenerateAdminToken("bob")
	if t1 == t2 {
		t.Error("different operators should get different tokens")
	}
}
