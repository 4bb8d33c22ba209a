package auth

import (
	"testing"
	"time"
)

func TestGenerateValidate(t *testing.T) {
	j := NewJWT("secret", time.Minute)
	tok, err := j.Generate(User{ID: "7", TenantID: "t1", Role: "viewer", Department: "sales"}, "s1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := j.Validate(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "7" || claims.GetTenantID() != "t1" || claims.Department != "sales" || claims.SessionID != "s1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestValidateRejects(t *testing.T) {
	tok, _ := NewJWT("other", time.Minute).Generate(User{ID: "1"}, "")
	if _, err := NewJWT("secret", time.Minute).Validate(tok); err == nil {
		t.Fatalf("token signed with another secret accepted")
	}
	expired, _ := NewJWT("secret", -time.Minute).Generate(User{ID: "1"}, "")
	if _, err := NewJWT("secret", time.Minute).Validate(expired); err == nil {
		t.Fatalf("expired token accepted")
	}
}
