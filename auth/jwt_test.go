package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssuedTokenValidates(t *testing.T) {
	svc := NewJWTService("s3cret")
	token, err := svc.IssueToken("u1", "u1@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "u1@example.com" || claims.Issuer != tokenIssuer {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewJWTService("s3cret")

	expired, _ := svc.IssueToken("u1", "u1@example.com", -time.Minute)
	forged, _ := NewJWTService("other").IssueToken("u1", "u1@example.com", time.Hour)
	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))

	tests := map[string]string{
		"expired":      expired,
		"wrong secret": forged,
		"wrong issuer": foreign,
		"not a token":  "abc.def.ghi",
		"empty":        "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.ValidateToken(token); err == nil {
				t.Fatal("expected token to be rejected")
			}
		})
	}
}
