package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewAccessToken_Claims(t *testing.T) {
	t.Parallel()

	at, err := NewAccessToken("sekrit", 41, "Ada", "ada@example.com", "CUSTOMER", 15)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	tok, err := jwt.Parse(at.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("sekrit"), nil
	})
	if err != nil || !tok.Valid {
		t.Fatalf("parse token: %v", err)
	}
	claims := tok.Claims.(jwt.MapClaims)
	if sub, _ := claims["sub"].(float64); uint64(sub) != 41 {
		t.Fatalf("unexpected sub claim: %v", claims["sub"])
	}
	if claims["name"] != "Ada" || claims["email"] != "ada@example.com" || claims["role"] != "CUSTOMER" {
		t.Fatalf("unexpected identity claims: %v", claims)
	}

	if _, err := jwt.Parse(at.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("wrong"), nil
	}); err == nil {
		t.Fatalf("token accepted with the wrong secret")
	}
}

func TestRefreshTokens(t *testing.T) {
	t.Parallel()

	a, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("mint refresh: %v", err)
	}
	b, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("mint refresh: %v", err)
	}
	if a.Raw == b.Raw {
		t.Fatalf("two refresh tokens collided")
	}
	if len(a.Raw) != 96 {
		t.Fatalf("unexpected raw token length %d", len(a.Raw))
	}

	if HashRefreshRaw(a.Raw) != HashRefreshRaw(a.Raw) {
		t.Fatalf("hash is not deterministic")
	}
	if HashRefreshRaw(a.Raw) == HashRefreshRaw(b.Raw) {
		t.Fatalf("distinct tokens hashed identically")
	}
}
