package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func init() {
	SetJWTSecret("test-secret-key-for-testing")
}

func TestGenerateAndParseToken(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateToken(userID, "owner@example.com", "admin", 24)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != userID || claims.Email != "owner@example.com" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Issuer != "agencyhub" {
		t.Errorf("Issuer = %q, expected agencyhub", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("token should carry a jti")
	}

	diff := claims.ExpiresAt.Time.Sub(time.Now().Add(24 * time.Hour))
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry is off by %v", diff)
	}
}

func signed(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestParseToken_Rejects(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Issuer:    "agencyhub",
		Subject:   id.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	withReg := func(mod func(*jwt.RegisteredClaims)) Claims {
		reg := valid
		mod(&reg)
		return Claims{UserID: id, Role: "client", RegisteredClaims: reg}
	}
	expired, _ := GenerateToken(id, "user@example.com", "client", -1)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", expired},
		{"unsigned", signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, withReg(func(*jwt.RegisteredClaims) {}))},
		{"other hmac", signed(t, jwt.SigningMethodHS512, []byte("test-secret-key-for-testing"), withReg(func(*jwt.RegisteredClaims) {}))},
		{"wrong secret", signed(t, jwt.SigningMethodHS256, []byte("another-secret"), withReg(func(*jwt.RegisteredClaims) {}))},
		{"foreign issuer", signed(t, jwt.SigningMethodHS256, []byte("test-secret-key-for-testing"), withReg(func(r *jwt.RegisteredClaims) { r.Issuer = "someone-else" }))},
		{"no expiry", signed(t, jwt.SigningMethodHS256, []byte("test-secret-key-for-testing"), withReg(func(r *jwt.RegisteredClaims) { r.ExpiresAt = nil }))},
		{"subject mismatch", signed(t, jwt.SigningMethodHS256, []byte("test-secret-key-for-testing"), withReg(func(r *jwt.RegisteredClaims) { r.Subject = uuid.NewString() }))},
		{"nil user", signed(t, jwt.SigningMethodHS256, []byte("test-secret-key-for-testing"), Claims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "agencyhub",
			Subject:   uuid.Nil.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token); err == nil {
				t.Errorf("ParseToken(%s) should fail", tt.name)
			}
		})
	}
}

func TestParseToken_ClockSkew(t *testing.T) {
	id := uuid.New()
	token := signed(t, jwt.SigningMethodHS256, []byte("test-secret-key-for-testing"), Claims{
		UserID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "agencyhub",
			Subject:   id.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-10 * time.Second)),
		},
	})
	if _, err := ParseToken(token); err != nil {
		t.Errorf("token expired within the leeway should parse, got %v", err)
	}
}

func TestSetJWTSecret(t *testing.T) {
	defer SetJWTSecret("test-secret-key-for-testing")

	SetJWTSecret("rotated")
	token, _ := GenerateToken(uuid.New(), "user@example.com", "admin", 1)

	SetJWTSecret("test-secret-key-for-testing")
	if _, err := ParseToken(token); err == nil {
		t.Error("token signed before rotation should not verify")
	}
}
