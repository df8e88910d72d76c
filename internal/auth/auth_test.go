package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sirosfoundation/go-iso20022/internal/config"
)

// testIssuer serves a JWKS with one key and signs RS256 tokens.
type testIssuer struct {
	key     *rsa.PrivateKey
	kid     string
	server  *httptest.Server
	fetches atomic.Int32
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	iss := &testIssuer{key: key, kid: "key-1"}
	iss.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		iss.fetches.Add(1)
		json.NewEncoder(w).Encode(JWKS{Keys: []JWK{{
			Kid: iss.kid,
			Kty: "RSA",
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	t.Cleanup(iss.server.Close)
	return iss
}

func (iss *testIssuer) sign(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims(claims))
	token.Header["kid"] = iss.kid
	signed, err := token.SignedString(iss.key)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return signed
}

func (iss *testIssuer) config() *config.OAuth2Config {
	return &config.OAuth2Config{
		Issuer:   "https://auth.example.com",
		Audience: "iso20022-sim",
		JWKSUrl:  iss.server.URL,
		Scope:    "messages:write",
	}
}

func validClaims() map[string]interface{} {
	return map[string]interface{}{
		"iss":   "https://auth.example.com",
		"sub":   "bank-a",
		"aud":   "iso20022-sim",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"scope": "messages:read messages:write",
	}
}

func TestAuthenticator_ValidateToken(t *testing.T) {
	iss := newTestIssuer(t)
	a := NewAuthenticator(iss.config(), nil)

	if !a.IsEnabled() {
		t.Fatal("expected auth to be enabled")
	}

	claims, err := a.ValidateToken(context.Background(), iss.sign(t, validClaims()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "bank-a" {
		t.Errorf("expected subject bank-a, got %q", claims.Subject)
	}

	// keys are cached
	if _, err := a.ValidateToken(context.Background(), iss.sign(t, validClaims())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := iss.fetches.Load(); n != 1 {
		t.Errorf("expected 1 JWKS fetch, got %d", n)
	}
}

func TestAuthenticator_ClaimErrors(t *testing.T) {
	iss := newTestIssuer(t)
	a := NewAuthenticator(iss.config(), nil)

	tests := []struct {
		name   string
		modify func(map[string]interface{})
		want   error
	}{
		{"expired", func(c map[string]interface{}) { c["exp"] = time.Now().Add(-time.Minute).Unix() }, ErrTokenExpired},
		{"not yet valid", func(c map[string]interface{}) { c["nbf"] = time.Now().Add(time.Hour).Unix() }, ErrTokenNotYetValid},
		{"issuer", func(c map[string]interface{}) { c["iss"] = "https://evil.example.com" }, ErrInvalidIssuer},
		{"audience", func(c map[string]interface{}) { c["aud"] = []string{"other"} }, ErrInvalidAudience},
		{"scope", func(c map[string]interface{}) { c["scope"] = "messages:read" }, ErrInsufficientScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.modify(claims)
			_, err := a.ValidateToken(context.Background(), iss.sign(t, claims))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAuthenticator_InvalidTokens(t *testing.T) {
	iss := newTestIssuer(t)
	a := NewAuthenticator(iss.config(), nil)
	token := iss.sign(t, validClaims())

	other := newTestIssuer(t)
	forged := other.sign(t, validClaims())

	tests := []struct {
		name  string
		token string
	}{
		{"not a jwt", "abc"},
		{"bad header", "!!!.e30.c2ln"},
		{"tampered", token[:len(token)-4] + "AAAA"},
		{"wrong key", forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.ValidateToken(context.Background(), tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestAuthenticator_Disabled(t *testing.T) {
	if NewAuthenticator(&config.OAuth2Config{}, nil).IsEnabled() {
		t.Error("expected auth to be disabled without issuer")
	}
	if NewAuthenticator(nil, nil).IsEnabled() {
		t.Error("expected auth to be disabled without config")
	}
}

func TestMiddleware(t *testing.T) {
	iss := newTestIssuer(t)
	a := NewAuthenticator(iss.config(), nil)

	var rejected []string
	handler := a.Middleware(func(reason string) { rejected = append(rejected, reason) })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c := ClaimsFromContext(r.Context()); c == nil || c.Subject != "bank-a" {
				t.Errorf("expected claims in context, got %+v", c)
			}
			w.WriteHeader(http.StatusNoContent)
		}))

	narrow := validClaims()
	narrow["scope"] = "messages:read"

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + iss.sign(t, validClaims()), http.StatusNoContent},
		{"lower case scheme", "bearer " + iss.sign(t, validClaims()), http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"basic", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"scope", "Bearer " + iss.sign(t, narrow), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/iso20022/process", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, w.Code)
			}
			if tt.want != http.StatusNoContent && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}

	if len(rejected) != 3 || rejected[2] != "forbidden" {
		t.Errorf("unexpected rejections: %v", rejected)
	}
}

func TestClaims_Audience(t *testing.T) {
	var c Claims
	if err := json.Unmarshal([]byte(`{"aud":"single"}`), &c); err != nil {
		t.Fatal(err)
	}
	if !c.HasAudience("single") {
		t.Error("expected string audience to be accepted")
	}
	if err := json.Unmarshal([]byte(`{"aud":["a","b"],"scope":"x y"}`), &c); err != nil {
		t.Fatal(err)
	}
	if !c.HasAudience("b") || c.HasAudience("c") {
		t.Errorf("unexpected audience %v", c.Audience)
	}
	if !c.HasScope("y") || c.HasScope("z") {
		t.Errorf("unexpected scope %q", c.Scope)
	}
}

func TestJWK_RSAPublicKey(t *testing.T) {
	if _, err := (&JWK{Kty: "EC"}).RSAPublicKey(); err == nil {
		t.Error("expected error for EC key")
	}
	if _, err := (&JWK{Kty: "RSA", N: "AQAB", E: ""}).RSAPublicKey(); err == nil {
		t.Error("expected error for empty exponent")
	}
	k, err := (&JWK{Kty: "RSA", N: "AQAB", E: "AQAB"}).RSAPublicKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.E != 65537 {
		t.Errorf("expected exponent 65537, got %d", k.E)
	}
}
