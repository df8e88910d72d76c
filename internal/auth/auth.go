// Package auth authenticates API requests with OAuth2 bearer tokens.
//
// Tokens are RS256, RS384 or RS512 signed JWTs verified with golang-jwt
// against the issuer's JWKS. Keys are cached for an hour and refetched when
// an unknown key id appears after the cache has expired.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sirosfoundation/go-iso20022/internal/config"
)

// Sentinel errors returned by [Authenticator.ValidateRequest] and
// [Authenticator.ValidateToken].
var (
	// ErrNoToken indicates no Authorization header or Bearer token was provided.
	ErrNoToken = errors.New("no authorization token provided")

	// ErrInvalidToken indicates the token is malformed or has an invalid signature.
	ErrInvalidToken = errors.New("invalid authorization token")

	// ErrTokenExpired indicates the token's exp claim is in the past.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenNotYetValid indicates the token's nbf claim is in the future.
	ErrTokenNotYetValid = errors.New("token not yet valid")

	ErrInvalidAudience = errors.New("invalid audience")
	ErrInvalidIssuer   = errors.New("invalid issuer")

	// ErrInsufficientScope indicates the token lacks the configured scope.
	ErrInsufficientScope = errors.New("insufficient scope")
)

const jwksCacheTTL = time.Hour

// Claims are the JWT claims checked for API access.
type Claims struct {
	jwt.RegisteredClaims
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// HasAudience checks if the claims include the given audience
func (c *Claims) HasAudience(aud string) bool {
	for _, a := range c.Audience {
		if a == aud {
			return true
		}
	}
	return false
}

// HasScope checks the space separated scope claim.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range strings.Fields(c.Scope) {
		if s == scope {
			return true
		}
	}
	return false
}

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// RSAPublicKey converts the JWK to an RSA public key.
func (j *JWK) RSAPublicKey() (*rsa.PublicKey, error) {
	if j.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type: %s", j.Kty)
	}

	n, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	if len(e) == 0 || len(e) > 4 {
		return nil, fmt.Errorf("invalid exponent length %d", len(e))
	}

	exp := 0
	for _, b := range e {
		exp = exp<<8 | int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: exp}, nil
}

// Authenticator validates bearer tokens
type Authenticator struct {
	config *config.OAuth2Config
	logger *slog.Logger
	client *http.Client
	now    func() time.Time

	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	keysExpiry time.Time
}

// NewAuthenticator creates a new JWT authenticator
func NewAuthenticator(cfg *config.OAuth2Config, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
		keys:   make(map[string]*rsa.PublicKey),
	}
}

// IsEnabled returns true if OAuth2 authentication is configured
func (a *Authenticator) IsEnabled() bool {
	return a.config != nil && a.config.Issuer != ""
}

// ValidateRequest extracts and validates the bearer token of r.
func (a *Authenticator) ValidateRequest(r *http.Request) (*Claims, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, ErrNoToken
	}
	return a.ValidateToken(r.Context(), token)
}

// ValidateToken validates a JWT and returns its claims
func (a *Authenticator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(signingMethods),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.config.Audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return a.key(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, tokenError(err)
	}

	if a.config.Scope != "" && !claims.HasScope(a.config.Scope) {
		return nil, ErrInsufficientScope
	}
	return &claims, nil
}

var signingMethods = []string{"RS256", "RS384", "RS512"}

// tokenError maps parser errors onto the package sentinels.
func tokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrInvalidIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrInvalidAudience
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

func (a *Authenticator) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	a.mu.RLock()
	key, ok := a.keys[kid]
	fresh := a.now().Before(a.keysExpiry)
	a.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := a.refreshKeys(ctx); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if key, ok := a.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: unknown key id %q", ErrInvalidToken, kid)
}

func (a *Authenticator) refreshKeys(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// another request may have refreshed while we waited
	if a.now().Before(a.keysExpiry) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.JWKSUrl, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS fetch failed: %d", resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&jwks); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, k := range jwks.Keys {
		if k.Use != "sig" && k.Use != "" {
			continue
		}
		pk, err := k.RSAPublicKey()
		if err != nil {
			a.logger.Warn("failed to parse JWK", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pk
	}

	a.keys = keys
	a.keysExpiry = a.now().Add(jwksCacheTTL)
	a.logger.Info("refreshed JWKS", "keys", len(keys))
	return nil
}

// Middleware rejects requests without a valid token. Claims of accepted
// requests are available through [ClaimsFromContext]. onReject, if not nil,
// is called with a short reason for every rejected request.
func (a *Authenticator) Middleware(onReject func(reason string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.ValidateRequest(r)
			if err != nil {
				status, reason := http.StatusUnauthorized, "unauthorized"
				if errors.Is(err, ErrInsufficientScope) {
					status, reason = http.StatusForbidden, "forbidden"
				}
				a.logger.Debug("request rejected", "path", r.URL.Path, "error", err)
				if onReject != nil {
					onReject(reason)
				}

				w.Header().Set("WWW-Authenticate", `Bearer realm="iso20022"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// bearerToken extracts the Bearer token from the Authorization header
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// ClaimsFromContext retrieves claims from context
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsContextKey).(*Claims)
	return c
}

// ContextWithClaims adds claims to context
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
