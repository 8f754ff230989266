// Package middleware provides request middleware for the rate limiting
// service: caller identity extraction and per-request admission enforcement.
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the caller identity the limiter keys on.
type Identity struct {
	// Identifier is the rate-limit subject: API key, authenticated user, or
	// client IP as the anonymous fallback.
	Identifier string

	// Tier is the subscriber tier claimed by the caller's token. Empty for
	// anonymous callers; the policy resolver falls back to the free tier.
	Tier string
}

// IdentityExtractor extracts the rate-limit identity from a request.
type IdentityExtractor interface {
	Extract(r *http.Request) Identity
}

// APIKeyHeader is the header carrying an API key identity.
const APIKeyHeader = "X-API-Key"

// TokenIdentityExtractor resolves identity in precedence order:
// a valid bearer token (sub + tier claims), then an API key header, then
// the client IP.
//
// An invalid or expired token is not rejected here; the request simply
// degrades to the anonymous identity. Authentication decisions belong to
// the auth middleware, not the limiter.
type TokenIdentityExtractor struct {
	// JWTSecret verifies HMAC-signed bearer tokens. When empty, bearer
	// tokens are ignored entirely.
	JWTSecret []byte
}

// Extract implements IdentityExtractor.
func (e *TokenIdentityExtractor) Extract(r *http.Request) Identity {
	if len(e.JWTSecret) > 0 {
		if identity, ok := e.fromBearerToken(r); ok {
			return identity
		}
	}

	if key := r.Header.Get(APIKeyHeader); key != "" {
		return Identity{Identifier: key}
	}

	return Identity{Identifier: ClientIP(r)}
}

// fromBearerToken parses the Authorization header and pulls the subject and
// tier claims out of a valid HMAC-signed token.
func (e *TokenIdentityExtractor) fromBearerToken(r *http.Request) (Identity, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return Identity{}, false
	}

	token, err := jwt.Parse(strings.TrimPrefix(auth, prefix), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return e.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, false
	}
	subject, _ := claims["sub"].(string)
	if subject == "" {
		return Identity{}, false
	}
	tier, _ := claims["tier"].(string)

	return Identity{Identifier: subject, Tier: tier}, true
}

// ClientIP extracts the client IP address from a request.
//
// The first entry of X-Forwarded-For wins when present (the service runs
// behind a trusted reverse proxy); otherwise the connection's remote
// address is used.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
