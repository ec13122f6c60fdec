// Package auth implements the dual authentication dispatch: bearer JWTs
// (RS256, validated against a JWKS) identify management principals;
// prefixed SDK credentials identify evaluation and stream principals. A
// single middleware inspects the Authorization header shape and routes to
// the matching verifier.
package auth

import (
	"context"
	"net/http"
)

type contextKey string

const principalContextKey contextKey = "auth_principal"

// PrincipalKind distinguishes the two authentication schemes.
type PrincipalKind string

const (
	// KindManagement identifies a human or service operator authenticated
	// via a bearer JWT, scoped to a project by its claims.
	KindManagement PrincipalKind = "management"
	// KindSDK identifies an evaluation/stream client authenticated via a
	// prefixed SDK credential, scoped to exactly one environment.
	KindSDK PrincipalKind = "sdk"
)

// Principal is the authenticated identity attached to the request context
// by Verifier.Middleware after successful authentication.
type Principal struct {
	Kind PrincipalKind

	// Populated for KindManagement.
	Subject   string
	ProjectID string // empty if the JWT is not project-scoped

	// Populated for KindSDK.
	CredentialID    string
	EnvironmentID   string
	SDKProjectID    string // not set by Verifier.Middleware; empty for SDK principals
	CredentialLabel string
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// FromContext retrieves the Principal attached by Verifier.Middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// GetIPAddress extracts the caller's address for audit logging, preferring
// proxy-forwarded headers over the raw socket address.
func GetIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
