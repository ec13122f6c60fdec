package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/flagwell/flagwell/internal/store"
)

// Verifier dispatches the two authentication schemes, attaching the
// resulting Principal to the request context.
type Verifier struct {
	store  store.Store
	jwks   *JWKSCache
	issuer string
}

// NewVerifier builds a Verifier. jwks may be nil in deployments that never
// expect a bearer token (a management-surface-less deployment); any
// Bearer-prefixed header is then rejected as unauthorized.
func NewVerifier(s store.Store, jwks *JWKSCache, issuer string) *Verifier {
	return &Verifier{store: s, jwks: jwks, issuer: issuer}
}

// Middleware returns the http middleware that every non-public route is
// wrapped in.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")

		switch {
		case strings.HasPrefix(header, "Bearer "):
			v.handleBearer(w, r, next, strings.TrimPrefix(header, "Bearer "))
		case LooksLikeSDKCredential(header):
			v.handleSDKCredential(w, r, next, header)
		default:
			writeUnauthorized(w)
		}
	})
}

func (v *Verifier) handleBearer(w http.ResponseWriter, r *http.Request, next http.Handler, raw string) {
	if v.jwks == nil {
		writeUnauthorized(w)
		return
	}
	principal, err := VerifyBearerToken(r.Context(), v.jwks, v.issuer, raw)
	if err != nil {
		writeUnauthorized(w)
		return
	}
	next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
}

func (v *Verifier) handleSDKCredential(w http.ResponseWriter, r *http.Request, next http.Handler, raw string) {
	hash := HashCredential(raw)
	cred, err := v.store.GetSDKKeyByHash(r.Context(), hash)
	if err != nil || cred == nil || cred.Revoked() {
		writeUnauthorized(w)
		return
	}

	// Best-effort, detached: must never block or fail the request.
	go func(id string) {
		_ = v.store.TouchSDKCredentialLastUsed(context.Background(), id)
	}(cred.ID)

	principal := Principal{
		Kind:            KindSDK,
		CredentialID:    cred.ID,
		EnvironmentID:   cred.EnvironmentID,
		CredentialLabel: cred.Name,
	}
	next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
}

// RequireSDK gates evaluation and streaming routes: only SDK-credential
// principals may pass. A valid bearer (management) principal is rejected
// with forbidden rather than unauthorized.
func RequireSDK(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}
		if p.Kind != KindSDK {
			writeForbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeAuthError(w, http.StatusUnauthorized, "unauthorized")
}

func writeForbidden(w http.ResponseWriter) {
	writeAuthError(w, http.StatusForbidden, "forbidden")
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
