package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the management-token claim set issued by the external identity
// provider, verified with RS256 against a fetched public key set — these
// tokens are never signed by this service.
type Claims struct {
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	OrgID     string `json:"org_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	jwt.RegisteredClaims
}

// VerifyBearerToken parses and verifies raw against jwks, pinning the
// signing algorithm to RS256 and the issuer to expectedIssuer, then
// translates the claims into a management Principal.
func VerifyBearerToken(ctx context.Context, jwks *JWKSCache, expectedIssuer, raw string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}
		return jwks.Lookup(ctx, kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(expectedIssuer),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("verify bearer token: %w", err)
	}
	if !token.Valid {
		return Principal{}, fmt.Errorf("verify bearer token: invalid")
	}

	return Principal{
		Kind:      KindManagement,
		Subject:   claims.UserID,
		ProjectID: claims.ProjectID,
	}, nil
}
