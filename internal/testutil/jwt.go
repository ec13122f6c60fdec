package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/flagwell/flagwell/internal/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const testIssuer = "https://idp.test"
const testKID = "test-kid"

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	testJWKS    *auth.JWKSCache
)

// testSigningKey lazily generates the RSA keypair shared by every
// management bearer token minted in this process, and the JWKS cache
// NewTestServer wires its Verifier against.
func testSigningKey() (*rsa.PrivateKey, *auth.JWKSCache) {
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic("testutil: generate rsa key: " + err.Error())
		}
		testKey = key

		pub, err := jwk.FromRaw(&key.PublicKey)
		if err != nil {
			panic("testutil: build jwk: " + err.Error())
		}
		if err := pub.Set(jwk.KeyIDKey, testKID); err != nil {
			panic("testutil: set kid: " + err.Error())
		}

		set := jwk.NewSet()
		if err := set.AddKey(pub); err != nil {
			panic("testutil: add key to set: " + err.Error())
		}
		testJWKS = auth.NewJWKSCacheFromSet(set)
	})
	return testKey, testJWKS
}

// IssueManagementToken mints an RS256 bearer token for a management
// principal scoped to projectID, signed with the keypair NewTestServer's
// Verifier trusts.
func IssueManagementToken(t *testing.T, userID, projectID string) string {
	t.Helper()
	key, _ := testSigningKey()

	claims := auth.Claims{
		UserID:    userID,
		ProjectID: projectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID

	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign management token: %v", err)
	}
	return signed
}
