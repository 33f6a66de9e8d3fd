package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// testKeySource serves a JWKS document and counts fetches.
type testKeySource struct {
	server  *httptest.Server
	fetches atomic.Int32
	keys    atomic.Value // []jwk
	failing atomic.Bool
}

func newTestKeySource(t *testing.T) *testKeySource {
	t.Helper()

	src := &testKeySource{}
	src.keys.Store([]jwk{})

	src.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		src.fetches.Add(1)
		if src.failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(jwks{Keys: src.keys.Load().([]jwk)})
	}))
	t.Cleanup(src.server.Close)

	return src
}

func (s *testKeySource) publish(kid string, key *rsa.PublicKey) {
	s.keys.Store([]jwk{{
		Kid: kid,
		Kty: "RSA",
		Alg: "RS256",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}})
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

const (
	testIssuer   = "https://idp.example.com/pool"
	testAudience = "test-client-id"
)

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()

	base := jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, base)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}
