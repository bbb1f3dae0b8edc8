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

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jwksServer(t *testing.T, kid string, pub *rsa.PublicKey, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		_ = json.NewEncoder(w).Encode(JWKS{Keys: []JSONWebKey{{
			Kid: kid,
			Kty: "RSA",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}}})
	}))
}

func TestProviderVerifiesRS256(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var hits int32
	srv := jwksServer(t, "k1", &priv.PublicKey, &hits)
	defer srv.Close()

	p := NewProvider(srv.URL)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"sub": "user-1"})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(priv)
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, p.KeyFunc)
	require.NoError(t, err)
	assert.True(t, parsed.Valid)

	// cached
	_, err = jwt.Parse(signed, p.KeyFunc)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	t.Run("unknown kid", func(t *testing.T) {
		other := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"sub": "user-1"})
		other.Header["kid"] = "k2"
		s, err := other.SignedString(priv)
		require.NoError(t, err)
		_, err = jwt.Parse(s, p.KeyFunc)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("rejects hmac", func(t *testing.T) {
		h := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
		h.Header["kid"] = "k1"
		s, err := h.SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = jwt.Parse(s, p.KeyFunc)
		assert.Error(t, err)
	})
}
