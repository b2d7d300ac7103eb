package jwt_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/jwt"
	jose "github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticKeySet(t *testing.T) {
	ctx := t.Context()
	ks := jwt.NewStaticKeySet(
		jwt.VerificationKey{ID: "h1", Key: keys.hmac},
		jwt.VerificationKey{ID: "r1", Algorithm: jwt.PS256, Key: keys.rsa.Public()},
		jwt.VerificationKey{ID: "e1", Key: keys.ec256},
		jwt.VerificationKey{Key: keys.ed.Public()},
	)

	list, err := ks.VerificationKeys(ctx, jwt.HS256, "h1")
	require.NoError(t, err)
	assert.Equal(t, []any{keys.hmac}, list)

	list, err = ks.VerificationKeys(ctx, jwt.ES256, "")
	require.NoError(t, err)
	assert.Equal(t, []any{keys.ec256}, list)

	// key restricted to PS256
	_, err = ks.VerificationKeys(ctx, jwt.RS256, "r1")
	assert.EqualError(t, err, `key not found: "r1"`)
	list, err = ks.VerificationKeys(ctx, jwt.PS256, "r1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// key without ID matches any kid
	list, err = ks.VerificationKeys(ctx, jwt.EdDSA, "any")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = ks.VerificationKeys(ctx, jwt.HS256, "e1")
	assert.Error(t, err)
}

func TestMultiKeySet(t *testing.T) {
	ctx := t.Context()
	ks := jwt.MultiKeySet{
		jwt.NewStaticKeySet(jwt.VerificationKey{ID: "h1", Key: keys.hmac}),
		jwt.NewStaticKeySet(jwt.VerificationKey{ID: "e1", Key: keys.ec256.Public()}),
	}

	list, err := ks.VerificationKeys(ctx, jwt.ES256, "e1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = ks.VerificationKeys(ctx, jwt.ES256, "e2")
	assert.EqualError(t, err, `key not found: "e2"`)

	_, err = jwt.MultiKeySet{}.VerificationKeys(ctx, jwt.ES256, "e2")
	assert.EqualError(t, err, `key not found: "e2"`)
}

func TestPublicJWKS(t *testing.T) {
	set, err := jwt.PublicJWKS(
		jwt.VerificationKey{ID: "h1", Key: keys.hmac},
		jwt.VerificationKey{ID: "r1", Key: keys.rsa},
		jwt.VerificationKey{Algorithm: jwt.ES256, Key: keys.ec256.Public()},
		jwt.VerificationKey{ID: "ed", Key: keys.ed},
	)
	require.NoError(t, err)
	require.Len(t, set.Keys, 3)

	assert.Equal(t, "r1", set.Keys[0].KeyID)
	assert.Equal(t, "RS256", set.Keys[0].Algorithm)
	assert.Equal(t, "sig", set.Keys[0].Use)
	assert.True(t, set.Keys[0].IsPublic())
	assert.Equal(t, keys.rsa.Public(), set.Keys[0].Key)

	assert.NotEmpty(t, set.Keys[1].KeyID)
	assert.Equal(t, "ES256", set.Keys[1].Algorithm)
	assert.Equal(t, "EdDSA", set.Keys[2].Algorithm)

	raw, err := json.Marshal(set)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"d":`)
	assert.NotContains(t, string(raw), `"k":`)

	// thumbprint is stable
	set2, err := jwt.PublicJWKS(jwt.VerificationKey{Key: keys.ec256})
	require.NoError(t, err)
	assert.Equal(t, set.Keys[1].KeyID, set2.Keys[0].KeyID)
}

func TestRemoteKeySet(t *testing.T) {
	jwks, err := jwt.PublicJWKS(
		jwt.VerificationKey{ID: "e1", Key: keys.ec256},
		jwt.VerificationKey{ID: "r1", Key: keys.rsa},
	)
	require.NoError(t, err)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ks := jwt.NewRemoteKeySet(ctx, srv.URL).WithHTTPClient(srv.Client())

	list, err := ks.VerificationKeys(t.Context(), jwt.ES256, "e1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, keys.ec256.PublicKey.Equal(list[0]))
	assert.Equal(t, int32(1), calls.Load())

	// served from cache
	list, err = ks.VerificationKeys(t.Context(), jwt.RS256, "r1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int32(1), calls.Load())

	// unknown kid refreshes the keys
	_, err = ks.VerificationKeys(t.Context(), jwt.ES256, "e2")
	assert.EqualError(t, err, `key not found: "e2"`)
	assert.Equal(t, int32(2), calls.Load())

	token, err := jwt.Build(jwt.Header{Algorithm: jwt.ES256, KeyID: "e1"}, jwt.NewClaimSet().MustSet("sub", "42"), keys.ec256)
	require.NoError(t, err)
	v, err := jwt.NewValidator(jwt.ValidationExpectations{
		Algorithms: []jwt.Algorithm{jwt.ES256},
		Keys:       ks,
	})
	require.NoError(t, err)
	claims, err := v.Validate(t.Context(), token.String())
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject())
}

func TestRemoteKeySetErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/corrupted":
			_, _ = w.Write([]byte(`{"keys":`))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	_, err := jwt.NewRemoteKeySet(ctx, srv.URL+"/missing").VerificationKeys(ctx, jwt.ES256, "e1")
	assert.EqualError(t, err, "unable to fetch JWKS: get keys failed: 404 Not Found")

	_, err = jwt.NewRemoteKeySet(ctx, srv.URL+"/corrupted").VerificationKeys(ctx, jwt.ES256, "e1")
	assert.ErrorContains(t, err, "unable to fetch JWKS: failed to decode keys")

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = jwt.NewRemoteKeySet(ctx, srv.URL+"/slow").VerificationKeys(cctx, jwt.ES256, "e1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
