package jwt_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegments(t *testing.T) {
	tcases := []struct {
		raw string
		enc string
	}{
		{"", ""},
		{"f", "Zg"},
		{"fo", "Zm8"},
		{"foo", "Zm9v"},
		{"{\"alg\":\"HS256\"}", "eyJhbGciOiJIUzI1NiJ9"},
		{"\xfb\xff", "-_8"},
	}
	for _, tc := range tcases {
		assert.Equal(t, tc.enc, jwt.EncodeSegment([]byte(tc.raw)))
		dec, err := jwt.DecodeSegment(tc.enc)
		require.NoError(t, err)
		assert.Equal(t, tc.raw, string(dec))
	}
}

func TestDecodeSegmentErrors(t *testing.T) {
	for _, seg := range []string{
		"Zg==",     // padding
		"Zm9v+/",   // std alphabet
		"Z",        // impossible length
		"Zh",       // non-zero trailing bits
		"Zm9v\nZg", // line break
		"Zm 9v",
	} {
		_, err := jwt.DecodeSegment(seg)
		if assert.Error(t, err, seg) {
			assert.True(t, errors.Is(err, jwt.ErrMalformedEncoding), seg)
			assert.Equal(t, "malformed_encoding", jwt.Kind(err))
		}
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", jwt.Kind(nil))
	assert.Equal(t, "unknown", jwt.Kind(errors.New("other")))
	assert.Equal(t, "token_expired", jwt.Kind(errors.WithMessage(jwt.ErrTokenExpired, "wrapped")))
}
