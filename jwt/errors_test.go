package jwt_test

import (
	stderrors "errors"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithKind(t *testing.T) {
	assert.NoError(t, jwt.WithKind(nil, jwt.ErrInvalidClaim))

	cause := errors.New("bad value")
	err := jwt.WithKind(errors.WithMessage(cause, "claim"), jwt.ErrInvalidClaim)
	assert.EqualError(t, err, "claim: bad value")
	assert.True(t, stderrors.Is(err, jwt.ErrInvalidClaim))
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, errors.Is(err, jwt.ErrInvalidClaim))
	assert.False(t, stderrors.Is(err, jwt.ErrMalformedToken))
	assert.Equal(t, "invalid_claim", jwt.Kind(err))

	wrapped := errors.WithMessage(err, "outer")
	assert.True(t, stderrors.Is(wrapped, jwt.ErrInvalidClaim))
	assert.Equal(t, "invalid_claim", jwt.Kind(wrapped))
}

func TestValidateErrorsStdlib(t *testing.T) {
	v := hmacValidator(t, jwt.ValidationExpectations{})

	_, err := v.Validate(t.Context(), "a.b")
	require.Error(t, err)
	assert.Equal(t, "malformed_token", jwt.Kind(err))
	assert.True(t, stderrors.Is(err, jwt.ErrMalformedToken))
	assert.ErrorIs(t, err, jwt.ErrMalformedToken)

	// segment with invalid encoding is both malformed token and malformed encoding
	_, err = v.Validate(t.Context(), "a.b.c")
	require.Error(t, err)
	assert.Equal(t, "malformed_token", jwt.Kind(err))
	assert.True(t, stderrors.Is(err, jwt.ErrMalformedToken))
	assert.True(t, stderrors.Is(err, jwt.ErrMalformedEncoding))

	_, err = jwt.DecodeSegment("a=")
	assert.True(t, stderrors.Is(err, jwt.ErrMalformedEncoding))
}
