package jwt

import (
	"github.com/cockroachdb/errors"
)

// Error kinds returned by the package.
// Use errors.Is to check the kind of a returned error.
var (
	// ErrMalformedEncoding is returned when a segment is not valid base64url
	ErrMalformedEncoding = errors.New("malformed encoding")
	// ErrMalformedToken is returned when a token can not be split or decoded
	ErrMalformedToken = errors.New("malformed token")
	// ErrUnsupportedAlgorithm is returned when the algorithm is not allowed,
	// not registered, or does not match the key
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrInvalidSignature is returned when no configured key verifies the token
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrTokenExpired is returned when the exp claim is in the past
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotYetValid is returned when the nbf claim is in the future
	ErrTokenNotYetValid = errors.New("token not yet valid")
	// ErrClaimMismatch is returned when iss, aud or sub do not match expectations
	ErrClaimMismatch = errors.New("claim mismatch")
	// ErrIncompleteClaims is returned when a required claim is missing
	ErrIncompleteClaims = errors.New("incomplete claims")
	// ErrInvalidIdentity is returned when an identity can not be mapped to claims
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrInvalidClaim is returned when a claim value violates the claim set rules
	ErrInvalidClaim = errors.New("invalid claim")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrMalformedToken, "malformed_token"},
	{ErrMalformedEncoding, "malformed_encoding"},
	{ErrUnsupportedAlgorithm, "unsupported_algorithm"},
	{ErrInvalidSignature, "invalid_signature"},
	{ErrTokenExpired, "token_expired"},
	{ErrTokenNotYetValid, "token_not_yet_valid"},
	{ErrClaimMismatch, "claim_mismatch"},
	{ErrIncompleteClaims, "incomplete_claims"},
	{ErrInvalidIdentity, "invalid_identity"},
	{ErrInvalidClaim, "invalid_claim"},
}

// Kind returns the name of the error kind,
// "ok" for nil error, or "unknown"
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}

// WithKind returns err tagged with the kind,
// errors.Is reports true for both err and kind
func WithKind(err error, kind error) error {
	if err == nil {
		return nil
	}
	return &kindError{cause: err, kind: kind}
}

type kindError struct {
	cause error
	kind  error
}

func (e *kindError) Error() string {
	return e.cause.Error()
}

func (e *kindError) Unwrap() []error {
	return []error{e.cause, e.kind}
}

// errorf returns a new error of the kind
func errorf(kind error, format string, args ...any) error {
	return WithKind(errors.Errorf(format, args...), kind)
}

// markf wraps the error with a message and tags it with the kind
func markf(err error, kind error, format string, args ...any) error {
	return WithKind(errors.WithMessagef(err, format, args...), kind)
}
