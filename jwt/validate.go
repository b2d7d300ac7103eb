package jwt

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// TimeNowFn to override in unit tests
var TimeNowFn = time.Now

// ValidationExpectations specifies how tokens are validated.
// It is set once at startup and must not be modified after
// a validator is created.
type ValidationExpectations struct {
	// Issuer validates the iss claim, if set
	Issuer string
	// Audience validates that the aud claim contains this value, if set
	Audience string
	// Subject validates the sub claim, if set
	Subject string
	// Algorithms is the allow-list of algorithms
	Algorithms []Algorithm
	// AllowNone must be set to accept unsigned tokens,
	// in addition to listing "none" in Algorithms
	AllowNone bool
	// Keys provides verification keys
	Keys KeySet
	// ClockSkew is the tolerance for exp and nbf checks
	ClockSkew time.Duration
	// RequireExpiry rejects tokens without exp claim
	RequireExpiry bool
	// Now returns current time, TimeNowFn is used if not set
	Now func() time.Time
}

// Validator validates compact tokens
type Validator struct {
	cfg     ValidationExpectations
	allowed map[Algorithm]bool
}

// NewValidator returns validator, or error if the expectations are invalid
func NewValidator(cfg ValidationExpectations) (*Validator, error) {
	if cfg.ClockSkew < 0 {
		return nil, errors.Errorf("clock skew must not be negative")
	}
	if len(cfg.Algorithms) == 0 {
		return nil, errors.Errorf("allowed algorithms not configured")
	}
	v := &Validator{
		cfg:     cfg,
		allowed: map[Algorithm]bool{},
	}
	signed := false
	for _, alg := range cfg.Algorithms {
		if alg == None {
			if !cfg.AllowNone {
				return nil, errorf(ErrUnsupportedAlgorithm, "%q algorithm requires AllowNone", None)
			}
		} else if _, ok := GetSigningMethod(alg); !ok {
			return nil, errorf(ErrUnsupportedAlgorithm, "algorithm not supported: %q", alg)
		} else {
			signed = true
		}
		v.allowed[alg] = true
	}
	if signed && cfg.Keys == nil {
		return nil, errors.Errorf("verification keys not configured")
	}
	return v, nil
}

// Expectations returns the configuration of the validator
func (v *Validator) Expectations() ValidationExpectations {
	return v.cfg
}

// Validate verifies the token and returns its claims.
// The returned error is marked with one of the package error kinds.
func (v *Validator) Validate(ctx context.Context, token string) (*ClaimSet, error) {
	claims, hdr, err := v.validate(ctx, token)
	if err != nil {
		kv := []any{"reason", Kind(err)}
		if hdr != nil {
			kv = append(kv, "alg", hdr.Algorithm, "kid", hdr.KeyID)
		}
		logger.KV(xlog.DEBUG, kv...)
		return nil, err
	}
	return claims, nil
}

func (v *Validator) validate(ctx context.Context, token string) (*ClaimSet, *Header, error) {
	parts, err := splitToken(token)
	if err != nil {
		return nil, nil, err
	}

	hdr, err := decodeHeader(parts[0])
	if err != nil {
		return nil, nil, err
	}

	if !v.allowed[hdr.Algorithm] {
		return nil, hdr, errorf(ErrUnsupportedAlgorithm, "algorithm not allowed: %q", hdr.Algorithm)
	}

	if err = v.verifySignature(ctx, hdr, parts); err != nil {
		return nil, hdr, err
	}

	// claims are decoded only after the signature is verified
	claims, err := decodeClaims(parts[1])
	if err != nil {
		return nil, hdr, err
	}

	if err = v.checkTime(claims); err != nil {
		return nil, hdr, err
	}
	if err = v.checkClaims(claims); err != nil {
		return nil, hdr, err
	}
	return claims, hdr, nil
}

func (v *Validator) verifySignature(ctx context.Context, hdr *Header, parts []string) error {
	sig, err := DecodeSegment(parts[2])
	if err != nil {
		return markf(err, ErrInvalidSignature, "unable to decode signature")
	}
	input := []byte(parts[0] + "." + parts[1])

	if hdr.Algorithm == None {
		if len(sig) != 0 {
			return errorf(ErrInvalidSignature, "unsigned token must have empty signature")
		}
		return nil
	}

	if v.cfg.Keys == nil {
		return errorf(ErrInvalidSignature, "verification keys not configured")
	}
	keys, err := v.cfg.Keys.VerificationKeys(ctx, hdr.Algorithm, hdr.KeyID)
	if err != nil {
		return markf(err, ErrInvalidSignature, "unable to find verification key")
	}
	for _, key := range keys {
		if Verify(hdr.Algorithm, key, input, sig) {
			return nil
		}
	}
	return errorf(ErrInvalidSignature, "invalid signature")
}

func (v *Validator) now() time.Time {
	if v.cfg.Now != nil {
		return v.cfg.Now()
	}
	return TimeNowFn()
}

func (v *Validator) checkTime(claims *ClaimSet) error {
	now := v.now().Unix()
	skew := int64(v.cfg.ClockSkew / time.Second)

	if nbf, ok := claims.Int(ClaimNotBefore); ok && now < addSeconds(nbf, -skew) {
		return errorf(ErrTokenNotYetValid, "token not valid before %s", time.Unix(nbf, 0).UTC().Format(time.RFC3339))
	}

	exp, ok := claims.Int(ClaimExpiresAt)
	if !ok {
		if v.cfg.RequireExpiry {
			return errorf(ErrIncompleteClaims, "missing exp claim")
		}
		return nil
	}
	if now >= addSeconds(exp, skew) {
		return errorf(ErrTokenExpired, "token expired at %s", time.Unix(exp, 0).UTC().Format(time.RFC3339))
	}
	return nil
}

// addSeconds returns a+b, saturated at the int64 bounds
func addSeconds(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

func (v *Validator) checkClaims(claims *ClaimSet) error {
	if v.cfg.Issuer != "" && claims.Issuer() != v.cfg.Issuer {
		return errorf(ErrClaimMismatch, "invalid issuer")
	}
	if v.cfg.Audience != "" && !slices.Contains(claims.Audience(), v.cfg.Audience) {
		return errorf(ErrClaimMismatch, "invalid audience")
	}
	if v.cfg.Subject != "" && claims.Subject() != v.cfg.Subject {
		return errorf(ErrClaimMismatch, "invalid subject")
	}
	return nil
}
