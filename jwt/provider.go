package jwt

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/metricskey"
	"github.com/effective-security/xlog"
	jose "github.com/go-jose/go-jose/v3"
	"github.com/google/uuid"
)

// IssuanceOptions specifies how tokens are issued.
// It is set once at startup and must not be modified after
// a provider is created.
type IssuanceOptions struct {
	// Issuer is the iss claim
	Issuer string
	// Audience is the aud claim, if set
	Audience string
	// Expiry is the lifetime of issued tokens
	Expiry time.Duration
	// Algorithm to sign, if not set it is selected from the key
	Algorithm Algorithm
	// Key is []byte or *HMACSigner for HMAC, crypto.Signer for the others
	Key any
	// KeyID is the kid header, if set
	KeyID string
	// Headers are extra headers added to issued tokens
	Headers map[string]any
	// IssueTokenID adds random jti claim
	IssueTokenID bool
}

// SignedToken is the result of issuance
type SignedToken struct {
	// Value is the compact token
	Value string `json:"value"`
	// Expiration is the expiry time in milliseconds since epoch
	Expiration int64 `json:"expiration"`
	// Claims are the signed claims
	Claims *ClaimSet `json:"claims"`
}

// ExpiresAt returns the expiration as time
func (t *SignedToken) ExpiresAt() time.Time {
	return time.UnixMilli(t.Expiration)
}

// claims set by the provider that payload can not override
var issuerClaims = map[string]bool{
	ClaimIssuer:    true,
	ClaimAudience:  true,
	ClaimIssuedAt:  true,
	ClaimNotBefore: true,
	ClaimExpiresAt: true,
}

// Provider issues and validates tokens.
// It holds no mutable state and is safe for concurrent use.
type Provider struct {
	opts      IssuanceOptions
	validator *Validator
}

// NewProvider returns provider, or error if the options are invalid
func NewProvider(opts IssuanceOptions, expect ValidationExpectations) (*Provider, error) {
	if opts.Issuer == "" {
		return nil, errors.Errorf("issuer not configured")
	}
	if opts.Expiry <= 0 {
		return nil, errors.Errorf("token expiry must be positive")
	}
	if opts.Key == nil {
		return nil, errors.Errorf("signing key not configured")
	}

	if opts.Algorithm == "" {
		alg, err := AlgorithmForKey(opts.Key)
		if err != nil {
			return nil, err
		}
		opts.Algorithm = alg
	}
	if opts.Algorithm == None {
		if opts.Key != UnsafeAllowNone {
			return nil, errorf(ErrUnsupportedAlgorithm, "unsigned tokens require UnsafeAllowNone key")
		}
	} else {
		if _, ok := GetSigningMethod(opts.Algorithm); !ok {
			return nil, errorf(ErrUnsupportedAlgorithm, "algorithm not supported: %q", opts.Algorithm)
		}
		if !keyCompatible(opts.Algorithm, opts.Key) {
			return nil, errorf(ErrUnsupportedAlgorithm, "invalid key type %T for %s signature", opts.Key, opts.Algorithm)
		}
	}
	for k := range opts.Headers {
		if reservedHeaders[k] {
			return nil, errors.Errorf("reserved header can not be overridden: %q", k)
		}
	}

	if len(expect.Algorithms) == 0 {
		expect.Algorithms = []Algorithm{opts.Algorithm}
	}
	if expect.Keys == nil && opts.Algorithm != None {
		expect.Keys = NewStaticKeySet(VerificationKey{
			ID:        opts.KeyID,
			Algorithm: opts.Algorithm,
			Key:       opts.Key,
		})
	}

	v, err := NewValidator(expect)
	if err != nil {
		return nil, err
	}

	return &Provider{
		opts:      opts,
		validator: v,
	}, nil
}

// Issuer returns the issuer name
func (p *Provider) Issuer() string {
	return p.opts.Issuer
}

// Audience returns the audience of issued tokens
func (p *Provider) Audience() string {
	return p.opts.Audience
}

// TokenExpiry returns the lifetime of issued tokens
func (p *Provider) TokenExpiry() time.Duration {
	return p.opts.Expiry
}

// Algorithm returns the signing algorithm
func (p *Provider) Algorithm() Algorithm {
	return p.opts.Algorithm
}

// KeyID returns the kid of the signing key
func (p *Provider) KeyID() string {
	return p.opts.KeyID
}

// Validator returns the validator used by the provider
func (p *Provider) Validator() *Validator {
	return p.validator
}

// PublicKeys returns JWKS with the public signing key.
// The set is empty for HMAC keys.
func (p *Provider) PublicKeys() (*jose.JSONWebKeySet, error) {
	if p.opts.Algorithm == None {
		return &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}}, nil
	}
	return PublicJWKS(VerificationKey{
		ID:        p.opts.KeyID,
		Algorithm: p.opts.Algorithm,
		Key:       p.opts.Key,
	})
}

// Issue returns signed token with the registered claims,
// followed by the payload claims.
// The payload can not override iss, aud, iat, nbf and exp.
func (p *Provider) Issue(ctx context.Context, payload *ClaimSet) (*SignedToken, error) {
	defer metricskey.PerfIssueOperation.MeasureSince(time.Now(), p.opts.Issuer, string(p.opts.Algorithm))

	now := TimeNowFn().Truncate(time.Second)
	expiresAt := now.Add(p.opts.Expiry)

	claims := NewClaimSet()
	claims.MustSet(ClaimIssuer, p.opts.Issuer)
	if p.opts.Audience != "" {
		claims.MustSet(ClaimAudience, p.opts.Audience)
	}
	claims.MustSet(ClaimIssuedAt, now.Unix()).
		MustSet(ClaimNotBefore, now.Unix())
	if err := claims.Set(ClaimExpiresAt, expiresAt.Unix()); err != nil {
		return nil, err
	}
	if p.opts.IssueTokenID {
		claims.MustSet(ClaimID, uuid.NewString())
	}

	if payload != nil {
		for _, name := range payload.Names() {
			if issuerClaims[name] {
				logger.KV(xlog.DEBUG, "reason", "reserved_claim", "claim", name)
				continue
			}
			v, _ := payload.Get(name)
			if err := claims.Set(name, v); err != nil {
				return nil, err
			}
		}
	}

	header := Header{
		Algorithm: p.opts.Algorithm,
		Type:      TokenType,
		KeyID:     p.opts.KeyID,
		Extra:     p.opts.Headers,
	}
	token, err := Build(header, claims, p.opts.Key)
	if err != nil {
		return nil, errors.WithMessage(err, "unable to sign token")
	}

	return &SignedToken{
		Value:      token.String(),
		Expiration: expiresAt.UnixMilli(),
		Claims:     claims,
	}, nil
}

// Validate verifies the token and returns its claims
func (p *Provider) Validate(ctx context.Context, token string) (*ClaimSet, error) {
	started := time.Now()
	claims, err := p.validator.Validate(ctx, token)
	metricskey.PerfValidateOperation.MeasureSince(started, p.opts.Issuer, Kind(err))
	return claims, err
}
