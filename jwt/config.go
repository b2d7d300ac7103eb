package jwt

import (
	"context"
	"crypto"
	"crypto/sha256"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/certutil"
	"github.com/effective-security/x/configloader"
	"golang.org/x/crypto/hkdf"
	"gopkg.in/yaml.v3"
)

// DefaultTokenExpiry is used when expiry is not configured
const DefaultTokenExpiry = time.Hour

// Duration is time.Duration that is serialized as "30m" in YAML, JSON
// and environment variables
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return errors.WithStack(err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// KeyConfig is a symmetric key
type KeyConfig struct {
	// ID of the key
	ID string `json:"id" yaml:"id"`
	// Seed to derive the key with HKDF-SHA256
	Seed string `json:"seed,omitempty" yaml:"seed,omitempty"`
	// Secret is used as the key as is, for interoperability with other issuers
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`
}

// VerifyKeyConfig is a public key trusted for verification
type VerifyKeyConfig struct {
	// ID of the key
	ID string `json:"id" yaml:"id"`
	// PublicKey is PEM encoded public key or certificate,
	// or a file:// or env:// reference to it
	PublicKey string `json:"public_key" yaml:"public_key"`
}

// ProviderConfig provides configuration for the token provider.
// Secrets can be specified as file:// or env:// references.
// CREDIBLE_* environment variables override the scalar fields.
type ProviderConfig struct {
	// Issuer specifies issuer claim
	Issuer string `json:"issuer" yaml:"issuer"`
	// Audience specifies audience claim
	Audience string `json:"audience,omitempty" yaml:"audience,omitempty"`
	// TokenExpiry specifies the lifetime of tokens
	TokenExpiry Duration `json:"expiry,omitempty" yaml:"expiry,omitempty"`
	// ClockSkew specifies tolerance for exp and nbf checks
	ClockSkew Duration `json:"clock_skew,omitempty" yaml:"clock_skew,omitempty"`
	// Algorithm to sign tokens, by default selected from the key
	Algorithm string `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	// KeyID specifies ID of the current key
	KeyID string `json:"kid" yaml:"kid"`
	// Keys specifies list of symmetric keys
	Keys []*KeyConfig `json:"keys,omitempty" yaml:"keys,omitempty"`
	// PrivateKey specifies PEM encoded signing key,
	// it takes precedence over Keys
	PrivateKey string `json:"private_key,omitempty" yaml:"private_key,omitempty"`
	// VerifyKeys specifies additional public keys trusted for verification
	VerifyKeys []*VerifyKeyConfig `json:"verify_keys,omitempty" yaml:"verify_keys,omitempty"`
	// JWKSURI specifies URL of additional trusted keys
	JWKSURI string `json:"jwks_uri,omitempty" yaml:"jwks_uri,omitempty"`
	// AllowedAlgorithms specifies algorithms accepted for verification,
	// by default only the signing algorithm
	AllowedAlgorithms []string `json:"allowed_algorithms,omitempty" yaml:"allowed_algorithms,omitempty"`
	// IssueTokenID specifies to add jti claim
	IssueTokenID bool `json:"issue_jti,omitempty" yaml:"issue_jti,omitempty"`
	// RequireExpiry specifies to reject tokens without exp claim
	RequireExpiry bool `json:"require_expiry,omitempty" yaml:"require_expiry,omitempty"`
}

// configEnv lists environment variables that override
// the values loaded from the configuration file
type configEnv struct {
	Issuer            string   `env:"CREDIBLE_ISSUER"`
	Audience          string   `env:"CREDIBLE_AUDIENCE"`
	TokenExpiry       Duration `env:"CREDIBLE_EXPIRY"`
	ClockSkew         Duration `env:"CREDIBLE_CLOCK_SKEW"`
	Algorithm         string   `env:"CREDIBLE_ALGORITHM"`
	KeyID             string   `env:"CREDIBLE_KID"`
	PrivateKey        string   `env:"CREDIBLE_PRIVATE_KEY"`
	JWKSURI           string   `env:"CREDIBLE_JWKS_URI"`
	AllowedAlgorithms []string `env:"CREDIBLE_ALLOWED_ALGORITHMS" envSeparator:","`
	IssueTokenID      bool     `env:"CREDIBLE_ISSUE_JTI"`
	RequireExpiry     bool     `env:"CREDIBLE_REQUIRE_EXPIRY"`
}

func applyEnv(cfg *ProviderConfig) error {
	ov, err := env.ParseAs[configEnv]()
	if err != nil {
		return errors.WithMessage(err, "unable to parse environment")
	}

	setString := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	setString(&cfg.Issuer, ov.Issuer)
	setString(&cfg.Audience, ov.Audience)
	setString(&cfg.Algorithm, ov.Algorithm)
	setString(&cfg.KeyID, ov.KeyID)
	setString(&cfg.PrivateKey, ov.PrivateKey)
	setString(&cfg.JWKSURI, ov.JWKSURI)
	if ov.TokenExpiry != 0 {
		cfg.TokenExpiry = ov.TokenExpiry
	}
	if ov.ClockSkew != 0 {
		cfg.ClockSkew = ov.ClockSkew
	}
	if len(ov.AllowedAlgorithms) > 0 {
		cfg.AllowedAlgorithms = ov.AllowedAlgorithms
	}
	cfg.IssueTokenID = cfg.IssueTokenID || ov.IssueTokenID
	cfg.RequireExpiry = cfg.RequireExpiry || ov.RequireExpiry
	return nil
}

// LoadProviderConfig returns configuration loaded from a file,
// with CREDIBLE_* environment variables applied on top
func LoadProviderConfig(file string) (*ProviderConfig, error) {
	config := new(ProviderConfig)
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.WithMessage(err, "unable to read file")
		}

		if strings.HasSuffix(file, ".json") {
			err = json.Unmarshal(raw, config)
			if err != nil {
				return nil, errors.WithMessagef(err, "unable parse JSON: %s", file)
			}
		} else {
			err = yaml.Unmarshal(raw, config)
			if err != nil {
				return nil, errors.WithMessagef(err, "unable parse YAML: %s", file)
			}
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if file != "" && config.PrivateKey == "" {
		if config.KeyID == "" {
			return nil, errors.Errorf("missing kid: %q", file)
		}
		if len(config.Keys) == 0 {
			return nil, errors.Errorf("missing keys: %q", file)
		}
	}
	return config, nil
}

// LoadProvider returns provider loaded from the configuration file
func LoadProvider(file string) (*Provider, error) {
	cfg, err := LoadProviderConfig(file)
	if err != nil {
		return nil, err
	}
	return NewProviderFromConfig(cfg)
}

// MustNewProvider returns provider, or panics on error
func MustNewProvider(cfg *ProviderConfig) *Provider {
	p, err := NewProviderFromConfig(cfg)
	if err != nil {
		logger.Panicf("unable to create provider: %+v", err)
	}
	return p
}

// NewProviderFromConfig returns provider
func NewProviderFromConfig(cfg *ProviderConfig) (*Provider, error) {
	if cfg.Issuer == "" {
		return nil, errors.Errorf("issuer not configured")
	}

	opts := IssuanceOptions{
		Issuer:       cfg.Issuer,
		Audience:     cfg.Audience,
		Expiry:       time.Duration(cfg.TokenExpiry),
		Algorithm:    Algorithm(cfg.Algorithm),
		KeyID:        cfg.KeyID,
		IssueTokenID: cfg.IssueTokenID,
	}
	if opts.Expiry == 0 {
		opts.Expiry = DefaultTokenExpiry
	}

	var static []VerificationKey

	if cfg.PrivateKey != "" {
		pem, err := configloader.ResolveValue(cfg.PrivateKey)
		if err != nil {
			return nil, errors.WithMessage(err, "unable to resolve private key")
		}
		signer, err := certutil.ParsePrivateKeyPEM([]byte(pem))
		if err != nil {
			return nil, errors.WithMessage(err, "failed to load private key")
		}
		opts.Key = signer
		static = append(static, VerificationKey{ID: cfg.KeyID, Key: signer.Public()})
	} else {
		if len(cfg.Keys) == 0 {
			return nil, errors.Errorf("keys not provided")
		}
		if opts.Algorithm == "" {
			opts.Algorithm = HS256
		}
		for _, key := range cfg.Keys {
			secret, err := loadSymmetricKey(key, opts.Algorithm)
			if err != nil {
				return nil, err
			}
			static = append(static, VerificationKey{ID: key.ID, Key: secret})
		}
		if opts.KeyID == "" {
			opts.KeyID = cfg.Keys[len(cfg.Keys)-1].ID
		}
		for _, k := range static {
			if k.ID == opts.KeyID {
				opts.Key = k.Key
				break
			}
		}
		if opts.Key == nil {
			return nil, errors.Errorf("key not found: %q", opts.KeyID)
		}
	}

	for _, vk := range cfg.VerifyKeys {
		pem, err := configloader.ResolveValue(vk.PublicKey)
		if err != nil {
			return nil, errors.WithMessagef(err, "unable to resolve public key %q", vk.ID)
		}
		pub, err := certutil.ParsePublicKeyPEM([]byte(pem))
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to load public key %q", vk.ID)
		}
		static = append(static, VerificationKey{ID: vk.ID, Key: pub})
	}

	var keys KeySet = NewStaticKeySet(static...)
	if cfg.JWKSURI != "" {
		keys = MultiKeySet{keys, NewRemoteKeySet(context.Background(), cfg.JWKSURI)}
	}

	expect := ValidationExpectations{
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Keys:          keys,
		ClockSkew:     time.Duration(cfg.ClockSkew),
		RequireExpiry: cfg.RequireExpiry,
	}
	for _, alg := range cfg.AllowedAlgorithms {
		expect.Algorithms = append(expect.Algorithms, Algorithm(alg))
	}

	return NewProvider(opts, expect)
}

func loadSymmetricKey(key *KeyConfig, alg Algorithm) ([]byte, error) {
	switch {
	case key.Secret != "":
		secret, err := configloader.ResolveValue(key.Secret)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to load secret %q", key.ID)
		}
		return []byte(secret), nil
	case key.Seed != "":
		seed, err := configloader.ResolveValue(key.Seed)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to load seed %q", key.ID)
		}
		return DeriveKey(seed, key.ID, alg)
	}
	return nil, errors.Errorf("missing seed for key %q", key.ID)
}

// DeriveKey returns HMAC key derived from the seed with HKDF-SHA256.
// The key size matches the hash size of the algorithm.
func DeriveKey(seed, kid string, alg Algorithm) ([]byte, error) {
	if seed == "" {
		return nil, errors.Errorf("empty seed")
	}
	size := crypto.SHA256.Size()
	switch alg {
	case HS384:
		size = crypto.SHA384.Size()
	case HS512:
		size = crypto.SHA512.Size()
	}

	key := make([]byte, size)
	r := hkdf.New(sha256.New, []byte(seed), nil, []byte("credible-jwt:"+kid))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.WithStack(err)
	}
	return key, nil
}
