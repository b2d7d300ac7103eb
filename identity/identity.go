package identity

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/jwt"
	"github.com/effective-security/xlog"
)

// Issuer issues tokens for identities
type Issuer[T any] struct {
	provider *jwt.Provider
	factory  Factory[T]
}

// NewIssuer returns Issuer, or ErrNoFactory if factory is nil
func NewIssuer[T any](provider *jwt.Provider, factory Factory[T]) (*Issuer[T], error) {
	if provider == nil {
		return nil, errors.Errorf("provider not configured")
	}
	if err := checkFactory(factory); err != nil {
		return nil, err
	}
	return &Issuer[T]{
		provider: provider,
		factory:  factory,
	}, nil
}

// Issue returns signed token for the identity
func (i *Issuer[T]) Issue(ctx context.Context, id T) (*jwt.SignedToken, error) {
	claims, err := i.factory.ToClaims(id)
	if err != nil {
		return nil, jwt.WithKind(errors.WithMessage(err, "unable to map identity"), jwt.ErrInvalidIdentity)
	}
	if claims == nil {
		return nil, jwt.WithKind(errors.Errorf("identity has no claims"), jwt.ErrInvalidIdentity)
	}
	return i.provider.Issue(ctx, claims)
}

// Validator validates tokens and returns identities
type Validator[T any] struct {
	provider *jwt.Provider
	factory  Factory[T]
}

// NewValidator returns Validator, or ErrNoFactory if factory is nil
func NewValidator[T any](provider *jwt.Provider, factory Factory[T]) (*Validator[T], error) {
	if provider == nil {
		return nil, errors.Errorf("provider not configured")
	}
	if err := checkFactory(factory); err != nil {
		return nil, err
	}
	return &Validator[T]{
		provider: provider,
		factory:  factory,
	}, nil
}

// Validate verifies the token and returns the identity
func (v *Validator[T]) Validate(ctx context.Context, token string) (T, error) {
	var zero T
	claims, err := v.provider.Validate(ctx, token)
	if err != nil {
		return zero, err
	}
	id, err := v.factory.FromClaims(claims)
	if err != nil {
		logger.KV(xlog.DEBUG, "reason", jwt.Kind(err), "sub", claims.Subject())
		if !errors.Is(err, jwt.ErrIncompleteClaims) {
			err = jwt.WithKind(err, jwt.ErrIncompleteClaims)
		}
		return zero, err
	}
	return id, nil
}
