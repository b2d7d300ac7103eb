package identity

import (
	"math"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/jwt"
)

// ErrNoFactory is returned at startup when the identity factory is not configured
var ErrNoFactory = errors.New("identity factory not configured")

// Factory maps identity to claims and back.
// Both methods must be pure: no I/O and no shared state.
type Factory[T any] interface {
	// ToClaims returns claims for the identity,
	// an error means the identity is not well-formed
	ToClaims(id T) (*jwt.ClaimSet, error)
	// FromClaims returns identity from validated claims.
	// It fails if required claims are missing,
	// and applies defaults for optional claims.
	FromClaims(claims *jwt.ClaimSet) (T, error)
}

// Funcs adapts two functions to Factory
type Funcs[T any] struct {
	To   func(id T) (*jwt.ClaimSet, error)
	From func(claims *jwt.ClaimSet) (T, error)
}

// ToClaims implements Factory
func (f Funcs[T]) ToClaims(id T) (*jwt.ClaimSet, error) {
	return f.To(id)
}

// FromClaims implements Factory
func (f Funcs[T]) FromClaims(claims *jwt.ClaimSet) (T, error) {
	return f.From(claims)
}

// checkFactory returns ErrNoFactory if the factory is nil, typed nil,
// or Funcs with a missing function
func checkFactory[T any](f Factory[T]) error {
	if f == nil {
		return ErrNoFactory
	}
	switch tf := f.(type) {
	case Funcs[T]:
		if tf.To == nil || tf.From == nil {
			return ErrNoFactory
		}
	case *Funcs[T]:
		if tf == nil || tf.To == nil || tf.From == nil {
			return ErrNoFactory
		}
	}
	v := reflect.ValueOf(f)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		if v.IsNil() {
			return ErrNoFactory
		}
	}
	return nil
}

// RequireString returns the string claim,
// or ErrIncompleteClaims if it is missing or empty
func RequireString(claims *jwt.ClaimSet, name string) (string, error) {
	v, ok := claims.Get(name)
	if !ok {
		return "", jwt.WithKind(errors.Errorf("missing claim: %q", name), jwt.ErrIncompleteClaims)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", jwt.WithKind(errors.Errorf("invalid claim: %q", name), jwt.ErrIncompleteClaims)
	}
	return s, nil
}

// RequireInt returns the integer claim,
// or ErrIncompleteClaims if it is missing or not an integer
func RequireInt(claims *jwt.ClaimSet, name string) (int64, error) {
	v, ok := claims.Get(name)
	if !ok {
		return 0, jwt.WithKind(errors.Errorf("missing claim: %q", name), jwt.ErrIncompleteClaims)
	}
	switch tv := v.(type) {
	case int64:
		return tv, nil
	case float64:
		if tv == math.Trunc(tv) && math.Abs(tv) < math.MaxInt64 {
			return int64(tv), nil
		}
	}
	return 0, jwt.WithKind(errors.Errorf("invalid claim: %q", name), jwt.ErrIncompleteClaims)
}

// OptionalStrings returns the claim as list of strings,
// or an empty list if it is missing or has another type
func OptionalStrings(claims *jwt.ClaimSet, name string) []string {
	list := claims.Strings(name)
	if list == nil {
		return []string{}
	}
	return list
}
