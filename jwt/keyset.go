package jwt

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	jose "github.com/go-jose/go-jose/v3"
)

// KeySet provides keys to verify token signatures
type KeySet interface {
	// VerificationKeys returns candidate keys for the algorithm and key ID.
	// An empty kid matches all keys.
	VerificationKeys(ctx context.Context, alg Algorithm, kid string) ([]any, error)
}

// VerificationKey is a key with its ID and optional algorithm
type VerificationKey struct {
	// ID of the key, an empty ID matches any kid
	ID string
	// Algorithm restricts the key to one algorithm, if set
	Algorithm Algorithm
	// Key is []byte or *HMACSigner for HMAC,
	// a public key or crypto.Signer for the others
	Key any
}

// StaticKeySet is a KeySet over a fixed list of keys
type StaticKeySet struct {
	Keys []VerificationKey
}

// NewStaticKeySet returns StaticKeySet
func NewStaticKeySet(keys ...VerificationKey) *StaticKeySet {
	return &StaticKeySet{Keys: keys}
}

// VerificationKeys implements KeySet
func (s *StaticKeySet) VerificationKeys(_ context.Context, alg Algorithm, kid string) ([]any, error) {
	var list []any
	for _, k := range s.Keys {
		if kid != "" && k.ID != "" && k.ID != kid {
			continue
		}
		if k.Algorithm != "" && k.Algorithm != alg {
			continue
		}
		if !keyCompatible(alg, k.Key) {
			continue
		}
		list = append(list, k.Key)
	}
	if len(list) == 0 {
		return nil, errors.Errorf("key not found: %q", kid)
	}
	return list, nil
}

// MultiKeySet combines key sets.
// Keys are returned from the first set that has matching keys,
// so a remote set is queried only for keys unknown to the sets before it.
type MultiKeySet []KeySet

// VerificationKeys implements KeySet
func (m MultiKeySet) VerificationKeys(ctx context.Context, alg Algorithm, kid string) ([]any, error) {
	lastErr := errors.Errorf("key not found: %q", kid)
	for _, ks := range m {
		keys, err := ks.VerificationKeys(ctx, alg, kid)
		if err != nil {
			lastErr = err
			continue
		}
		if len(keys) > 0 {
			return keys, nil
		}
	}
	return nil, lastErr
}

// keyCompatible returns true if the key can be used with the algorithm
func keyCompatible(alg Algorithm, key any) bool {
	a := string(alg)
	switch {
	case strings.HasPrefix(a, "HS"):
		switch key.(type) {
		case []byte, *HMACSigner:
			return true
		}
		return false
	case strings.HasPrefix(a, "RS"), strings.HasPrefix(a, "PS"):
		_, ok := publicKeyOf(key).(*rsa.PublicKey)
		return ok
	case strings.HasPrefix(a, "ES"):
		_, ok := publicKeyOf(key).(*ecdsa.PublicKey)
		return ok
	case alg == EdDSA:
		_, ok := publicKeyOf(key).(ed25519.PublicKey)
		return ok
	}
	// custom signing methods decide on their own
	return true
}

// PublicJWKS returns JWKS with public parts of the asymmetric keys.
// HMAC keys are never exported.
// If the key has no ID, the RFC 7638 thumbprint is used.
func PublicJWKS(keys ...VerificationKey) (*jose.JSONWebKeySet, error) {
	set := &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}}
	for _, k := range keys {
		pub := publicKeyOf(k.Key)
		switch pub.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		default:
			continue
		}

		alg := k.Algorithm
		if alg == "" {
			var err error
			if alg, err = AlgorithmForKey(pub); err != nil {
				return nil, err
			}
		}

		jwk := jose.JSONWebKey{
			Key:       pub,
			KeyID:     k.ID,
			Algorithm: string(alg),
			Use:       "sig",
		}
		if jwk.KeyID == "" {
			tp, err := jwk.Thumbprint(crypto.SHA256)
			if err != nil {
				return nil, errors.WithMessage(err, "unable to compute thumbprint")
			}
			jwk.KeyID = EncodeSegment(tp)
		}
		set.Keys = append(set.Keys, jwk)
	}
	return set, nil
}

// NewRemoteKeySet returns a KeySet that fetches JWKS hosted at a remote URL.
// The keys are cached, and refreshed when a token has unknown kid.
//
// The context is used for the HTTP requests, reuse a remote key set
// instead of creating new ones as needed.
func NewRemoteKeySet(ctx context.Context, jwksURL string) *RemoteKeySet {
	return &RemoteKeySet{
		jwksURL: jwksURL,
		ctx:     ctx,
		client:  http.DefaultClient,
	}
}

// RemoteKeySet is a KeySet over a jwks_uri endpoint
type RemoteKeySet struct {
	jwksURL string
	ctx     context.Context
	client  *http.Client

	// guard all other fields
	mu sync.RWMutex

	// inflight suppresses parallel execution of updateKeys and allows
	// multiple goroutines to wait for its result.
	inflight *inflight

	cachedKeys []jose.JSONWebKey
}

// WithHTTPClient sets the client to fetch keys
func (r *RemoteKeySet) WithHTTPClient(client *http.Client) *RemoteKeySet {
	r.client = client
	return r
}

// inflight is used to wait on some in-flight request from multiple goroutines.
type inflight struct {
	doneCh chan struct{}

	keys []jose.JSONWebKey
	err  error
}

func newInflight() *inflight {
	return &inflight{doneCh: make(chan struct{})}
}

// wait returns a channel that multiple goroutines can receive on. Once it returns
// a value, the inflight request is done and result() can be inspected.
func (i *inflight) wait() <-chan struct{} {
	return i.doneCh
}

// done can only be called by a single goroutine.
func (i *inflight) done(keys []jose.JSONWebKey, err error) {
	i.keys = keys
	i.err = err
	close(i.doneCh)
}

// result cannot be called until the wait() channel has returned a value.
func (i *inflight) result() ([]jose.JSONWebKey, error) {
	return i.keys, i.err
}

// VerificationKeys implements KeySet
func (r *RemoteKeySet) VerificationKeys(ctx context.Context, alg Algorithm, kid string) ([]any, error) {
	if list := matchJWKs(r.keysFromCache(), alg, kid); len(list) > 0 {
		return list, nil
	}

	// the kid is unknown, the keys may have been rotated
	// https://openid.net/specs/openid-connect-core-1_0.html#RotateSigKeys
	keys, err := r.keysFromRemote(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "unable to fetch JWKS")
	}
	if list := matchJWKs(keys, alg, kid); len(list) > 0 {
		return list, nil
	}
	return nil, errors.Errorf("key not found: %q", kid)
}

func matchJWKs(keys []jose.JSONWebKey, alg Algorithm, kid string) []any {
	var list []any
	for _, key := range keys {
		if kid != "" && key.KeyID != kid {
			continue
		}
		if key.Algorithm != "" && key.Algorithm != string(alg) {
			continue
		}
		if key.Use != "" && key.Use != "sig" {
			continue
		}
		if keyCompatible(alg, key.Key) {
			list = append(list, key.Key)
		}
	}
	return list
}

func (r *RemoteKeySet) keysFromCache() (keys []jose.JSONWebKey) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cachedKeys
}

// keysFromRemote syncs the key set from the remote set, records the values in the
// cache, and returns the key set.
func (r *RemoteKeySet) keysFromRemote(ctx context.Context) ([]jose.JSONWebKey, error) {
	r.mu.Lock()
	if r.inflight == nil {
		current := newInflight()
		r.inflight = current

		// This goroutine has exclusive ownership over the current inflight
		// request. It releases the resource by nil'ing the inflight field
		// once the goroutine is done.
		go func() {
			keys, err := r.updateKeys()

			// the cache is updated before waiters are released
			r.mu.Lock()
			if err == nil {
				r.cachedKeys = keys
			}
			r.inflight = nil
			r.mu.Unlock()

			current.done(keys, err)
		}()
	}
	inflight := r.inflight
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-inflight.wait():
		return inflight.result()
	}
}

func (r *RemoteKeySet) updateKeys() ([]jose.JSONWebKey, error) {
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create request")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to fetch keys")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("get keys failed: %s", resp.Status)
	}

	var keySet jose.JSONWebKeySet
	if err = json.Unmarshal(body, &keySet); err != nil {
		return nil, errors.WithMessage(err, "failed to decode keys")
	}
	return keySet.Keys, nil
}
