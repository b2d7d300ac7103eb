package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/metricskey"
	"github.com/effective-security/xlog"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"

	// register hash functions
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// Algorithm is the JWS algorithm identifier carried in the "alg" header
type Algorithm string

// Supported algorithms
const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
	RS256 Algorithm = "RS256"
	RS384 Algorithm = "RS384"
	RS512 Algorithm = "RS512"
	PS256 Algorithm = "PS256"
	PS384 Algorithm = "PS384"
	PS512 Algorithm = "PS512"
	ES256 Algorithm = "ES256"
	ES384 Algorithm = "ES384"
	ES512 Algorithm = "ES512"
	EdDSA Algorithm = "EdDSA"
	None  Algorithm = "none"
)

type unsafeNone string

// UnsafeAllowNone is the only key accepted with the "none" algorithm.
// Passing it makes the caller explicitly acknowledge that the token is unsigned.
const UnsafeAllowNone unsafeNone = "none signing method allowed"

// SigningMethod computes and verifies signatures for one algorithm
type SigningMethod interface {
	// Alg returns the algorithm identifier
	Alg() Algorithm
	// Sign returns the signature over the input
	Sign(input []byte, key any) ([]byte, error)
	// Verify returns true if the signature is valid.
	// It must not panic and must return false on any malformed input.
	Verify(input, sig []byte, key any) bool
}

var (
	methodsLock sync.RWMutex
	methods     = map[Algorithm]SigningMethod{}
)

func init() {
	for _, m := range []SigningMethod{
		&signingMethodHMAC{alg: HS256, hash: crypto.SHA256},
		&signingMethodHMAC{alg: HS384, hash: crypto.SHA384},
		&signingMethodHMAC{alg: HS512, hash: crypto.SHA512},
		&signingMethodRSA{alg: RS256, hash: crypto.SHA256},
		&signingMethodRSA{alg: RS384, hash: crypto.SHA384},
		&signingMethodRSA{alg: RS512, hash: crypto.SHA512},
		&signingMethodRSA{alg: PS256, hash: crypto.SHA256, pss: true},
		&signingMethodRSA{alg: PS384, hash: crypto.SHA384, pss: true},
		&signingMethodRSA{alg: PS512, hash: crypto.SHA512, pss: true},
		&signingMethodECDSA{alg: ES256, hash: crypto.SHA256, curve: elliptic.P256()},
		&signingMethodECDSA{alg: ES384, hash: crypto.SHA384, curve: elliptic.P384()},
		&signingMethodECDSA{alg: ES512, hash: crypto.SHA512, curve: elliptic.P521()},
		&signingMethodEd25519{},
	} {
		RegisterSigningMethod(m)
	}
}

// RegisterSigningMethod registers the signing method,
// replacing a method registered for the same algorithm.
// The "none" algorithm can not be registered.
func RegisterSigningMethod(m SigningMethod) {
	if m.Alg() == None || m.Alg() == "" {
		logger.Panicf("invalid signing method: %q", m.Alg())
	}
	methodsLock.Lock()
	defer methodsLock.Unlock()
	methods[m.Alg()] = m
}

// GetSigningMethod returns registered signing method
func GetSigningMethod(alg Algorithm) (SigningMethod, bool) {
	methodsLock.RLock()
	defer methodsLock.RUnlock()
	m, ok := methods[alg]
	return m, ok
}

// SupportedAlgorithms returns sorted list of registered algorithms
func SupportedAlgorithms() []Algorithm {
	methodsLock.RLock()
	defer methodsLock.RUnlock()
	list := make([]Algorithm, 0, len(methods))
	for alg := range methods {
		list = append(list, alg)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// Sign returns the signature over the input.
// Key must be compatible with the algorithm:
// []byte or *HMACSigner for HS*, crypto.Signer for the others.
func Sign(alg Algorithm, key any, input []byte) ([]byte, error) {
	defer metricskey.PerfJWTOperation.MeasureSince(time.Now(), string(alg), "sign")

	if alg == None {
		if key == UnsafeAllowNone {
			return []byte{}, nil
		}
		return nil, errorf(ErrUnsupportedAlgorithm, "unsigned token requires UnsafeAllowNone key")
	}
	m, ok := GetSigningMethod(alg)
	if !ok {
		return nil, errorf(ErrUnsupportedAlgorithm, "algorithm not supported: %q", alg)
	}
	return m.Sign(input, key)
}

// Verify returns true if the signature over the input is valid.
// Any failure, including a panic in the signing method, yields false.
func Verify(alg Algorithm, key any, input, sig []byte) (ok bool) {
	defer metricskey.PerfJWTOperation.MeasureSince(time.Now(), string(alg), "verify")
	defer func() {
		if r := recover(); r != nil {
			logger.KV(xlog.ERROR, "reason", "verify_panic", "alg", alg)
			ok = false
		}
	}()

	if alg == None {
		return key == UnsafeAllowNone && len(sig) == 0
	}
	m, found := GetSigningMethod(alg)
	if !found || key == nil {
		return false
	}
	return m.Verify(input, sig, key)
}

// AlgorithmForKey returns the default algorithm for the key
func AlgorithmForKey(key any) (Algorithm, error) {
	switch k := key.(type) {
	case []byte:
		return HS256, nil
	case *HMACSigner:
		return k.alg, nil
	}

	switch typ := publicKeyOf(key).(type) {
	case *rsa.PublicKey:
		keySize := typ.N.BitLen()
		switch {
		case keySize >= 4096:
			return RS512, nil
		case keySize >= 3072:
			return RS384, nil
		default:
			return RS256, nil
		}
	case *ecdsa.PublicKey:
		switch typ.Curve {
		case elliptic.P521():
			return ES512, nil
		case elliptic.P384():
			return ES384, nil
		default:
			return ES256, nil
		}
	case ed25519.PublicKey:
		return EdDSA, nil
	default:
		return "", errorf(ErrUnsupportedAlgorithm, "key not supported: %T", typ)
	}
}

// publicKeyOf returns the public part of the key,
// or the key itself if it is not a signer
func publicKeyOf(key any) crypto.PublicKey {
	switch k := key.(type) {
	case *HMACSigner:
		return k
	case crypto.Signer:
		return k.Public()
	}
	return key
}

// HMACSigner implements crypto.Signer over a symmetric key,
// so symmetric and asymmetric keys can be configured the same way
type HMACSigner struct {
	alg  Algorithm
	hash crypto.Hash
	key  []byte
}

// NewHMACSigner returns crypto.Signer for HS256, HS384 or HS512
func NewHMACSigner(alg Algorithm, key []byte) (*HMACSigner, error) {
	s := &HMACSigner{
		alg: alg,
		key: key,
	}

	switch alg {
	case HS256:
		s.hash = crypto.SHA256
	case HS384:
		s.hash = crypto.SHA384
	case HS512:
		s.hash = crypto.SHA512
	default:
		return nil, errorf(ErrUnsupportedAlgorithm, "unsupported HMAC algorithm: %q", alg)
	}
	if len(key) == 0 {
		return nil, errors.Errorf("empty HMAC key")
	}
	return s, nil
}

// Algorithm returns the HMAC algorithm
func (s *HMACSigner) Algorithm() Algorithm {
	return s.alg
}

// KeySize returns the size of the key in bits
func (s *HMACSigner) KeySize() int {
	return len(s.key) * 8
}

// Public implements crypto.Signer
func (s *HMACSigner) Public() crypto.PublicKey {
	return s
}

// Sign implements crypto.Signer.
// Unlike asymmetric signers, the message is passed as digest.
func (s *HMACSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) (signature []byte, err error) {
	hash := s.hash
	if opts != nil && opts.HashFunc() != 0 {
		hash = opts.HashFunc()
	}

	h := hmac.New(hash.New, s.key)
	h.Write(digest)

	return h.Sum(nil), nil
}

type signingMethodHMAC struct {
	alg  Algorithm
	hash crypto.Hash
}

func (m *signingMethodHMAC) Alg() Algorithm {
	return m.alg
}

func (m *signingMethodHMAC) hmacKey(key any) []byte {
	switch k := key.(type) {
	case []byte:
		return k
	case *HMACSigner:
		if k.hash == m.hash {
			return k.key
		}
	}
	return nil
}

func (m *signingMethodHMAC) Sign(input []byte, key any) ([]byte, error) {
	k := m.hmacKey(key)
	if len(k) == 0 {
		return nil, errorf(ErrUnsupportedAlgorithm, "invalid key type %T for %s signature", key, m.alg)
	}
	h := hmac.New(m.hash.New, k)
	h.Write(input)
	return h.Sum(nil), nil
}

func (m *signingMethodHMAC) Verify(input, sig []byte, key any) bool {
	k := m.hmacKey(key)
	if len(k) == 0 {
		return false
	}
	h := hmac.New(m.hash.New, k)
	h.Write(input)
	return hmac.Equal(sig, h.Sum(nil))
}

type signingMethodRSA struct {
	alg  Algorithm
	hash crypto.Hash
	pss  bool
}

func (m *signingMethodRSA) Alg() Algorithm {
	return m.alg
}

func (m *signingMethodRSA) Sign(input []byte, key any) ([]byte, error) {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, errorf(ErrUnsupportedAlgorithm, "invalid key type %T for %s signature", key, m.alg)
	}
	if _, ok = signer.Public().(*rsa.PublicKey); !ok {
		return nil, errorf(ErrUnsupportedAlgorithm, "invalid key type %T for %s signature", signer.Public(), m.alg)
	}

	h := m.hash.New()
	h.Write(input)

	var opts crypto.SignerOpts = m.hash
	if m.pss {
		opts = &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
			Hash:       m.hash,
		}
	}
	sig, err := signer.Sign(rand.Reader, h.Sum(nil), opts)
	if err != nil {
		return nil, errors.WithMessagef(err, "unable to sign %s", m.alg)
	}
	return sig, nil
}

func (m *signingMethodRSA) Verify(input, sig []byte, key any) bool {
	pub, ok := publicKeyOf(key).(*rsa.PublicKey)
	if !ok || len(sig) == 0 {
		return false
	}

	h := m.hash.New()
	h.Write(input)

	if m.pss {
		return rsa.VerifyPSS(pub, m.hash, h.Sum(nil), sig, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthAuto,
			Hash:       m.hash,
		}) == nil
	}
	return rsa.VerifyPKCS1v15(pub, m.hash, h.Sum(nil), sig) == nil
}

type signingMethodECDSA struct {
	alg   Algorithm
	hash  crypto.Hash
	curve elliptic.Curve
}

func (m *signingMethodECDSA) Alg() Algorithm {
	return m.alg
}

func (m *signingMethodECDSA) keyBytes() int {
	curveBits := m.curve.Params().BitSize
	keyBytes := curveBits / 8
	if curveBits%8 > 0 {
		keyBytes++
	}
	return keyBytes
}

func (m *signingMethodECDSA) Sign(input []byte, key any) ([]byte, error) {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, errorf(ErrUnsupportedAlgorithm, "invalid key type %T for %s signature", key, m.alg)
	}
	pub, ok := signer.Public().(*ecdsa.PublicKey)
	if !ok || pub.Curve != m.curve {
		return nil, errorf(ErrUnsupportedAlgorithm, "invalid key for %s signature", m.alg)
	}

	h := m.hash.New()
	h.Write(input)

	der, err := signer.Sign(rand.Reader, h.Sum(nil), m.hash)
	if err != nil {
		return nil, errors.WithMessagef(err, "unable to sign %s", m.alg)
	}

	// crypto.Signer returns ASN1{r,s}, JWS expects r||s
	var (
		r, s  = &big.Int{}, &big.Int{}
		inner cryptobyte.String
	)
	in := cryptobyte.String(der)
	if !in.ReadASN1(&inner, asn1.SEQUENCE) ||
		!in.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, errors.Errorf("unable to decode ECDSA signature")
	}

	// r and s are big-endian, padded with zeros on the left
	keyBytes := m.keyBytes()
	out := make([]byte, 2*keyBytes)
	r.FillBytes(out[:keyBytes])
	s.FillBytes(out[keyBytes:])
	return out, nil
}

func (m *signingMethodECDSA) Verify(input, sig []byte, key any) bool {
	pub, ok := publicKeyOf(key).(*ecdsa.PublicKey)
	if !ok || pub.Curve != m.curve {
		return false
	}
	keyBytes := m.keyBytes()
	if len(sig) != 2*keyBytes {
		return false
	}

	h := m.hash.New()
	h.Write(input)

	r := new(big.Int).SetBytes(sig[:keyBytes])
	s := new(big.Int).SetBytes(sig[keyBytes:])
	return ecdsa.Verify(pub, h.Sum(nil), r, s)
}

type signingMethodEd25519 struct{}

func (m *signingMethodEd25519) Alg() Algorithm {
	return EdDSA
}

func (m *signingMethodEd25519) Sign(input []byte, key any) ([]byte, error) {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, errorf(ErrUnsupportedAlgorithm, "invalid key type %T for EdDSA signature", key)
	}
	if _, ok = signer.Public().(ed25519.PublicKey); !ok {
		return nil, errorf(ErrUnsupportedAlgorithm, "invalid key type %T for EdDSA signature", signer.Public())
	}
	sig, err := signer.Sign(rand.Reader, input, crypto.Hash(0))
	if err != nil {
		return nil, errors.WithMessage(err, "unable to sign EdDSA")
	}
	return sig, nil
}

func (m *signingMethodEd25519) Verify(input, sig []byte, key any) bool {
	pub, ok := publicKeyOf(key).(ed25519.PublicKey)
	if !ok || len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, input, sig)
}
