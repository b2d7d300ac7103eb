package certutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"

	"github.com/cockroachdb/errors"
	jose "github.com/go-jose/go-jose/v3"
)

// KeyInfo provides information about the key
type KeyInfo struct {
	KeySize   int
	Type      string
	IsPrivate bool
	Hash      crypto.Hash
	Key       any
}

// Key types
const (
	KeyTypeRSA     = "RSA"
	KeyTypeECDSA   = "ECDSA"
	KeyTypeEd25519 = "Ed25519"
)

// NewKeyInfo returns *KeyInfo
func NewKeyInfo(k any) (*KeyInfo, error) {
	ki := &KeyInfo{Key: k}
	var pubKey crypto.PublicKey

	switch typ := k.(type) {
	case *rsa.PrivateKey:
		ki.IsPrivate = true
		pubKey = &typ.PublicKey
	case *ecdsa.PrivateKey:
		ki.IsPrivate = true
		pubKey = &typ.PublicKey
	case ed25519.PrivateKey:
		ki.IsPrivate = true
		pubKey = typ.Public()
	case crypto.Signer:
		ki.IsPrivate = true
		pubKey = typ.Public()
	case *jose.JSONWebKey:
		return NewKeyInfo(typ.Key)
	case jose.JSONWebKey:
		return NewKeyInfo(typ.Key)
	default:
		pubKey = k
	}

	switch typ := pubKey.(type) {
	case *rsa.PublicKey:
		ki.KeySize = typ.N.BitLen()
		ki.Type = KeyTypeRSA
	case *ecdsa.PublicKey:
		ki.Type = KeyTypeECDSA
		ki.KeySize = typ.Curve.Params().BitSize
	case ed25519.PublicKey:
		ki.Type = KeyTypeEd25519
		ki.KeySize = 256
	default:
		return nil, errors.Errorf("key not supported: %T", typ)
	}
	ki.Hash = hashAlgo(pubKey)
	return ki, nil
}

func hashAlgo(pub crypto.PublicKey) crypto.Hash {
	switch pub := pub.(type) {
	case *rsa.PublicKey:
		keySize := pub.N.BitLen()
		switch {
		case keySize >= 4096:
			return crypto.SHA512
		case keySize >= 3072:
			return crypto.SHA384
		default:
			return crypto.SHA256
		}
	case *ecdsa.PublicKey:
		switch pub.Curve {
		case elliptic.P384():
			return crypto.SHA384
		case elliptic.P521():
			return crypto.SHA512
		default:
			return crypto.SHA256
		}
	default:
		// Ed25519 hashes internally
		return crypto.Hash(0)
	}
}
