package cli

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/certutil"
	"github.com/effective-security/credible/jwt"
)

// GenKeyCmd generates a signing key
type GenKeyCmd struct {
	Alg  string `help:"algorithm of the key (HS256|HS384|HS512|RS256|PS256|ES256|ES384|ES512|EdDSA)" default:"ES256"`
	Kid  string `help:"optional, key ID, the thumbprint is used by default"`
	Size int    `help:"optional, RSA key size" default:"2048"`
	Out  string `help:"optional, file prefix to save .key and .pub files"`
}

// Run the command
func (a *GenKeyCmd) Run(ctx *Cli) error {
	alg := jwt.Algorithm(a.Alg)
	if _, ok := jwt.GetSigningMethod(alg); !ok {
		return errors.Errorf("algorithm not supported: %q", a.Alg)
	}

	if strings.HasPrefix(a.Alg, "HS") {
		// seed for the keys section of the provider configuration
		seed := certutil.RandomString(32)
		if a.Out != "" {
			return saveFile(a.Out+".seed", []byte(seed+"\n"), 0600)
		}
		fmt.Fprintln(ctx.Writer(), seed)
		return nil
	}

	key, err := generateKey(alg, a.Size)
	if err != nil {
		return err
	}

	priv, err := certutil.EncodePrivateKeyToPEM(key)
	if err != nil {
		return err
	}
	pub, err := certutil.EncodePublicKeyToPEM(key.Public())
	if err != nil {
		return err
	}

	if a.Out != "" {
		if err = saveFile(a.Out+".key", priv, 0600); err != nil {
			return err
		}
		if err = saveFile(a.Out+".pub", pub, 0644); err != nil {
			return err
		}
	} else {
		fmt.Fprint(ctx.Writer(), string(priv))
		fmt.Fprint(ctx.Writer(), string(pub))
	}

	jwks, err := jwt.PublicJWKS(jwt.VerificationKey{ID: a.Kid, Algorithm: alg, Key: key.Public()})
	if err != nil {
		return err
	}
	return ctx.WriteJSON(jwks.Keys[0])
}

func generateKey(alg jwt.Algorithm, size int) (crypto.Signer, error) {
	var (
		key crypto.Signer
		err error
	)
	switch alg {
	case jwt.RS256, jwt.RS384, jwt.RS512, jwt.PS256, jwt.PS384, jwt.PS512:
		key, err = rsa.GenerateKey(rand.Reader, size)
	case jwt.ES256:
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case jwt.ES384:
		key, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case jwt.ES512:
		key, err = ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	case jwt.EdDSA:
		_, key, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, errors.Errorf("algorithm not supported: %q", alg)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "unable to generate key")
	}
	return key, nil
}

func saveFile(file string, data []byte, perm os.FileMode) error {
	err := os.WriteFile(file, data, perm)
	if err != nil {
		return errors.WithMessagef(err, "unable to save file: %s", file)
	}
	return nil
}
