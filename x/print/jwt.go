package print

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/effective-security/credible/jwt"
)

// Token prints decoded token header and claims
func Token(w io.Writer, t *jwt.Token) {
	fmt.Fprintf(w, "Algorithm: %s\n", t.Header.Algorithm)
	if t.Header.Type != "" {
		fmt.Fprintf(w, "Type: %s\n", t.Header.Type)
	}
	if t.Header.KeyID != "" {
		fmt.Fprintf(w, "KeyID: %s\n", t.Header.KeyID)
	}
	if len(t.Signature) > 0 {
		fmt.Fprintf(w, "Signature: %s\n", hex.EncodeToString(t.Signature))
	}
	fmt.Fprintf(w, "Claims:\n")
	ClaimSet(w, t.Claims)
}

// ClaimSet prints claims in their order, numeric dates are printed as time
func ClaimSet(w io.Writer, c *jwt.ClaimSet) {
	if c == nil {
		return
	}
	for _, name := range c.Names() {
		v, _ := c.Get(name)
		switch name {
		case jwt.ClaimExpiresAt, jwt.ClaimNotBefore, jwt.ClaimIssuedAt:
			if t := c.Time(name); t != nil {
				fmt.Fprintf(w, "  %s: %s\n", name, t.UTC().Format(time.RFC3339))
				continue
			}
		}
		fmt.Fprintf(w, "  %s: %v\n", name, v)
	}
}

// SignedToken prints issued token
func SignedToken(w io.Writer, t *jwt.SignedToken) {
	fmt.Fprintf(w, "%s\n", t.Value)
}
