package jwt

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// TokenType is the default "typ" header
const TokenType = "JWT"

// Header is the JOSE header of a token
type Header struct {
	// Algorithm is the "alg" header
	Algorithm Algorithm
	// Type is the "typ" header, JWT by default
	Type string
	// KeyID is the optional "kid" header
	KeyID string
	// Extra headers, serialized sorted by name after the registered ones
	Extra map[string]any
}

var reservedHeaders = map[string]bool{
	"alg": true,
	"typ": true,
	"kid": true,
}

// MarshalJSON returns canonical JSON of the header:
// alg, typ, kid, then extra headers sorted by name
func (h Header) MarshalJSON() ([]byte, error) {
	typ := h.Type
	if typ == "" {
		typ = TokenType
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(name string, value any) error {
		v, err := json.Marshal(value)
		if err != nil {
			return errors.WithMessagef(err, "unable to encode header %q", name)
		}
		k, _ := json.Marshal(name)
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if err := write("alg", h.Algorithm); err != nil {
		return nil, err
	}
	if err := write("typ", typ); err != nil {
		return nil, err
	}
	if h.KeyID != "" {
		if err := write("kid", h.KeyID); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(h.Extra))
	for k := range h.Extra {
		if reservedHeaders[k] {
			return nil, errors.Errorf("reserved header can not be overridden: %q", k)
		}
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := write(k, h.Extra[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the header, "alg" must be non-empty string
func (h *Header) UnmarshalJSON(b []byte) error {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return errors.WithMessage(err, "invalid header")
	}
	if m == nil {
		return errors.Errorf("header must be JSON object")
	}

	alg, ok := m["alg"].(string)
	if !ok || alg == "" {
		return errors.Errorf("missing alg header")
	}

	hdr := Header{
		Algorithm: Algorithm(alg),
	}
	if typ, ok := m["typ"]; ok {
		if hdr.Type, ok = typ.(string); !ok {
			return errors.Errorf("invalid typ header: %T", typ)
		}
	}
	switch kid := m["kid"].(type) {
	case nil:
	case string:
		hdr.KeyID = kid
	case json.Number:
		hdr.KeyID = kid.String()
	default:
		return errors.Errorf("invalid kid header: %T", kid)
	}

	for k, v := range m {
		if reservedHeaders[k] {
			continue
		}
		if hdr.Extra == nil {
			hdr.Extra = map[string]any{}
		}
		hdr.Extra[k] = v
	}
	*h = hdr
	return nil
}

// CompactToken is a token in the compact serialization
type CompactToken string

// String returns the token
func (t CompactToken) String() string {
	return string(t)
}

// Segments returns the three segments of the token
func (t CompactToken) Segments() ([]string, error) {
	return splitToken(string(t))
}

// SigningInput returns encoded header and claims,
// joined with "."
func SigningInput(header Header, claims *ClaimSet) (string, error) {
	if claims == nil {
		claims = NewClaimSet()
	}
	jsonHeader, err := json.Marshal(header)
	if err != nil {
		return "", errors.WithStack(err)
	}
	jsonClaims, err := json.Marshal(claims)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return EncodeSegment(jsonHeader) + "." + EncodeSegment(jsonClaims), nil
}

// Build returns signed compact token
func Build(header Header, claims *ClaimSet, key any) (CompactToken, error) {
	input, err := SigningInput(header, claims)
	if err != nil {
		return "", err
	}
	sig, err := Sign(header.Algorithm, key, []byte(input))
	if err != nil {
		return "", err
	}
	return CompactToken(input + "." + EncodeSegment(sig)), nil
}

func splitToken(token string) ([]string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errorf(ErrMalformedToken, "token must have 3 segments, got %d", len(parts))
	}
	return parts, nil
}
