package jwt

import (
	"encoding/json"
)

// Token is a decoded compact token
type Token struct {
	// Raw is the compact token
	Raw string
	// Header is the decoded first segment
	Header Header
	// Claims is the decoded second segment
	Claims *ClaimSet
	// Signature is the decoded third segment
	Signature []byte
}

// SigningInput returns the first two segments as they appear in the token
func (t *Token) SigningInput() string {
	parts, err := splitToken(t.Raw)
	if err != nil {
		return ""
	}
	return parts[0] + "." + parts[1]
}

// ParseUnverified decodes the token but doesn't validate the signature.
// WARNING: Don't use the claims of the returned token for authorization,
// use Validator instead.
func ParseUnverified(token string) (*Token, error) {
	parts, err := splitToken(token)
	if err != nil {
		return nil, err
	}
	header, err := decodeHeader(parts[0])
	if err != nil {
		return nil, err
	}
	claims, err := decodeClaims(parts[1])
	if err != nil {
		return nil, err
	}
	sig, err := DecodeSegment(parts[2])
	if err != nil {
		return nil, markf(err, ErrMalformedToken, "unable to decode signature")
	}
	return &Token{
		Raw:       token,
		Header:    *header,
		Claims:    claims,
		Signature: sig,
	}, nil
}

func decodeHeader(seg string) (*Header, error) {
	raw, err := DecodeSegment(seg)
	if err != nil {
		return nil, markf(err, ErrMalformedToken, "unable to decode header")
	}
	var h Header
	if err = json.Unmarshal(raw, &h); err != nil {
		return nil, markf(err, ErrMalformedToken, "unable to decode header")
	}
	return &h, nil
}

func decodeClaims(seg string) (*ClaimSet, error) {
	raw, err := DecodeSegment(seg)
	if err != nil {
		return nil, markf(err, ErrMalformedToken, "unable to decode claims")
	}
	claims := NewClaimSet()
	if err = json.Unmarshal(raw, claims); err != nil {
		return nil, markf(err, ErrMalformedToken, "unable to decode claims")
	}
	return claims, nil
}
