package jwt

import (
	"encoding/base64"
	"strings"
)

// segmentEncoding rejects padding and non-zero trailing bits,
// so every segment has exactly one valid encoding
var segmentEncoding = base64.RawURLEncoding.Strict()

// EncodeSegment returns JWT specific base64url encoding with padding stripped
func EncodeSegment(seg []byte) string {
	return segmentEncoding.EncodeToString(seg)
}

// DecodeSegment decodes JWT specific base64url encoding with padding stripped.
// The error is marked as ErrMalformedEncoding.
func DecodeSegment(seg string) ([]byte, error) {
	// the stdlib decoder skips line breaks
	if strings.ContainsAny(seg, "\r\n") {
		return nil, errorf(ErrMalformedEncoding, "invalid base64url: line break in segment")
	}
	b, err := segmentEncoding.DecodeString(seg)
	if err != nil {
		return nil, markf(err, ErrMalformedEncoding, "invalid base64url")
	}
	return b, nil
}
