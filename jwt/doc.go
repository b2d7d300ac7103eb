// Package jwt provides JSON Web Token (JWT) issuance and validation.
//
// This package implements JWT as defined by RFC 7519, with support for:
//   - compact serialization with strict base64url segments
//   - signing and verification with HMAC, RSA, RSA-PSS, ECDSA and Ed25519,
//     asymmetric keys are used through crypto.Signer
//   - ordered claim sets, serialized in the order claims were added
//   - validation of algorithm, signature, time bounds, issuer, audience and subject
//     against expectations configured at startup
//   - JWKS (JSON Web Key Set) for key distribution
//
// Provider combines issuance options and validation expectations,
// it can be loaded from YAML or JSON configuration.
package jwt

import "github.com/effective-security/xlog"

var logger = xlog.NewPackageLogger("github.com/effective-security/credible", "jwt")
