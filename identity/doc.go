// Package identity maps application identities to claim sets and back,
// and provides identity level Issue and Validate entry points over jwt.Provider.
package identity

import "github.com/effective-security/xlog"

var logger = xlog.NewPackageLogger("github.com/effective-security/credible", "identity")
