// Package redact masks credentials embedded in connection URLs before
// they reach a log line. Database URLs carry usernames and passwords
// that must not be logged in full.
package redact

import (
	"net/url"
	"strings"
)

// URL returns s with any password in its userinfo replaced by "***",
// keeping the username and the rest of the URL (scheme, host, path, query) intact for
// diagnostics. If s does not parse as a URL, it is returned unchanged
// except that any "://" is left alone -- callers should prefer passing
// already-validated connection strings.
func URL(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	redacted := *u
	redacted.User = url.User(u.User.Username())
	out := redacted.String()
	if _, hasPassword := u.User.Password(); hasPassword {
		// url.UserPassword would percent-encode the mask as %2A%2A%2A, so
		// it is inserted after encoding, before the first "@" (the
		// userinfo delimiter, since "@" in a username is escaped).
		out = strings.Replace(out, "@", ":***@", 1)
	}
	return out
}
