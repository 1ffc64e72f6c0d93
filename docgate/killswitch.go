package docgate

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DenyList is an operator-maintained set of SHA-256 digests rejected before
// any content analysis. The manual override channel for known-bad files.
type DenyList map[string]struct{}

// ParseDenyList accepts digests separated by commas, whitespace or newlines.
// Entries that are not 64 hex characters are ignored; the list is operator
// input and a typo must not take the service down.
func ParseDenyList(raw string) DenyList {
	dl := make(DenyList)
	for _, entry := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\r' || r == '\t' || r == ';'
	}) {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if len(entry) != 64 {
			continue
		}
		if _, err := hex.DecodeString(entry); err != nil {
			continue
		}
		dl[entry] = struct{}{}
	}
	return dl
}

// Contains reports whether the given lowercase hex digest is denied.
func (dl DenyList) Contains(digest string) bool {
	_, ok := dl[strings.ToLower(digest)]
	return ok
}

// HashBytes returns the lowercase hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
