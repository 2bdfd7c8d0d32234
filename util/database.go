// Package util provides small helpers shared across the backend.
//
//revive:disable-next-line:var-naming
package util

import (
	"strings"
)

const maxKeyLength = 254

// SanitizeKey turns a fixture or external id into a valid document key.
// Characters outside the set ArangoDB allows in _key become '-'.
func SanitizeKey(key string) string {
	key = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case strings.ContainsRune("_-:.@()+,=;$!*'%", r):
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(key))

	if len(key) > maxKeyLength {
		key = key[:maxKeyLength]
	}
	return key
}
