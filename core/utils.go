package core

import (
	"crypto/rand"
	"strings"

	"github.com/pkg/errors"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// RandomCode returns n cryptographically random characters drawn uniformly
// from alphabet. Bytes past the largest multiple of len(alphabet) are
// rejected so no character is overrepresented.
func RandomCode(alphabet string, n int) (string, error) {
	maxByte := 256 - 256%len(alphabet)
	code := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(code) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, "reading random bytes")
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			code = append(code, alphabet[int(b)%len(alphabet)])
			if len(code) == n {
				break
			}
		}
	}
	return string(code), nil
}
