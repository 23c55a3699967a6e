package checkin

import "github.com/trezcool/mahudhurio/core"

// secretAlphabet leaves out easily-confused characters (0/O, 1/I/L).
const (
	secretAlphabet   = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	defaultSecretLen = 8
)

// generateSecret returns a cryptographically random check-in code secret.
func generateSecret(length int) (string, error) {
	if length <= 0 {
		length = defaultSecretLen
	}
	return core.RandomCode(secretAlphabet, length)
}
