package course

import "github.com/trezcool/mahudhurio/core"

// inviteAlphabet leaves out easily-confused characters (0/O, 1/I/L).
const (
	inviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	inviteCodeLen  = 8
)

// generateInviteCode returns a cryptographically random course invite code.
func generateInviteCode() (string, error) {
	return core.RandomCode(inviteAlphabet, inviteCodeLen)
}
