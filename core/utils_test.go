package core_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
)

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Hero", core.CleanString("  Hero\t\n"))
	assert.Equal(t, "hero", core.CleanString("  Hero ", true))
}

func TestRandomCode(t *testing.T) {
	alphabet := "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	for _, n := range []int{1, 8, 31, 64} {
		code, err := core.RandomCode(alphabet, n)
		require.NoError(t, err)
		require.Len(t, code, n)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(alphabet, c), "unexpected character %q", c)
		}
	}

	// 31^8 codes; collisions here would mean broken generation
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := core.RandomCode(alphabet, 8)
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %q", code)
		seen[code] = struct{}{}
	}
}
