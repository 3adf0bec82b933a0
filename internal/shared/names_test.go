package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameName(t *testing.T) {
	assert.True(t, SameName("Basmati Rice", "  basmati rice "))
	assert.True(t, SameName("ÇAY", "çay"))
	assert.False(t, SameName("Rice", "Rice 5kg"))
}

func TestNormalizeNameFoldsBeyondLower(t *testing.T) {
	assert.Equal(t, NormalizeName("ΟΔΟΣ"), NormalizeName("οδο\u03c2"))
	assert.Equal(t, "rice", NormalizeName("\tRICE\n"))
}
