package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", TruncateRunes("abc", 10))
	assert.Equal(t, "ab", TruncateRunes("abcd", 2))
	assert.Equal(t, "", TruncateRunes("abc", 0))
	assert.Equal(t, "hél", TruncateRunes("héllo", 3), "must not split multi-byte runes")
}
