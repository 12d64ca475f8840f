package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash(t *testing.T) {
	// Stable across calls
	assert.Equal(t, ContentHash("hello"), ContentHash("hello"))

	// Known sha256 digest, so the key format never drifts between releases
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		ContentHash("hello"))

	assert.NotEqual(t, ContentHash("hello"), ContentHash("hello "))
	assert.NotEqual(t, ContentHash(""), ContentHash(" "))
	assert.Len(t, ContentHash(""), 64)
}
