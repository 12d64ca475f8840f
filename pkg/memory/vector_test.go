package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.0, 1.0, -0.5, 3.14159, 1e-8}

	blob, err := serializeVector(vec)
	require.NoError(t, err)
	assert.Len(t, blob, len(vec)*4)

	got, err := deserializeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, vec, got)
}

func TestDeserializeVector_RejectsTruncatedBlob(t *testing.T) {
	_, err := deserializeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDeserializeVector_EmptyBlob(t *testing.T) {
	got, err := deserializeVector(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
