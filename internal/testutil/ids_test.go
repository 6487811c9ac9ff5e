package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedIDGenerator(t *testing.T) {
	assert.Equal(t, "req-1", NewFixedIDGenerator("req-1").Generate())
	assert.Equal(t, "test-request", NewFixedIDGenerator("").Generate())
}

func TestSequenceReader_DistinctReads(t *testing.T) {
	r := &SequenceReader{}
	a := make([]byte, 4)
	b := make([]byte, 4)

	n, err := r.Read(a)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	_, err = r.Read(b)
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 1, 1, 1}, a)
	assert.Equal(t, []byte{2, 2, 2, 2}, b)
}
