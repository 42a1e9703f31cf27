package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytes_Deterministic(t *testing.T) {
	a := HashBytes([]byte("front-image"))
	assert.Equal(t, a, HashBytes([]byte("front-image")))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashBytes([]byte("front-imagf")))

	// SHA-256 of the empty input
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashBytes(nil))
}

func TestHashDocumentNumber_TypeScoped(t *testing.T) {
	a := HashDocumentNumber("123456789012", "aadhaar")
	b := HashDocumentNumber("123456789012", "national_id")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashDocumentNumber("123456789012", "aadhaar"))
}

func TestMerkleRoot(t *testing.T) {
	h1 := HashString("1")
	h2 := HashString("2")
	h3 := HashString("3")
	h4 := HashString("4")

	t.Run("empty input returns constant sentinel hash", func(t *testing.T) {
		assert.Equal(t, MerkleRoot(nil), MerkleRoot([]string{}))
		assert.Equal(t, HashString(EmptyMerkleSentinel), MerkleRoot(nil))
	})

	t.Run("single leaf is its own root", func(t *testing.T) {
		assert.Equal(t, h1, MerkleRoot([]string{h1}))
	})

	t.Run("pair hashes the concatenation", func(t *testing.T) {
		assert.Equal(t, HashString(h1+h2), MerkleRoot([]string{h1, h2}))
	})

	t.Run("odd level duplicates the last element", func(t *testing.T) {
		want := HashString(HashString(h1+h2) + HashString(h3+h3))
		assert.Equal(t, want, MerkleRoot([]string{h1, h2, h3}))
	})

	t.Run("same order reproduces the root", func(t *testing.T) {
		leaves := []string{h1, h2, h3, h4}
		assert.Equal(t, MerkleRoot(leaves), MerkleRoot([]string{h1, h2, h3, h4}))
	})

	t.Run("swapping non-adjacent leaves changes the root", func(t *testing.T) {
		assert.NotEqual(t, MerkleRoot([]string{h1, h2, h3, h4}), MerkleRoot([]string{h3, h2, h1, h4}))
	})

	t.Run("does not mutate the caller slice", func(t *testing.T) {
		leaves := make([]string, 3, 4)
		copy(leaves, []string{h1, h2, h3})
		MerkleRoot(leaves)
		assert.Equal(t, []string{h1, h2, h3}, leaves)
		assert.Equal(t, "", leaves[:4][3])
	})
}

func TestVerificationHash(t *testing.T) {
	a, err := VerificationHash(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	b, err := VerificationHash(map[string]any{"a": "x", "b": 1})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 66)
	assert.Equal(t, "0x", a[:2])
}

func TestKeccak256_KnownVector(t *testing.T) {
	assert.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", Keccak256(nil))
}

func TestBytes32(t *testing.T) {
	h := HashString("x")
	b, err := Bytes32(h)
	require.NoError(t, err)
	b2, err := Bytes32("0x" + h)
	require.NoError(t, err)
	assert.Equal(t, b, b2)

	_, err = Bytes32("abcd")
	assert.Error(t, err)
	_, err = Bytes32("zz")
	assert.Error(t, err)
}
