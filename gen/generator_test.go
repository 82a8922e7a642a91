package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyShape(t *testing.T) {
	g := NewSeededGenerator(1)
	for i := 0; i < 1000; i++ {
		key := g.GenerateKey("")
		assert.Len(t, key, keyWidth)
	}
	key := g.GenerateKey("pre:")
	assert.Len(t, key, len("pre:")+keyWidth)
	assert.Equal(t, "pre:", key[:4])
}

func TestKVPairSize(t *testing.T) {
	g := NewSeededGenerator(7)
	for _, size := range []int{32, 100, 8192} {
		key, value := GenerateKVPair(g, size)
		assert.Equal(t, size, len(key)+len(value), "total size %d", size)
	}
}

func TestPrefixedKVPairSize(t *testing.T) {
	g := NewSeededGenerator(7)
	key, value := GeneratePrefixedKVPair(g, 64, "k:", "v:")
	assert.Equal(t, 64, len(key)+len(value))
	assert.Equal(t, "k:", key[:2])
	assert.Equal(t, "v:", value[:2])
}

func TestSeededReproducibility(t *testing.T) {
	a := NewSeededGenerator(42)
	b := NewSeededGenerator(42)
	for i := 0; i < 1000; i++ {
		ka, va := GenerateKVPair(a, 64)
		kb, vb := GenerateKVPair(b, 64)
		require.Equal(t, ka, kb)
		require.Equal(t, va, vb)
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := NewSeededGenerator(1)
	b := NewSeededGenerator(2)
	same := 0
	for i := 0; i < 100; i++ {
		if a.GenerateKey("") == b.GenerateKey("") {
			same++
		}
	}
	assert.Less(t, same, 100)
}
