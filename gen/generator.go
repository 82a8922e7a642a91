package gen

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// KeyDomain bounds the numeric key space. Keys are zero-padded decimals
// drawn uniformly from [0, KeyDomain).
const KeyDomain = 1_000_000_000

// keyWidth is the digit count of the largest key, so every key has the
// same length and lexicographic order matches numeric order.
const keyWidth = 9

// Generator produces synthetic keys and values.
type Generator interface {
	GenerateKey(prefix string) string
	GenerateValue(size int, prefix string) string
}

// RandomGenerator draws keys uniformly from the key domain and fills
// values with a repeated pad character.
type RandomGenerator struct {
	rng *rand.Rand
}

func NewRandomGenerator() *RandomGenerator {
	return NewSeededGenerator(time.Now().UnixNano())
}

// NewSeededGenerator makes runs reproducible for a fixed seed.
func NewSeededGenerator(seed int64) *RandomGenerator {
	return &RandomGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (g *RandomGenerator) GenerateKey(prefix string) string {
	return prefix + fmt.Sprintf("%0*d", keyWidth, g.rng.Intn(KeyDomain))
}

func (g *RandomGenerator) GenerateValue(size int, prefix string) string {
	if size <= len(prefix) {
		return prefix[:size]
	}
	return prefix + strings.Repeat("a", size-len(prefix))
}

// GenerateKVPair returns one key-value pair whose combined length is
// totalSize bytes.
func GenerateKVPair(g Generator, totalSize int) (string, string) {
	return GeneratePrefixedKVPair(g, totalSize, "", "")
}

// GeneratePrefixedKVPair is GenerateKVPair with fixed key and value
// prefixes; the value is shortened so the pair still totals totalSize.
func GeneratePrefixedKVPair(g Generator, totalSize int, keyPrefix string, valuePrefix string) (string, string) {
	key := g.GenerateKey(keyPrefix)
	valueSize := totalSize - len(key)
	if valueSize < 0 {
		valueSize = 0
	}
	value := g.GenerateValue(valueSize, valuePrefix)
	return key, value
}
