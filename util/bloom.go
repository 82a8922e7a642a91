package util

import (
	"math"
)

const (
	log2          float64 = 0.6931471805599453
	minNumBits    uint32  = 64
	minNumHash    uint32  = 1
	maxNumHash    uint32  = 30
	minBitsPerKey float64 = 1
)

// ┌────────────┬───────────┐
// │   bitmap   │  numHash  │
// └────────────┴───────────┘
type BloomFilter []byte

func (bf *BloomFilter) MayContain(key uint32) bool {
	numBytes := len(*bf) - 1
	numHash := uint32((*bf)[numBytes])
	numBits := uint32(numBytes) * 8
	delta := key>>17 | key<<15
	for i := uint32(0); i < numHash; i++ {
		pos := key % numBits
		if (*bf)[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
		key += delta
	}
	return true
}

// NewBloomFilter creates a BloomFilter over the given key hashes
// (murmur3_x86_32) sized at bitsPerKey bits per key. The fluid cost model
// parameterizes filters by bits per element, so the knob is exposed
// directly rather than derived from a false positive rate.
func NewBloomFilter(keys []uint32, bitsPerKey float64) *BloomFilter {
	if bitsPerKey < minBitsPerKey {
		bitsPerKey = minBitsPerKey
	}
	numKeys := uint32(len(keys))
	numBytes := calNumBytes(numKeys, bitsPerKey)
	numHash := calNumHash(bitsPerKey)
	numBits := numBytes * 8
	bf := BloomFilter(make([]byte, numBytes+1))
	bf[numBytes] = byte(numHash)
	for _, key := range keys {
		bf.insert(key, numHash, numBits)
	}
	return &bf
}

// calNumHash returns the number of hash functions for a given bits per key.
func calNumHash(bitsPerKey float64) uint32 {
	res := uint32(bitsPerKey * log2)
	if res < minNumHash {
		res = minNumHash
	}
	if res > maxNumHash {
		res = maxNumHash
	}
	return res
}

// calNumBytes returns the filter size for a given number of keys and bits per key.
func calNumBytes(numKeys uint32, bitsPerKey float64) uint32 {
	numBits := uint32(math.Ceil(float64(numKeys) * bitsPerKey))
	if numBits < minNumBits {
		numBits = minNumBits
	}
	numBytes := (numBits + 7) / 8
	return numBytes
}

// insert inserts a key into the BloomFilter.
func (bf *BloomFilter) insert(key uint32, numHash uint32, numBits uint32) {
	delta := key>>17 | key<<15
	for i := uint32(0); i < numHash; i++ {
		pos := key % numBits
		(*bf)[pos/8] |= 1 << (pos % 8)
		key += delta
	}
}

func (bf *BloomFilter) Len() int {
	return len(*bf)
}

func (bf *BloomFilter) Bytes() []byte {
	return []byte(*bf)
}
