package util

import (
	"fmt"
	"testing"
)

func TestSmallBloomFilter(t *testing.T) {
	var hash []uint32
	for _, word := range []string{"hello", "world"} {
		hash = append(hash, Hash([]byte(word)))
	}
	bf := NewBloomFilter(hash, 10)
	for _, word := range []string{"hello", "world"} {
		if !bf.MayContain(Hash([]byte(word))) {
			t.Errorf("BloomFilter should contain %s", word)
		}
	}
	if bf.MayContain(Hash([]byte("missing"))) {
		t.Log("false positive on a tiny filter, acceptable")
	}
}

func TestBloomFilter(t *testing.T) {
	nextLength := func(x int) int {
		if x < 10 {
			return x + 1
		}
		if x < 100 {
			return x + 10
		}
		if x < 1000 {
			return x + 100
		}
		return x + 1000
	}
	le32 := func(i int) []byte {
		b := make([]byte, 4)
		b[0] = uint8(uint32(i) >> 0)
		b[1] = uint8(uint32(i) >> 8)
		b[2] = uint8(uint32(i) >> 16)
		b[3] = uint8(uint32(i) >> 24)
		return b
	}

	nMediocreFilters, nGoodFilters := 0, 0
loop:
	for length := 1; length <= 10000; length = nextLength(length) {
		var hashes []uint32
		for i := 0; i < length; i++ {
			hashes = append(hashes, Hash(le32(i)))
		}
		f := NewBloomFilter(hashes, 10)

		if f.Len() > (length*10/8)+40 {
			t.Errorf("length=%d: len(f)=%d is too large", length, f.Len())
			continue
		}

		// All added keys must match.
		for i := 0; i < length; i++ {
			if !f.MayContain(Hash(le32(i))) {
				t.Errorf("length=%d: did not contain key %d", length, i)
				continue loop
			}
		}

		// Check false positive rate.
		nFalsePositive := 0
		for i := 0; i < 10000; i++ {
			if f.MayContain(Hash(le32(1e9 + i))) {
				nFalsePositive++
			}
		}
		if nFalsePositive > 0.02*10000 {
			t.Errorf("length=%d: %d false positives in 10000", length, nFalsePositive)
			continue
		}
		if nFalsePositive > 0.0125*10000 {
			nMediocreFilters++
		} else {
			nGoodFilters++
		}
	}

	if nMediocreFilters > nGoodFilters/5 {
		t.Errorf("%d mediocre filters but only %d good filters", nMediocreFilters, nGoodFilters)
	}
}

func TestBloomFilterBitsPerKey(t *testing.T) {
	var hashes []uint32
	for i := 0; i < 1000; i++ {
		hashes = append(hashes, Hash([]byte(fmt.Sprintf("key%04d", i))))
	}
	small := NewBloomFilter(hashes, 2)
	large := NewBloomFilter(hashes, 16)
	if small.Len() >= large.Len() {
		t.Errorf("2 bits per key filter (%d bytes) should be smaller than 16 bits per key (%d bytes)",
			small.Len(), large.Len())
	}
}
