package util

import (
	"github.com/cespare/xxhash/v2"
	. "github.com/rryqszq4/go-murmurhash"
)

// Hash is the key hash fed to bloom filters.
func Hash(data []byte) uint32 {
	var seed uint32 = 0xdeadbeef
	return MurmurHash3_x86_32(data, seed)
}

// Checksum is the content checksum used for blocks, indexes and the manifest.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

func VerifyChecksum(data []byte, checksum []byte) bool {
	return Checksum(data) == BytesToUint64(checksum)
}
