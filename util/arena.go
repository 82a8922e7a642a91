package util

import (
	"sync/atomic"
)

type Arena struct {
	// The next allocation offset in bytes. Starts at 1 so that offset 0
	// can mean "unallocated".
	allocOffset uint32
	// The memory block.
	blocks []byte
}

const (
	kBlockSize = 4096
)

func NewArena(size uint32) *Arena {
	return &Arena{
		allocOffset: 1,
		blocks:      make([]byte, size),
	}
}

// Allocate allocates a memory block of the given size.
// Return the beginning offset of the memory block.
func (a *Arena) Allocate(size uint32) uint32 {
	offset := atomic.AddUint32(&a.allocOffset, size)
	blocksSize := uint32(len(a.blocks))
	if offset > blocksSize {
		a.allocateFallback(size)
	}
	return offset - size
}

func (a *Arena) allocateFallback(size uint32) {
	blocksSize := uint32(len(a.blocks))
	growSize := blocksSize
	if blocksSize > kBlockSize {
		growSize = size
	}
	if growSize < size {
		growSize = size
	}
	newBlocks := make([]byte, blocksSize+growSize)
	copy(newBlocks, a.blocks)
	a.blocks = newBlocks
}

func (a *Arena) Get(offset uint32, size uint32) []byte {
	return a.blocks[offset : offset+size]
}

func (a *Arena) Size() uint32 {
	return atomic.LoadUint32(&a.allocOffset)
}

func (a *Arena) Checksum() uint64 {
	return Checksum(a.blocks[:a.allocOffset])
}

func RecoverArena(data []byte, len uint32) *Arena {
	a := NewArena(len)
	copy(a.blocks, data)
	a.allocOffset = len
	return a
}
