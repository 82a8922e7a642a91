package fluid

import (
	"github.com/pkg/errors"

	. "github.com/ephoris/fluidlsm/error"
)

// MinEntrySize is the smallest allowed entry. Keys are 9-byte padded
// decimals, so anything smaller leaves no room for a value worth writing.
const MinEntrySize = 32

// Options are the shape parameters of the fluid cost model. Immutable
// once validated; the loader never mutates them.
type Options struct {
	// SizeRatio is the capacity growth factor between adjacent levels (T).
	SizeRatio int
	// LowerLevelRunMax bounds runs per level for every level but the
	// deepest (K).
	LowerLevelRunMax int
	// LargestLevelRunMax bounds runs at the deepest level (Z).
	LargestLevelRunMax int
	// BufferSize is the write buffer size in bytes (B).
	BufferSize int
	// EntrySize is the combined key+value size in bytes (E).
	EntrySize int
	// BitsPerElement is the bloom filter cost hint. The loader only
	// forwards it to the storage engine.
	BitsPerElement float64
}

func (opt Options) Validate() error {
	if opt.SizeRatio <= 1 {
		return errors.New("size ratio must be greater than 1")
	}
	if opt.LowerLevelRunMax < 1 {
		return errors.New("lower level run max must be at least 1")
	}
	if opt.LargestLevelRunMax < 1 {
		return errors.New("largest level run max must be at least 1")
	}
	if opt.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	if opt.EntrySize < MinEntrySize {
		return errors.Wrapf(ErrEntryTooSmall, "entry size %d, minimum %d", opt.EntrySize, MinEntrySize)
	}
	if opt.BufferSize/opt.EntrySize < 1 {
		return errors.Wrap(ErrZeroCapacity, "buffer holds no whole entry")
	}
	return nil
}
