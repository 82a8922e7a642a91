package error

import (
	"errors"
)

var (
	ErrEmptyKey        = errors.New("Key cannot be empty")
	ErrKeyNotFound     = errors.New("Key not found")
	ErrInvalidName     = errors.New("Invalid file name")
	ErrReadOutOfBound  = errors.New("Read out of bound")
	ErrChecksum        = errors.New("Checksum error")
	ErrMagic           = errors.New("Manifest magic mismatch")
	ErrTableExists     = errors.New("Table already exists in manifest")
	ErrTableNotExists  = errors.New("Table not found in manifest")
	ErrInvalidOp       = errors.New("Invalid manifest operation")
	ErrEntryTooSmall   = errors.New("Entry size is below the minimum")
	ErrRunNotSorted    = errors.New("Run entries must be sorted and key-unique")
	ErrEmptyRun        = errors.New("Run must contain at least one entry")
	ErrLevelOutOfRange = errors.New("Level index exceeds the configured level count")
	ErrZeroCapacity    = errors.New("Buffer holds less than a single entry")
	ErrNoFillMode      = errors.New("Either a total entry count or a level count is required")
	ErrBothFillModes   = errors.New("Entry count and level count are mutually exclusive")
)
