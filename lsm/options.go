package lsm

// PickCompactionFunc decides whether the given level needs compacting.
// Returning nil means nothing to do.
type PickCompactionFunc func(level int) *CompactionTask

// ScheduleCompactionFunc hands a picked task to the executor.
type ScheduleCompactionFunc func(task *CompactionTask)

type Options struct {
	WorkDir            string
	MemTableSize       uint32
	BlockSize          uint32
	BloomBitsPerKey    float64
	LevelCount         int
	CompactThreadCount int

	// LevelSizeMultiplier is the run count a non-zero level may hold before
	// the default picker compacts it; NumLevelZeroTables is the same bound
	// for level 0.
	LevelSizeMultiplier int
	NumLevelZeroTables  int

	// Compression snappy-encodes data blocks. Off for bulk loads so the
	// on-disk shape stays a pure function of the plan.
	Compression bool

	// DisableAutoCompaction stops the background compactor entirely,
	// independent of any hook overrides.
	DisableAutoCompaction bool

	// PickCompaction and ScheduleCompaction, when set, replace the engine's
	// built-in compaction decisions. Bulk loading injects no-op hooks here.
	PickCompaction     PickCompactionFunc
	ScheduleCompaction ScheduleCompactionFunc
}

func DefaultOptions(workDir string) Options {
	return Options{
		WorkDir:             workDir,
		MemTableSize:        1 << 20,
		BlockSize:           4096,
		BloomBitsPerKey:     10,
		LevelCount:          7,
		CompactThreadCount:  1,
		LevelSizeMultiplier: 10,
		NumLevelZeroTables:  4,
	}
}
