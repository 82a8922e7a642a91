package fluid

import (
	"testing"

	. "github.com/ephoris/fluidlsm/error"
	"github.com/ephoris/fluidlsm/gen"
	"github.com/ephoris/fluidlsm/lsm"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallShape keeps runs tiny: B/E = 128/32 = 4 entries at level 0.
func smallShape() Options {
	return Options{
		SizeRatio:          2,
		LowerLevelRunMax:   1,
		LargestLevelRunMax: 1,
		BufferSize:         128,
		EntrySize:          32,
		BitsPerElement:     5.0,
	}
}

func openTestStore(t *testing.T, shape Options) *lsm.LSM {
	opt := lsm.DefaultOptions(t.TempDir())
	opt.LevelCount = 10
	opt.BloomBitsPerKey = shape.BitsPerElement
	opt.DisableAutoCompaction = true
	opt.CompactThreadCount = 0
	Suppress(&opt)
	db, err := lsm.Open(opt)
	require.NoError(t, err)
	return db
}

func TestBulkLoadEntries(t *testing.T) {
	db := openTestStore(t, smallShape())
	defer db.Close()

	loader := NewBulkLoader(smallShape(), gen.NewSeededGenerator(1))
	require.NoError(t, loader.BulkLoadEntries(db, 20))
	assert.Equal(t, StateCompleted, loader.State())

	// capacities 4, 8, 16: level 2 takes the 8 remaining entries
	assert.Equal(t, []int{1, 1, 1}, db.RunCounts())
	assert.Equal(t, []int64{4, 8, 8}, db.EntryCounts())

	var sum int64
	for _, n := range db.EntryCounts() {
		sum += n
	}
	assert.Equal(t, int64(20), sum)
}

func TestBulkLoadLevels(t *testing.T) {
	shape := smallShape()
	shape.LowerLevelRunMax = 2
	shape.LargestLevelRunMax = 3
	db := openTestStore(t, shape)
	defer db.Close()

	loader := NewBulkLoader(shape, gen.NewSeededGenerator(2))
	require.NoError(t, loader.BulkLoadLevels(db, 2))
	assert.Equal(t, StateCompleted, loader.State())

	// level 0 full at 4 entries in K=2 runs, level 1 full at 8 in Z=3 runs
	assert.Equal(t, []int{2, 3}, db.RunCounts())
	assert.Equal(t, []int64{4, 8}, db.EntryCounts())
}

func TestBulkLoadShapeIsDeterministic(t *testing.T) {
	for _, seed := range []int64{3, 4} {
		db := openTestStore(t, smallShape())
		loader := NewBulkLoader(smallShape(), gen.NewSeededGenerator(seed))
		require.NoError(t, loader.BulkLoadLevels(db, 3))
		assert.Equal(t, []int{1, 1, 1}, db.RunCounts())
		assert.Equal(t, []int64{4, 8, 16}, db.EntryCounts())
		db.Close()
	}
}

func TestBulkLoadRejectsSmallEntriesBeforeEngine(t *testing.T) {
	shape := smallShape()
	shape.EntrySize = 16

	// nil handle: validation must fail before any engine call
	loader := NewBulkLoader(shape, gen.NewSeededGenerator(1))
	err := loader.BulkLoadEntries(nil, 100)
	assert.True(t, errors.Is(err, ErrEntryTooSmall))
	assert.Equal(t, StateFailed, loader.State())
}

func TestBulkLoadedEntriesAreReadable(t *testing.T) {
	db := openTestStore(t, smallShape())
	defer db.Close()

	g := gen.NewSeededGenerator(5)
	loader := NewBulkLoader(smallShape(), g)
	require.NoError(t, loader.BulkLoadLevels(db, 2))

	// replay the same seed to learn which keys were drawn
	replay := gen.NewSeededGenerator(5)
	key, _ := gen.GenerateKVPair(replay, smallShape().EntrySize)
	entry, err := db.Get([]byte(key))
	require.NoError(t, err)
	assert.Equal(t, smallShape().EntrySize, len(key)+len(entry.ValueStruct.Value))
}

func TestSuppressInstallsNoopHooks(t *testing.T) {
	opt := lsm.DefaultOptions(t.TempDir())
	Suppress(&opt)
	require.NotNil(t, opt.PickCompaction)
	require.NotNil(t, opt.ScheduleCompaction)
	assert.Nil(t, opt.PickCompaction(0))
	opt.ScheduleCompaction(&lsm.CompactionTask{}) // must not panic
}

func TestSuppressedCompactionKeepsShape(t *testing.T) {
	// compactors running, but the no-op hooks must keep every run in place
	shape := smallShape()
	opt := lsm.DefaultOptions(t.TempDir())
	opt.LevelCount = 10
	opt.DisableAutoCompaction = false
	opt.CompactThreadCount = 1
	opt.NumLevelZeroTables = 1
	opt.LevelSizeMultiplier = 1
	Suppress(&opt)
	db, err := lsm.Open(opt)
	require.NoError(t, err)
	defer db.Close()

	loader := NewBulkLoader(shape, gen.NewSeededGenerator(6))
	require.NoError(t, loader.BulkLoadLevels(db, 3))
	assert.Equal(t, []int{1, 1, 1}, db.RunCounts())
	assert.Equal(t, []int64{4, 8, 16}, db.EntryCounts())
}
