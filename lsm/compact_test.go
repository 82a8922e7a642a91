package lsm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickCompaction(t *testing.T) {
	opt := testOptions(t)
	opt.NumLevelZeroTables = 2
	db, err := Open(opt)
	require.NoError(t, err)
	defer db.Close()

	assert.Nil(t, db.pickCompaction(0))
	require.NoError(t, db.WriteRun(0, sortedEntries(10, "a")))
	assert.Nil(t, db.pickCompaction(0))
	require.NoError(t, db.WriteRun(0, sortedEntries(10, "b")))

	task := db.pickCompaction(0)
	require.NotNil(t, task)
	assert.Equal(t, 0, task.Level)
	assert.Equal(t, 1, task.TargetLevel)
	assert.Len(t, task.Runs, 2)

	// the deepest level has nowhere to go
	assert.Nil(t, db.pickCompaction(opt.LevelCount-1))
}

func TestDoCompactMergesRuns(t *testing.T) {
	opt := testOptions(t)
	opt.NumLevelZeroTables = 2
	db, err := Open(opt)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.WriteRun(0, sortedEntries(10, "old")))
	require.NoError(t, db.WriteRun(0, sortedEntries(10, "new")))
	task := db.pickCompaction(0)
	require.NotNil(t, task)
	db.doCompact(task)

	// both runs collapsed into one at level 1, newest values kept
	assert.Equal(t, []int{0, 1}, db.RunCounts())
	assert.Equal(t, []int64{0, 10}, db.EntryCounts())
	for i := 0; i < 10; i++ {
		entry, err := db.Get([]byte(fmt.Sprintf("key%05d", i)))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("new%d", i), string(entry.ValueStruct.Value))
	}
}
