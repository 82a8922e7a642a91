package fluid

import (
	"testing"

	. "github.com/ephoris/fluidlsm/error"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShape() Options {
	return Options{
		SizeRatio:          2,
		LowerLevelRunMax:   1,
		LargestLevelRunMax: 1,
		BufferSize:         1048576,
		EntrySize:          8192,
		BitsPerElement:     5.0,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, testShape().Validate())

	opt := testShape()
	opt.SizeRatio = 1
	assert.Error(t, opt.Validate())

	opt = testShape()
	opt.EntrySize = 31
	err := opt.Validate()
	assert.True(t, errors.Is(err, ErrEntryTooSmall))

	opt = testShape()
	opt.BufferSize = 100
	opt.EntrySize = 200
	assert.Error(t, opt.Validate())
}

func TestPlanEntriesGeometry(t *testing.T) {
	// B/E = 1048576/8192 = 128 entries at level 0, doubling per level
	plans, err := PlanEntries(testShape(), 1_000_000)
	require.NoError(t, err)

	capacity := int64(128)
	var sum int64
	for i, p := range plans {
		assert.Equal(t, i, p.Level)
		assert.Equal(t, capacity, p.Capacity)
		if i < len(plans)-1 {
			assert.Equal(t, capacity, p.Entries, "non-terminal level %d must be full", i)
		} else {
			assert.LessOrEqual(t, p.Entries, capacity)
		}
		sum += p.Entries
		capacity *= 2
	}
	assert.Equal(t, int64(1_000_000), sum)
	// 128 * (2^13 - 1) = 1048448 >= 1e6 > 128 * (2^12 - 1)
	assert.Len(t, plans, 13)
}

func TestPlanEntriesRunCounts(t *testing.T) {
	opt := testShape()
	opt.LowerLevelRunMax = 4
	opt.LargestLevelRunMax = 3
	plans, err := PlanEntries(opt, 100_000)
	require.NoError(t, err)
	for i, p := range plans {
		if i < len(plans)-1 {
			assert.Equal(t, 4, p.RunCount)
		} else {
			assert.Equal(t, 3, p.RunCount)
		}
	}
}

func TestPlanLevels(t *testing.T) {
	plans, err := PlanLevels(testShape(), 3)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, int64(128), plans[0].Entries)
	assert.Equal(t, int64(256), plans[1].Entries)
	assert.Equal(t, int64(512), plans[2].Entries)
	for _, p := range plans {
		assert.Equal(t, p.Capacity, p.Entries)
	}
	assert.Equal(t, int64(896), TotalEntries(plans))
}

func TestPlanRejectsBadInput(t *testing.T) {
	_, err := PlanEntries(testShape(), 0)
	assert.Error(t, err)
	_, err = PlanLevels(testShape(), 0)
	assert.Error(t, err)
}

func TestRunEntriesDistribution(t *testing.T) {
	p := LevelPlan{Level: 1, RunCount: 4, Entries: 10}
	assert.Equal(t, []int64{2, 2, 2, 4}, p.RunEntries())

	// a barely-filled level drops its empty runs
	p = LevelPlan{Level: 2, RunCount: 4, Entries: 3}
	assert.Equal(t, []int64{3}, p.RunEntries())

	p = LevelPlan{Level: 0, RunCount: 1, Entries: 128}
	assert.Equal(t, []int64{128}, p.RunEntries())
}

func TestPlanDeterminism(t *testing.T) {
	a, err := PlanEntries(testShape(), 54321)
	require.NoError(t, err)
	b, err := PlanEntries(testShape(), 54321)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
