package fluid

import (
	"github.com/pkg/errors"

	. "github.com/ephoris/fluidlsm/error"
)

// LevelPlan is one level of the target shape: how many runs it gets and how
// the level's entries are split across them.
type LevelPlan struct {
	// Level is the depth, 0 being the smallest.
	Level int
	// RunCount is K for non-terminal levels and Z for the deepest one.
	RunCount int
	// EntriesPerRun is the per-run share, Entries/RunCount floored. The
	// last run also takes the remainder.
	EntriesPerRun int
	// Entries is how many entries this level receives.
	Entries int64
	// Capacity is the level's full capacity, l0cap * T^level.
	Capacity int64
}

// RunEntries splits the level's entries across its runs: every run gets the
// floored share and the last run absorbs the remainder. Runs that would be
// empty are omitted, so a barely-filled terminal level may hold fewer runs
// than its bound.
func (p LevelPlan) RunEntries() []int64 {
	base := p.Entries / int64(p.RunCount)
	rem := p.Entries % int64(p.RunCount)
	runs := make([]int64, 0, p.RunCount)
	for i := 0; i < p.RunCount; i++ {
		n := base
		if i == p.RunCount-1 {
			n += rem
		}
		if n > 0 {
			runs = append(runs, n)
		}
	}
	return runs
}

// levelZeroCapacity is the entry capacity of level 0, B/E floored.
func levelZeroCapacity(opt Options) (int64, error) {
	cap0 := int64(opt.BufferSize / opt.EntrySize)
	if cap0 < 1 {
		return 0, errors.Wrap(ErrZeroCapacity, "buffer holds no whole entry")
	}
	return cap0, nil
}

// PlanEntries plans levels for a total of n entries. Levels fill shallow to
// deep at full capacity; the deepest level takes whatever remains and may be
// partial. Deterministic and free of storage engine interaction.
func PlanEntries(opt Options, n int64) ([]LevelPlan, error) {
	if n <= 0 {
		return nil, errors.New("entry count must be positive")
	}
	cap0, err := levelZeroCapacity(opt)
	if err != nil {
		return nil, err
	}

	// First pass fixes the depth, since only the deepest level uses Z.
	var depth int
	capacity := cap0
	for remaining := n; remaining > 0; depth++ {
		remaining -= capacity
		capacity *= int64(opt.SizeRatio)
	}

	plans := make([]LevelPlan, 0, depth)
	capacity = cap0
	remaining := n
	for level := 0; level < depth; level++ {
		entries := capacity
		if entries > remaining {
			entries = remaining
		}
		plans = append(plans, newLevelPlan(opt, level, level == depth-1, entries, capacity))
		remaining -= entries
		capacity *= int64(opt.SizeRatio)
	}
	return plans, nil
}

// PlanLevels plans exactly l levels, each filled to full capacity.
func PlanLevels(opt Options, l int) ([]LevelPlan, error) {
	if l <= 0 {
		return nil, errors.New("level count must be positive")
	}
	cap0, err := levelZeroCapacity(opt)
	if err != nil {
		return nil, err
	}

	plans := make([]LevelPlan, 0, l)
	capacity := cap0
	for level := 0; level < l; level++ {
		plans = append(plans, newLevelPlan(opt, level, level == l-1, capacity, capacity))
		capacity *= int64(opt.SizeRatio)
	}
	return plans, nil
}

func newLevelPlan(opt Options, level int, terminal bool, entries, capacity int64) LevelPlan {
	runCount := opt.LowerLevelRunMax
	if terminal {
		runCount = opt.LargestLevelRunMax
	}
	return LevelPlan{
		Level:         level,
		RunCount:      runCount,
		EntriesPerRun: int(entries / int64(runCount)),
		Entries:       entries,
		Capacity:      capacity,
	}
}

// TotalEntries sums the planned entries across levels.
func TotalEntries(plans []LevelPlan) int64 {
	var n int64
	for _, p := range plans {
		n += p.Entries
	}
	return n
}
