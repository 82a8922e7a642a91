package lsm

import (
	"bytes"
	"sort"
	"time"

	"github.com/ephoris/fluidlsm/log"
	"github.com/ephoris/fluidlsm/util"
)

// CompactionTask names the runs of one level to merge into the next.
type CompactionTask struct {
	Level       int
	TargetLevel int
	Runs        []*Table
}

// runCompactor polls levels for work until the closer fires. When the
// options carry PickCompaction or ScheduleCompaction overrides, those
// replace the built-in decisions.
func (lsm *LSM) runCompactor(id int, closer *util.Closer) {
	defer closer.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lsm.compactOnce(id)
		case <-closer.HasBeenClosed():
			return
		}
	}
}

func (lsm *LSM) compactOnce(id int) {
	pick := lsm.option.PickCompaction
	if pick == nil {
		pick = lsm.pickCompaction
	}
	schedule := lsm.option.ScheduleCompaction
	if schedule == nil {
		schedule = lsm.doCompact
	}
	for level := 0; level < len(lsm.lm.levels); level++ {
		task := pick(level)
		if task == nil {
			continue
		}
		log.Logger.Debugf("compactor %d picked %d runs at level %d", id, len(task.Runs), task.Level)
		schedule(task)
		return
	}
}

// pickCompaction is the built-in tiered picker: merge a level's runs into
// the next level once the level holds too many of them.
func (lsm *LSM) pickCompaction(level int) *CompactionTask {
	if level+1 >= len(lsm.lm.levels) {
		return nil
	}
	threshold := lsm.option.LevelSizeMultiplier
	if level == 0 {
		threshold = lsm.option.NumLevelZeroTables
	}
	lh := lsm.lm.levels[level]
	lh.mu.RLock()
	defer lh.mu.RUnlock()
	if len(lh.tables) < threshold {
		return nil
	}
	runs := make([]*Table, len(lh.tables))
	copy(runs, lh.tables)
	return &CompactionTask{
		Level:       level,
		TargetLevel: level + 1,
		Runs:        runs,
	}
}

// doCompact merges the task's runs into one run at the target level.
// Runs are read oldest first so newer values overwrite older ones.
func (lsm *LSM) doCompact(task *CompactionTask) {
	merged := make(map[string]*util.Entry)
	for _, t := range task.Runs {
		iter := t.NewIterator()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			e := iter.Item().Entry()
			merged[string(e.Key)] = e
		}
		iter.Close()
	}

	entries := make([]*util.Entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})

	output, err := lsm.lm.writeRun(task.TargetLevel, entries)
	if err != nil {
		log.Logger.Errorf("compaction write failed: %v", err)
		return
	}
	if err := lsm.lm.replaceTables(task.Runs, task.Level, task.TargetLevel, output); err != nil {
		log.Logger.Errorf("compaction cleanup failed: %v", err)
	}
}
