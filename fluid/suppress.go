package fluid

import (
	"github.com/ephoris/fluidlsm/lsm"
)

// NoopPickCompaction reports no level as needing compaction.
func NoopPickCompaction(level int) *lsm.CompactionTask {
	return nil
}

// NoopScheduleCompaction discards the task without executing it.
func NoopScheduleCompaction(task *lsm.CompactionTask) {
}

// Suppress installs the no-op compaction hooks into the engine options, so
// a load session's shape survives even if the engine's compactors run. The
// hooks stay active until the handle opened with these options is closed.
func Suppress(opt *lsm.Options) {
	opt.PickCompaction = NoopPickCompaction
	opt.ScheduleCompaction = NoopScheduleCompaction
}
