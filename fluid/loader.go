package fluid

import (
	"bytes"
	"sort"

	"github.com/ephoris/fluidlsm/gen"
	"github.com/ephoris/fluidlsm/log"
	"github.com/ephoris/fluidlsm/lsm"
	"github.com/ephoris/fluidlsm/util"

	"github.com/pkg/errors"
)

// SessionState tracks a load session through its lifecycle.
type SessionState int

const (
	StateInit SessionState = iota
	StatePlanning
	StateLoading
	StateCompleted
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StatePlanning:
		return "PLANNING"
	case StateLoading:
		return "LOADING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// BulkLoader drives one load session: plan the shape, generate each run,
// and write it straight to its target level. Single control goroutine; runs
// are generated, sorted, and written strictly one after another.
type BulkLoader struct {
	opt   Options
	gen   gen.Generator
	state SessionState
}

func NewBulkLoader(opt Options, g gen.Generator) *BulkLoader {
	return &BulkLoader{
		opt:   opt,
		gen:   g,
		state: StateInit,
	}
}

func (bl *BulkLoader) State() SessionState {
	return bl.state
}

// BulkLoadEntries fills the store with n entries, leveling down until n is
// exhausted. The deepest level may end up partial.
func (bl *BulkLoader) BulkLoadEntries(db *lsm.LSM, n int64) error {
	return bl.load(db, func() ([]LevelPlan, error) {
		return PlanEntries(bl.opt, n)
	})
}

// BulkLoadLevels fills exactly l levels to full capacity.
func (bl *BulkLoader) BulkLoadLevels(db *lsm.LSM, l int) error {
	return bl.load(db, func() ([]LevelPlan, error) {
		return PlanLevels(bl.opt, l)
	})
}

func (bl *BulkLoader) load(db *lsm.LSM, plan func() ([]LevelPlan, error)) error {
	if err := bl.opt.Validate(); err != nil {
		bl.state = StateFailed
		return err
	}

	bl.state = StatePlanning
	plans, err := plan()
	if err != nil {
		bl.state = StateFailed
		return err
	}
	log.Logger.Infof("loading %d entries across %d levels", TotalEntries(plans), len(plans))

	bl.state = StateLoading
	for _, p := range plans {
		for runIdx, runEntries := range p.RunEntries() {
			entries := bl.generateRun(runEntries)
			if err := db.WriteRun(p.Level, entries); err != nil {
				bl.state = StateFailed
				return errors.Wrapf(err, "failed to write run %d to level %d", runIdx, p.Level)
			}
		}
		log.Logger.Debugf("level %d loaded, %d runs, %d entries", p.Level, len(p.RunEntries()), p.Entries)
	}

	if err := db.Flush(); err != nil {
		bl.state = StateFailed
		return err
	}
	bl.state = StateCompleted
	return nil
}

// generateRun draws n unique keys for one run. A key drawn twice overwrites
// its value (last write wins) and the draw is repeated, so the run holds
// exactly n entries. Keys are not coordinated across runs; a key landing in
// several runs is resolved by the engine's usual shadowing on reads.
func (bl *BulkLoader) generateRun(n int64) []*util.Entry {
	pairs := make(map[string]string, n)
	for int64(len(pairs)) < n {
		key, value := gen.GenerateKVPair(bl.gen, bl.opt.EntrySize)
		pairs[key] = value
	}

	entries := make([]*util.Entry, 0, n)
	for key, value := range pairs {
		entries = append(entries, util.NewEntry([]byte(key), []byte(value)))
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})
	return entries
}
