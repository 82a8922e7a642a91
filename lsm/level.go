package lsm

import (
	"bytes"
	"sort"
	"sync"
	"sync/atomic"

	. "github.com/ephoris/fluidlsm/error"
	"github.com/ephoris/fluidlsm/file"
	"github.com/ephoris/fluidlsm/log"
	"github.com/ephoris/fluidlsm/util"

	"github.com/pkg/errors"
)

// levelHandler owns the runs of one level. Within a level, tables are kept
// in fid order; higher fids are newer and shadow older runs on reads.
type levelHandler struct {
	mu     sync.RWMutex
	level  int
	tables []*Table
}

type levelManager struct {
	levels       []*levelHandler
	manifestFile *file.ManifestFile
	maxFID       uint64
	opt          Options
}

func newLevelManager(opt Options) (*levelManager, error) {
	lm := &levelManager{
		opt: opt,
	}
	lm.levels = make([]*levelHandler, opt.LevelCount)
	for i := range lm.levels {
		lm.levels[i] = &levelHandler{level: i}
	}
	if err := lm.loadManifest(); err != nil {
		return nil, err
	}
	if err := lm.build(); err != nil {
		return nil, err
	}
	return lm, nil
}

func (lm *levelManager) loadManifest() error {
	var err error
	lm.manifestFile, err = file.OpenManifestFile(&file.Options{Dir: lm.opt.WorkDir})
	return err
}

// build opens every table the manifest names and slots it into its level.
func (lm *levelManager) build() error {
	if err := lm.manifestFile.SyncManifestWithDir(lm.opt.WorkDir); err != nil {
		return err
	}

	manifest := lm.manifestFile.GetManifest()
	for fid, tm := range manifest.Tables {
		if int(tm.Level) >= len(lm.levels) {
			return errors.Wrapf(ErrLevelOutOfRange, "manifest places table %d at level %d", fid, tm.Level)
		}
		t, err := openTable(lm, tablePathOf(lm.opt.WorkDir, fid))
		if err != nil {
			return err
		}
		if fid > lm.maxFID {
			lm.maxFID = fid
		}
		lm.levels[tm.Level].tables = append(lm.levels[tm.Level].tables, t)
	}
	for _, lh := range lm.levels {
		sort.Slice(lh.tables, func(i, j int) bool {
			return lh.tables[i].fid < lh.tables[j].fid
		})
	}
	log.Logger.Debugf("loaded %d tables from manifest", len(manifest.Tables))
	return nil
}

func (lm *levelManager) nextFID() uint64 {
	return atomic.AddUint64(&lm.maxFID, 1)
}

// flushMemTable writes the memtable out as a new run at level 0.
func (lm *levelManager) flushMemTable(mt *MemTable) error {
	entries := make([]*util.Entry, 0, mt.sl.Count())
	iter := mt.sl.NewIterator()
	defer iter.Close()
	for iter.Rewind(); iter.Valid(); iter.Next() {
		entries = append(entries, iter.Item().Entry())
	}
	_, err := lm.writeRun(0, entries)
	return err
}

// writeRun builds a table from the sorted entries and installs it at the
// given level, recording it in the manifest.
func (lm *levelManager) writeRun(level int, entries []*util.Entry) (*Table, error) {
	if level < 0 || level >= len(lm.levels) {
		return nil, errors.Wrapf(ErrLevelOutOfRange, "level %d, have %d levels", level, len(lm.levels))
	}
	if len(entries) == 0 {
		return nil, ErrEmptyRun
	}
	for i := 1; i < len(entries); i++ {
		if bytes.Compare(entries[i-1].Key, entries[i].Key) >= 0 {
			return nil, errors.Wrapf(ErrRunNotSorted, "entry %d", i)
		}
	}

	builder := newTableBuilder(lm.opt)
	for _, e := range entries {
		builder.add(e)
	}
	fid := lm.nextFID()
	t, err := builder.flush(lm, tablePathOf(lm.opt.WorkDir, fid))
	if err != nil {
		return nil, err
	}
	if err := t.sst.Init(); err != nil {
		return nil, err
	}
	if err := lm.manifestFile.AddTable(fid, level); err != nil {
		return nil, err
	}

	lh := lm.levels[level]
	lh.mu.Lock()
	lh.tables = append(lh.tables, t)
	lh.mu.Unlock()
	log.Logger.Debugf("wrote run %d with %d entries to level %d", fid, len(entries), level)
	return t, nil
}

// Get searches levels shallow to deep; within a level the newest run wins.
func (lm *levelManager) Get(key []byte) (*util.Entry, error) {
	for _, lh := range lm.levels {
		entry, err := lh.get(key)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
	}
	return nil, ErrKeyNotFound
}

func (lh *levelHandler) get(key []byte) (*util.Entry, error) {
	lh.mu.RLock()
	tables := make([]*Table, len(lh.tables))
	copy(tables, lh.tables)
	lh.mu.RUnlock()

	for i := len(tables) - 1; i >= 0; i-- {
		entry, err := tables[i].Search(key)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
	}
	return nil, ErrKeyNotFound
}

func (lh *levelHandler) runCount() int {
	lh.mu.RLock()
	defer lh.mu.RUnlock()
	return len(lh.tables)
}

func (lh *levelHandler) entryCount() int64 {
	lh.mu.RLock()
	defer lh.mu.RUnlock()
	var n int64
	for _, t := range lh.tables {
		n += int64(t.EntryCount())
	}
	return n
}

// RunCounts reports the number of runs per level, trailing empty levels
// trimmed.
func (lm *levelManager) RunCounts() []int {
	counts := make([]int, len(lm.levels))
	last := -1
	for i, lh := range lm.levels {
		counts[i] = lh.runCount()
		if counts[i] > 0 {
			last = i
		}
	}
	return counts[:last+1]
}

// EntryCounts reports the number of entries per level, trailing empty levels
// trimmed.
func (lm *levelManager) EntryCounts() []int64 {
	counts := make([]int64, len(lm.levels))
	last := -1
	for i, lh := range lm.levels {
		counts[i] = lh.entryCount()
		if counts[i] > 0 {
			last = i
		}
	}
	return counts[:last+1]
}

// replaceTables atomically swaps the inputs of a finished compaction for its
// output run. Inputs are dropped from the manifest and deleted from disk.
func (lm *levelManager) replaceTables(inputs []*Table, inputLevel, targetLevel int, output *Table) error {
	drop := make(map[uint64]struct{}, len(inputs))
	for _, t := range inputs {
		drop[t.fid] = struct{}{}
	}
	for _, level := range []int{inputLevel, targetLevel} {
		lh := lm.levels[level]
		lh.mu.Lock()
		kept := lh.tables[:0]
		for _, t := range lh.tables {
			if _, ok := drop[t.fid]; !ok {
				kept = append(kept, t)
			}
		}
		lh.tables = kept
		lh.mu.Unlock()
	}

	for _, t := range inputs {
		if err := lm.manifestFile.DeleteTable(t.fid); err != nil {
			return err
		}
		if err := t.Delete(); err != nil {
			return err
		}
	}
	log.Logger.Debugf("compacted %d runs from level %d into run %d at level %d",
		len(inputs), inputLevel, output.fid, targetLevel)
	return nil
}

func (lm *levelManager) close() error {
	for _, lh := range lm.levels {
		lh.mu.Lock()
		for _, t := range lh.tables {
			if err := t.Close(); err != nil {
				lh.mu.Unlock()
				return err
			}
		}
		lh.tables = nil
		lh.mu.Unlock()
	}
	return lm.manifestFile.Close()
}
