package lsm

import (
	"os"
	"sync"

	"github.com/ephoris/fluidlsm/config"
	. "github.com/ephoris/fluidlsm/error"
	"github.com/ephoris/fluidlsm/log"
	"github.com/ephoris/fluidlsm/util"

	"github.com/pkg/errors"
)

// LSM is a leveled store whose levels can be written directly, bypassing
// the memtable. Set goes through the memtable and flushes to level 0;
// WriteRun installs a sorted run at any level.
type LSM struct {
	mu       sync.Mutex
	memTable *MemTable
	lm       *levelManager
	option   Options
	closer   *util.Closer
}

func Open(opt Options) (*LSM, error) {
	config.Init()
	log.Init()

	if opt.LevelCount <= 0 {
		return nil, errors.New("level count must be positive")
	}
	if err := os.MkdirAll(opt.WorkDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create work dir %s", opt.WorkDir)
	}
	lsm := &LSM{
		option:   opt,
		memTable: newMemTable(),
		closer:   util.NewCloser(0),
	}
	var err error
	if lsm.lm, err = newLevelManager(opt); err != nil {
		return nil, err
	}
	lsm.StartCompact()
	return lsm, nil
}

// StartCompact launches the background compactors unless auto compaction
// is disabled.
func (lsm *LSM) StartCompact() {
	if lsm.option.DisableAutoCompaction || lsm.option.CompactThreadCount <= 0 {
		log.Logger.Debug("auto compaction disabled")
		return
	}
	lsm.closer.AddRunning(lsm.option.CompactThreadCount)
	for i := 0; i < lsm.option.CompactThreadCount; i++ {
		go lsm.runCompactor(i, lsm.closer)
	}
}

func (lsm *LSM) Set(entry *util.Entry) error {
	if entry == nil || len(entry.Key) == 0 {
		return ErrEmptyKey
	}
	lsm.mu.Lock()
	defer lsm.mu.Unlock()
	lsm.memTable.set(entry)
	if lsm.memTable.Size() >= lsm.option.MemTableSize {
		return lsm.flushLocked()
	}
	return nil
}

func (lsm *LSM) Get(key []byte) (*util.Entry, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	lsm.mu.Lock()
	entry, err := lsm.memTable.get(key)
	lsm.mu.Unlock()
	if err == nil {
		return entry, nil
	}
	return lsm.lm.Get(key)
}

// WriteRun materializes the sorted entries as one run at the given level.
func (lsm *LSM) WriteRun(level int, entries []*util.Entry) error {
	_, err := lsm.lm.writeRun(level, entries)
	return err
}

// Flush forces the memtable out to level 0.
func (lsm *LSM) Flush() error {
	lsm.mu.Lock()
	defer lsm.mu.Unlock()
	return lsm.flushLocked()
}

func (lsm *LSM) flushLocked() error {
	if lsm.memTable.sl.Count() == 0 {
		return nil
	}
	if err := lsm.lm.flushMemTable(lsm.memTable); err != nil {
		return err
	}
	lsm.memTable = newMemTable()
	return nil
}

// RunCounts reports the runs per level, trailing empty levels trimmed.
func (lsm *LSM) RunCounts() []int {
	return lsm.lm.RunCounts()
}

// EntryCounts reports the entries per level, trailing empty levels trimmed.
func (lsm *LSM) EntryCounts() []int64 {
	return lsm.lm.EntryCounts()
}

func (lsm *LSM) Close() error {
	lsm.closer.Close()
	lsm.closer.Wait()
	lsm.mu.Lock()
	defer lsm.mu.Unlock()
	if err := lsm.flushLocked(); err != nil {
		return err
	}
	return lsm.lm.close()
}

// Destroy removes the store's directory and everything in it.
func Destroy(workDir string) error {
	return os.RemoveAll(workDir)
}
