package file

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"sync"

	. "github.com/ephoris/fluidlsm/error"
	"github.com/ephoris/fluidlsm/log"
	"github.com/ephoris/fluidlsm/util"
)

type ManifestOp uint8

const (
	ManifestCreate ManifestOp = iota
	ManifestDelete
)

// ManifestChange records one run entering or leaving a level.
type ManifestChange struct {
	Op    ManifestOp
	FID   uint64
	Level uint32
}

type ManifestCommit struct {
	Changes []*ManifestChange
}

type ManifestFile struct {
	file     *os.File
	lock     sync.Mutex
	opt      *Options
	manifest *Manifest
}

type Manifest struct {
	Levels      []*LevelManifest
	Tables      map[uint64]*TableManifest
	CreateCount int
	DeleteCount int
}

type TableManifest struct {
	Level uint8
}

type LevelManifest struct {
	Tables map[uint64]struct{}
}

func OpenManifestFile(opt *Options) (*ManifestFile, error) {
	path := filepath.Join(opt.Dir, ManifestName)
	mf := &ManifestFile{
		opt:      opt,
		manifest: newManifest(),
	}

	var err error
	mf.file, err = os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if !os.IsNotExist(err) {
			return mf, err
		}
		// file not exists
		log.Logger.Debugf("manifest file not exists, create a new one")
		if err := mf.RewriteManifestFile(opt.Dir); err != nil {
			log.Logger.Errorf("rewrite manifest file failed: %v", err)
			return mf, err
		}
		return mf, nil
	}
	log.Logger.Debugf("manifest exists, load it")
	var truncOffset int64
	if truncOffset, err = mf.manifest.ReplayManifestFile(mf.file); err != nil {
		log.Logger.Errorf("replay manifest file failed: %v", err)
		mf.file.Close()
		return mf, err
	}
	if err := mf.file.Truncate(truncOffset); err != nil {
		log.Logger.Errorf("truncate manifest file failed: %v", err)
		mf.file.Close()
		return mf, err
	}
	if _, err := mf.file.Seek(0, io.SeekEnd); err != nil {
		log.Logger.Errorf("seek manifest file failed: %v", err)
		mf.file.Close()
		return mf, err
	}
	return mf, nil
}

// RewriteManifestFile rewrites the manifest file with the current manifest and updates the file handle
func (mf *ManifestFile) RewriteManifestFile(dir string) error {
	var err error
	if err := mf.manifest.flush(filepath.Join(dir, ReManifestName)); err != nil {
		return err
	}
	if mf.file != nil {
		if err := mf.file.Close(); err != nil {
			log.Logger.Errorf("close manifest file failed: %v", err)
			return err
		}
	}
	// rename is atomic
	if err := os.Rename(filepath.Join(dir, ReManifestName), filepath.Join(dir, ManifestName)); err != nil {
		log.Logger.Errorf("rename manifest file failed: %v", err)
		return err
	}
	if mf.file, err = os.OpenFile(filepath.Join(dir, ManifestName), os.O_RDWR, 0); err != nil {
		log.Logger.Errorf("open manifest file failed: %v", err)
		return err
	}
	if _, err := mf.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	return nil
}

// AddTable records a run created at the given level.
func (mf *ManifestFile) AddTable(id uint64, level int) error {
	return mf.addChanges([]*ManifestChange{{Op: ManifestCreate, FID: id, Level: uint32(level)}})
}

// DeleteTable records a run removed from its level.
func (mf *ManifestFile) DeleteTable(id uint64) error {
	mf.lock.Lock()
	tm, ok := mf.manifest.Tables[id]
	mf.lock.Unlock()
	if !ok {
		return ErrTableNotExists
	}
	return mf.addChanges([]*ManifestChange{{Op: ManifestDelete, FID: id, Level: uint32(tm.Level)}})
}

func (mf *ManifestFile) addChanges(changes []*ManifestChange) error {
	commit := ManifestCommit{Changes: changes}
	var enc bytes.Buffer
	if err := gob.NewEncoder(&enc).Encode(&commit); err != nil {
		return err
	}
	data := enc.Bytes()

	mf.lock.Lock()
	defer mf.lock.Unlock()
	if err := mf.manifest.applyCommit(&commit); err != nil {
		return err
	}
	// Rewrite manifest if it'd shrink by 1/RewriteRatio and it's big enough to care
	if mf.manifest.DeleteCount > RewriteThreshold &&
		mf.manifest.DeleteCount > RewriteRatio*(mf.manifest.CreateCount-mf.manifest.DeleteCount) {
		if err := mf.RewriteManifestFile(mf.opt.Dir); err != nil {
			return err
		}
	} else {
		buf := make([]byte, 12+len(data))
		copy(buf, util.Uint32ToBytes(uint32(len(data))))
		copy(buf[4:], util.Uint64ToBytes(util.Checksum(data)))
		copy(buf[12:], data)
		if _, err := mf.file.Write(buf); err != nil {
			return err
		}
	}
	return mf.file.Sync()
}

func (mf *ManifestFile) GetManifest() *Manifest {
	return mf.manifest
}

func (mf *ManifestFile) Close() error {
	if mf.file == nil {
		return nil
	}
	return mf.file.Close()
}

func newManifest() *Manifest {
	return &Manifest{
		Levels: make([]*LevelManifest, 0),
		Tables: make(map[uint64]*TableManifest),
	}
}

// SyncManifestWithDir reconciles the manifest against the table files in dir:
// a manifest entry without a file is an error, a file without an entry is
// leftover from a failed session and gets removed.
func (mf *ManifestFile) SyncManifestWithDir(dir string) error {
	idMap, err := util.CollectIDMap(dir)
	if err != nil {
		return err
	}
	for id := range mf.manifest.Tables {
		if _, ok := idMap[id]; !ok {
			log.Logger.Errorf("table %d not exists in dir", id)
			return ErrTableNotExists
		}
	}

	// if table exists in dir but not in manifest, remove it
	for id := range idMap {
		if _, ok := mf.manifest.Tables[id]; !ok {
			log.Logger.Debugf("table %d not exists in manifest, remove it", id)
			sstPath := filepath.Join(mf.opt.Dir, util.GenSSTName(id))
			if err := os.Remove(sstPath); err != nil {
				log.Logger.Errorf("remove table %d failed: %v", id, err)
				return err
			}
		}
	}
	return nil
}

type countingReader struct {
	reader *bufio.Reader
	offset int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.offset += int64(n)
	return n, err
}

func (m *Manifest) ReplayManifestFile(f *os.File) (truncOffset int64, err error) {
	r := &countingReader{reader: bufio.NewReader(f)}

	magic := make([]byte, 8)
	if _, err = io.ReadFull(r, magic); err != nil {
		log.Logger.Errorf("read manifest file failed: %v", err)
		return 0, ErrMagic
	}
	if !bytes.Equal(magic[0:4], MagicText[:]) {
		return 0, ErrMagic
	}
	version := util.BytesToUint32(magic[4:8])
	if version != uint32(MagicVersion) {
		return 0, ErrMagic
	}
	truncOffset = r.offset

	for {
		lenbuf := make([]byte, 4)
		// len
		_, err = io.ReadFull(r, lenbuf)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return 0, err
		}
		dataLen := util.BytesToUint32(lenbuf)
		// checksum
		checksum := make([]byte, 8)
		if _, err = io.ReadFull(r, checksum); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				// torn record from a crash mid-append, drop it
				break
			}
			return 0, err
		}
		// commit
		data := make([]byte, dataLen)
		if _, err = io.ReadFull(r, data); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return 0, err
		}
		if !util.VerifyChecksum(data, checksum) {
			return 0, ErrChecksum
		}
		var commit ManifestCommit
		if err = gob.NewDecoder(bytes.NewReader(data)).Decode(&commit); err != nil {
			return 0, err
		}
		if err = m.applyCommit(&commit); err != nil {
			return 0, err
		}
		truncOffset = r.offset
	}
	return truncOffset, nil
}

func (m *Manifest) flush(filePath string) error {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	// magic
	buf := make([]byte, 8)
	copy(buf[0:4], MagicText[:])
	copy(buf[4:8], util.Uint32ToBytes(uint32(MagicVersion)))

	// commit
	commit := m.getCommit()
	var enc bytes.Buffer
	if err := gob.NewEncoder(&enc).Encode(commit); err != nil {
		return err
	}
	data := enc.Bytes()

	buf = append(buf, util.Uint32ToBytes(uint32(len(data)))...)
	buf = append(buf, util.Uint64ToBytes(util.Checksum(data))...)
	buf = append(buf, data...)

	if _, err := f.Write(buf); err != nil {
		log.Logger.Errorf("write manifest file failed: %v", err)
		return err
	}
	if err := f.Sync(); err != nil {
		log.Logger.Errorf("sync manifest file failed: %v", err)
		return err
	}
	return nil
}

func (m *Manifest) applyCommit(commit *ManifestCommit) error {
	for _, change := range commit.Changes {
		if err := m.applyChange(change); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manifest) applyChange(change *ManifestChange) error {
	switch change.Op {
	case ManifestCreate:
		if _, ok := m.Tables[change.FID]; ok {
			return ErrTableExists
		}
		m.Tables[change.FID] = &TableManifest{
			Level: uint8(change.Level),
		}
		for len(m.Levels) <= int(change.Level) {
			m.Levels = append(m.Levels, &LevelManifest{Tables: make(map[uint64]struct{})})
		}
		m.Levels[change.Level].Tables[change.FID] = struct{}{}
		m.CreateCount++
	case ManifestDelete:
		if _, ok := m.Tables[change.FID]; !ok {
			return ErrTableNotExists
		}
		delete(m.Tables, change.FID)
		delete(m.Levels[change.Level].Tables, change.FID)
		m.DeleteCount++
	default:
		return ErrInvalidOp
	}
	return nil
}

func (m *Manifest) getCommit() *ManifestCommit {
	var commit ManifestCommit
	commit.Changes = m.getChanges()
	return &commit
}

func (m *Manifest) getChanges() []*ManifestChange {
	changes := make([]*ManifestChange, 0, len(m.Tables))
	for id, tm := range m.Tables {
		changes = append(changes, &ManifestChange{Op: ManifestCreate, FID: id, Level: uint32(tm.Level)})
	}
	return changes
}
