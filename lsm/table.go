package lsm

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"

	. "github.com/ephoris/fluidlsm/error"
	"github.com/ephoris/fluidlsm/file"
	"github.com/ephoris/fluidlsm/util"

	"github.com/klauspost/compress/snappy"
	"github.com/pkg/errors"
)

// Table is one immutable sorted run on disk.
type Table struct {
	sst *file.SSTable
	lm  *levelManager
	fid uint64
}

// openTable opens an existing table file and loads its index.
func openTable(lm *levelManager, tablePath string) (*Table, error) {
	fid, err := util.GetFIDByPath(tablePath)
	if err != nil {
		return nil, err
	}
	sst, err := file.OpenSSTable(&file.Options{
		FID:      fid,
		FilePath: tablePath,
		Dir:      lm.opt.WorkDir,
		Flag:     os.O_RDWR,
		MaxSize:  0,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open table %s", tablePath)
	}
	t := &Table{
		sst: sst,
		lm:  lm,
		fid: fid,
	}
	if err := sst.Init(); err != nil {
		return nil, errors.Wrapf(err, "failed to init table %s", tablePath)
	}
	return t, nil
}

func tablePathOf(dir string, fid uint64) string {
	return filepath.Join(dir, util.GenSSTName(fid))
}

func (t *Table) FID() uint64 {
	return t.fid
}

func (t *Table) MinKey() []byte {
	return t.sst.MinKey()
}

func (t *Table) MaxKey() []byte {
	return t.sst.MaxKey()
}

func (t *Table) EntryCount() uint32 {
	return t.sst.EntryCount()
}

func (t *Table) Size() int64 {
	return t.sst.Size()
}

func (t *Table) Sync() error {
	return t.sst.Sync()
}

func (t *Table) Close() error {
	return t.sst.Close()
}

// Delete removes the table file from disk.
func (t *Table) Delete() error {
	return t.sst.Delete()
}

// Search looks the key up in this run. The bloom filter rejects most keys
// that the run does not hold before any block is touched.
func (t *Table) Search(key []byte) (*util.Entry, error) {
	if bytes.Compare(key, t.MinKey()) < 0 || bytes.Compare(key, t.MaxKey()) > 0 {
		return nil, ErrKeyNotFound
	}
	if t.sst.HasBloomFilter() {
		bf := util.BloomFilter(t.sst.IndexTable().BloomFilter)
		if !bf.MayContain(util.Hash(key)) {
			return nil, ErrKeyNotFound
		}
	}

	blockPos := t.seekBlock(key)
	if blockPos < 0 {
		return nil, ErrKeyNotFound
	}
	b, err := t.loadBlock(blockPos)
	if err != nil {
		return nil, err
	}
	iter := b.NewIterator()
	defer iter.Close()
	iter.Seek(key)
	if !iter.Valid() {
		return nil, ErrKeyNotFound
	}
	entry := iter.Item().Entry()
	if !bytes.Equal(entry.Key, key) {
		return nil, ErrKeyNotFound
	}
	return entry, nil
}

// seekBlock returns the index of the last block whose base key <= key,
// or -1 when the key precedes the first block.
func (t *Table) seekBlock(key []byte) int {
	offsets := t.sst.IndexTable().Offsets
	pos := sort.Search(len(offsets), func(i int) bool {
		return bytes.Compare(offsets[i].Key, key) > 0
	})
	return pos - 1
}

// loadBlock reads block i back into an arena, decoding snappy when the
// table was written with compression.
func (t *Table) loadBlock(i int) (*block, error) {
	offsets := t.sst.IndexTable().Offsets
	if i < 0 || i >= len(offsets) {
		return nil, errors.Errorf("block %d out of range", i)
	}
	bo := offsets[i]
	raw, err := t.sst.Bytes(int(bo.Offset), int(bo.Len))
	if err != nil {
		return nil, err
	}
	if t.sst.IndexTable().Compressed {
		raw, err = snappy.Decode(nil, raw)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode block")
		}
	}
	b := &block{
		arena: util.RecoverArena(raw, uint32(len(raw))),
	}
	if err := b.RecoverFromArena(); err != nil {
		return nil, err
	}
	return b, nil
}

type tableIterator struct {
	table     *Table
	blockPos  int
	blockIter util.Iterator
	err       error
}

// NewIterator walks the table's entries in key order.
func (t *Table) NewIterator() util.Iterator {
	return &tableIterator{
		table:    t,
		blockPos: -1,
	}
}

func (iter *tableIterator) setBlock(pos int) {
	if pos < 0 || pos >= len(iter.table.sst.IndexTable().Offsets) {
		iter.blockIter = nil
		iter.err = io.EOF
		return
	}
	b, err := iter.table.loadBlock(pos)
	if err != nil {
		iter.err = err
		return
	}
	iter.blockPos = pos
	iter.blockIter = b.NewIterator()
	iter.err = nil
}

func (iter *tableIterator) Next() {
	if iter.blockIter == nil {
		iter.err = io.EOF
		return
	}
	iter.blockIter.Next()
	if iter.blockIter.Valid() {
		return
	}
	iter.setBlock(iter.blockPos + 1)
	if iter.err == nil {
		iter.blockIter.SeekToFirst()
	}
}

func (iter *tableIterator) Valid() bool {
	return iter.err == nil && iter.blockIter != nil && iter.blockIter.Valid()
}

func (iter *tableIterator) Rewind() {
	iter.SeekToFirst()
}

func (iter *tableIterator) SeekToFirst() {
	iter.setBlock(0)
	if iter.err == nil {
		iter.blockIter.SeekToFirst()
	}
}

func (iter *tableIterator) SeekToLast() {
	iter.setBlock(len(iter.table.sst.IndexTable().Offsets) - 1)
	if iter.err == nil {
		iter.blockIter.SeekToLast()
	}
}

func (iter *tableIterator) Seek(key []byte) {
	pos := iter.table.seekBlock(key)
	if pos < 0 {
		pos = 0
	}
	iter.setBlock(pos)
	if iter.err != nil {
		return
	}
	iter.blockIter.Seek(key)
	if !iter.blockIter.Valid() {
		// key is past this block's last entry, continue in the next one
		iter.setBlock(pos + 1)
		if iter.err == nil {
			iter.blockIter.SeekToFirst()
		}
	}
}

func (iter *tableIterator) Item() util.Item {
	if !iter.Valid() {
		return nil
	}
	return iter.blockIter.Item()
}

func (iter *tableIterator) Close() error {
	if iter.blockIter != nil {
		return iter.blockIter.Close()
	}
	return nil
}
