package lsm

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"

	. "github.com/ephoris/fluidlsm/error"
	"github.com/ephoris/fluidlsm/file"
	"github.com/ephoris/fluidlsm/util"

	"github.com/klauspost/compress/snappy"
	"github.com/negrel/assert"
)

type tableBuilder struct {
	keyHashList []uint32 // hash list of keys
	curBlock    *block
	blocks      []*block
	keyCount    uint32
	minKey      []byte
	maxKey      []byte
	opt         Options
}

type block struct {
	baseKey        []byte
	arena          *util.Arena
	entryOffsets   []uint32
	entryEndOffset uint32
}

type header struct {
	overlap uint16
	diff    uint16
}

func newBlock(blockSize uint32) *block {
	return &block{
		arena: util.NewArena(blockSize),
	}
}

func newTableBuilder(opt Options) *tableBuilder {
	return &tableBuilder{
		opt:      opt,
		curBlock: newBlock(opt.BlockSize),
	}
}

func (tb *tableBuilder) Empty() bool {
	return tb.keyCount == 0 && len(tb.curBlock.entryOffsets) == 0
}

func (tb *tableBuilder) add(e *util.Entry) {
	if !tb.curBlock.canAppendEntry(e, tb.opt.BlockSize) {
		tb.commitCurBlock()
	}
	tb.keyHashList = append(tb.keyHashList, util.Hash(e.Key))
	if tb.minKey == nil {
		tb.minKey = append([]byte{}, e.Key...)
	}
	tb.maxKey = append(tb.maxKey[:0], e.Key...)
	tb.curBlock.add(e)
}

// commitCurBlock seals the current data block and starts a fresh one.
func (tb *tableBuilder) commitCurBlock() {
	if tb.curBlock == nil {
		tb.curBlock = newBlock(tb.opt.BlockSize)
		return
	}
	if len(tb.curBlock.entryOffsets) == 0 {
		// Only the last commit caused by a flush is likely to enter this condition
		return
	}

	tb.curBlock.entryEndOffset = tb.curBlock.arena.Size()
	// Fill the remaining part of the data block format:
	// - [entryOffsets]
	// - [entryOffsetsLen]
	// - [Checksum]
	// - [ChecksumLen]
	tb.curBlock.pushBack(util.Uint32SliceToBytes(tb.curBlock.entryOffsets))
	entryOffsetsLen := len(tb.curBlock.entryOffsets)
	tb.keyCount += uint32(entryOffsetsLen)
	tb.curBlock.pushBack(util.Uint32ToBytes(uint32(entryOffsetsLen)))
	checksum := util.Uint64ToBytes(tb.curBlock.arena.Checksum())
	tb.curBlock.pushBack(checksum)
	tb.curBlock.pushBack(util.Uint32ToBytes(uint32(len(checksum))))
	tb.blocks = append(tb.blocks, tb.curBlock)
	tb.curBlock = newBlock(tb.opt.BlockSize)
}

func (tb *tableBuilder) flush(lm *levelManager, tablePath string) (*Table, error) {
	tb.commitCurBlock()
	if len(tb.blocks) == 0 {
		return nil, ErrEmptyRun
	}

	// Assemble per-block payloads, snappy-encoded when compression is on.
	payloads := make([][]byte, len(tb.blocks))
	var dataLen uint32
	for i, b := range tb.blocks {
		raw := b.arena.Get(0, b.arena.Size())
		if tb.opt.Compression {
			payloads[i] = snappy.Encode(nil, raw)
		} else {
			payloads[i] = raw
		}
		dataLen += uint32(len(payloads[i]))
	}

	indexTable := tb.buildIndexTable(payloads)
	indexData, err := indexTable.Marshal()
	if err != nil {
		return nil, err
	}
	indexChecksum := util.Uint64ToBytes(util.Checksum(indexData))
	size := dataLen + uint32(len(indexData)) + 4 + uint32(len(indexChecksum)) + 4

	fid, err := util.GetFIDByPath(tablePath)
	if err != nil {
		return nil, err
	}
	sst, err := file.OpenSSTable(&file.Options{
		FID:      fid,
		FilePath: tablePath,
		Dir:      lm.opt.WorkDir,
		Flag:     os.O_CREATE | os.O_RDWR,
		MaxSize:  int(size),
	})
	if err != nil {
		return nil, err
	}
	dst, err := sst.Bytes(0, int(size))
	if err != nil {
		return nil, err
	}
	written := tb.buildTable(dst, payloads, indexData, indexChecksum)
	assert.Equal(written, int(size), "written size error")
	if err := sst.Sync(); err != nil {
		return nil, err
	}
	t := &Table{
		lm:  lm,
		sst: sst,
		fid: fid,
	}
	return t, nil
}

// buildTable lays the table out in dst (an mmap'd file).
func (tb *tableBuilder) buildTable(dst []byte, payloads [][]byte, indexData []byte, indexChecksum []byte) int {
	var written int
	for _, payload := range payloads {
		written += copy(dst[written:], payload)
	}
	written += copy(dst[written:], indexData)
	written += copy(dst[written:], util.Uint32ToBytes(uint32(len(indexData))))
	written += copy(dst[written:], indexChecksum)
	written += copy(dst[written:], util.Uint32ToBytes(uint32(len(indexChecksum))))
	return written
}

func (tb *tableBuilder) buildIndexTable(payloads [][]byte) *file.IndexTable {
	bf := util.NewBloomFilter(tb.keyHashList, tb.opt.BloomBitsPerKey)
	indexTable := &file.IndexTable{
		BloomFilter: bf.Bytes(),
		KeyCount:    tb.keyCount,
		MinKey:      tb.minKey,
		MaxKey:      tb.maxKey,
		Compressed:  tb.opt.Compression,
	}

	var offset uint32
	for i, b := range tb.blocks {
		indexTable.Offsets = append(indexTable.Offsets, &file.BlockOffset{
			Key:    b.baseKey,
			Offset: offset,
			Len:    uint32(len(payloads[i])),
		})
		offset += uint32(len(payloads[i]))
	}
	return indexTable
}

func (block *block) canAppendEntry(e *util.Entry, maxSize uint32) bool {
	estimatedSize := int(block.arena.Size()) + // current size
		4 + // header
		len(e.Key) + // key
		int(e.ValueStruct.EncodedSize()) + // value
		(len(block.entryOffsets)+1)*4 + // entryOffsets
		4 + // entryOffsetsLen
		8 + // Checksum
		4 // ChecksumLen
	return len(block.entryOffsets) == 0 || estimatedSize <= int(maxSize)
}

func (block *block) add(e *util.Entry) {
	var diffKey []byte
	if len(block.baseKey) == 0 {
		block.baseKey = append([]byte{}, e.Key...)
		diffKey = e.Key
	} else {
		diffKey = util.DiffKey(block.baseKey, e.Key)
	}
	overlap := len(e.Key) - len(diffKey)
	diff := len(diffKey)
	if overlap > math.MaxUint16 || diff > math.MaxUint16 {
		panic("key length too long")
	}
	h := header{
		overlap: uint16(overlap),
		diff:    uint16(diff),
	}

	// write the KV to the block
	// - [header]
	// 		- [overlap]
	// 		- [diff]
	// - [diffKey]
	// - [value]
	block.entryOffsets = append(block.entryOffsets, block.arena.Size())
	block.pushBack(h.encode())
	block.pushBack(diffKey)
	encodeValue := make([]byte, e.ValueStruct.EncodedSize())
	e.ValueStruct.EncodeValue(encodeValue)
	block.pushBack(encodeValue)
}

// pushBack appends data to the block's arena.
func (block *block) pushBack(data []byte) {
	need := len(data)
	offset := block.arena.Allocate(uint32(need))
	l := copy(block.arena.Get(offset, uint32(need)), data)
	assert.Equal(l, need, "pushBack error")
}

func (h *header) encode() []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint16(buf[:2], h.overlap)
	binary.LittleEndian.PutUint16(buf[2:], h.diff)
	return buf[:]
}

func (h *header) decode(data []byte) {
	h.overlap = binary.LittleEndian.Uint16(data[:2])
	h.diff = binary.LittleEndian.Uint16(data[2:])
}

// RecoverFromArena rebuilds the block trailer fields after the raw block
// bytes were loaded back into an arena.
func (b *block) RecoverFromArena() error {
	// checksumLen
	offset := b.arena.Size()
	offset -= 4
	buf := b.arena.Get(offset, 4)
	checksumLen := util.BytesToUint32(buf)
	if checksumLen != 8 {
		return ErrChecksum
	}

	// checksum
	offset -= checksumLen
	checksum := b.arena.Get(offset, checksumLen)
	if !util.VerifyChecksum(b.arena.Get(0, offset), checksum) {
		return ErrChecksum
	}

	// entryOffsetsLen
	offset -= 4
	buf = b.arena.Get(offset, 4)
	entryOffsetsLen := util.BytesToUint32(buf)

	// entryOffsets
	offset -= entryOffsetsLen * 4
	buf = b.arena.Get(offset, entryOffsetsLen*4)
	b.entryOffsets = util.BytesToUint32Slice(buf)
	// the first entry offset is 1 because the arena is initialized with 1
	assert.Equal(int(b.entryOffsets[0]), 1)

	// entryEndOffset
	b.entryEndOffset = offset

	// baseKey comes from the first entry, whose diffKey is the full key
	var h header
	h.decode(b.arena.Get(b.entryOffsets[0], 4))
	b.baseKey = append([]byte{}, b.arena.Get(b.entryOffsets[0]+4, uint32(h.diff))...)
	return nil
}

type blockIterator struct {
	entryPos int
	err      error
	block    *block
}

func (b *block) NewIterator() util.Iterator {
	return &blockIterator{
		block:    b,
		entryPos: 0,
		err:      nil,
	}
}

func (iter *blockIterator) Next() {
	iter.entryPos++
	if iter.entryPos >= len(iter.block.entryOffsets) {
		iter.err = io.EOF
		return
	}
}

func (iter *blockIterator) Valid() bool {
	return iter.err == nil
}

func (iter *blockIterator) Rewind() {
	iter.SeekToFirst()
}

func (iter *blockIterator) SeekToFirst() {
	iter.err = nil
	iter.entryPos = 0
}

func (iter *blockIterator) SeekToLast() {
	iter.err = nil
	iter.entryPos = len(iter.block.entryOffsets) - 1
}

// Seek moves the iterator to the first entry with a key >= target
func (iter *blockIterator) Seek(key []byte) {
	for ; iter.Valid(); iter.Next() {
		item := iter.Item()
		if bytes.Compare(item.Entry().Key, key) >= 0 {
			return
		}
	}
}

// Only need the entryPos to get the item
func (iter *blockIterator) Item() util.Item {
	if !iter.Valid() {
		return nil
	}
	var endOffset uint32
	if iter.entryPos+1 == len(iter.block.entryOffsets) {
		endOffset = iter.block.entryEndOffset
	} else {
		endOffset = iter.block.entryOffsets[iter.entryPos+1]
	}
	offset := iter.block.entryOffsets[iter.entryPos]
	// header
	var h header
	h.decode(iter.block.arena.Get(offset, 4))
	// diffKey
	offset += 4
	diffKey := iter.block.arena.Get(offset, uint32(h.diff))
	// value
	offset += uint32(h.diff)
	value := iter.block.arena.Get(offset, endOffset-offset)
	var vs util.ValueStruct
	vs.DecodeValue(value)
	return &util.Entry{
		Key:         util.RecoverKey(iter.block.baseKey, diffKey, h.overlap),
		ValueStruct: vs,
	}
}

func (iter *blockIterator) Close() error {
	return nil
}
