package lsm

import (
	"bytes"
	"io"

	. "github.com/ephoris/fluidlsm/error"
	"github.com/ephoris/fluidlsm/util"
)

const maxHeight = 12

type skipListNode struct {
	entry   *util.Entry
	forward []*skipListNode
}

// SkipList is the memtable's ordered index. Single writer, so no locking.
type SkipList struct {
	head    *skipListNode
	height  int
	memSize uint32
	count   int
	rng     uint64
}

func NewSkipList() *SkipList {
	return &SkipList{
		head: &skipListNode{
			forward: make([]*skipListNode, maxHeight),
		},
		height: 1,
		rng:    1,
	}
}

// randomHeight draws a geometric height with p=1/4 from an xorshift stream.
func (sl *SkipList) randomHeight() int {
	height := 1
	for height < maxHeight {
		sl.rng ^= sl.rng << 13
		sl.rng ^= sl.rng >> 7
		sl.rng ^= sl.rng << 17
		if sl.rng&3 != 0 {
			break
		}
		height++
	}
	return height
}

// Add inserts the entry, overwriting the value if the key already exists.
func (sl *SkipList) Add(entry *util.Entry) {
	update := make([]*skipListNode, maxHeight)
	current := sl.head

	for i := sl.height - 1; i >= 0; i-- {
		for current.forward[i] != nil && bytes.Compare(current.forward[i].entry.Key, entry.Key) < 0 {
			current = current.forward[i]
		}
		update[i] = current
	}

	if next := current.forward[0]; next != nil && bytes.Equal(next.entry.Key, entry.Key) {
		sl.memSize += uint32(len(entry.ValueStruct.Value)) - uint32(len(next.entry.ValueStruct.Value))
		next.entry = entry
		return
	}

	height := sl.randomHeight()
	if height > sl.height {
		for i := sl.height; i < height; i++ {
			update[i] = sl.head
		}
		sl.height = height
	}

	node := &skipListNode{
		entry:   entry,
		forward: make([]*skipListNode, height),
	}
	for i := 0; i < height; i++ {
		node.forward[i] = update[i].forward[i]
		update[i].forward[i] = node
	}
	sl.memSize += uint32(entry.Size())
	sl.count++
}

func (sl *SkipList) Search(key []byte) (util.ValueStruct, error) {
	current := sl.head
	for i := sl.height - 1; i >= 0; i-- {
		for current.forward[i] != nil && bytes.Compare(current.forward[i].entry.Key, key) < 0 {
			current = current.forward[i]
		}
	}
	current = current.forward[0]
	if current != nil && bytes.Equal(current.entry.Key, key) {
		return current.entry.ValueStruct, nil
	}
	return util.ValueStruct{}, ErrKeyNotFound
}

// MemSize approximates the in-memory footprint in bytes.
func (sl *SkipList) MemSize() uint32 {
	return sl.memSize
}

func (sl *SkipList) Count() int {
	return sl.count
}

type skipListIterator struct {
	sl      *SkipList
	current *skipListNode
	err     error
}

func (sl *SkipList) NewIterator() util.Iterator {
	return &skipListIterator{
		sl:      sl,
		current: sl.head.forward[0],
	}
}

func (iter *skipListIterator) Next() {
	if iter.current == nil {
		iter.err = io.EOF
		return
	}
	iter.current = iter.current.forward[0]
	if iter.current == nil {
		iter.err = io.EOF
	}
}

func (iter *skipListIterator) Valid() bool {
	return iter.current != nil && iter.err == nil
}

func (iter *skipListIterator) Rewind() {
	iter.SeekToFirst()
}

func (iter *skipListIterator) SeekToFirst() {
	iter.err = nil
	iter.current = iter.sl.head.forward[0]
}

func (iter *skipListIterator) SeekToLast() {
	iter.err = nil
	current := iter.sl.head
	for current.forward[0] != nil {
		current = current.forward[0]
	}
	if current == iter.sl.head {
		iter.current = nil
		return
	}
	iter.current = current
}

// Seek moves the iterator to the first entry with a key >= target
func (iter *skipListIterator) Seek(key []byte) {
	current := iter.sl.head
	for i := iter.sl.height - 1; i >= 0; i-- {
		for current.forward[i] != nil && bytes.Compare(current.forward[i].entry.Key, key) < 0 {
			current = current.forward[i]
		}
	}
	iter.err = nil
	iter.current = current.forward[0]
}

func (iter *skipListIterator) Item() util.Item {
	if !iter.Valid() {
		return nil
	}
	return iter.current.entry
}

func (iter *skipListIterator) Close() error {
	return nil
}
