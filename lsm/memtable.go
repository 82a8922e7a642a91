package lsm

import (
	"github.com/ephoris/fluidlsm/util"
)

type MemTable struct {
	sl *SkipList
}

func newMemTable() *MemTable {
	return &MemTable{
		sl: NewSkipList(),
	}
}

func (m *MemTable) Size() uint32 {
	return m.sl.MemSize()
}

func (m *MemTable) set(entry *util.Entry) {
	m.sl.Add(entry)
}

func (m *MemTable) get(key []byte) (*util.Entry, error) {
	vs, err := m.sl.Search(key)
	if err != nil {
		return nil, err
	}
	return &util.Entry{Key: key, ValueStruct: vs}, nil
}
