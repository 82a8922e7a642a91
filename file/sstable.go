package file

import (
	"bytes"
	"encoding/gob"

	. "github.com/ephoris/fluidlsm/error"
	"github.com/ephoris/fluidlsm/util"
	"github.com/pkg/errors"
)

// BlockOffset locates one data block inside a table file. Key is the block's
// base key; Len is the on-disk length (post-compression when Compressed).
type BlockOffset struct {
	Key    []byte
	Offset uint32
	Len    uint32
}

// IndexTable is the table footer index, gob-encoded and checksummed.
type IndexTable struct {
	BloomFilter []byte
	KeyCount    uint32
	MinKey      []byte
	MaxKey      []byte
	Compressed  bool
	Offsets     []*BlockOffset
}

func (it *IndexTable) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(it); err != nil {
		return nil, errors.Wrap(err, "failed to encode index table")
	}
	return buf.Bytes(), nil
}

func UnmarshalIndexTable(data []byte) (*IndexTable, error) {
	it := &IndexTable{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(it); err != nil {
		return nil, errors.Wrap(err, "failed to decode index table")
	}
	return it, nil
}

// SSTable file layout:
//   ┌──────────┬───────────┬──────────┬──────────┬─────────────┐
//   │  blocks  │ indexData │ indexLen │ checksum │ checksumLen │
//   └──────────┴───────────┴──────────┴──────────┴─────────────┘
type SSTable struct {
	file       *MmapFile
	maxKey     []byte
	minKey     []byte
	indexTable *IndexTable
	fid        uint64
	indexLen   uint32
	idxStart   uint32
}

func OpenSSTable(opt *Options) (*SSTable, error) {
	mmapFile, err := OpenMmapFile(opt.FilePath, opt.Flag, opt.MaxSize)
	if err != nil {
		return nil, err
	}
	sst := &SSTable{
		file: mmapFile,
		fid:  opt.FID,
	}
	return sst, nil
}

func (sst *SSTable) HasBloomFilter() bool {
	return sst.indexTable != nil && len(sst.indexTable.BloomFilter) > 0
}

func (sst *SSTable) Init() error {
	if err := sst.initIndexTable(); err != nil {
		return err
	}

	sst.minKey = append([]byte{}, sst.indexTable.MinKey...)
	sst.maxKey = append([]byte{}, sst.indexTable.MaxKey...)
	return nil
}

func (sst *SSTable) initIndexTable() error {
	// checksumLen
	offset := len(sst.file.Data)
	offset -= 4
	buf, err := sst.readMmap(offset, 4)
	if err != nil {
		return err
	}
	checksumLen := int(util.BytesToUint32(buf))
	if checksumLen != 8 {
		return ErrChecksum
	}

	// checksum
	offset -= checksumLen
	indexChecksum, err := sst.readMmap(offset, checksumLen)
	if err != nil {
		return err
	}

	// indexLen
	offset -= 4
	buf, err = sst.readMmap(offset, 4)
	if err != nil {
		return err
	}
	sst.indexLen = util.BytesToUint32(buf)

	// indexData
	offset -= int(sst.indexLen)
	sst.idxStart = uint32(offset)
	indexData, err := sst.readMmap(offset, int(sst.indexLen))
	if err != nil {
		return err
	}
	if !util.VerifyChecksum(indexData, indexChecksum) {
		return ErrChecksum
	}
	sst.indexTable, err = UnmarshalIndexTable(indexData)
	if err != nil {
		return err
	}
	if len(sst.indexTable.Offsets) == 0 {
		return errors.New("index table has no block offsets")
	}
	return nil
}

func (sst *SSTable) readMmap(offset int, sz int) ([]byte, error) {
	if offset < 0 || len(sst.file.Data) < offset+sz {
		return nil, errors.Errorf("SSTable readMmap %s", ErrReadOutOfBound)
	}
	return sst.file.Data[offset : offset+sz], nil
}

func (sst *SSTable) Bytes(off int, sz int) ([]byte, error) {
	return sst.file.Bytes(off, sz)
}

func (sst *SSTable) MinKey() []byte {
	return sst.minKey
}

func (sst *SSTable) MaxKey() []byte {
	return sst.maxKey
}

func (sst *SSTable) IndexTable() *IndexTable {
	return sst.indexTable
}

// EntryCount is the number of entries the table holds.
func (sst *SSTable) EntryCount() uint32 {
	if sst.indexTable == nil {
		return 0
	}
	return sst.indexTable.KeyCount
}

func (sst *SSTable) FID() uint64 {
	return sst.fid
}

func (sst *SSTable) Size() int64 {
	stat, err := sst.file.Fd.Stat()
	if err != nil {
		return 0
	}
	return stat.Size()
}

func (sst *SSTable) Sync() error {
	return sst.file.Sync()
}

func (sst *SSTable) Delete() error {
	return sst.file.Delete()
}

func (sst *SSTable) Close() error {
	return sst.file.Close()
}
