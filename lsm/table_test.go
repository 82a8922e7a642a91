package lsm

import (
	"fmt"
	"testing"

	. "github.com/ephoris/fluidlsm/error"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableSearch(t *testing.T) {
	const n = 1000
	db, err := Open(testOptions(t))
	require.NoError(t, err)
	defer db.Close()
	table, err := db.lm.writeRun(0, sortedEntries(n, "val"))
	require.NoError(t, err)

	assert.Equal(t, "key00000", string(table.MinKey()))
	assert.Equal(t, fmt.Sprintf("key%05d", n-1), string(table.MaxKey()))
	assert.Equal(t, uint32(n), table.EntryCount())

	for _, i := range []int{0, 1, 499, 998, 999} {
		entry, err := table.Search([]byte(fmt.Sprintf("key%05d", i)))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("val%d", i), string(entry.ValueStruct.Value))
	}

	// out of range and absent keys
	_, err = table.Search([]byte("aaa"))
	assert.True(t, errors.Is(err, ErrKeyNotFound))
	_, err = table.Search([]byte("zzz"))
	assert.True(t, errors.Is(err, ErrKeyNotFound))
	_, err = table.Search([]byte("key00500x"))
	assert.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestTableIterator(t *testing.T) {
	const n = 500
	db, err := Open(testOptions(t))
	require.NoError(t, err)
	defer db.Close()
	table, err := db.lm.writeRun(0, sortedEntries(n, "val"))
	require.NoError(t, err)

	iter := table.NewIterator()
	defer iter.Close()
	i := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		assert.Equal(t, fmt.Sprintf("key%05d", i), string(iter.Item().Entry().Key))
		i++
	}
	assert.Equal(t, n, i)

	iter.Seek([]byte("key00123"))
	require.True(t, iter.Valid())
	assert.Equal(t, "key00123", string(iter.Item().Entry().Key))

	iter.SeekToLast()
	require.True(t, iter.Valid())
	assert.Equal(t, fmt.Sprintf("key%05d", n-1), string(iter.Item().Entry().Key))
}

func TestTableWithCompression(t *testing.T) {
	opt := testOptions(t)
	opt.Compression = true
	db, err := Open(opt)
	require.NoError(t, err)
	defer db.Close()

	const n = 800
	require.NoError(t, db.WriteRun(1, sortedEntries(n, "compressible")))
	for _, i := range []int{0, 250, 799} {
		entry, err := db.Get([]byte(fmt.Sprintf("key%05d", i)))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("compressible%d", i), string(entry.ValueStruct.Value))
	}
}

func TestTableReopenFromDisk(t *testing.T) {
	opt := testOptions(t)
	db, err := Open(opt)
	require.NoError(t, err)
	table, err := db.lm.writeRun(0, sortedEntries(200, "val"))
	require.NoError(t, err)
	fid := table.FID()
	require.NoError(t, db.Close())

	db, err = Open(opt)
	require.NoError(t, err)
	defer db.Close()
	reopened, err := openTable(db.lm, tablePathOf(opt.WorkDir, fid))
	require.NoError(t, err)
	assert.Equal(t, uint32(200), reopened.EntryCount())
	entry, err := reopened.Search([]byte("key00042"))
	require.NoError(t, err)
	assert.Equal(t, "val42", string(entry.ValueStruct.Value))
}
