package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ephoris/fluidlsm/config"
	"github.com/ephoris/fluidlsm/log"
	"github.com/ephoris/fluidlsm/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	config.Init()
	log.Init()
	os.Exit(m.Run())
}

func openTestManifest(t *testing.T, dir string) *ManifestFile {
	mf, err := OpenManifestFile(&Options{Dir: dir})
	require.NoError(t, err)
	return mf
}

func TestManifestReplay(t *testing.T) {
	dir := t.TempDir()

	mf := openTestManifest(t, dir)
	require.NoError(t, mf.AddTable(1, 0))
	require.NoError(t, mf.AddTable(2, 3))
	require.NoError(t, mf.AddTable(3, 3))
	require.NoError(t, mf.DeleteTable(1))
	require.NoError(t, mf.Close())

	mf = openTestManifest(t, dir)
	defer mf.Close()
	manifest := mf.GetManifest()
	assert.Len(t, manifest.Tables, 2)
	_, ok := manifest.Tables[1]
	assert.False(t, ok)
	assert.Equal(t, uint8(3), manifest.Tables[2].Level)
	assert.Equal(t, uint8(3), manifest.Tables[3].Level)
	assert.Contains(t, manifest.Levels[3].Tables, uint64(2))
}

func TestManifestDeleteUnknownTable(t *testing.T) {
	mf := openTestManifest(t, t.TempDir())
	defer mf.Close()
	assert.Error(t, mf.DeleteTable(42))
}

func TestManifestRejectsCorruptMagic(t *testing.T) {
	dir := t.TempDir()
	mf := openTestManifest(t, dir)
	require.NoError(t, mf.AddTable(1, 0))
	require.NoError(t, mf.Close())

	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = OpenManifestFile(&Options{Dir: dir})
	assert.Error(t, err)
}

func TestManifestTruncatesTornWrite(t *testing.T) {
	dir := t.TempDir()
	mf := openTestManifest(t, dir)
	require.NoError(t, mf.AddTable(1, 0))
	require.NoError(t, mf.AddTable(2, 1))
	require.NoError(t, mf.Close())

	// chop a few bytes off the tail to fake a crash mid-append
	path := filepath.Join(dir, ManifestName)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	mf = openTestManifest(t, dir)
	defer mf.Close()
	manifest := mf.GetManifest()
	assert.Len(t, manifest.Tables, 1)
	_, ok := manifest.Tables[1]
	assert.True(t, ok)
}

func TestSyncManifestWithDir(t *testing.T) {
	dir := t.TempDir()
	mf := openTestManifest(t, dir)
	require.NoError(t, mf.AddTable(1, 0))

	// a stray table file not in the manifest gets removed
	strayPath := filepath.Join(dir, util.GenSSTName(9))
	require.NoError(t, os.WriteFile(strayPath, []byte("stray"), 0644))
	// the recorded table must exist on disk
	require.NoError(t, os.WriteFile(filepath.Join(dir, util.GenSSTName(1)), []byte("run"), 0644))

	require.NoError(t, mf.SyncManifestWithDir(dir))
	_, err := os.Stat(strayPath)
	assert.True(t, os.IsNotExist(err))

	// a manifest entry without a backing file is an error
	require.NoError(t, mf.AddTable(2, 1))
	assert.Error(t, mf.SyncManifestWithDir(dir))
	mf.Close()
}
