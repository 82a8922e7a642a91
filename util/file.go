package util

import (
	"os"
	"path"
	"strconv"
	"strings"

	. "github.com/ephoris/fluidlsm/error"
)

const SSTableExt = ".sst"

func GetFIDByPath(tablepath string) (uint64, error) {
	name := path.Base(tablepath)
	if !strings.HasSuffix(name, SSTableExt) {
		return 0, ErrInvalidName
	}
	name = strings.TrimSuffix(name, SSTableExt)
	fid, err := strconv.Atoi(name)
	if err != nil {
		return 0, err
	}
	return uint64(fid), nil
}

func GenSSTName(fid uint64) string {
	return strconv.Itoa(int(fid)) + SSTableExt
}

// CollectIDMap scans dir for sstable files and returns the set of their fids.
func CollectIDMap(dir string) (map[uint64]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	idMap := make(map[uint64]struct{})
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), SSTableExt) {
			continue
		}
		fid, err := GetFIDByPath(entry.Name())
		if err != nil {
			continue
		}
		idMap[fid] = struct{}{}
	}
	return idMap, nil
}

func DiffKey(baseKey []byte, newKey []byte) []byte {
	var i int
	for i = 0; i < len(newKey) && i < len(baseKey); i++ {
		if newKey[i] != baseKey[i] {
			break
		}
	}
	return newKey[i:]
}

func RecoverKey(baseKey []byte, diffKey []byte, overlap uint16) []byte {
	key := make([]byte, 0, int(overlap)+len(diffKey))
	key = append(key, baseKey[:overlap]...)
	key = append(key, diffKey...)
	return key
}
