package util

type ValueStruct struct {
	Value []byte
	Meta  byte
}

func (v *ValueStruct) EncodedSize() uint32 {
	// 1 byte for meta
	return uint32(len(v.Value)) + 1
}

func (v *ValueStruct) DecodeValue(b []byte) {
	v.Value = b[:len(b)-1]
	v.Meta = b[len(b)-1]
}

// EncodeValue encodes the value struct into the byte slice.
func (v *ValueStruct) EncodeValue(b []byte) (encSize uint32) {
	encSize = uint32(copy(b, v.Value))
	encSize += uint32(copy(b[encSize:], []byte{v.Meta}))
	return encSize
}

type Entry struct {
	Key         []byte
	ValueStruct ValueStruct
}

func NewEntry(key []byte, value []byte) *Entry {
	return &Entry{
		Key: key,
		ValueStruct: ValueStruct{
			Value: value,
		},
	}
}

func (e *Entry) Entry() *Entry {
	return e
}

// Size is the combined key and value length in bytes.
func (e *Entry) Size() int {
	return len(e.Key) + len(e.ValueStruct.Value)
}

func (e *Entry) IsZero() bool {
	return len(e.Key) == 0
}
