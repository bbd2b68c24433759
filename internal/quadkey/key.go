package quadkey

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// KeySize is the length of a serialized DbKey.
	KeySize = 10
	// ValueSize is the length of a serialized DbValue.
	ValueSize = BoundingBoxSize + 1
	// MaxEntity is the last usable disambiguator.
	MaxEntity = ^uint16(0)
)

var (
	ErrKeySize   = errors.New("db key must be 10 bytes")
	ErrValueSize = errors.New("db value must be 17 bytes")
)

// DbKey the store key of one entity. All digits stored in BigEndian notation
// so that byte order follows quadkey order.
//
// [0:8] the quadkey uint64
//
// [8:10] the entity disambiguator uint16
type DbKey struct {
	Quadkey Quadkey
	Entity  uint16
}

// NewDbKey returns the first candidate key for b. It panics if b is out of grid.
func NewDbKey(b BoundingBox) DbKey {
	return DbKey{Quadkey: Encode(b)}
}

// Cell decodes the quadkey part of the key.
func (k DbKey) Cell() BoundingBox {
	return Decode(k.Quadkey)
}

// Bytes returns the 10 byte store form.
func (k DbKey) Bytes() []byte {
	buf := make([]byte, KeySize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(k.Quadkey))
	binary.BigEndian.PutUint16(buf[8:10], k.Entity)
	return buf
}

// MarshalBinary is Bytes.
func (k DbKey) MarshalBinary() ([]byte, error) {
	return k.Bytes(), nil
}

// UnmarshalBinary decodes the form written by Bytes.
func (k *DbKey) UnmarshalBinary(data []byte) error {
	if len(data) != KeySize {
		return ErrKeySize
	}
	k.Quadkey = Quadkey(binary.BigEndian.Uint64(data[0:8]))
	k.Entity = binary.BigEndian.Uint16(data[8:10])
	return nil
}

// ParseDbKey decodes a store key.
func ParseDbKey(data []byte) (DbKey, error) {
	var k DbKey
	err := k.UnmarshalBinary(data)
	return k, err
}

// PrefixBytes returns the big-endian quadkey bytes shared by every entity
// of the cell.
func (k DbKey) PrefixBytes() []byte {
	return k.Bytes()[:8]
}

// String is Stringer implementation
func (k DbKey) String() string {
	b := k.Bytes()
	return fmt.Sprintf("%s %s", hex.EncodeToString(b[0:8]), hex.EncodeToString(b[8:10]))
}

// DbValue the stored payload of one entity.
//
// [0:16] the bounding box, four uint32 in LittleEndian notation
//
// [16] opaque flag owned by the caller
type DbValue struct {
	BBox    BoundingBox
	IsBlack uint8
}

// Bytes returns the 17 byte store form.
func (v DbValue) Bytes() []byte {
	buf := v.BBox.appendBinary(make([]byte, 0, ValueSize))
	return append(buf, v.IsBlack)
}

// MarshalBinary is Bytes.
func (v DbValue) MarshalBinary() ([]byte, error) {
	return v.Bytes(), nil
}

// UnmarshalBinary decodes the form written by Bytes.
func (v *DbValue) UnmarshalBinary(data []byte) error {
	if len(data) != ValueSize {
		return ErrValueSize
	}
	if err := v.BBox.UnmarshalBinary(data[:BoundingBoxSize]); err != nil {
		return err
	}
	v.IsBlack = data[BoundingBoxSize]
	return nil
}

// ParseDbValue decodes a store value.
func ParseDbValue(data []byte) (DbValue, error) {
	var v DbValue
	err := v.UnmarshalBinary(data)
	return v, err
}
