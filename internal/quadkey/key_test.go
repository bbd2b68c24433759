package quadkey

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDbKey_Bytes(t *testing.T) {
	k := DbKey{Quadkey: 29, Entity: 0x0102}
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0x1d, 0x01, 0x02}, k.Bytes())
	require.Equal(t, "000000000000001d 0102", k.String())

	back, err := ParseDbKey(k.Bytes())
	require.NoError(t, err)
	require.Equal(t, k, back)
	require.Equal(t, k.Bytes()[:8], k.PrefixBytes())

	_, err = ParseDbKey(k.Bytes()[:9])
	require.ErrorIs(t, err, ErrKeySize)
}

func TestDbKey_Compare(t *testing.T) {
	k0 := DbKey{Quadkey: 0}
	k1 := DbKey{Quadkey: 0, Entity: 1}
	k2 := DbKey{Quadkey: 29}
	k3 := DbKey{Quadkey: 29, Entity: 256}
	k4 := DbKey{Quadkey: 1<<62 | 1}
	k5 := DbKey{Quadkey: 1<<63 | 1}

	keys := []DbKey{k0, k1, k2, k3, k4, k5}
	for i := 1; i < len(keys); i++ {
		require.Equal(t, -1, bytes.Compare(keys[i-1].Bytes(), keys[i].Bytes()), "%v < %v", keys[i-1], keys[i])
	}
}

func TestNewDbKey(t *testing.T) {
	b := BoundingBox{X: 10, Y: 10}
	k := NewDbKey(b)
	require.Zero(t, k.Entity)
	require.Equal(t, Encode(b), k.Quadkey)
	require.True(t, k.Cell().Contains(b))
}

func TestDbValue_Bytes(t *testing.T) {
	v := DbValue{BBox: BoundingBox{X: 1, Y: 2, W: 3, H: 0x01020304}, IsBlack: 7}
	require.Equal(t, []byte{
		1, 0, 0, 0,
		2, 0, 0, 0,
		3, 0, 0, 0,
		4, 3, 2, 1,
		7,
	}, v.Bytes())

	back, err := ParseDbValue(v.Bytes())
	require.NoError(t, err)
	require.Equal(t, v, back)

	_, err = ParseDbValue(append(v.Bytes(), 0))
	require.ErrorIs(t, err, ErrValueSize)

	var b BoundingBox
	require.ErrorIs(t, b.UnmarshalBinary([]byte{1, 2, 3}), ErrBoundingBoxSize)
}
