package storage

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in   string
		want Compression
	}{
		{"", CompressionNone},
		{"none", CompressionNone},
		{"LZ4", CompressionLZ4},
		{" zstd ", CompressionZSTD},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCompression(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := ParseCompression("snappy")
	require.ErrorIs(t, err, ErrUnknownCompression)
}

func Test_compress(t *testing.T) {
	data := bytes.Repeat([]byte("quadkey "), 512)

	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		used, packed, err := compress(c, data)
		require.NoError(t, err)
		require.Equal(t, c, used)
		require.Less(t, len(packed), len(data))

		back, err := decompress(used, packed, len(data))
		require.NoError(t, err)
		require.Equal(t, data, back)
	}

	used, packed, err := compress(CompressionLZ4, []byte{1})
	require.NoError(t, err)
	require.Equal(t, CompressionNone, used)
	require.Equal(t, []byte{1}, packed)
}

func Test_snapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s")
	s := snapshot{id: uuid.New(), compression: CompressionZSTD, count: 2}
	s.payload = appendEntry(s.payload, []byte("k1"), []byte("v1"))
	s.payload = appendEntry(s.payload, []byte("k2"), nil)

	_, err := writeSnapshot(path, s)
	require.NoError(t, err)

	back, err := readSnapshot(path)
	require.NoError(t, err)
	require.Equal(t, s.id, back.id)

	var keys []string
	require.NoError(t, back.entries(func(key, value []byte) {
		keys = append(keys, string(key))
	}))
	require.Equal(t, []string{"k1", "k2"}, keys)

	back.count = 3
	require.ErrorIs(t, back.entries(func(_, _ []byte) {}), ErrCorruptSnapshot)

	back.payload = back.payload[:len(back.payload)-3]
	require.ErrorIs(t, back.entries(func(_, _ []byte) {}), ErrCorruptSnapshot)
}

func Test_readSnapshotRawSize(t *testing.T) {
	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s")
			s := snapshot{id: uuid.New(), compression: c, count: 100}
			for i := 0; i < 100; i++ {
				s.payload = appendEntry(s.payload, []byte("key"), []byte("value value value"))
			}
			used, err := writeSnapshot(path, s)
			require.NoError(t, err)
			require.Equal(t, c, used)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			binary.BigEndian.PutUint64(data[30:38], 1<<63)
			require.NoError(t, os.WriteFile(path, data, 0o644))

			_, err = readSnapshot(path)
			require.ErrorIs(t, err, ErrCorruptSnapshot)

			// a consistent checksum must not let the size through either
			for _, rawSize := range []uint64{1 << 63, maxPayloadSize, 0} {
				binary.BigEndian.PutUint64(data[30:38], rawSize)
				sum := snapshotChecksum(data, data[snapshotHeaderSize:])
				binary.BigEndian.PutUint32(data[snapshotSumOffset:], sum)
				require.NoError(t, os.WriteFile(path, data, 0o644))

				_, err = readSnapshot(path)
				require.ErrorIs(t, err, ErrCorruptSnapshot, "raw size %d", rawSize)
			}
		})
	}
}
