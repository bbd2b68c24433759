package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Snapshot file layout, all digits stored in BigEndian notation.
//
// [0:4] magic "QKSS"
//
// [4] format version
//
// [5] compression of the payload
//
// [6:22] store id
//
// [22:30] entries count uint64
//
// [30:38] uncompressed payload size uint64
//
// [38:46] payload size uint64
//
// [46:50] crc32 (IEEE) of header[0:46] followed by the payload
//
// [50:] payload, entries as uvarint(len(key)) key uvarint(len(value)) value
const (
	snapshotMagic      = "QKSS"
	snapshotVersion    = 1
	snapshotHeaderSize = 50
	snapshotSumOffset  = 46

	// largest uncompressed payload accepted on restore
	maxPayloadSize = math.MaxInt32
	// lz4 blocks expand at most ~255 times
	lz4MaxRatio = 255
)

var ErrCorruptSnapshot = errors.New("corrupt snapshot")

type snapshot struct {
	id          uuid.UUID
	compression Compression
	count       uint64
	payload     []byte // uncompressed
}

// appendEntry appends one key/value pair in payload form.
func appendEntry(buf, key, value []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(key)))
	buf = append(buf, key...)
	buf = binary.AppendUvarint(buf, uint64(len(value)))
	return append(buf, value...)
}

// entries decodes the payload, calling fn for each pair.
func (s *snapshot) entries(fn func(key, value []byte)) error {
	data := s.payload
	var n uint64
	for len(data) > 0 {
		key, rest, err := readChunk(data)
		if err != nil {
			return err
		}
		value, rest, err := readChunk(rest)
		if err != nil {
			return err
		}
		fn(key, value)
		data = rest
		n++
	}
	if n != s.count {
		return fmt.Errorf("%w: %d entries, header says %d", ErrCorruptSnapshot, n, s.count)
	}
	return nil
}

func readChunk(data []byte) ([]byte, []byte, error) {
	l, n := binary.Uvarint(data)
	if n <= 0 || uint64(len(data)-n) < l {
		return nil, nil, fmt.Errorf("%w: truncated entry", ErrCorruptSnapshot)
	}
	data = data[n:]
	return data[:l:l], data[l:], nil
}

// writeSnapshot writes s atomically: temp file, fsync, rename.
func writeSnapshot(path string, s snapshot) (Compression, error) {
	used, payload, err := compress(s.compression, s.payload)
	if err != nil {
		return used, err
	}

	header := make([]byte, snapshotHeaderSize)
	copy(header[0:4], snapshotMagic)
	header[4] = snapshotVersion
	header[5] = byte(used)
	copy(header[6:22], s.id[:])
	binary.BigEndian.PutUint64(header[22:30], s.count)
	binary.BigEndian.PutUint64(header[30:38], uint64(len(s.payload)))
	binary.BigEndian.PutUint64(header[38:46], uint64(len(payload)))
	binary.BigEndian.PutUint32(header[snapshotSumOffset:], snapshotChecksum(header, payload))

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return used, err
		}
	}

	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return used, err
	}
	if _, err := file.Write(header); err != nil {
		_ = file.Close()
		return used, err
	}
	if _, err := file.Write(payload); err != nil {
		_ = file.Close()
		return used, err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return used, err
	}
	if err := file.Close(); err != nil {
		return used, err
	}
	return used, os.Rename(tmp, path)
}

// readSnapshot loads and verifies the snapshot at path.
func readSnapshot(path string) (snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot{}, err
	}
	if len(data) < snapshotHeaderSize || string(data[0:4]) != snapshotMagic {
		return snapshot{}, fmt.Errorf("%w: bad header", ErrCorruptSnapshot)
	}
	if data[4] != snapshotVersion {
		return snapshot{}, fmt.Errorf("%w: version %d", ErrCorruptSnapshot, data[4])
	}

	s := snapshot{compression: Compression(data[5])}
	copy(s.id[:], data[6:22])
	s.count = binary.BigEndian.Uint64(data[22:30])
	rawSize := binary.BigEndian.Uint64(data[30:38])
	size := binary.BigEndian.Uint64(data[38:46])
	sum := binary.BigEndian.Uint32(data[snapshotSumOffset:snapshotHeaderSize])

	payload := data[snapshotHeaderSize:]
	if uint64(len(payload)) != size {
		return snapshot{}, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorruptSnapshot, len(payload), size)
	}
	if snapshotChecksum(data, payload) != sum {
		return snapshot{}, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}
	if err := checkRawSize(s.compression, size, rawSize); err != nil {
		return snapshot{}, err
	}

	s.payload, err = decompress(s.compression, payload, int(rawSize))
	if err != nil {
		return snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if uint64(len(s.payload)) != rawSize {
		return snapshot{}, fmt.Errorf("%w: decompressed size mismatch", ErrCorruptSnapshot)
	}
	return s, nil
}

// snapshotChecksum covers the header up to the checksum field and the payload.
func snapshotChecksum(header, payload []byte) uint32 {
	sum := crc32.ChecksumIEEE(header[:snapshotSumOffset])
	return crc32.Update(sum, crc32.IEEETable, payload)
}

// checkRawSize rejects uncompressed sizes the payload cannot produce.
func checkRawSize(c Compression, size, rawSize uint64) error {
	if rawSize > maxPayloadSize {
		return fmt.Errorf("%w: uncompressed size %d", ErrCorruptSnapshot, rawSize)
	}
	switch {
	case c == CompressionNone && rawSize != size,
		c != CompressionNone && rawSize == 0,
		c == CompressionLZ4 && rawSize > size*lz4MaxRatio:
		return fmt.Errorf("%w: uncompressed size %d for %d %v bytes", ErrCorruptSnapshot, rawSize, size, c)
	}
	return nil
}
