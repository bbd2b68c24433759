package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the algorithm used for snapshot payloads.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 is LZ4 block compression, fast flushes.
	CompressionLZ4 Compression = 1
	// CompressionZSTD is ZSTD compression, smaller snapshots.
	CompressionZSTD Compression = 2
)

var ErrUnknownCompression = errors.New("unknown compression")

// ParseCompression accepts none, lz4 or zstd.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	}
	return CompressionNone, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// compress returns the algorithm actually applied, which falls back to
// CompressionNone for incompressible data.
func compress(c Compression, data []byte) (Compression, []byte, error) {
	if len(data) == 0 {
		return CompressionNone, data, nil
	}

	switch c {
	case CompressionNone:
		return CompressionNone, data, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return c, nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 || n >= len(data) {
			return CompressionNone, data, nil
		}
		return CompressionLZ4, buf[:n], nil
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return c, nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer enc.Close()
		out := enc.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return CompressionNone, data, nil
		}
		return CompressionZSTD, out, nil
	}
	return c, nil, fmt.Errorf("%w: %v", ErrUnknownCompression, c)
}

// decompress expects rawSize to be bounded by the caller.
func decompress(c Compression, data []byte, rawSize int) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 uncompress: %w", err)
		}
		return out[:n], nil
	case CompressionZSTD:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(rawSize)+1))
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownCompression, c)
}
