// Package quadkey maps bounding boxes on a fixed square grid to hierarchical
// Z-order keys and back.
package quadkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
)

const (
	// GridBits is the number of bits per axis coordinate.
	GridBits = 29
	// MaxZoom is the deepest subdivision level, a cell of one grid unit.
	MaxZoom = GridBits
	// MaxCoord is the largest valid coordinate on either axis.
	MaxCoord uint32 = 1<<GridBits - 1
	// MapSize is the physical span of one grid side in meters.
	MapSize = 10_000_000.0

	// BoundingBoxSize is the length of the binary form of a BoundingBox.
	BoundingBoxSize = 16
)

var (
	ErrOutOfGrid       = errors.New("bounding box exceeds grid")
	ErrBoundingBoxSize = errors.New("bounding box must be 16 bytes")
)

// BoundingBox is the axis-aligned rectangle [X, X+W] x [Y, Y+H].
type BoundingBox struct {
	X uint32
	Y uint32
	W uint32
	H uint32
}

// Validate reports whether both far corners stay within MaxCoord.
func (b BoundingBox) Validate() error {
	if b.X > MaxCoord || b.W > MaxCoord-b.X || b.Y > MaxCoord || b.H > MaxCoord-b.Y {
		return fmt.Errorf("%w: %v", ErrOutOfGrid, b)
	}
	return nil
}

// Contains reports whether b is a superset rectangle of other on both axes.
func (b BoundingBox) Contains(other BoundingBox) bool {
	return b.X <= other.X &&
		b.Y <= other.Y &&
		b.X+b.W >= other.X+other.W &&
		b.Y+b.H >= other.Y+other.H
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("{x:%d y:%d w:%d h:%d}", b.X, b.Y, b.W, b.H)
}

// MarshalBinary encodes the box as four little-endian uint32.
func (b BoundingBox) MarshalBinary() ([]byte, error) {
	return b.appendBinary(make([]byte, 0, BoundingBoxSize)), nil
}

func (b BoundingBox) appendBinary(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, b.X)
	buf = binary.LittleEndian.AppendUint32(buf, b.Y)
	buf = binary.LittleEndian.AppendUint32(buf, b.W)
	return binary.LittleEndian.AppendUint32(buf, b.H)
}

// UnmarshalBinary decodes the form written by MarshalBinary.
func (b *BoundingBox) UnmarshalBinary(data []byte) error {
	if len(data) != BoundingBoxSize {
		return ErrBoundingBoxSize
	}
	b.X = binary.LittleEndian.Uint32(data[0:4])
	b.Y = binary.LittleEndian.Uint32(data[4:8])
	b.W = binary.LittleEndian.Uint32(data[8:12])
	b.H = binary.LittleEndian.Uint32(data[12:16])
	return nil
}

// UnitsForMeters converts a span in meters to grid units.
func UnitsForMeters(meters float64) uint32 {
	units := (float64(MaxCoord) + 1) * (meters / MapSize)
	if units > float64(MaxCoord)+1 {
		return MaxCoord + 1
	}
	if units < 0 {
		return 0
	}
	return uint32(units)
}

// RandomBoundingBox returns a box placed uniformly on the grid with sides
// below maxSize, clipped to the grid.
func RandomBoundingBox(rng *rand.Rand, maxSize uint32) BoundingBox {
	b := BoundingBox{
		X: uint32(rng.Int63n(int64(MaxCoord) + 1)),
		Y: uint32(rng.Int63n(int64(MaxCoord) + 1)),
	}
	if maxSize > 0 {
		b.W = uint32(rng.Int63n(int64(maxSize)))
		b.H = uint32(rng.Int63n(int64(maxSize)))
	}
	if b.W > MaxCoord-b.X {
		b.W = MaxCoord - b.X
	}
	if b.H > MaxCoord-b.Y {
		b.H = MaxCoord - b.Y
	}
	return b
}
