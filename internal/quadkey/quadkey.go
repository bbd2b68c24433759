package quadkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	zoomBits = 6
	zoomMask = 1<<zoomBits - 1
)

var ErrInvalidQuadkey = errors.New("invalid quadkey")

// Quadkey identifies a square quadtree cell. The low 6 bits hold the zoom,
// the top 2*zoom bits hold the Morton code of the cell, x bit first.
type Quadkey uint64

// Encode returns the key of the minimal enclosing cell of b.
//
// Encode panics if b does not satisfy the grid invariant.
func Encode(b BoundingBox) Quadkey {
	if err := b.Validate(); err != nil {
		panic(err)
	}

	x1, y1 := b.X, b.Y
	x2, y2 := b.X+b.W, b.Y+b.H

	var code uint64
	zoom := 0
	for ; zoom < MaxZoom; zoom++ {
		shift := MaxZoom - 1 - zoom
		xb := (x1 >> shift) & 1
		yb := (y1 >> shift) & 1
		if xb != (x2>>shift)&1 || yb != (y2>>shift)&1 {
			break
		}
		code = code<<2 | uint64(xb)<<1 | uint64(yb)
	}

	// a 64 bit shift is not a meaningful packing, the root cell is all zeroes
	if zoom == 0 {
		return 0
	}
	return Quadkey(code<<(64-2*zoom) | uint64(zoom))
}

// Decode returns the square cell identified by q. It panics on a key whose
// zoom is deeper than MaxZoom.
func Decode(q Quadkey) BoundingBox {
	zoom := q.Zoom()
	if zoom > MaxZoom {
		panic(fmt.Errorf("%w: zoom %d", ErrInvalidQuadkey, zoom))
	}

	k := uint64(q)
	var x, y uint32
	for bit := 0; bit < zoom; bit++ {
		x = x<<1 | uint32(k>>(63-2*bit))&1
		y = y<<1 | uint32(k>>(62-2*bit))&1
	}

	shift := MaxZoom - zoom
	side := uint32(1)<<shift - 1
	return BoundingBox{X: x << shift, Y: y << shift, W: side, H: side}
}

// Cell is Decode(q).
func (q Quadkey) Cell() BoundingBox {
	return Decode(q)
}

// Zoom returns the subdivision depth stored in the low bits.
func (q Quadkey) Zoom() int {
	return int(q & zoomMask)
}

// codeMask covers the top 2*zoom bits.
func codeMask(zoom int) uint64 {
	if zoom == 0 {
		return 0
	}
	return ^uint64(0) << (64 - 2*zoom)
}

// Valid reports whether q has a reachable zoom and no bits set between
// the code and the zoom field.
func (q Quadkey) Valid() bool {
	zoom := q.Zoom()
	if zoom > MaxZoom {
		return false
	}
	return uint64(q)&^codeMask(zoom)&^zoomMask == 0
}

// Ancestor truncates q to the given zoom. A zoom at or below q's own
// returns q unchanged.
func (q Quadkey) Ancestor(zoom int) Quadkey {
	if zoom >= q.Zoom() {
		return q
	}
	if zoom <= 0 {
		return 0
	}
	return Quadkey(uint64(q)&codeMask(zoom) | uint64(zoom))
}

// IsAncestorOf reports whether the cell of q contains the cell of other.
// A key is its own ancestor.
func (q Quadkey) IsAncestorOf(other Quadkey) bool {
	return q.Zoom() <= other.Zoom() && other.Ancestor(q.Zoom()) == q
}

// Child returns the sub-cell in the given quadrant (x bit << 1 | y bit).
func (q Quadkey) Child(quadrant uint8) (Quadkey, error) {
	zoom := q.Zoom()
	if zoom >= MaxZoom {
		return q, fmt.Errorf("%w: cell at zoom %d has no children", ErrInvalidQuadkey, zoom)
	}
	code := uint64(q) &^ zoomMask
	code |= uint64(quadrant&3) << (62 - 2*zoom)
	return Quadkey(code | uint64(zoom+1)), nil
}

// Digits renders the path from the root as quadrant digits 0-3.
// The root cell renders as an empty string.
func (q Quadkey) Digits() string {
	zoom := q.Zoom()
	var sb strings.Builder
	sb.Grow(zoom)
	for level := 0; level < zoom; level++ {
		d := (uint64(q) >> (62 - 2*level)) & 3
		sb.WriteByte(byte('0' + d))
	}
	return sb.String()
}

// ParseDigits is the inverse of Digits.
func ParseDigits(s string) (Quadkey, error) {
	if len(s) > MaxZoom {
		return 0, fmt.Errorf("%w: %q deeper than %d", ErrInvalidQuadkey, s, MaxZoom)
	}
	var q Quadkey
	for _, r := range s {
		if r < '0' || r > '3' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidQuadkey, s)
		}
		child, err := q.Child(uint8(r - '0'))
		if err != nil {
			return 0, err
		}
		q = child
	}
	return q, nil
}

func (q Quadkey) String() string {
	return strconv.Itoa(q.Zoom()) + "/" + q.Digits()
}
