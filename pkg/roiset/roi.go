// Package roiset reads the outline archives written by the registration tool:
// zip files holding one ImageJ ".roi" binary record per region outline.
package roiset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"unicode/utf16"

	"atlasroi/pkg/geometry"
)

// RoiType is the shape code stored in a roi header
type RoiType int

const (
	TypePolygon  RoiType = 0
	TypeRect     RoiType = 1
	TypeOval     RoiType = 2
	TypeLine     RoiType = 3
	TypeFreeLine RoiType = 4
	TypePolyLine RoiType = 5
	TypeNoRoi    RoiType = 6
	TypeFreehand RoiType = 7
	TypeTraced   RoiType = 8
	TypeAngle    RoiType = 9
	TypePoint    RoiType = 10
)

// header layout, big endian
const (
	offMagic       = 0
	offVersion     = 4
	offType        = 6
	offTop         = 8
	offLeft        = 10
	offBottom      = 12
	offRight       = 14
	offNCoords     = 16
	offX1          = 18
	offY1          = 22
	offX2          = 26
	offY2          = 30
	offSize        = 18
	offShapeSize   = 36
	offOptions     = 50
	offHeader2     = 60
	headerSize     = 64
	hdr2NameOffset = 16
	hdr2NameLength = 20
	header2Size    = 64

	optSubPixel = 128

	ovalVertices = 72
)

// path segment codes of composite shapes
const (
	segMoveTo  = 0
	segLineTo  = 1
	segQuadTo  = 2
	segCubicTo = 3
	segClose   = 4
)

var (
	// ErrMalformed is returned for truncated or inconsistent roi records
	ErrMalformed = errors.New("malformed roi record")

	// ErrUnsupportedType is returned for roi types that do not enclose an area
	ErrUnsupportedType = errors.New("unsupported roi type")
)

// Outline is one decoded, named region outline
type Outline struct {
	// Name is the roi name: a region id or one of the hemisphere sentinels
	Name string

	// Type is the shape code the outline was decoded from
	Type RoiType

	// Geometry is the outline polygon in the coordinate frame of the source image
	Geometry geometry.Polygon
}

// Decode parses a single roi record. entryName is the archive entry name and
// supplies the outline name when the record does not carry one.
func Decode(entryName string, data []byte) (Outline, error) {
	if len(data) < headerSize || string(data[offMagic:offMagic+4]) != "Iout" {
		return Outline{}, fmt.Errorf("%w: %s: bad header", ErrMalformed, entryName)
	}
	d := decoder{data: data}

	version := d.u16(offVersion)
	typ := RoiType(data[offType])
	top := float64(d.i16(offTop))
	left := float64(d.i16(offLeft))
	bottom := float64(d.i16(offBottom))
	right := float64(d.i16(offRight))
	options := d.u16(offOptions)
	subPixel := version >= 222 && options&optSubPixel != 0

	out := Outline{Name: d.name(), Type: typ}
	if out.Name == "" {
		out.Name = strings.TrimSuffix(path.Base(entryName), ".roi")
	}

	switch typ {
	case TypeRect:
		if shapeSize := int(d.i32(offShapeSize)); shapeSize > 0 {
			g, err := d.shape(shapeSize, left, top)
			if err != nil {
				return Outline{}, fmt.Errorf("%s: %w", entryName, err)
			}
			out.Geometry = g
		} else if subPixel {
			out.Geometry = geometry.NewRect(
				float64(d.f32(offX1)), float64(d.f32(offY1)),
				float64(d.f32(offX2)), float64(d.f32(offY2)))
		} else {
			out.Geometry = geometry.NewRect(left, top, right-left, bottom-top)
		}
	case TypeOval:
		out.Geometry = geometry.NewEllipse(left, top, right-left, bottom-top, ovalVertices)
	case TypePolygon, TypeFreehand, TypeTraced:
		g, err := d.polygon(left, top, subPixel)
		if err != nil {
			return Outline{}, fmt.Errorf("%s: %w", entryName, err)
		}
		out.Geometry = g
	default:
		return Outline{}, fmt.Errorf("%w: %s has type %d", ErrUnsupportedType, entryName, typ)
	}

	if d.err != nil {
		return Outline{}, fmt.Errorf("%s: %w", entryName, d.err)
	}
	return out, nil
}

type decoder struct {
	data []byte
	err  error
}

func (d *decoder) check(off, n int) bool {
	if off < 0 || off+n > len(d.data) {
		if d.err == nil {
			d.err = fmt.Errorf("%w: read of %d bytes at %d past end (%d)", ErrMalformed, n, off, len(d.data))
		}
		return false
	}
	return true
}

func (d *decoder) u16(off int) int {
	if !d.check(off, 2) {
		return 0
	}
	return int(binary.BigEndian.Uint16(d.data[off:]))
}

func (d *decoder) i16(off int) int {
	if !d.check(off, 2) {
		return 0
	}
	return int(int16(binary.BigEndian.Uint16(d.data[off:])))
}

func (d *decoder) i32(off int) int32 {
	if !d.check(off, 4) {
		return 0
	}
	return int32(binary.BigEndian.Uint32(d.data[off:]))
}

func (d *decoder) f32(off int) float32 {
	if !d.check(off, 4) {
		return 0
	}
	return math.Float32frombits(binary.BigEndian.Uint32(d.data[off:]))
}

func (d *decoder) name() string {
	hdr2 := int(d.i32(offHeader2))
	if hdr2 <= 0 || hdr2+header2Size > len(d.data) {
		return ""
	}
	off := int(d.i32(hdr2 + hdr2NameOffset))
	n := int(d.i32(hdr2 + hdr2NameLength))
	if off <= 0 || n <= 0 || off+2*n > len(d.data) {
		return ""
	}
	chars := make([]uint16, n)
	for i := range chars {
		chars[i] = binary.BigEndian.Uint16(d.data[off+2*i:])
	}
	return string(utf16.Decode(chars))
}

// polygon reads integer coordinates relative to the bounds origin, replaced
// by absolute float coordinates when the record has sub-pixel resolution
func (d *decoder) polygon(left, top float64, subPixel bool) (geometry.Polygon, error) {
	n := d.u16(offNCoords)
	if n == 0 {
		n = int(d.i32(offSize))
	}
	if n < 3 {
		return geometry.Polygon{}, fmt.Errorf("%w: polygon with %d vertices", ErrMalformed, n)
	}
	// both coordinate blocks must be present before n is trusted
	if !d.check(headerSize, 4*n) {
		return geometry.Polygon{}, d.err
	}
	if subPixel && !d.check(headerSize+4*n, 8*n) {
		return geometry.Polygon{}, d.err
	}
	ring := make([]geometry.Point, n)
	if subPixel {
		base := headerSize + 4*n
		for i := 0; i < n; i++ {
			ring[i] = geometry.Point{
				X: float64(d.f32(base + 4*i)),
				Y: float64(d.f32(base + 4*n + 4*i)),
			}
		}
	} else {
		for i := 0; i < n; i++ {
			ring[i] = geometry.Point{
				X: left + float64(d.i16(headerSize+2*i)),
				Y: top + float64(d.i16(headerSize+2*n+2*i)),
			}
		}
	}
	return geometry.NewPolygon(ring), nil
}

// shape reads a composite path. Curves are replaced by their end points.
func (d *decoder) shape(size int, left, top float64) (geometry.Polygon, error) {
	if !d.check(headerSize, 4*size) {
		return geometry.Polygon{}, d.err
	}
	vals := make([]float64, size)
	for i := range vals {
		vals[i] = float64(d.f32(headerSize + 4*i))
	}

	var g geometry.Polygon
	var ring []geometry.Point
	flush := func() {
		g.AddRing(ring)
		ring = nil
	}
	pt := func(i int) geometry.Point {
		return geometry.Point{X: left + vals[i], Y: top + vals[i+1]}
	}
	for i := 0; i < len(vals); {
		var args int
		switch int(vals[i]) {
		case segMoveTo:
			flush()
			args = 2
		case segLineTo:
			args = 2
		case segQuadTo:
			args = 4
		case segCubicTo:
			args = 6
		case segClose:
			flush()
			i++
			continue
		default:
			return geometry.Polygon{}, fmt.Errorf("%w: unknown path segment %v", ErrMalformed, vals[i])
		}
		if i+args >= len(vals) {
			return geometry.Polygon{}, fmt.Errorf("%w: truncated path segment", ErrMalformed)
		}
		ring = append(ring, pt(i+args-1))
		i += args + 1
	}
	flush()
	return g, nil
}
