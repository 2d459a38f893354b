package roiset

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"
)

const encodeVersion = 228

// Encode writes an outline as a sub-pixel polygon record. Multi-ring outlines
// are written as a composite shape record.
func Encode(o Outline) ([]byte, error) {
	rings := o.Geometry.Rings()
	if len(rings) == 0 {
		return nil, fmt.Errorf("encode %s: empty geometry", o.Name)
	}
	b := o.Geometry.Bounds()
	left, top := math.Floor(b.Min.X), math.Floor(b.Min.Y)
	right, bottom := math.Ceil(b.Max.X), math.Ceil(b.Max.Y)

	hdr := make([]byte, headerSize)
	copy(hdr, "Iout")
	binary.BigEndian.PutUint16(hdr[offVersion:], encodeVersion)
	binary.BigEndian.PutUint16(hdr[offTop:], uint16(int16(top)))
	binary.BigEndian.PutUint16(hdr[offLeft:], uint16(int16(left)))
	binary.BigEndian.PutUint16(hdr[offBottom:], uint16(int16(bottom)))
	binary.BigEndian.PutUint16(hdr[offRight:], uint16(int16(right)))

	var body []byte
	if len(rings) == 1 {
		ring := rings[0]
		n := len(ring)
		hdr[offType] = byte(TypePolygon)
		if n > math.MaxUint16 {
			binary.BigEndian.PutUint32(hdr[offSize:], uint32(n))
		} else {
			binary.BigEndian.PutUint16(hdr[offNCoords:], uint16(n))
		}
		binary.BigEndian.PutUint16(hdr[offOptions:], optSubPixel)
		body = make([]byte, 12*n)
		for i, p := range ring {
			binary.BigEndian.PutUint16(body[2*i:], uint16(int16(p.X-left)))
			binary.BigEndian.PutUint16(body[2*n+2*i:], uint16(int16(p.Y-top)))
			binary.BigEndian.PutUint32(body[4*n+4*i:], math.Float32bits(float32(p.X)))
			binary.BigEndian.PutUint32(body[8*n+4*i:], math.Float32bits(float32(p.Y)))
		}
	} else {
		hdr[offType] = byte(TypeRect)
		var vals []float32
		for _, ring := range rings {
			for i, p := range ring {
				seg := float32(segLineTo)
				if i == 0 {
					seg = segMoveTo
				}
				vals = append(vals, seg, float32(p.X-left), float32(p.Y-top))
			}
			vals = append(vals, segClose)
		}
		binary.BigEndian.PutUint32(hdr[offShapeSize:], uint32(len(vals)))
		body = make([]byte, 4*len(vals))
		for i, v := range vals {
			binary.BigEndian.PutUint32(body[4*i:], math.Float32bits(v))
		}
	}

	name := utf16.Encode([]rune(o.Name))
	hdr2Off := headerSize + len(body)
	binary.BigEndian.PutUint32(hdr[offHeader2:], uint32(hdr2Off))
	hdr2 := make([]byte, header2Size)
	binary.BigEndian.PutUint32(hdr2[hdr2NameOffset:], uint32(hdr2Off+header2Size))
	binary.BigEndian.PutUint32(hdr2[hdr2NameLength:], uint32(len(name)))
	nameBytes := make([]byte, 2*len(name))
	for i, c := range name {
		binary.BigEndian.PutUint16(nameBytes[2*i:], c)
	}

	out := make([]byte, 0, hdr2Off+header2Size+len(nameBytes))
	out = append(out, hdr...)
	out = append(out, body...)
	out = append(out, hdr2...)
	out = append(out, nameBytes...)
	return out, nil
}
