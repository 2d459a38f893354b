package roiset

import (
	"archive/zip"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlasroi/pkg/geometry"
)

func TestEncodeDecode_SubPixelPolygon(t *testing.T) {
	in := Outline{
		Name:     "672",
		Geometry: geometry.NewPolygon([]geometry.Point{{X: 10.5, Y: 20.25}, {X: 40, Y: 20}, {X: 35.75, Y: 60.5}}),
	}
	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode("0001-672.roi", data)
	require.NoError(t, err)
	assert.Equal(t, "672", out.Name)
	assert.Equal(t, TypePolygon, out.Type)
	assert.Equal(t, in.Geometry.Rings(), out.Geometry.Rings())
}

func TestEncodeDecode_CompositeShape(t *testing.T) {
	g := geometry.NewPolygon(
		[]geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
		[]geometry.Point{{X: 20, Y: 0}, {X: 30, Y: 0}, {X: 30, Y: 10}, {X: 20, Y: 10}},
	)
	data, err := Encode(Outline{Name: "Left", Geometry: g})
	require.NoError(t, err)

	out, err := Decode("left.roi", data)
	require.NoError(t, err)
	assert.Equal(t, "Left", out.Name)
	assert.Equal(t, TypeRect, out.Type)
	assert.InDelta(t, 200.0, out.Geometry.Area(), 1e-6)
	assert.Len(t, out.Geometry.Rings(), 2)
}

// integerPolygonRecord builds a legacy record without sub-pixel data or name
func integerPolygonRecord(left, top int, xs, ys []int16) []byte {
	n := len(xs)
	data := make([]byte, headerSize+4*n)
	copy(data, "Iout")
	binary.BigEndian.PutUint16(data[offVersion:], 218)
	data[offType] = byte(TypeTraced)
	binary.BigEndian.PutUint16(data[offTop:], uint16(top))
	binary.BigEndian.PutUint16(data[offLeft:], uint16(left))
	binary.BigEndian.PutUint16(data[offNCoords:], uint16(n))
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint16(data[headerSize+2*i:], uint16(xs[i]))
		binary.BigEndian.PutUint16(data[headerSize+2*n+2*i:], uint16(ys[i]))
	}
	return data
}

func TestDecode_IntegerCoordinatesAreRelative(t *testing.T) {
	data := integerPolygonRecord(100, 50, []int16{0, 4, 4, 0}, []int16{0, 0, 3, 3})

	out, err := Decode("dir/315.roi", data)
	require.NoError(t, err)
	assert.Equal(t, "315", out.Name, "name comes from the entry when the record has none")
	assert.Equal(t, geometry.Rect{Min: geometry.Point{X: 100, Y: 50}, Max: geometry.Point{X: 104, Y: 53}}, out.Geometry.Bounds())
	assert.InDelta(t, 12.0, out.Geometry.Area(), 1e-9)
}

func TestDecode_RectAndOval(t *testing.T) {
	rect := make([]byte, headerSize)
	copy(rect, "Iout")
	rect[offType] = byte(TypeRect)
	binary.BigEndian.PutUint16(rect[offTop:], 10)
	binary.BigEndian.PutUint16(rect[offLeft:], 20)
	binary.BigEndian.PutUint16(rect[offBottom:], 30)
	binary.BigEndian.PutUint16(rect[offRight:], 60)

	out, err := Decode("r.roi", rect)
	require.NoError(t, err)
	assert.InDelta(t, 800.0, out.Geometry.Area(), 1e-9)

	oval := append([]byte(nil), rect...)
	oval[offType] = byte(TypeOval)
	out, err = Decode("o.roi", oval)
	require.NoError(t, err)
	assert.InDelta(t, 3.14159*20*10, out.Geometry.Area(), 10)
}

func TestDecode_Failures(t *testing.T) {
	_, err := Decode("x.roi", []byte("nope"))
	assert.True(t, errors.Is(err, ErrMalformed))

	truncated := integerPolygonRecord(0, 0, []int16{0, 1, 1}, []int16{0, 0, 1})
	_, err = Decode("x.roi", truncated[:headerSize+4])
	assert.True(t, errors.Is(err, ErrMalformed))

	// a zero vertex count falls back to the size field, which claims far
	// more coordinates than the record holds
	huge := make([]byte, headerSize)
	copy(huge, "Iout")
	binary.BigEndian.PutUint16(huge[offVersion:], 228)
	huge[offType] = byte(TypePolygon)
	binary.BigEndian.PutUint32(huge[offSize:], 0x7fffffff)
	_, err = Decode("x.roi", huge)
	assert.True(t, errors.Is(err, ErrMalformed))

	line := make([]byte, headerSize)
	copy(line, "Iout")
	line[offType] = byte(TypeLine)
	_, err = Decode("x.roi", line)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestReader_OpenArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ABBA-RoiSet-test.zip")
	outlines := []Outline{
		{Name: "997", Geometry: geometry.NewRect(0, 0, 100, 100)},
		{Name: LeftName, Geometry: geometry.NewRect(0, 0, 50, 100)},
		{Name: RightName, Geometry: geometry.NewRect(50, 0, 50, 100)},
	}
	require.NoError(t, WriteArchive(path, outlines))

	got, err := NewReader(nil).Open(path)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, o := range got {
		assert.Equal(t, outlines[i].Name, o.Name)
		assert.InDelta(t, outlines[i].Geometry.Area(), o.Geometry.Area(), 1e-6)
	}
}

func TestReader_EmptyArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("no rois here"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = NewReader(nil).Open(path)
	assert.True(t, errors.Is(err, ErrNoOutlines))
}

func TestReader_MissingArchive(t *testing.T) {
	_, err := NewReader(nil).Open(filepath.Join(t.TempDir(), "absent.zip"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
