// Package atlasspace maps points between image pixel space and the physical
// reference frame of the atlas, using the registration transform exported by
// the registration tool.
package atlasspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"atlasroi/pkg/geometry"
)

// ErrNonInvertible is returned for transforms without an inverse
var ErrNonInvertible = errors.New("transform is not invertible")

// UnsupportedTypeError reports a serialized transform type that cannot be read
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported transform type %q", e.Type)
}

// Transform maps 3D points
type Transform interface {
	Apply(p [3]float64) [3]float64
	Inverse() (Transform, error)
}

// Affine3D is a 3D affine transform stored as a 4x4 homogeneous matrix
type Affine3D struct {
	m *mat.Dense
}

// NewAffine3D builds a transform from the 12 row-major values of the top three
// rows of its homogeneous matrix
func NewAffine3D(values []float64) (*Affine3D, error) {
	if len(values) != 12 {
		return nil, fmt.Errorf("affine transform needs 12 values, got %d", len(values))
	}
	data := make([]float64, 16)
	copy(data, values)
	data[15] = 1
	return &Affine3D{m: mat.NewDense(4, 4, data)}, nil
}

// IdentityAffine3D returns the identity transform
func IdentityAffine3D() *Affine3D {
	a, _ := NewAffine3D([]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0})
	return a
}

// FromPlanar lifts a 2D pixel transform into 3D, leaving z unchanged
func FromPlanar(t geometry.Affine) *Affine3D {
	a, _ := NewAffine3D([]float64{
		t.M00, t.M01, 0, t.M02,
		t.M10, t.M11, 0, t.M12,
		0, 0, 1, 0,
	})
	return a
}

// Apply maps p
func (a *Affine3D) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for r := 0; r < 3; r++ {
		out[r] = a.m.At(r, 0)*p[0] + a.m.At(r, 1)*p[1] + a.m.At(r, 2)*p[2] + a.m.At(r, 3)
	}
	return out
}

// Inverse inverts the homogeneous matrix
func (a *Affine3D) Inverse() (Transform, error) {
	if det := mat.Det(a.m); math.Abs(det) < 1e-12 || math.IsNaN(det) {
		return nil, ErrNonInvertible
	}
	var inv mat.Dense
	if err := inv.Inverse(a.m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonInvertible, err)
	}
	return &Affine3D{m: &inv}, nil
}

// Concat returns the transform applying t first and then a
func (a *Affine3D) Concat(t *Affine3D) *Affine3D {
	var m mat.Dense
	m.Mul(a.m, t.m)
	return &Affine3D{m: &m}
}

// Values returns the 12 row-major values of the top three rows
func (a *Affine3D) Values() []float64 {
	out := make([]float64, 0, 12)
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			out = append(out, a.m.At(r, c))
		}
	}
	return out
}

// Sequence applies its transforms in order
type Sequence []Transform

// Apply maps p through every transform of the sequence
func (s Sequence) Apply(p [3]float64) [3]float64 {
	for _, t := range s {
		p = t.Apply(p)
	}
	return p
}

// Inverse inverts every element and reverses the order
func (s Sequence) Inverse() (Transform, error) {
	inv := make(Sequence, len(s))
	for i, t := range s {
		ti, err := t.Inverse()
		if err != nil {
			return nil, err
		}
		inv[len(s)-1-i] = ti
	}
	return inv, nil
}

// Load decodes a serialized registration transform. Affine transforms and
// (invertible) sequences of them are supported.
func Load(r io.Reader) (Transform, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode transform: %w", err)
	}
	return decode(raw)
}

// LoadFile loads the serialized transform at path
func LoadFile(path string) (Transform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transform: %w", err)
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func decode(raw map[string]json.RawMessage) (Transform, error) {
	var typ string
	if err := json.Unmarshal(raw["type"], &typ); err != nil {
		return nil, fmt.Errorf("transform without type: %w", err)
	}
	switch typ {
	case "AffineTransform3D":
		var values []float64
		if err := json.Unmarshal(raw["affinetransform3d"], &values); err != nil {
			return nil, fmt.Errorf("decode affine values: %w", err)
		}
		return NewAffine3D(values)
	case "RealTransformSequence", "InvertibleRealTransformSequence":
		var size int
		if err := json.Unmarshal(raw["size"], &size); err != nil {
			return nil, fmt.Errorf("decode sequence size: %w", err)
		}
		seq := make(Sequence, 0, size)
		for i := 0; i < size; i++ {
			var child map[string]json.RawMessage
			if err := json.Unmarshal(raw["realTransform_"+strconv.Itoa(i)], &child); err != nil {
				return nil, fmt.Errorf("decode sequence element %d: %w", i, err)
			}
			t, err := decode(child)
			if err != nil {
				return nil, fmt.Errorf("sequence element %d: %w", i, err)
			}
			seq = append(seq, t)
		}
		return seq, nil
	default:
		return nil, &UnsupportedTypeError{Type: typ}
	}
}
