package models

import (
	"image/color"
	"strings"

	"github.com/google/uuid"

	"atlasroi/pkg/geometry"
)

// Side identifies the hemisphere a region belongs to
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

// String returns the hemisphere label used in classifications
func (s Side) String() string {
	switch s {
	case SideLeft:
		return "Left"
	case SideRight:
		return "Right"
	default:
		return "None"
	}
}

// Classification is a hierarchical class tag such as ["Left", "CTX"].
// The first element is the most general part.
type Classification []string

// NewClassification builds a classification from its parts, skipping empty ones
func NewClassification(parts ...string) Classification {
	c := make(Classification, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			c = append(c, p)
		}
	}
	if len(c) == 0 {
		return nil
	}
	return c
}

// Derive returns a new classification with parent prepended to c
func (c Classification) Derive(parent string) Classification {
	return NewClassification(append([]string{parent}, c...)...)
}

// IsDerivedFrom reports whether the classification starts with base
func (c Classification) IsDerivedFrom(base string) bool {
	return len(c) > 0 && c[0] == base
}

// Name returns the most specific part of the classification
func (c Classification) Name() string {
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1]
}

// String joins the parts the way derived classes are displayed: "Left: CTX"
func (c Classification) String() string {
	return strings.Join(c, ": ")
}

// Equal reports whether two classifications have the same parts
func (c Classification) Equal(o Classification) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// MeasurementList is an insertion-ordered set of named numeric values
type MeasurementList struct {
	names  []string
	values map[string]float64
}

// NewMeasurementList creates an empty measurement list
func NewMeasurementList() *MeasurementList {
	return &MeasurementList{values: make(map[string]float64)}
}

// Put sets a measurement, keeping the position of an existing name
func (m *MeasurementList) Put(name string, value float64) {
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}
	m.values[name] = value
}

// Get returns the value of a measurement and whether it exists
func (m *MeasurementList) Get(name string) (float64, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Names returns measurement names in insertion order
func (m *MeasurementList) Names() []string {
	return append([]string(nil), m.names...)
}

// Len returns the number of measurements
func (m *MeasurementList) Len() int { return len(m.names) }

// Clone returns an independent copy of the list
func (m *MeasurementList) Clone() *MeasurementList {
	c := NewMeasurementList()
	for _, n := range m.names {
		c.Put(n, m.values[n])
	}
	return c
}

// Annotation is a locked, classified region object in an annotation hierarchy.
// An annotation owns its children; attaching a child to a new parent detaches
// it from the previous one.
type Annotation struct {
	// ID uniquely identifies the object within a store
	ID uuid.UUID

	// Name is the display name shown for the region
	Name string

	// Class is the classification tag
	Class Classification

	// Geometry is the region outline in image pixel coordinates
	Geometry geometry.Polygon

	// Color is the display color
	Color color.RGBA

	// Locked prevents interactive edits in the host
	Locked bool

	// Measurements holds the numeric per-object values
	Measurements *MeasurementList

	parent   *Annotation
	children []*Annotation
}

// NewAnnotation creates an unlocked, unclassified annotation for a geometry
func NewAnnotation(g geometry.Polygon) *Annotation {
	return &Annotation{
		ID:           uuid.New(),
		Geometry:     g,
		Measurements: NewMeasurementList(),
	}
}

// Parent returns the owning annotation, or nil for a top-level object
func (a *Annotation) Parent() *Annotation { return a.parent }

// Children returns a copy of the child list
func (a *Annotation) Children() []*Annotation {
	return append([]*Annotation(nil), a.children...)
}

// AddChild attaches child to a, detaching it from any previous parent
func (a *Annotation) AddChild(child *Annotation) {
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	child.parent = a
	a.children = append(a.children, child)
}

// RemoveChild detaches child from a. It reports whether child was found.
func (a *Annotation) RemoveChild(child *Annotation) bool {
	for i, c := range a.children {
		if c == child {
			a.children = append(a.children[:i], a.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Walk visits a and all its descendants depth first. Returning false from fn
// skips the subtree below the visited node.
func (a *Annotation) Walk(fn func(*Annotation) bool) {
	if !fn(a) {
		return
	}
	for _, c := range a.children {
		c.Walk(fn)
	}
}

// Count returns the number of annotations in the subtree rooted at a
func (a *Annotation) Count() int {
	n := 0
	a.Walk(func(*Annotation) bool {
		n++
		return true
	})
	return n
}

// Depth returns the number of ancestors of a
func (a *Annotation) Depth() int {
	d := 0
	for p := a.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// PackRGB packs the color into the 0xRRGGBB form used by hosts
func PackRGB(c color.RGBA) int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}

// UnpackRGB is the inverse of PackRGB
func UnpackRGB(v int) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
