package models

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlasroi/pkg/geometry"
)

func TestClassification(t *testing.T) {
	c := NewClassification("CTX")
	left := c.Derive("Left")

	assert.Equal(t, "Left: CTX", left.String())
	assert.True(t, left.IsDerivedFrom("Left"))
	assert.False(t, left.IsDerivedFrom("Right"))
	assert.Equal(t, "CTX", left.Name())
	assert.True(t, left.Equal(NewClassification("Left", "CTX")))
	assert.Nil(t, NewClassification("", ""))
	assert.Equal(t, "", Classification(nil).Name())
}

func TestMeasurementList_KeepsOrderAndClones(t *testing.T) {
	m := NewMeasurementList()
	m.Put("ID", 5)
	m.Put("Parent ID", 1)
	m.Put("ID", 6)

	assert.Equal(t, []string{"ID", "Parent ID"}, m.Names())
	v, ok := m.Get("ID")
	require.True(t, ok)
	assert.Equal(t, 6.0, v)

	c := m.Clone()
	c.Put("Side", 0)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 3, c.Len())
}

func TestAnnotation_OwnershipMoves(t *testing.T) {
	a := NewAnnotation(geometry.NewRect(0, 0, 1, 1))
	b := NewAnnotation(geometry.NewRect(0, 0, 1, 1))
	child := NewAnnotation(geometry.NewRect(0, 0, 1, 1))

	a.AddChild(child)
	require.Equal(t, a, child.Parent())

	b.AddChild(child)
	assert.Equal(t, b, child.Parent())
	assert.Empty(t, a.Children())
	assert.Len(t, b.Children(), 1)
	assert.Equal(t, 1, child.Depth())
	assert.Equal(t, 2, b.Count())

	assert.True(t, b.RemoveChild(child))
	assert.False(t, b.RemoveChild(child))
	assert.Nil(t, child.Parent())
}

func TestPackRGB(t *testing.T) {
	c := color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 255}
	assert.Equal(t, 0x123456, PackRGB(c))
	assert.Equal(t, c, UnpackRGB(0x123456))
}
