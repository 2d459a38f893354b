package reconstruction

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlasroi/internal/models"
	"atlasroi/pkg/geometry"
	"atlasroi/pkg/ontology"
	"atlasroi/pkg/orientation"
	"atlasroi/pkg/roiset"
)

const brainOntology = `{
  "name": "test-atlas",
  "namingProperty": "acronym",
  "root": {
    "id": 997, "data": {"id": "997", "acronym": "root", "name": "root", "volume": "12.5"}, "color": [255, 255, 255],
    "children": [
      {"id": 8, "data": {"id": "8", "acronym": "grey", "name": "Basic cell groups", "volume": "n/a"}, "color": [191, 218, 227],
       "children": [
         {"id": 567, "data": {"id": "567", "acronym": "CH", "name": "Cerebrum", "volume": "3.25"}, "color": [176, 240, 255], "children": []}
       ]},
      {"id": 1009, "data": {"id": "1009", "acronym": "fiber tracts", "name": "fiber tracts", "volume": "1"}, "color": [204, 204, 204], "children": []}
    ]
  }
}`

// mustOntology loads an ontology document for a test
func mustOntology(t *testing.T, doc string) *ontology.Ontology {
	t.Helper()
	o, err := ontology.Load(strings.NewReader(doc))
	require.NoError(t, err)
	return o
}

func outline(name string, g geometry.Polygon) roiset.Outline {
	return roiset.Outline{Name: name, Type: roiset.TypePolygon, Geometry: g}
}

// brainOutlines is a 200x100 section split at x=100. CH sits in the left
// hemisphere, fiber tracts straddle the midline.
func brainOutlines() []roiset.Outline {
	return []roiset.Outline{
		outline("997", geometry.NewRect(0, 0, 200, 100)),
		outline("8", geometry.NewRect(10, 10, 180, 60)),
		outline("567", geometry.NewRect(20, 20, 40, 30)),
		outline("1009", geometry.NewRect(60, 75, 80, 20)),
		outline(roiset.LeftName, geometry.NewRect(-1, -1, 101, 102)),
		outline(roiset.RightName, geometry.NewRect(100, -1, 101, 102)),
	}
}

func findAll(root *models.Annotation, class string) []*models.Annotation {
	var out []*models.Annotation
	root.Walk(func(a *models.Annotation) bool {
		if a.Class.String() == class {
			out = append(out, a)
		}
		return true
	})
	return out
}

func TestReconstruct_Unsplit(t *testing.T) {
	o := mustOntology(t, brainOntology)
	outlines := brainOutlines()
	r := NewReconstructor(&Params{NamingProperty: "acronym"})

	tree, err := r.Reconstruct(Input{Ontology: o, Outlines: outlines, Orientation: geometry.Identity()})
	require.NoError(t, err)

	t.Run("RootWrapper", func(t *testing.T) {
		assert.Equal(t, RootName, tree.Root.Name)
		assert.True(t, tree.Root.Locked)
		assert.Equal(t, "test-atlas", tree.Root.Class.String())
		assert.True(t, IsImportedRoot(tree.Root, "test-atlas"))
		require.Len(t, tree.Root.Children(), 1)
		assert.InDelta(t, 20000.0, tree.Root.Geometry.Area(), 1e-6)
		assert.Nil(t, tree.Left)
		assert.Nil(t, tree.Right)
	})

	t.Run("CountIsOutlinesPlusRoot", func(t *testing.T) {
		// four region outlines, sentinels excluded
		assert.Equal(t, 4+1, tree.Count())
		assert.Len(t, tree.Regions(), 4)
	})

	t.Run("ParentLinks", func(t *testing.T) {
		top := tree.Root.Children()[0]
		assert.Equal(t, "root", top.Name)
		ch := findAll(tree.Root, "CH")
		require.Len(t, ch, 1)
		assert.Equal(t, "grey", ch[0].Parent().Name)
		assert.Equal(t, 3, ch[0].Depth())
	})

	t.Run("Measurements", func(t *testing.T) {
		ch := findAll(tree.Root, "CH")[0]
		assert.Equal(t, []string{"id", "volume", "ID", "Parent ID", "Side"}, ch.Measurements.Names())
		v, _ := ch.Measurements.Get("volume")
		assert.Equal(t, 3.25, v)
		pid, _ := ch.Measurements.Get(MeasurementParentID)
		assert.Equal(t, 8.0, pid)

		grey := findAll(tree.Root, "grey")[0]
		_, hasVolume := grey.Measurements.Get("volume")
		assert.False(t, hasVolume, "non-numeric attributes are skipped")

		top := tree.Root.Children()[0]
		_, hasParent := top.Measurements.Get(MeasurementParentID)
		assert.False(t, hasParent)
	})

	t.Run("Appearance", func(t *testing.T) {
		ch := findAll(tree.Root, "CH")[0]
		assert.True(t, ch.Locked)
		assert.Equal(t, 0xB0F0FF, models.PackRGB(ch.Color))
	})

	t.Run("Metrics", func(t *testing.T) {
		m := r.GetMetrics()
		assert.Equal(t, 4, m.Outlines)
		assert.Equal(t, 4, m.Regions)
		assert.InDelta(t, 20000+10800+1200+1600, m.TotalArea, 1e-6)
		assert.InDelta(t, m.TotalArea/4, m.MeanArea, 1e-6)
		assert.Greater(t, m.StdArea, 0.0)
	})
}

func TestReconstruct_SplitHemispheres(t *testing.T) {
	o := mustOntology(t, brainOntology)
	r := NewReconstructor(&Params{SplitHemispheres: true, NamingProperty: "acronym"})

	tree, err := r.Reconstruct(Input{Ontology: o, Outlines: brainOutlines(), Orientation: geometry.Identity()})
	require.NoError(t, err)

	require.NotNil(t, tree.Left)
	require.NotNil(t, tree.Right)
	assert.Len(t, tree.Root.Children(), 2)
	assert.Equal(t, "Left: root", tree.Left.Class.String())
	assert.Equal(t, "Right: root", tree.Right.Class.String())
	assert.InDelta(t, 20000.0, tree.Root.Geometry.Area(), 1e-6)

	t.Run("ConfinedRegionYieldsOneSide", func(t *testing.T) {
		assert.Len(t, findAll(tree.Root, "Left: CH"), 1)
		assert.Empty(t, findAll(tree.Root, "Right: CH"))
	})

	t.Run("StraddlingRegionYieldsTwoDisjointParts", func(t *testing.T) {
		l := findAll(tree.Root, "Left: fiber tracts")
		rt := findAll(tree.Root, "Right: fiber tracts")
		require.Len(t, l, 1)
		require.Len(t, rt, 1)

		assert.True(t, l[0].Geometry.Intersect(rt[0].Geometry).IsEmpty())
		original := geometry.NewRect(60, 75, 80, 20)
		assert.InDelta(t, original.Area(), l[0].Geometry.Area()+rt[0].Geometry.Area(), 1e-6)
		assert.InDelta(t, 800.0, l[0].Geometry.Area(), 1e-6)
	})

	t.Run("DerivedRegionsKeepMeasurements", func(t *testing.T) {
		ch := findAll(tree.Root, "Left: CH")[0]
		assert.Equal(t, "CH", ch.Name)
		side, _ := ch.Measurements.Get(MeasurementSide)
		assert.Equal(t, 0.0, side)
		assert.Equal(t, models.SideLeft, SideOf(ch))
		assert.Equal(t, "Left: grey", ch.Parent().Class.String())
		assert.True(t, ch.Locked)
	})

	t.Run("Metrics", func(t *testing.T) {
		m := r.GetMetrics()
		assert.Equal(t, 4, m.LeftRegions)
		assert.Equal(t, 3, m.RightRegions)
		assert.Equal(t, 7, m.Regions)
		assert.Equal(t, 0, m.Unassigned)
	})
}

// The two-node example: only a Left Cortex below the hemisphere roots
func TestReconstruct_CortexExample(t *testing.T) {
	o := mustOntology(t, `{"name": "mini", "namingProperty": "name", "root": {
	  "id": 0, "data": {"name": "Root"}, "color": [0, 0, 0],
	  "children": [{"id": 1, "data": {"name": "Cortex"}, "color": [10, 20, 30], "children": []}]}}`)
	outlines := []roiset.Outline{
		outline("0", geometry.NewRect(0, 0, 100, 50)),
		outline("1", geometry.NewRect(10, 10, 20, 20)),
		outline(roiset.LeftName, geometry.NewRect(-1, -1, 51, 52)),
		outline(roiset.RightName, geometry.NewRect(50, -1, 51, 52)),
	}
	tree, err := NewReconstructor(&Params{SplitHemispheres: true}).Reconstruct(
		Input{Ontology: o, Outlines: outlines, Orientation: geometry.Identity()})
	require.NoError(t, err)

	assert.Len(t, findAll(tree.Root, "Left: Cortex"), 1)
	assert.Empty(t, findAll(tree.Root, "Right: Cortex"))
	require.NotNil(t, tree.Right)
	assert.Empty(t, tree.Right.Children())
	require.NotNil(t, tree.Left)
	require.Len(t, tree.Left.Children(), 1)
	assert.Equal(t, "Cortex", tree.Left.Children()[0].Name)
}

func TestReconstruct_AppliesOrientationBeforeSplit(t *testing.T) {
	o := mustOntology(t, brainOntology)
	orient, ok := orientation.Correction(orientation.Rotate180, orientation.Size{Width: 200, Height: 100})
	require.True(t, ok)

	tree, err := NewReconstructor(&Params{SplitHemispheres: true}).Reconstruct(
		Input{Ontology: o, Outlines: brainOutlines(), Orientation: orient})
	require.NoError(t, err)

	// CH was at x 20..60 and lands at 140..180, still inside the (rotated) left outline
	ch := findAll(tree.Root, "Left: CH")
	require.Len(t, ch, 1)
	b := ch[0].Geometry.Bounds()
	assert.InDelta(t, 140.0, b.Min.X, 1e-9)
	assert.InDelta(t, 180.0, b.Max.X, 1e-9)
}

func TestReconstruct_NamingFallbacks(t *testing.T) {
	o := mustOntology(t, brainOntology)
	in := Input{Ontology: o, Outlines: brainOutlines(), Orientation: geometry.Identity()}

	tree, err := NewReconstructor(&Params{NamingProperty: ontology.IDProperty}).Reconstruct(in)
	require.NoError(t, err)
	assert.Len(t, findAll(tree.Root, "567"), 1)

	tree, err = NewReconstructor(&Params{NamingProperty: "missing"}).Reconstruct(in)
	require.NoError(t, err)
	for _, a := range tree.Regions() {
		assert.Equal(t, "", a.Name)
		assert.Nil(t, a.Class)
	}

	// empty naming property uses the ontology default
	tree, err = NewReconstructor(&Params{}).Reconstruct(in)
	require.NoError(t, err)
	assert.Len(t, findAll(tree.Root, "CH"), 1)
}

func TestReconstruct_Failures(t *testing.T) {
	o := mustOntology(t, brainOntology)
	base := brainOutlines()

	t.Run("UnknownID", func(t *testing.T) {
		outlines := append(append([]roiset.Outline(nil), base...), outline("4242", geometry.NewRect(0, 0, 5, 5)))
		_, err := NewReconstructor(&Params{}).Reconstruct(Input{Ontology: o, Outlines: outlines})
		var unknown *ontology.UnknownIDError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, 4242, unknown.ID)
	})

	t.Run("MalformedName", func(t *testing.T) {
		outlines := append(append([]roiset.Outline(nil), base...), outline("Cortex", geometry.NewRect(0, 0, 5, 5)))
		_, err := NewReconstructor(&Params{}).Reconstruct(Input{Ontology: o, Outlines: outlines})
		var malformed *MalformedNameError
		require.True(t, errors.As(err, &malformed))
		assert.Equal(t, "Cortex", malformed.Name)
	})

	t.Run("NoHemispheres", func(t *testing.T) {
		_, err := NewReconstructor(&Params{SplitHemispheres: true}).Reconstruct(
			Input{Ontology: o, Outlines: base[:4]})
		assert.True(t, errors.Is(err, ErrNoHemispheres))
	})

	t.Run("SingleHemisphereIsTolerated", func(t *testing.T) {
		tree, err := NewReconstructor(&Params{SplitHemispheres: true}).Reconstruct(
			Input{Ontology: o, Outlines: base[:5]})
		require.NoError(t, err)
		assert.NotNil(t, tree.Left)
		assert.Nil(t, tree.Right)
		assert.Len(t, tree.Root.Children(), 1)
	})

	t.Run("AmbiguousRoot", func(t *testing.T) {
		// grey's parent (997) is missing, so grey and fiber tracts are both roots
		outlines := []roiset.Outline{base[1], base[2], base[3]}
		_, err := NewReconstructor(&Params{}).Reconstruct(Input{Ontology: o, Outlines: outlines})
		var ambiguous *AmbiguousRootError
		require.True(t, errors.As(err, &ambiguous))
		assert.Equal(t, []int{8, 1009}, ambiguous.IDs)

		tree, err := NewReconstructor(&Params{RootPolicy: LastWins}).Reconstruct(Input{Ontology: o, Outlines: outlines})
		require.NoError(t, err)
		assert.Equal(t, "fiber tracts", tree.Root.Children()[0].Name)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		outlines := append(append([]roiset.Outline(nil), base...), outline("567", geometry.NewRect(0, 0, 5, 5)))
		_, err := NewReconstructor(&Params{}).Reconstruct(Input{Ontology: o, Outlines: outlines})
		var dup *DuplicateIDError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, 567, dup.ID)
	})

	t.Run("NoRegions", func(t *testing.T) {
		_, err := NewReconstructor(&Params{}).Reconstruct(Input{Ontology: o, Outlines: base[4:]})
		assert.True(t, errors.Is(err, ErrNoRoot))
	})
}

func TestBuildHierarchy(t *testing.T) {
	mk := func(id int, parent int) *models.Annotation {
		a := models.NewAnnotation(geometry.NewRect(0, 0, 1, 1))
		a.Measurements.Put(MeasurementID, float64(id))
		if parent >= 0 {
			a.Measurements.Put(MeasurementParentID, float64(parent))
		}
		return a
	}

	root, err := BuildHierarchy(nil, Strict, nil)
	require.NoError(t, err)
	assert.Nil(t, root)

	// children listed before their parents still attach
	items := []*models.Annotation{mk(3, 2), mk(2, 1), mk(1, -1), mk(4, 1)}
	root, err = BuildHierarchy(items, Strict, nil)
	require.NoError(t, err)
	assert.Same(t, items[2], root)
	assert.Equal(t, 4, root.Count())
	assert.Len(t, root.Children(), 2)

	// a parent outside the working set makes a root candidate
	root, err = BuildHierarchy([]*models.Annotation{mk(5, 99)}, Strict, nil)
	require.NoError(t, err)
	v, _ := root.Measurements.Get(MeasurementID)
	assert.Equal(t, 5.0, v)

	_, err = BuildHierarchy([]*models.Annotation{mk(7, 7)}, Strict, nil)
	assert.NoError(t, err, "self reference is treated as parentless")
}
