package reconstruction

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"atlasroi/internal/models"
	"atlasroi/pkg/geometry"
	"atlasroi/pkg/ontology"
	"atlasroi/pkg/roiset"
)

// RootName is the name of the synthetic annotation wrapping every imported tree
const RootName = "Root"

// Metrics summarizes a reconstruction. Areas are in square pixels of the
// corrected image frame.
type Metrics struct {
	// Outlines is the number of region outlines read, sentinels excluded
	Outlines int

	// Regions is the number of regions in the working set used for the tree
	Regions int

	// LeftRegions and RightRegions count the hemisphere-derived regions
	LeftRegions  int
	RightRegions int

	// Unassigned counts regions that intersect neither hemisphere outline
	Unassigned int

	// TotalArea is the summed area of the working set
	TotalArea float64

	// MeanArea and StdArea describe the area distribution of the working set
	MeanArea float64
	StdArea  float64
}

// Params holds the reconstruction settings
type Params struct {
	// SplitHemispheres divides every region by the Left and Right outlines
	SplitHemispheres bool

	// NamingProperty is the ontology attribute used for region names. Empty
	// means the ontology's own naming property.
	NamingProperty string

	// RootPolicy controls how several parentless regions are handled
	RootPolicy RootPolicy

	// Logger receives progress messages; nil uses slog.Default()
	Logger *slog.Logger
}

// Input is the data a single reconstruction works on
type Input struct {
	// Ontology resolves region ids
	Ontology *ontology.Ontology

	// Outlines is the decoded archive, sentinels included
	Outlines []roiset.Outline

	// Orientation maps raw outlines into the image pixel frame. The zero
	// value means no correction.
	Orientation geometry.Affine
}

// RegionTree is a reconstructed region hierarchy. Root is the synthetic
// annotation named "Root", classified with the ontology name; the region
// hierarchy hangs one level below it.
type RegionTree struct {
	Root *models.Annotation

	// Ontology is the name of the ontology the tree was built from
	Ontology string

	// Left and Right are the hemisphere sub-roots. Both are nil when the tree
	// was not split, and either may be nil when a side has no region.
	Left, Right *models.Annotation
}

// Count returns the number of annotations in the tree, the synthetic root included
func (t *RegionTree) Count() int {
	return t.Root.Count()
}

// Regions returns every annotation below the synthetic root, depth first
func (t *RegionTree) Regions() []*models.Annotation {
	var out []*models.Annotation
	for _, c := range t.Root.Children() {
		c.Walk(func(a *models.Annotation) bool {
			out = append(out, a)
			return true
		})
	}
	return out
}

// IsImportedRoot reports whether a is the root of a tree imported for ontologyName
func IsImportedRoot(a *models.Annotation, ontologyName string) bool {
	return a.Name == RootName && a.Class.Equal(models.NewClassification(ontologyName))
}

// SideOf returns the hemisphere a derived region belongs to
func SideOf(a *models.Annotation) models.Side {
	switch {
	case a.Class.IsDerivedFrom(roiset.LeftName):
		return models.SideLeft
	case a.Class.IsDerivedFrom(roiset.RightName):
		return models.SideRight
	default:
		return models.SideNone
	}
}

// Reconstructor rebuilds atlas region trees from outline archives.
//
// The reconstruction consists of these steps:
// 1. Separating the hemisphere outlines from the region outlines
// 2. Creating one annotation per region with ontology names, colors and measurements
// 3. Optionally splitting every region into its left and right parts
// 4. Linking regions to their ontology parents and wrapping the result in a root
type Reconstructor struct {
	params  *Params
	logger  *slog.Logger
	metrics Metrics
}

// NewReconstructor creates a reconstructor with the given parameters
func NewReconstructor(params *Params) *Reconstructor {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if params.RootPolicy == "" {
		params.RootPolicy = Strict
	}
	return &Reconstructor{params: params, logger: logger}
}

// Reconstruct runs the complete pipeline. Any region that cannot be resolved
// aborts the whole reconstruction; no partial tree is returned.
func (r *Reconstructor) Reconstruct(in Input) (*RegionTree, error) {
	r.metrics = Metrics{}
	if in.Orientation == (geometry.Affine{}) {
		in.Orientation = geometry.Identity()
	}
	namingProperty := r.params.NamingProperty
	if namingProperty == "" {
		namingProperty = in.Ontology.NamingProperty
	}

	// Step 1: separate hemisphere outlines
	r.logger.Debug("Step 1: partitioning outlines", slog.Int("outlines", len(in.Outlines)))
	left, right, regionOutlines := partition(in.Outlines)
	r.metrics.Outlines = len(regionOutlines)

	// Step 2: one annotation per region
	r.logger.Debug("Step 2: creating region annotations", slog.String("namingProperty", namingProperty))
	regions, err := r.createRegions(in, regionOutlines, namingProperty)
	if err != nil {
		return nil, err
	}

	tree := &RegionTree{Ontology: in.Ontology.Name}
	var rootGeometry geometry.Polygon
	var tops []*models.Annotation

	if r.params.SplitHemispheres {
		// Step 3: split by hemisphere
		r.logger.Debug("Step 3: splitting regions by hemisphere")
		leftGeom, rightGeom, err := r.sentinelGeometries(left, right, in.Orientation)
		if err != nil {
			return nil, err
		}
		split := r.splitHemispheres(regions, leftGeom, rightGeom)
		r.updateAreaMetrics(split)

		// Step 4: one tree per hemisphere, fused under the root
		var leftItems, rightItems []*models.Annotation
		for _, a := range split {
			if SideOf(a) == models.SideLeft {
				leftItems = append(leftItems, a)
			} else {
				rightItems = append(rightItems, a)
			}
		}
		if tree.Left, err = BuildHierarchy(leftItems, r.params.RootPolicy, r.logger); err != nil {
			return nil, fmt.Errorf("left hemisphere: %w", err)
		}
		if tree.Right, err = BuildHierarchy(rightItems, r.params.RootPolicy, r.logger); err != nil {
			return nil, fmt.Errorf("right hemisphere: %w", err)
		}
		for _, h := range []*models.Annotation{tree.Left, tree.Right} {
			if h != nil {
				rootGeometry = rootGeometry.Union(h.Geometry)
				tops = append(tops, h)
			}
		}
	} else {
		r.updateAreaMetrics(regions)

		// Step 4: single tree
		top, err := BuildHierarchy(regions, r.params.RootPolicy, r.logger)
		if err != nil {
			return nil, err
		}
		if top != nil {
			rootGeometry = top.Geometry.Clone()
			tops = append(tops, top)
		}
	}

	if len(tops) == 0 {
		return nil, ErrNoRoot
	}
	tree.Root = newRoot(rootGeometry, in.Ontology)
	for _, top := range tops {
		tree.Root.AddChild(top)
	}
	r.logRegions()
	return tree, nil
}

// GetMetrics returns the metrics of the last reconstruction
func (r *Reconstructor) GetMetrics() Metrics {
	return r.metrics
}

func (r *Reconstructor) logRegions() {
	r.logger.Info("Reconstructed atlas regions",
		slog.Int("outlines", r.metrics.Outlines),
		slog.Int("regions", r.metrics.Regions),
		slog.Int("left", r.metrics.LeftRegions),
		slog.Int("right", r.metrics.RightRegions),
		slog.Bool("split", r.params.SplitHemispheres))
}

func newRoot(g geometry.Polygon, o *ontology.Ontology) *models.Annotation {
	root := models.NewAnnotation(g)
	root.Name = RootName
	root.Class = models.NewClassification(o.Name)
	root.Color = o.Root.RGB()
	root.Locked = true
	return root
}

// partition pulls the hemisphere sentinels out of the outline list
func partition(outlines []roiset.Outline) (left, right *roiset.Outline, regions []roiset.Outline) {
	for i := range outlines {
		switch outlines[i].Name {
		case roiset.LeftName:
			left = &outlines[i]
		case roiset.RightName:
			right = &outlines[i]
		default:
			regions = append(regions, outlines[i])
		}
	}
	return left, right, regions
}

// createRegions builds one locked annotation per region outline
func (r *Reconstructor) createRegions(in Input, outlines []roiset.Outline, namingProperty string) ([]*models.Annotation, error) {
	regions := make([]*models.Annotation, 0, len(outlines))
	for _, o := range outlines {
		id, err := strconv.Atoi(o.Name)
		if err != nil {
			return nil, &MalformedNameError{Name: o.Name}
		}

		g := o.Geometry
		if !in.Orientation.IsIdentity() {
			g = g.Transform(in.Orientation)
		}
		a := models.NewAnnotation(g)

		node, err := in.Ontology.NodeByID(id)
		if err != nil {
			return nil, fmt.Errorf("outline %q: %w", o.Name, err)
		}

		name := in.Ontology.DisplayName(node, namingProperty)
		a.Name = name
		addOntologyMeasurements(a.Measurements, node)
		a.Class = models.NewClassification(name)
		a.Locked = true
		a.Color = node.RGB()

		regions = append(regions, a)
	}
	return regions, nil
}

// addOntologyMeasurements stores every numeric attribute of the node plus the
// ID, Parent ID and Side measurements. Non-numeric attributes are skipped.
func addOntologyMeasurements(m *models.MeasurementList, node *ontology.Node) {
	keys := make([]string, 0, len(node.Data))
	for k := range node.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, err := strconv.ParseFloat(node.Data[k], 64); err == nil {
			m.Put(k, v)
		}
	}
	m.Put(MeasurementID, float64(node.ID))
	if pid, ok := node.ParentID(); ok {
		m.Put(MeasurementParentID, float64(pid))
	}
	m.Put(MeasurementSide, 0)
}

// sentinelGeometries corrects the hemisphere outlines. A single missing side
// is tolerated; both missing is an error.
func (r *Reconstructor) sentinelGeometries(left, right *roiset.Outline, orient geometry.Affine) (l, rt *geometry.Polygon, err error) {
	if left == nil && right == nil {
		return nil, nil, ErrNoHemispheres
	}
	correct := func(o *roiset.Outline) *geometry.Polygon {
		if o == nil {
			return nil
		}
		g := o.Geometry
		if !orient.IsIdentity() {
			g = g.Transform(orient)
		}
		return &g
	}
	if left == nil {
		r.logger.Warn("Archive has no Left outline, only right regions will be imported")
	}
	if right == nil {
		r.logger.Warn("Archive has no Right outline, only left regions will be imported")
	}
	return correct(left), correct(right), nil
}

// splitHemispheres intersects every region with the hemisphere outlines and
// returns the non-empty parts, in region order, left before right
func (r *Reconstructor) splitHemispheres(regions []*models.Annotation, left, right *geometry.Polygon) []*models.Annotation {
	var out []*models.Annotation
	for _, a := range regions {
		assigned := false
		for _, side := range []struct {
			name string
			geom *geometry.Polygon
		}{{roiset.LeftName, left}, {roiset.RightName, right}} {
			if side.geom == nil {
				continue
			}
			part := side.geom.Intersect(a.Geometry)
			if part.IsEmpty() {
				continue
			}
			derived := models.NewAnnotation(part)
			derived.Name = a.Name
			derived.Measurements = a.Measurements.Clone()
			derived.Class = a.Class.Derive(side.name)
			derived.Color = a.Color
			derived.Locked = true
			out = append(out, derived)
			assigned = true
			if side.name == roiset.LeftName {
				r.metrics.LeftRegions++
			} else {
				r.metrics.RightRegions++
			}
		}
		if !assigned {
			r.metrics.Unassigned++
			r.logger.Debug("Region outside both hemispheres", slog.String("name", a.Name))
		}
	}
	return out
}

func (r *Reconstructor) updateAreaMetrics(regions []*models.Annotation) {
	r.metrics.Regions = len(regions)
	if len(regions) == 0 {
		return
	}
	areas := make([]float64, len(regions))
	for i, a := range regions {
		areas[i] = a.Geometry.Area()
		r.metrics.TotalArea += areas[i]
	}
	if len(areas) > 1 {
		r.metrics.MeanArea, r.metrics.StdArea = stat.MeanStdDev(areas, nil)
	} else {
		r.metrics.MeanArea = areas[0]
	}
}
