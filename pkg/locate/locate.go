// Package locate answers which imported region lies under a pixel.
package locate

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"atlasroi/internal/models"
	"atlasroi/pkg/geometry"
)

// candidates is the number of nearest centroids tested before a full scan
const candidates = 16

// centroid is a region centroid stored in the kd-tree
type centroid struct {
	X, Y   float64
	region *models.Annotation
}

// Compare implements the kdtree.Comparable interface
func (p centroid) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(centroid)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p centroid) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two centroids
func (p centroid) Distance(c kdtree.Comparable) float64 {
	q := c.(centroid)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// centroids is a collection of centroid that satisfies kdtree.Interface
type centroids []centroid

func (p centroids) Index(i int) kdtree.Comparable         { return p[i] }
func (p centroids) Len() int                              { return len(p) }
func (p centroids) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p centroids) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{centroids: p, Dim: d}, kdtree.MedianOfRandoms(plane{centroids: p, Dim: d}, 100))
}

// plane implements sort.Interface and kdtree.SortSlicer for centroids
type plane struct {
	centroids
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.centroids[i].X < p.centroids[j].X
	case 1:
		return p.centroids[i].Y < p.centroids[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{centroids: p.centroids[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.centroids[i], p.centroids[j] = p.centroids[j], p.centroids[i]
}

// Index finds regions of annotation trees by position
type Index struct {
	tree    *kdtree.Tree
	regions []*models.Annotation
}

// NewIndex indexes every annotation below the given tops, the tops themselves
// excluded. Pass the synthetic roots of imported trees.
func NewIndex(tops ...*models.Annotation) *Index {
	idx := &Index{}
	var pts centroids
	for _, top := range tops {
		for _, c := range top.Children() {
			c.Walk(func(a *models.Annotation) bool {
				if a.Geometry.IsEmpty() {
					return true
				}
				ct := a.Geometry.Centroid()
				pts = append(pts, centroid{X: ct.X, Y: ct.Y, region: a})
				idx.regions = append(idx.regions, a)
				return true
			})
		}
	}
	if len(pts) > 0 {
		idx.tree = kdtree.New(pts, true)
	}
	return idx
}

// Len returns the number of indexed regions
func (idx *Index) Len() int { return len(idx.regions) }

// Nearest returns up to n regions ordered by centroid distance to (x, y)
func (idx *Index) Nearest(x, y float64, n int) []*models.Annotation {
	if idx.tree == nil || n <= 0 {
		return nil
	}
	keeper := kdtree.NewNKeeper(n)
	idx.tree.NearestSet(keeper, centroid{X: x, Y: y})

	var out []*models.Annotation
	for _, item := range keeper.Heap {
		if item.Comparable == nil {
			continue
		}
		out = append(out, item.Comparable.(centroid).region)
	}
	sortByDistance(out, x, y)
	return out
}

// RegionAt returns the deepest region containing (x, y), or nil
func (idx *Index) RegionAt(x, y float64) *models.Annotation {
	pt := geometry.Point{X: x, Y: y}

	best := deepestContaining(idx.Nearest(x, y, candidates), pt)
	if best == nil {
		best = deepestContaining(idx.regions, pt)
	}
	if best == nil {
		return nil
	}
	// a child whose centroid was not among the candidates may still hold the point
	for descended := true; descended; {
		descended = false
		for _, c := range best.Children() {
			if c.Geometry.Contains(pt) {
				best = c
				descended = true
				break
			}
		}
	}
	return best
}

func deepestContaining(regions []*models.Annotation, pt geometry.Point) *models.Annotation {
	var best *models.Annotation
	depth := -1
	for _, r := range regions {
		if !r.Geometry.Contains(pt) {
			continue
		}
		if d := r.Depth(); d > depth {
			best, depth = r, d
		}
	}
	return best
}

func sortByDistance(regions []*models.Annotation, x, y float64) {
	q := centroid{X: x, Y: y}
	dist := make(map[*models.Annotation]float64, len(regions))
	for _, r := range regions {
		c := r.Geometry.Centroid()
		dist[r] = q.Distance(centroid{X: c.X, Y: c.Y})
	}
	sort.SliceStable(regions, func(i, j int) bool {
		return dist[regions[i]] < dist[regions[j]]
	})
}
