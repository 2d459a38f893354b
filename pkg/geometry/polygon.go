// Package geometry provides the planar shapes used for atlas region outlines.
// Boolean operations are delegated to the Martinez clipping implementation in
// polyclip-go; everything else (area, centroid, containment, affine mapping)
// works directly on the contour lists.
package geometry

import (
	"math"

	"github.com/ctessum/polyclip-go"
)

// areaEpsilon is the smallest area treated as non-empty, in square pixels
const areaEpsilon = 1e-9

// Point is a 2D point in pixel coordinates
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned bounding rectangle
type Rect struct {
	Min, Max Point
}

// Width returns the horizontal extent of the rectangle
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the vertical extent of the rectangle
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Polygon is a set of closed rings interpreted with the even-odd rule.
// Several outer rings make a multi-polygon; rings nested inside other rings
// are holes. The zero value is the empty polygon.
type Polygon struct {
	rings polyclip.Polygon
}

// NewPolygon builds a polygon from one or more rings. Rings with fewer than
// three vertices are dropped, and a closing vertex equal to the first one is
// removed.
func NewPolygon(rings ...[]Point) Polygon {
	var p Polygon
	for _, ring := range rings {
		p.AddRing(ring)
	}
	return p
}

// NewRect returns the rectangle polygon with origin (x, y)
func NewRect(x, y, w, h float64) Polygon {
	return NewPolygon([]Point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}})
}

// NewEllipse approximates the ellipse inscribed in the given bounds with n vertices
func NewEllipse(x, y, w, h float64, n int) Polygon {
	if n < 3 {
		n = 3
	}
	cx, cy := x+w/2, y+h/2
	ring := make([]Point, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		ring[i] = Point{cx + w/2*math.Cos(theta), cy + h/2*math.Sin(theta)}
	}
	return NewPolygon(ring)
}

// AddRing appends a ring to the polygon
func (p *Polygon) AddRing(ring []Point) {
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return
	}
	c := make(polyclip.Contour, len(ring))
	for i, pt := range ring {
		c[i] = polyclip.Point{X: pt.X, Y: pt.Y}
	}
	p.rings = append(p.rings, c)
}

// Rings returns a copy of the polygon rings
func (p Polygon) Rings() [][]Point {
	out := make([][]Point, len(p.rings))
	for i, c := range p.rings {
		ring := make([]Point, len(c))
		for j, pt := range c {
			ring[j] = Point{pt.X, pt.Y}
		}
		out[i] = ring
	}
	return out
}

// NumVertices returns the total vertex count across all rings
func (p Polygon) NumVertices() int {
	n := 0
	for _, c := range p.rings {
		n += len(c)
	}
	return n
}

// Clone returns a deep copy of the polygon
func (p Polygon) Clone() Polygon {
	if len(p.rings) == 0 {
		return Polygon{}
	}
	return Polygon{rings: p.rings.Clone()}
}

// IsEmpty reports whether the polygon covers no area
func (p Polygon) IsEmpty() bool {
	return len(p.rings) == 0 || p.Area() < areaEpsilon
}

// Intersect returns the area common to p and q
func (p Polygon) Intersect(q Polygon) Polygon {
	if len(p.rings) == 0 || len(q.rings) == 0 {
		return Polygon{}
	}
	return Polygon{rings: p.rings.Construct(polyclip.INTERSECTION, q.rings)}
}

// Union returns the area covered by p or q. An empty operand yields a copy
// of the other one.
func (p Polygon) Union(q Polygon) Polygon {
	if len(p.rings) == 0 {
		return q.Clone()
	}
	if len(q.rings) == 0 {
		return p.Clone()
	}
	return Polygon{rings: p.rings.Construct(polyclip.UNION, q.rings)}
}

// Difference returns the area of p not covered by q
func (p Polygon) Difference(q Polygon) Polygon {
	if len(p.rings) == 0 {
		return Polygon{}
	}
	if len(q.rings) == 0 {
		return p.Clone()
	}
	return Polygon{rings: p.rings.Construct(polyclip.DIFFERENCE, q.rings)}
}

// Bounds returns the bounding box of all rings
func (p Polygon) Bounds() Rect {
	if len(p.rings) == 0 {
		return Rect{}
	}
	b := p.rings.BoundingBox()
	return Rect{Min: Point{b.Min.X, b.Min.Y}, Max: Point{b.Max.X, b.Max.Y}}
}

// Contains reports whether pt lies inside the polygon (even-odd rule)
func (p Polygon) Contains(pt Point) bool {
	inside := false
	for _, c := range p.rings {
		if ringContains(c, pt) {
			inside = !inside
		}
	}
	return inside
}

// Area returns the covered area. Holes are subtracted regardless of the
// winding direction of the individual rings.
func (p Polygon) Area() float64 {
	total := 0.0
	for i, c := range p.rings {
		a := math.Abs(signedArea(c))
		if p.depth(i)%2 == 0 {
			total += a
		} else {
			total -= a
		}
	}
	return math.Max(total, 0)
}

// Centroid returns the area-weighted centroid. For a polygon without area the
// mean of the vertices is returned.
func (p Polygon) Centroid() Point {
	var sx, sy, sa float64
	for i, c := range p.rings {
		a := signedArea(c)
		if a == 0 {
			continue
		}
		cx, cy := ringCentroid(c, a)
		w := math.Abs(a)
		if p.depth(i)%2 == 1 {
			w = -w
		}
		sx += cx * w
		sy += cy * w
		sa += w
	}
	if math.Abs(sa) < areaEpsilon {
		var mx, my float64
		n := p.NumVertices()
		if n == 0 {
			return Point{}
		}
		for _, c := range p.rings {
			for _, pt := range c {
				mx += pt.X
				my += pt.Y
			}
		}
		return Point{mx / float64(n), my / float64(n)}
	}
	return Point{sx / sa, sy / sa}
}

// Transform maps every vertex through the affine transform
func (p Polygon) Transform(t Affine) Polygon {
	if len(p.rings) == 0 {
		return Polygon{}
	}
	out := make(polyclip.Polygon, len(p.rings))
	for i, c := range p.rings {
		nc := make(polyclip.Contour, len(c))
		for j, pt := range c {
			q := t.Apply(Point{pt.X, pt.Y})
			nc[j] = polyclip.Point{X: q.X, Y: q.Y}
		}
		out[i] = nc
	}
	return Polygon{rings: out}
}

// depth counts the rings enclosing ring i
func (p Polygon) depth(i int) int {
	probe := p.rings[i][0]
	pt := Point{probe.X, probe.Y}
	d := 0
	for j, c := range p.rings {
		if j != i && ringContains(c, pt) {
			d++
		}
	}
	return d
}

func signedArea(c polyclip.Contour) float64 {
	a := 0.0
	n := len(c)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return a / 2
}

func ringCentroid(c polyclip.Contour, area float64) (float64, float64) {
	var cx, cy float64
	n := len(c)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := c[i].X*c[j].Y - c[j].X*c[i].Y
		cx += (c[i].X + c[j].X) * cross
		cy += (c[i].Y + c[j].Y) * cross
	}
	return cx / (6 * area), cy / (6 * area)
}

func ringContains(c polyclip.Contour, pt Point) bool {
	inside := false
	n := len(c)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := c[i], c[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}
