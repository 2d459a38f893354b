package store

import (
	"fmt"

	"github.com/google/uuid"

	"atlasroi/internal/models"
	"atlasroi/pkg/geometry"
)

// measurement is one named value; a slice keeps the list order in JSON
type measurement struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// record is the persisted form of one annotation. Trees are flattened in
// depth-first order with parents referenced by id.
type record struct {
	ID           uuid.UUID      `json:"id"`
	Parent       *uuid.UUID     `json:"parent,omitempty"`
	Name         string         `json:"name"`
	Class        []string       `json:"class,omitempty"`
	Rings        [][][2]float64 `json:"rings"`
	Color        int            `json:"color"`
	Locked       bool           `json:"locked"`
	Measurements []measurement  `json:"measurements,omitempty"`
}

func flatten(tops []*models.Annotation) []record {
	var out []record
	for _, top := range tops {
		top.Walk(func(a *models.Annotation) bool {
			out = append(out, toRecord(a))
			return true
		})
	}
	return out
}

func toRecord(a *models.Annotation) record {
	r := record{
		ID:     a.ID,
		Name:   a.Name,
		Class:  a.Class,
		Color:  models.PackRGB(a.Color),
		Locked: a.Locked,
	}
	if p := a.Parent(); p != nil {
		id := p.ID
		r.Parent = &id
	}
	for _, ring := range a.Geometry.Rings() {
		pts := make([][2]float64, len(ring))
		for i, pt := range ring {
			pts[i] = [2]float64{pt.X, pt.Y}
		}
		r.Rings = append(r.Rings, pts)
	}
	if a.Measurements != nil {
		for _, n := range a.Measurements.Names() {
			v, _ := a.Measurements.Get(n)
			r.Measurements = append(r.Measurements, measurement{Name: n, Value: v})
		}
	}
	return r
}

// rebuild restores the trees from flattened records. A record must follow
// its parent.
func rebuild(records []record) ([]*models.Annotation, error) {
	byID := make(map[uuid.UUID]*models.Annotation, len(records))
	var tops []*models.Annotation
	for _, r := range records {
		rings := make([][]geometry.Point, len(r.Rings))
		for i, ring := range r.Rings {
			pts := make([]geometry.Point, len(ring))
			for j, p := range ring {
				pts[j] = geometry.Point{X: p[0], Y: p[1]}
			}
			rings[i] = pts
		}
		a := models.NewAnnotation(geometry.NewPolygon(rings...))
		a.ID = r.ID
		a.Name = r.Name
		a.Class = models.NewClassification(r.Class...)
		a.Color = models.UnpackRGB(r.Color)
		a.Locked = r.Locked
		for _, m := range r.Measurements {
			a.Measurements.Put(m.Name, m.Value)
		}
		if _, dup := byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate object id %s", a.ID)
		}
		byID[a.ID] = a

		if r.Parent == nil {
			tops = append(tops, a)
			continue
		}
		parent, ok := byID[*r.Parent]
		if !ok {
			return nil, fmt.Errorf("object %s: parent %s not found", r.ID, *r.Parent)
		}
		parent.AddChild(a)
	}
	return tops, nil
}
