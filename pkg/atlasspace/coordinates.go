package atlasspace

import (
	"fmt"

	"atlasroi/internal/models"
	"atlasroi/pkg/geometry"
)

// ToAtlasSpace maps a pixel of the (possibly rotated) image view into atlas
// coordinates. registration maps atlas coordinates to unrotated pixels and
// orientation maps unrotated pixels into the view, so the point goes through
// the inverse of orientation and then the inverse of registration. z starts
// at 0 because outlines are planar.
func ToAtlasSpace(p geometry.Point, registration Transform, orientation geometry.Affine) ([3]float64, error) {
	toAtlas, err := PixelToAtlas(registration, orientation)
	if err != nil {
		return [3]float64{}, err
	}
	return toAtlas.Apply([3]float64{p.X, p.Y, 0}), nil
}

// PixelToAtlas composes the inverse transform once so that it can be applied
// to many points
func PixelToAtlas(registration Transform, orientation geometry.Affine) (Transform, error) {
	regInv, err := registration.Inverse()
	if err != nil {
		return nil, err
	}
	if orientation.IsIdentity() {
		return regInv, nil
	}
	orientInv, err := FromPlanar(orientation).Inverse()
	if err != nil {
		return nil, err
	}
	return Sequence{orientInv, regInv}, nil
}

// MeasurementNames returns the three measurement names written for prefix
func MeasurementNames(prefix string) [3]string {
	return [3]string{
		fmt.Sprintf("%s X mm", prefix),
		fmt.Sprintf("%s Y mm", prefix),
		fmt.Sprintf("%s Z mm", prefix),
	}
}

// AddAtlasCoordinates writes the atlas position of the centroid of every
// annotation in the given subtrees as three measurements
func AddAtlasCoordinates(roots []*models.Annotation, registration Transform, orientation geometry.Affine, prefix string) error {
	toAtlas, err := PixelToAtlas(registration, orientation)
	if err != nil {
		return err
	}
	names := MeasurementNames(prefix)
	for _, root := range roots {
		root.Walk(func(a *models.Annotation) bool {
			c := a.Geometry.Centroid()
			p := toAtlas.Apply([3]float64{c.X, c.Y, 0})
			for i, n := range names {
				a.Measurements.Put(n, p[i])
			}
			return true
		})
	}
	return nil
}
