package orientation

import (
	"log/slog"
	"math"

	"atlasroi/pkg/geometry"
)

// Policy selects which rotated layer wins when a chain has several
type Policy string

const (
	Outermost Policy = "outermost"
	Innermost Policy = "innermost"
)

// Match is a rotated layer found in a chain
type Match struct {
	// Index is the position of the layer in the chain, innermost first
	Index int

	// Rotation is the rotation tag of the layer
	Rotation Rotation

	// Size is the extent of the rotated view the layer exposes
	Size Size
}

// Resolver turns server chains into orientation corrections
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a resolver. A nil logger uses slog.Default().
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Matches returns every rotated layer of the chain, innermost first
func (r *Resolver) Matches(chain Chain) []Match {
	sizes := chain.Sizes()
	var out []Match
	for i, d := range chain {
		if rot, ok := d.(Rotated); ok {
			out = append(out, Match{Index: i, Rotation: rot.Rotation, Size: sizes[i]})
		}
	}
	return out
}

// Resolve returns the correction for the rotated layer picked by policy, or
// the identity when the chain has none. Unrecognized rotation tags are logged
// and resolve to the identity.
func (r *Resolver) Resolve(chain Chain, policy Policy) geometry.Affine {
	matches := r.Matches(chain)
	if len(matches) == 0 {
		return geometry.Identity()
	}
	if len(matches) > 1 {
		r.logger.Warn("Image server has several rotated layers",
			slog.Int("count", len(matches)), slog.String("policy", string(policy)))
	}
	m := matches[len(matches)-1]
	if policy == Innermost {
		m = matches[0]
	}
	t, ok := Correction(m.Rotation, m.Size)
	if !ok {
		r.logger.Warn("Unknown rotation for rotated image server", slog.String("rotation", string(m.Rotation)))
		return geometry.Identity()
	}
	return t
}

// Correction returns the map from unrotated pixel coordinates into a view
// rotated by rot. view is the extent of the rotated view, not of the
// unrotated source: for 90 and 270 its width is the source height. ok is
// false for an unrecognized tag.
func Correction(rot Rotation, view Size) (geometry.Affine, bool) {
	w, h := float64(view.Width), float64(view.Height)
	switch rot {
	case RotateNone:
		return geometry.Identity(), true
	case Rotate90:
		return geometry.Rotation(math.Pi / 2).Concat(geometry.Translation(0, -w)), true
	case Rotate180:
		return geometry.Rotation(math.Pi).Concat(geometry.Translation(-w, -h)), true
	case Rotate270:
		return geometry.Rotation(3 * math.Pi / 2).Concat(geometry.Translation(-h, 0)), true
	default:
		return geometry.Identity(), false
	}
}
