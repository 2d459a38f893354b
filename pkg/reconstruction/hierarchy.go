package reconstruction

import (
	"log/slog"

	"atlasroi/internal/models"
)

// RootPolicy decides what happens when a working set has several parentless regions
type RootPolicy string

const (
	// Strict fails with AmbiguousRootError
	Strict RootPolicy = "strict"

	// LastWins keeps the last candidate and drops the others, as older
	// importers did
	LastWins RootPolicy = "lastWins"
)

// Measurement names written on every region
const (
	MeasurementID       = "ID"
	MeasurementParentID = "Parent ID"
	MeasurementSide     = "Side"
)

// BuildHierarchy links a flat list of regions into a tree using their ID and
// Parent ID measurements and returns the root. Regions whose parent is not in
// the list are root candidates. An empty list yields a nil root.
func BuildHierarchy(items []*models.Annotation, policy RootPolicy, logger *slog.Logger) (*models.Annotation, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	byID := make(map[int]*models.Annotation, len(items))
	for _, a := range items {
		id, _ := regionID(a)
		if _, dup := byID[id]; dup {
			return nil, &DuplicateIDError{ID: id}
		}
		byID[id] = a
	}

	var candidates []*models.Annotation
	for _, a := range items {
		parent := parentOf(a, byID)
		if parent == nil {
			candidates = append(candidates, a)
			continue
		}
		parent.AddChild(a)
	}

	switch {
	case len(candidates) == 0:
		return nil, ErrNoRoot
	case len(candidates) == 1:
		return candidates[0], nil
	}

	ids := make([]int, len(candidates))
	for i, c := range candidates {
		ids[i], _ = regionID(c)
	}
	if policy != LastWins {
		return nil, &AmbiguousRootError{IDs: ids}
	}
	logger.Warn("Several root candidates, keeping the last one", slog.Any("ids", ids))
	return candidates[len(candidates)-1], nil
}

func parentOf(a *models.Annotation, byID map[int]*models.Annotation) *models.Annotation {
	v, ok := a.Measurements.Get(MeasurementParentID)
	if !ok {
		return nil
	}
	p := byID[int(v)]
	if p == a {
		return nil
	}
	return p
}

func regionID(a *models.Annotation) (int, bool) {
	v, ok := a.Measurements.Get(MeasurementID)
	return int(v), ok
}
