package reconstruction

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRoot is returned when a non-empty working set has no parentless region
	ErrNoRoot = errors.New("no root region found")

	// ErrNoHemispheres is returned when hemisphere splitting is requested but
	// the archive has neither a Left nor a Right outline
	ErrNoHemispheres = errors.New("no hemisphere outlines in archive")
)

// MalformedNameError reports an outline whose name is not a region id
type MalformedNameError struct {
	Name string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("outline name %q is not a region id", e.Name)
}

// AmbiguousRootError reports a working set with several parentless regions
type AmbiguousRootError struct {
	IDs []int
}

func (e *AmbiguousRootError) Error() string {
	return fmt.Sprintf("several root candidates: %v", e.IDs)
}

// DuplicateIDError reports two regions with the same id in one working set
type DuplicateIDError struct {
	ID int
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("region id %d appears more than once", e.ID)
}
