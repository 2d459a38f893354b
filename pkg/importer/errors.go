package importer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoRegistration means no usable outline archive exists for the
	// requested ontology and entry. Callers may skip the entry.
	ErrNoRegistration = errors.New("no registration found")

	// ErrNoOntology means the project has no ontology file
	ErrNoOntology = errors.New("no ontology found")
)

// InvalidNamingPropertyError reports a naming property that is not an
// attribute of the ontology root
type InvalidNamingPropertyError struct {
	Property string
	Valid    []string
}

func (e *InvalidNamingPropertyError) Error() string {
	return fmt.Sprintf("invalid naming property %q, valid properties: %s", e.Property, strings.Join(e.Valid, ", "))
}
