// Package importer ties the pipeline together for one image entry: it picks
// the ontology and outline archive, reconstructs the region tree, replaces a
// previous import of the same ontology and records a replayable workflow step.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"atlasroi/internal/models"
	"atlasroi/pkg/atlasspace"
	"atlasroi/pkg/hierarchy"
	"atlasroi/pkg/ontology"
	"atlasroi/pkg/orientation"
	"atlasroi/pkg/project"
	"atlasroi/pkg/reconstruction"
	"atlasroi/pkg/roiset"
)

// DefaultCoordinatePrefix prefixes atlas coordinate measurement names
const DefaultCoordinatePrefix = "Atlas"

// Entry is one image of the project together with its object hierarchy
type Entry struct {
	ID        string
	Dir       string
	Hierarchy *hierarchy.Hierarchy

	// Chain describes how the image is served; nil means a plain image
	Chain orientation.Chain
}

// Request holds the parameters of one import
type Request struct {
	// Ontology is the atlas name. Empty picks the first atlas the entry has an
	// outline archive for.
	Ontology string

	// Archive is an explicit outline archive path. Empty locates the archive
	// named after the ontology in the entry directory.
	Archive string

	// NamingProperty is the ontology attribute used for names. Empty picks
	// the preferred property of the ontology.
	NamingProperty string

	SplitHemispheres bool
	Overwrite        bool

	// AtlasCoordinates adds atlas space centroid measurements, which needs
	// the registration transform of the entry
	AtlasCoordinates bool
}

// Options configures an Importer
type Options struct {
	RootPolicy       reconstruction.RootPolicy
	RotationPolicy   orientation.Policy
	CoordinatePrefix string
	Logger           *slog.Logger
}

// Importer imports atlas regions into project entries
type Importer struct {
	project  *project.Project
	opts     Options
	reader   *roiset.Reader
	resolver *orientation.Resolver
	logger   *slog.Logger
}

// New creates an importer for a project
func New(p *project.Project, opts Options) *Importer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RootPolicy == "" {
		opts.RootPolicy = reconstruction.Strict
	}
	if opts.RotationPolicy == "" {
		opts.RotationPolicy = orientation.Outermost
	}
	if opts.CoordinatePrefix == "" {
		opts.CoordinatePrefix = DefaultCoordinatePrefix
	}
	return &Importer{
		project:  p,
		opts:     opts,
		reader:   roiset.NewReader(opts.Logger),
		resolver: orientation.NewResolver(opts.Logger),
		logger:   opts.Logger,
	}
}

// OpenEntry describes the entry with the given id, reading its server
// descriptor when one exists
func (im *Importer) OpenEntry(id string, h *hierarchy.Hierarchy) (*Entry, error) {
	dir := im.project.EntryDir(id)
	chain, err := orientation.ParseServerFile(project.ServerDescriptorPath(dir))
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", id, err)
	}
	if h == nil {
		h = hierarchy.New()
	}
	return &Entry{ID: id, Dir: dir, Hierarchy: h, Chain: chain}, nil
}

// ResolveOntology returns the requested atlas name, or the first ontology
// found in the project when none is requested
func (im *Importer) ResolveOntology(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	names, err := im.project.Ontologies()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoOntology, im.project.BaseDir)
	}
	if len(names) > 1 {
		im.logger.Warn("Several ontologies found, using the first one",
			slog.String("ontology", names[0]), slog.Any("available", names))
	}
	return names[0], nil
}

// ResolveAtlas returns the atlas to import into entry: the requested one, or
// the first atlas the entry has an outline archive for
func (im *Importer) ResolveAtlas(entry *Entry, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	names, err := project.Registrations(entry.Dir)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		im.logger.Warn("No registration found for entry", slog.String("entry", entry.ID))
		return "", fmt.Errorf("%w for entry %s", ErrNoRegistration, entry.ID)
	}
	if len(names) > 1 {
		im.logger.Warn("Several registrations found, using the first one",
			slog.String("entry", entry.ID), slog.String("atlas", names[0]), slog.Any("available", names))
	}
	return names[0], nil
}

// LoadOntology loads the ontology file of an atlas
func (im *Importer) LoadOntology(atlasName string) (*ontology.Ontology, error) {
	o, err := ontology.LoadFile(im.project.OntologyPath(atlasName))
	if err != nil {
		return nil, err
	}
	if o.Name == "" {
		o.Name = atlasName
	}
	return o, nil
}

// ImportRegions reconstructs the regions of req into the entry hierarchy and
// returns the inserted tree. With Overwrite set, earlier trees of the same
// ontology are removed first; otherwise the new tree is appended next to them.
func (im *Importer) ImportRegions(ctx context.Context, entry *Entry, req Request) (*reconstruction.RegionTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	atlasName, err := im.ResolveAtlas(entry, req.Ontology)
	if err != nil {
		return nil, err
	}
	o, err := im.LoadOntology(atlasName)
	if err != nil {
		return nil, err
	}
	im.logger.Info("Ontology selected", slog.String("ontology", o.Name), slog.Int("nodes", o.Len()))

	naming := req.NamingProperty
	if naming == "" {
		naming = o.PreferredNamingProperty()
	} else if !o.HasNamingProperty(naming) {
		return nil, &InvalidNamingPropertyError{Property: naming, Valid: o.AvailableNamingProperties()}
	}
	im.logger.Info("Naming property set", slog.String("property", naming))

	archive := req.Archive
	if archive == "" {
		archive = project.RoiSetPath(entry.Dir, atlasName)
	}
	if _, err := os.Stat(archive); err != nil {
		im.logger.Warn("No outline archive for entry",
			slog.String("entry", entry.ID), slog.String("ontology", atlasName), slog.String("path", archive))
		return nil, fmt.Errorf("%w: %s", ErrNoRegistration, archive)
	}
	outlines, err := im.reader.Open(archive)
	if err != nil {
		if errors.Is(err, roiset.ErrNoOutlines) {
			return nil, fmt.Errorf("%w: %w", ErrNoRegistration, err)
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orient := im.resolver.Resolve(entry.Chain, im.opts.RotationPolicy)
	r := reconstruction.NewReconstructor(&reconstruction.Params{
		SplitHemispheres: req.SplitHemispheres,
		NamingProperty:   naming,
		RootPolicy:       im.opts.RootPolicy,
		Logger:           im.logger,
	})
	tree, err := r.Reconstruct(reconstruction.Input{
		Ontology:    o,
		Outlines:    outlines,
		Orientation: orient,
	})
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: empty reconstruction from %s", ErrNoRegistration, archive)
	}

	if req.AtlasCoordinates {
		reg, err := atlasspace.LoadFile(project.TransformPath(entry.Dir, atlasName))
		if err != nil {
			return nil, err
		}
		if err := atlasspace.AddAtlasCoordinates(tree.Root.Children(), reg, orient, im.opts.CoordinatePrefix); err != nil {
			return nil, fmt.Errorf("atlas coordinates: %w", err)
		}
	}

	h := entry.Hierarchy
	if req.Overwrite {
		previous := h.Find(func(a *models.Annotation) bool {
			return reconstruction.IsImportedRoot(a, o.Name)
		})
		if removed := h.RemoveObjects(previous...); len(removed) > 0 {
			im.logger.Info("Replaced previous import", slog.String("ontology", o.Name), slog.Int("trees", len(removed)))
		}
	}
	h.AddObjects(tree.Root)

	req.Ontology = atlasName
	req.NamingProperty = naming
	h.Workflow().AddStep(newStep(entry.ID, req))

	m := r.GetMetrics()
	im.logger.Info("Imported atlas regions",
		slog.String("entry", entry.ID),
		slog.String("ontology", o.Name),
		slog.Int("regions", m.Regions),
		slog.Bool("split", req.SplitHemispheres))
	return tree, nil
}

// Replay re-runs the import steps of a workflow on entry and returns how many
// steps were applied. Steps recorded by other commands are skipped.
func (im *Importer) Replay(ctx context.Context, entry *Entry, steps []hierarchy.WorkflowStep) (int, error) {
	n := 0
	for _, s := range steps {
		if s.Name != StepName {
			im.logger.Debug("Skipping workflow step", slog.String("name", s.Name))
			continue
		}
		req, err := RequestFromStep(s)
		if err != nil {
			return n, err
		}
		if _, err := im.ImportRegions(ctx, entry, req); err != nil {
			return n, fmt.Errorf("replay step %s: %w", s.ID, err)
		}
		n++
	}
	return n, nil
}
