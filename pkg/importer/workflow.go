package importer

import (
	"fmt"
	"strconv"
	"strings"

	"atlasroi/pkg/hierarchy"
)

// StepName names the workflow steps recorded by ImportRegions
const StepName = "Load Brain RoiSets into Image"

const (
	paramOntology         = "ontology"
	paramArchive          = "archive"
	paramNamingProperty   = "namingProperty"
	paramSplitHemispheres = "splitHemispheres"
	paramOverwrite        = "overwrite"
	paramAtlasCoordinates = "atlasCoordinates"
)

func newStep(entryID string, req Request) hierarchy.WorkflowStep {
	params := map[string]string{
		paramOntology:         req.Ontology,
		paramNamingProperty:   req.NamingProperty,
		paramSplitHemispheres: strconv.FormatBool(req.SplitHemispheres),
		paramOverwrite:        strconv.FormatBool(req.Overwrite),
		paramAtlasCoordinates: strconv.FormatBool(req.AtlasCoordinates),
	}
	if req.Archive != "" {
		params[paramArchive] = req.Archive
	}
	return hierarchy.NewWorkflowStep(StepName, Command(entryID, req), params)
}

// Command returns the command line reproducing req on an entry
func Command(entryID string, req Request) string {
	args := []string{
		"atlasroi", "import",
		"--entry", strconv.Quote(entryID),
		"--ontology", strconv.Quote(req.Ontology),
		"--naming-property", strconv.Quote(req.NamingProperty),
		"--split=" + strconv.FormatBool(req.SplitHemispheres),
		"--overwrite=" + strconv.FormatBool(req.Overwrite),
		"--atlas-coordinates=" + strconv.FormatBool(req.AtlasCoordinates),
	}
	if req.Archive != "" {
		args = append(args, "--archive", strconv.Quote(req.Archive))
	}
	return strings.Join(args, " ")
}

// RequestFromStep restores the request recorded in a workflow step
func RequestFromStep(s hierarchy.WorkflowStep) (Request, error) {
	req := Request{
		Ontology:       s.Params[paramOntology],
		Archive:        s.Params[paramArchive],
		NamingProperty: s.Params[paramNamingProperty],
	}
	flags := []struct {
		key string
		dst *bool
	}{
		{paramSplitHemispheres, &req.SplitHemispheres},
		{paramOverwrite, &req.Overwrite},
		{paramAtlasCoordinates, &req.AtlasCoordinates},
	}
	for _, f := range flags {
		v, ok := s.Params[f.key]
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Request{}, fmt.Errorf("workflow step %s: parameter %s: %w", s.ID, f.key, err)
		}
		*f.dst = b
	}
	return req, nil
}
