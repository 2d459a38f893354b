// Package project implements the on-disk layout of an analysis project: the
// ontology files in the base directory and one directory per image entry
// holding its registration files.
package project

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	ontologySuffix  = "-Ontology.json"
	roiSetPrefix    = "ABBA-RoiSet-"
	roiSetSuffix    = ".zip"
	transformPrefix = "ABBA-Transform-"
	transformSuffix = ".json"

	// ServerDescriptorName is the image server descriptor stored per entry
	ServerDescriptorName = "server.json"

	// DefaultDataDir is the entry directory root relative to the base directory
	DefaultDataDir = "data"
)

// Project locates files within a project directory
type Project struct {
	BaseDir string
	DataDir string
}

// New returns a project rooted at baseDir. An empty dataDir uses DefaultDataDir.
func New(baseDir, dataDir string) *Project {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	return &Project{BaseDir: baseDir, DataDir: dataDir}
}

// EntryDir returns the directory of an image entry
func (p *Project) EntryDir(entryID string) string {
	dataDir := p.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(p.BaseDir, dataDir)
	}
	return filepath.Join(dataDir, entryID)
}

// OntologyPath returns the ontology file of the named atlas
func (p *Project) OntologyPath(atlasName string) string {
	return filepath.Join(p.BaseDir, atlasName+ontologySuffix)
}

// Ontologies lists the atlas names with an ontology file in the base directory
func (p *Project) Ontologies() ([]string, error) {
	return namesMatching(p.BaseDir, "", ontologySuffix)
}

// Entries lists the entry ids that hold at least one outline archive
func (p *Project) Entries() ([]string, error) {
	root := p.EntryDir("")
	matches, err := doublestar.Glob(os.DirFS(root), "*/"+roiSetPrefix+"*"+roiSetSuffix)
	if err != nil {
		return nil, fmt.Errorf("list entries in %s: %w", root, err)
	}
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		id := path.Dir(m)
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// RoiSetPath returns the outline archive of an atlas within an entry
func RoiSetPath(entryDir, atlasName string) string {
	return filepath.Join(entryDir, roiSetPrefix+atlasName+roiSetSuffix)
}

// TransformPath returns the registration transform of an atlas within an entry
func TransformPath(entryDir, atlasName string) string {
	return filepath.Join(entryDir, transformPrefix+atlasName+transformSuffix)
}

// ServerDescriptorPath returns the image server descriptor of an entry
func ServerDescriptorPath(entryDir string) string {
	return filepath.Join(entryDir, ServerDescriptorName)
}

// Registrations lists the atlas names with an outline archive in entryDir
func Registrations(entryDir string) ([]string, error) {
	return namesMatching(entryDir, roiSetPrefix, roiSetSuffix)
}

// TransformNames lists the atlas names with a registration transform in entryDir
func TransformNames(entryDir string) ([]string, error) {
	return namesMatching(entryDir, transformPrefix, transformSuffix)
}

// namesMatching returns the sorted variable parts of the file names in dir
// matching prefix*suffix. prefix and suffix hold no glob metacharacters. A
// missing directory yields no names.
func namesMatching(dir, prefix, suffix string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), prefix+"?*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(m, prefix), suffix))
	}
	sort.Strings(names)
	return names, nil
}
