// Package ontology models an atlas ontology: a tree of anatomical regions,
// each carrying an integer id, free-form string attributes and a display
// color. Ontologies are loaded from the JSON document exported next to a
// registered project and are read-only after loading.
package ontology

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"sort"
	"strconv"
)

// IDProperty is the naming property that falls back to the numeric node id
// when the attribute itself is missing
const IDProperty = "ID"

// preferredNamingProperties are tried in order when no naming property is requested
var preferredNamingProperties = []string{"acronym", "name", "id"}

// LoadError reports an ontology document that is absent, malformed or
// structurally inconsistent
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load ontology: %v", e.Err)
	}
	return fmt.Sprintf("load ontology %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UnknownIDError reports a region id that does not resolve in the ontology
type UnknownIDError struct {
	ID int
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("ontology has no node with id %d", e.ID)
}

// Node is one region of the ontology. Children are owned by their parent;
// the parent link is an id looked up through the ontology index.
type Node struct {
	ID       int               `json:"id"`
	Data     map[string]string `json:"data"`
	Color    []int             `json:"color"`
	Children []*Node           `json:"children"`

	parentID  int
	hasParent bool
	owner     *Ontology
}

// Parent returns the parent node, or nil for the root
func (n *Node) Parent() *Node {
	if !n.hasParent || n.owner == nil {
		return nil
	}
	return n.owner.index[n.parentID]
}

// ParentID returns the parent id and whether the node has a parent
func (n *Node) ParentID() (int, bool) {
	return n.parentID, n.hasParent
}

// RGB returns the node color. Missing components default to gray.
func (n *Node) RGB() color.RGBA {
	c := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	if len(n.Color) >= 3 {
		c.R = clampByte(n.Color[0])
		c.G = clampByte(n.Color[1])
		c.B = clampByte(n.Color[2])
	}
	return c
}

// Ontology is a loaded atlas ontology
type Ontology struct {
	Name           string `json:"name"`
	NamingProperty string `json:"namingProperty"`
	Root           *Node  `json:"root"`

	index map[int]*Node
}

// Load decodes and initializes an ontology document
func Load(r io.Reader) (*Ontology, error) {
	var o Ontology
	if err := json.NewDecoder(r).Decode(&o); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("decode: %w", err)}
	}
	if err := o.initialize(); err != nil {
		return nil, &LoadError{Err: err}
	}
	return &o, nil
}

// LoadFile loads the ontology document at path
func LoadFile(path string) (*Ontology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	o, err := Load(f)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return o, nil
}

// initialize wires parent links and builds the id index. It runs once per load.
func (o *Ontology) initialize() error {
	if o.Root == nil {
		return errors.New("document has no root node")
	}
	o.index = make(map[int]*Node)
	var wire func(n *Node, parent *Node) error
	wire = func(n *Node, parent *Node) error {
		if n == nil {
			return errors.New("null node in children list")
		}
		if _, dup := o.index[n.ID]; dup {
			return fmt.Errorf("duplicate node id %d", n.ID)
		}
		n.owner = o
		if parent != nil {
			n.parentID, n.hasParent = parent.ID, true
		}
		if n.Data == nil {
			n.Data = map[string]string{}
		}
		o.index[n.ID] = n
		for _, c := range n.Children {
			if err := wire(c, n); err != nil {
				return err
			}
		}
		return nil
	}
	return wire(o.Root, nil)
}

// NodeByID resolves an id through the index
func (o *Ontology) NodeByID(id int) (*Node, error) {
	n, ok := o.index[id]
	if !ok {
		return nil, &UnknownIDError{ID: id}
	}
	return n, nil
}

// Len returns the number of nodes
func (o *Ontology) Len() int { return len(o.index) }

// Walk visits every node depth first, parents before children
func (o *Ontology) Walk(fn func(*Node)) {
	var visit func(*Node)
	visit = func(n *Node) {
		fn(n)
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(o.Root)
}

// AvailableNamingProperties returns the attribute keys of the root node,
// sorted. These are the only valid naming properties.
func (o *Ontology) AvailableNamingProperties() []string {
	keys := make([]string, 0, len(o.Root.Data))
	for k := range o.Root.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasNamingProperty reports whether key is one of the root attribute keys
func (o *Ontology) HasNamingProperty(key string) bool {
	_, ok := o.Root.Data[key]
	return ok
}

// SetNamingProperty changes the default naming property. No validation happens here.
func (o *Ontology) SetNamingProperty(key string) {
	o.NamingProperty = key
}

// PreferredNamingProperty picks acronym, name or id when available and
// otherwise the first attribute key in sorted order
func (o *Ontology) PreferredNamingProperty() string {
	for _, p := range preferredNamingProperties {
		if o.HasNamingProperty(p) {
			return p
		}
	}
	keys := o.AvailableNamingProperties()
	if len(keys) == 0 {
		return IDProperty
	}
	return keys[0]
}

// DisplayName returns the value of property for node. A missing "ID"
// attribute falls back to the numeric id; any other missing attribute yields
// the empty string.
func (o *Ontology) DisplayName(n *Node, property string) string {
	if v, ok := n.Data[property]; ok {
		return v
	}
	if property == IDProperty {
		return strconv.Itoa(n.ID)
	}
	return ""
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
