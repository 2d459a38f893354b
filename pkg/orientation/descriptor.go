// Package orientation derives the affine correction that maps outlines drawn
// on an unrotated image into the pixel frame of a rotated view of it.
package orientation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Rotation is the rotation tag recorded by a rotating image server
type Rotation string

const (
	RotateNone Rotation = "ROTATE_NONE"
	Rotate90   Rotation = "ROTATE_90"
	Rotate180  Rotation = "ROTATE_180"
	Rotate270  Rotation = "ROTATE_270"
)

// Size is an image extent in pixels
type Size struct {
	Width, Height int
}

// Descriptor is one layer of an image server chain. The concrete variants are
// Plain, Rotated, Cropped and Other.
type Descriptor interface {
	// OutputSize returns the size of the image this layer exposes given the
	// size of the layer it wraps
	OutputSize(inner Size) Size
}

// Plain is the innermost server reading pixels from a file
type Plain struct {
	Name string
	Size Size
}

func (p Plain) OutputSize(Size) Size { return p.Size }

// Rotated presents the wrapped image turned clockwise
type Rotated struct {
	Rotation Rotation
}

func (r Rotated) OutputSize(inner Size) Size {
	switch r.Rotation {
	case Rotate90, Rotate270:
		return Size{Width: inner.Height, Height: inner.Width}
	default:
		return inner
	}
}

// Cropped presents a sub-region of the wrapped image
type Cropped struct {
	X, Y          int
	Width, Height int
}

func (c Cropped) OutputSize(Size) Size { return Size{Width: c.Width, Height: c.Height} }

// Other is a decorating layer that does not change the geometry
type Other struct {
	Type string
}

func (Other) OutputSize(inner Size) Size { return inner }

// Chain lists the layers of an image server, innermost first
type Chain []Descriptor

// Sizes returns the output size of every layer
func (c Chain) Sizes() []Size {
	sizes := make([]Size, len(c))
	var cur Size
	for i, d := range c {
		cur = d.OutputSize(cur)
		sizes[i] = cur
	}
	return sizes
}

// serverJSON mirrors the nested builder documents stored as server.json
type serverJSON struct {
	BuilderType string        `json:"builderType"`
	Builder     *serverJSON   `json:"builder"`
	Rotation    string        `json:"rotation"`
	Region      *regionJSON   `json:"region"`
	URI         string        `json:"uri"`
	Metadata    *metadataJSON `json:"metadata"`
}

type regionJSON struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type metadataJSON struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ParseServerJSON flattens a nested server builder document into a chain
func ParseServerJSON(r io.Reader) (Chain, error) {
	var root serverJSON
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode server descriptor: %w", err)
	}
	var outer []Descriptor
	for node := &root; node != nil; node = node.Builder {
		switch node.BuilderType {
		case "rotated":
			outer = append(outer, Rotated{Rotation: Rotation(node.Rotation)})
		case "cropped":
			if node.Region == nil {
				return nil, errors.New("cropped server without region")
			}
			outer = append(outer, Cropped{X: node.Region.X, Y: node.Region.Y, Width: node.Region.Width, Height: node.Region.Height})
		case "uri", "":
			p := Plain{Name: node.URI}
			if node.Metadata != nil {
				if node.Metadata.Name != "" {
					p.Name = node.Metadata.Name
				}
				p.Size = Size{Width: node.Metadata.Width, Height: node.Metadata.Height}
			}
			outer = append(outer, p)
		default:
			outer = append(outer, Other{Type: node.BuilderType})
		}
	}
	chain := make(Chain, len(outer))
	for i, d := range outer {
		chain[len(outer)-1-i] = d
	}
	return chain, nil
}

// ParseServerFile reads a server descriptor file. A missing file is a plain,
// unrotated image and yields an empty chain.
func ParseServerFile(path string) (Chain, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseServerJSON(f)
}
