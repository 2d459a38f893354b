package orientation

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlasroi/pkg/geometry"
)

const rotatedServer = `{
  "builderType": "rotated",
  "rotation": "ROTATE_90",
  "builder": {
    "builderType": "cropped",
    "region": {"x": 10, "y": 20, "width": 200, "height": 100},
    "builder": {
      "builderType": "uri",
      "uri": "file:/data/slide.ome.tif",
      "metadata": {"name": "slide", "width": 4000, "height": 3000}
    }
  }
}`

func TestParseServerJSON_InnermostFirst(t *testing.T) {
	chain, err := ParseServerJSON(strings.NewReader(rotatedServer))
	require.NoError(t, err)
	require.Len(t, chain, 3)

	assert.Equal(t, Plain{Name: "slide", Size: Size{4000, 3000}}, chain[0])
	assert.Equal(t, Cropped{X: 10, Y: 20, Width: 200, Height: 100}, chain[1])
	assert.Equal(t, Rotated{Rotation: Rotate90}, chain[2])

	assert.Equal(t, []Size{{4000, 3000}, {200, 100}, {100, 200}}, chain.Sizes())
}

func TestParseServerJSON_Errors(t *testing.T) {
	_, err := ParseServerJSON(strings.NewReader(`{"builderType":"cropped"}`))
	assert.Error(t, err)
	_, err = ParseServerJSON(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestParseServerFile_MissingIsPlain(t *testing.T) {
	chain, err := ParseServerFile(filepath.Join(t.TempDir(), "server.json"))
	require.NoError(t, err)
	assert.Empty(t, chain)
	assert.True(t, NewResolver(nil).Resolve(chain, Outermost).IsIdentity())
}

func TestParseServerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.json")
	require.NoError(t, os.WriteFile(path, []byte(rotatedServer), 0o644))
	chain, err := ParseServerFile(path)
	require.NoError(t, err)
	assert.Len(t, chain, 3)
}

func TestCorrection_MapsCornersIntoView(t *testing.T) {
	// unrotated image is 200 wide and 100 high
	src := Size{200, 100}
	tests := []struct {
		rot  Rotation
		view Size
		want geometry.Point // where the unrotated origin lands
	}{
		{RotateNone, src, geometry.Point{X: 0, Y: 0}},
		{Rotate90, Size{100, 200}, geometry.Point{X: 100, Y: 0}},
		{Rotate180, src, geometry.Point{X: 200, Y: 100}},
		{Rotate270, Size{100, 200}, geometry.Point{X: 0, Y: 200}},
	}
	for _, tt := range tests {
		t.Run(string(tt.rot), func(t *testing.T) {
			a, ok := Correction(tt.rot, tt.view)
			require.True(t, ok)
			assert.Equal(t, tt.want, a.Apply(geometry.Point{}))

			// the whole source rectangle must land inside the view
			b := geometry.NewRect(0, 0, float64(src.Width), float64(src.Height)).Transform(a).Bounds()
			assert.Equal(t, geometry.Point{}, b.Min)
			assert.Equal(t, geometry.Point{X: float64(tt.view.Width), Y: float64(tt.view.Height)}, b.Max)
		})
	}
}

func TestCorrection_180IsInvolution(t *testing.T) {
	a, ok := Correction(Rotate180, Size{640, 480})
	require.True(t, ok)
	outline := geometry.NewPolygon([]geometry.Point{{X: 1, Y: 2}, {X: 300, Y: 7}, {X: 150, Y: 400}})

	twice := outline.Transform(a).Transform(a)
	assert.Equal(t, outline.Rings(), twice.Rings())
}

func TestCorrection_90FourTimesIsIdentity(t *testing.T) {
	a, ok := Correction(Rotate90, Size{300, 500})
	require.True(t, ok)
	outline := geometry.NewPolygon([]geometry.Point{{X: 1, Y: 2}, {X: 300, Y: 7}, {X: 150, Y: 400}})

	got := outline
	for i := 0; i < 4; i++ {
		got = got.Transform(a)
	}
	assert.Equal(t, outline.Rings(), got.Rings())
}

func TestResolve_Policies(t *testing.T) {
	chain := Chain{
		Plain{Size: Size{200, 100}},
		Rotated{Rotation: Rotate90},
		Other{Type: "pyramidize"},
		Rotated{Rotation: Rotate180},
	}
	r := NewResolver(nil)

	matches := r.Matches(chain)
	require.Len(t, matches, 2)
	assert.Equal(t, Match{Index: 1, Rotation: Rotate90, Size: Size{100, 200}}, matches[0])
	assert.Equal(t, Match{Index: 3, Rotation: Rotate180, Size: Size{100, 200}}, matches[1])

	outer, _ := Correction(Rotate180, Size{100, 200})
	inner, _ := Correction(Rotate90, Size{100, 200})
	assert.Equal(t, outer, r.Resolve(chain, Outermost))
	assert.Equal(t, inner, r.Resolve(chain, Innermost))
}

func TestResolve_UnknownRotationIsIdentity(t *testing.T) {
	var buf bytes.Buffer
	r := NewResolver(slog.New(slog.NewTextHandler(&buf, nil)))

	got := r.Resolve(Chain{Plain{Size: Size{10, 10}}, Rotated{Rotation: "ROTATE_45"}}, Outermost)
	assert.True(t, got.IsIdentity())
	assert.Contains(t, buf.String(), "ROTATE_45")
}
