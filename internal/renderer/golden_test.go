package renderer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/osmraster/internal/draw"
	"github.com/MeKo-Tech/osmraster/internal/mapcss"
)

var redPixel = [3]uint8{255, 0, 0}

// comparePNGs fails the test when the two encoded tiles differ, writing a
// diff image with mismatched pixels marked red next to the actual output.
func comparePNGs(t *testing.T, expected, actual []byte, diffDir string) {
	t.Helper()

	if bytes.Equal(expected, actual) {
		return
	}

	expTriples, expW, expH, err := draw.PNGToRGBTriples(bytes.NewReader(expected))
	require.NoError(t, err)
	actTriples, actW, actH, err := draw.PNGToRGBTriples(bytes.NewReader(actual))
	require.NoError(t, err)

	require.Equal(t, expW, actW, "different widths")
	require.Equal(t, expH, actH, "different heights")

	diff := make(draw.RGBTriples, len(expTriples))
	differing := 0
	for i := range expTriples {
		if expTriples[i] != actTriples[i] {
			diff[i] = redPixel
			differing++
		}
	}

	diffPNG, err := draw.RGBTriplesToPNG(diff, actW, actH)
	require.NoError(t, err)

	diffPath := filepath.Join(diffDir, "diff.png")
	require.NoError(t, os.WriteFile(diffPath, diffPNG, 0o644))

	t.Fatalf("tiles differ in %d pixels; see %s", differing, diffPath)
}

// TestRenderingReproducible renders the same tile through two independent
// pipelines (fresh stylers, fresh caches) and requires byte-identical
// output, using the golden-comparison tooling for the diagnosis on failure.
func TestRenderingReproducible(t *testing.T) {
	fx := newFixture(t, map[string]string{"building": "yes"})
	entities := fx.reader.GetEntitiesInTileWithNeighbors(fx.tile, nil)

	render := func() []byte {
		styler := mapcss.NewStyler(buildingRules(t), mapcss.StyleJosm, 0, nil)
		drawer := NewDrawer(t.TempDir(), nil, nil)
		data, err := drawer.DrawTile(entities, fx.tile, 1, styler)
		require.NoError(t, err)
		return data
	}

	expected := render()
	actual := render()
	comparePNGs(t, expected, actual, t.TempDir())
}

func TestComparePNGsDetectsDifference(t *testing.T) {
	base := make(draw.RGBTriples, 16)
	changed := make(draw.RGBTriples, 16)
	copy(changed, base)
	changed[5] = [3]uint8{1, 2, 3}

	basePNG, err := draw.RGBTriplesToPNG(base, 4, 4)
	require.NoError(t, err)
	changedPNG, err := draw.RGBTriplesToPNG(changed, 4, 4)
	require.NoError(t, err)

	diffDir := t.TempDir()

	// Fatalf stops the calling goroutine, so the probe runs on its own one.
	mock := &testing.T{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		comparePNGs(mock, basePNG, changedPNG, diffDir)
	}()
	<-done
	require.True(t, mock.Failed(), "differing tiles must fail the comparison")

	diffData, err := os.ReadFile(filepath.Join(diffDir, "diff.png"))
	require.NoError(t, err)

	triples, _, _, err := draw.PNGToRGBTriples(bytes.NewReader(diffData))
	require.NoError(t, err)
	require.Equal(t, redPixel, triples[5])
	require.Equal(t, [3]uint8{0, 0, 0}, triples[0])
}
