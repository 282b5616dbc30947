package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"cellseg/internal/opencv/safe"
)

// zeroSegmenter returns an all-zero mask of the input size.
type zeroSegmenter struct{}

func (zeroSegmenter) Name() string { return "zero" }

func (zeroSegmenter) Segment(tile *safe.Mat) (*safe.Mat, error) {
	return safe.NewMat(tile.Rows(), tile.Cols(), gocv.MatTypeCV8UC1)
}

func writeTestTile(t *testing.T, dir, name string, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 180, B: 210, A: 255})
		}
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create tile file: %v", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		t.Fatalf("failed to encode tile: %v", err)
	}
	return path
}

func TestMaskPath(t *testing.T) {
	tests := []struct {
		outDir   string
		tilePath string
		want     string
	}{
		{"out", "tiles/sample.png", filepath.Join("out", "sample_mask.png")},
		{"out", "sample.jpeg", filepath.Join("out", "sample_mask.png")},
		{"/results", "/data/deep/tile_01.jpg", filepath.Join("/results", "tile_01_mask.png")},
	}

	for _, tt := range tests {
		if got := MaskPath(tt.outDir, tt.tilePath); got != tt.want {
			t.Errorf("MaskPath(%q, %q) = %q, want %q", tt.outDir, tt.tilePath, got, tt.want)
		}
	}
}

func TestCoordinatorRunWritesMasks(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	paths := []string{
		writeTestTile(t, inDir, "a.png", 16, 12),
		writeTestTile(t, inDir, "b.png", 8, 8),
	}

	coord := NewCoordinator(zeroSegmenter{}, 2, nil)
	results := coord.Run(context.Background(), paths, outDir)

	if len(results) != len(paths) {
		t.Fatalf("got %d results, want %d", len(results), len(paths))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("tile %s failed: %v", r.Path, r.Err)
		}
	}

	for _, path := range paths {
		maskPath := MaskPath(outDir, path)
		file, err := os.Open(maskPath)
		if err != nil {
			t.Fatalf("mask not written for %s: %v", path, err)
		}
		img, err := png.Decode(file)
		file.Close()
		if err != nil {
			t.Fatalf("mask for %s is not a valid PNG: %v", path, err)
		}
		if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
			t.Errorf("mask for %s has empty bounds", path)
		}
	}
}

func TestCoordinatorReportsLoadFailure(t *testing.T) {
	outDir := t.TempDir()
	missing := filepath.Join(t.TempDir(), "missing.png")

	coord := NewCoordinator(zeroSegmenter{}, 1, nil)
	results := coord.Run(context.Background(), []string{missing}, outDir)

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Err == nil {
		t.Error("expected an error for a missing tile")
	}
}

func TestCoordinatorStopsDispatchOnCancel(t *testing.T) {
	outDir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	coord := NewCoordinator(zeroSegmenter{}, 1, nil)
	results := coord.Run(ctx, []string{"never-loaded.png"}, outDir)

	// Cancelled before dispatch; either nothing ran, or the single tile
	// won the race and failed to load.
	if len(results) > 1 {
		t.Errorf("got %d results after cancellation, want at most 1", len(results))
	}
}

func TestLoaderAddsOpaqueAlpha(t *testing.T) {
	dir := t.TempDir()
	path := writeTestTile(t, dir, "tile.png", 10, 10)

	loader := NewLoader(nil)
	tile, err := loader.LoadTile(path)
	if err != nil {
		t.Fatalf("LoadTile failed: %v", err)
	}
	defer tile.Close()

	if tile.Channels != 4 {
		t.Fatalf("loaded tile has %d channels, want 4", tile.Channels)
	}
	if tile.Width != 10 || tile.Height != 10 {
		t.Errorf("loaded tile is %dx%d, want 10x10", tile.Width, tile.Height)
	}

	alpha, err := tile.Mat.GetUCharAt3(5, 5, 3)
	if err != nil {
		t.Fatalf("failed to read alpha: %v", err)
	}
	if alpha != 255 {
		t.Errorf("alpha = %d, want 255", alpha)
	}
}
