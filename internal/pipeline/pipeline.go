// Package pipeline moves tiles through load, segment and save stages.
// Tiles are independent; the coordinator distributes them across a
// bounded worker pool with no shared mutable state beyond the stateless
// segmenter.
package pipeline

import (
	"image"

	"cellseg/internal/opencv/safe"
)

// TileData carries one tile (or its result mask) between stages.
type TileData struct {
	Image    image.Image
	Mat      *safe.Mat
	Width    int
	Height   int
	Channels int
	Path     string
}

// Close releases the tile's Mat.
func (t *TileData) Close() {
	if t != nil && t.Mat != nil {
		t.Mat.Close()
	}
}
