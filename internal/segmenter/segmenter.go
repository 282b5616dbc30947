// Package segmenter turns stained microscopy tiles into binary cell
// masks. Two implementations exist: Aggregate separates clustered cells
// with marker-controlled watershed flooding, Slide applies a static
// threshold with fixed morphology for whole-slide foreground detection.
//
// Tiles are RGBA rasters whose channel 3 is a validity mask (non-zero =
// inside tissue). Degenerate tiles (empty validity mask, no contours)
// resolve to an all-zero mask of the tile's dimensions, never an error.
// Segmenters are stateless across calls and safe for concurrent use
// once constructed.
package segmenter

import (
	"gocv.io/x/gocv"

	"cellseg/internal/opencv/safe"
)

// Segmenter is the contract consumed by the tile pipeline.
type Segmenter interface {
	Name() string
	Segment(tile *safe.Mat) (*safe.Mat, error)
}

// zeroMask is the defined terminal output for degenerate tiles.
func zeroMask(rows, cols int) (*safe.Mat, error) {
	return safe.NewMat(rows, cols, gocv.MatTypeCV8UC1)
}

func closeAll(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
