package pipeline

import (
	"fmt"
	"time"

	"cellseg/internal/logger"
	"cellseg/internal/opencv/safe"
	"cellseg/internal/segmenter"
)

type Processor struct {
	seg segmenter.Segmenter
	log logger.Logger
}

func NewProcessor(seg segmenter.Segmenter, log logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{seg: seg, log: log}
}

// Process segments one tile and returns the result mask wrapped as
// TileData. The input tile stays owned by the caller.
func (p *Processor) Process(tile *TileData) (*TileData, error) {
	if tile == nil || tile.Mat == nil {
		return nil, fmt.Errorf("no tile data to process")
	}

	if err := safe.ValidateMatForOperation(tile.Mat, "tile processing"); err != nil {
		return nil, fmt.Errorf("input validation failed: %w", err)
	}

	start := time.Now()
	mask, err := p.seg.Segment(tile.Mat)
	if err != nil {
		return nil, fmt.Errorf("segmentation failed for %s: %w", tile.Path, err)
	}

	result := &TileData{
		Mat:      mask,
		Width:    mask.Cols(),
		Height:   mask.Rows(),
		Channels: mask.Channels(),
		Path:     tile.Path,
	}

	p.log.Info("TileProcessor", "tile segmented", map[string]interface{}{
		"path":        tile.Path,
		"segmenter":   p.seg.Name(),
		"size":        fmt.Sprintf("%dx%d", tile.Width, tile.Height),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return result, nil
}
