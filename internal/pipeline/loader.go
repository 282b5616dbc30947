package pipeline

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"cellseg/internal/logger"
	"cellseg/internal/opencv/conversion"
)

type Loader struct {
	log logger.Logger
}

func NewLoader(log logger.Logger) *Loader {
	if log == nil {
		log = logger.NewNop()
	}
	return &Loader{log: log}
}

// LoadTile decodes a tile file (PNG or JPEG) into an RGBA Mat. Images
// without an alpha channel get a fully opaque validity mask.
func (l *Loader) LoadTile(path string) (*TileData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tile: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile %s: %w", path, err)
	}

	mat, err := conversion.TileToMat(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert tile %s: %w", path, err)
	}

	bounds := img.Bounds()
	tile := &TileData{
		Image:    img,
		Mat:      mat,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: mat.Channels(),
		Path:     path,
	}

	l.log.Debug("TileLoader", "tile loaded", map[string]interface{}{
		"path":   path,
		"width":  tile.Width,
		"height": tile.Height,
		"format": format,
	})

	return tile, nil
}
