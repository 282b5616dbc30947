package pipeline

import (
	"fmt"
	"image/png"
	"os"

	"cellseg/internal/logger"
	"cellseg/internal/opencv/conversion"
	"cellseg/internal/opencv/safe"
)

type Saver struct {
	log logger.Logger
}

func NewSaver(log logger.Logger) *Saver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Saver{log: log}
}

// SaveMask writes a binary result mask to path as PNG.
func (s *Saver) SaveMask(path string, mask *safe.Mat) error {
	if err := safe.ValidateMatForOperation(mask, "mask saving"); err != nil {
		return err
	}

	img, err := conversion.MaskToImage(mask)
	if err != nil {
		return fmt.Errorf("failed to convert mask: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create mask file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode mask: %w", err)
	}

	s.log.Debug("MaskSaver", "mask saved", map[string]interface{}{
		"path":   path,
		"width":  mask.Cols(),
		"height": mask.Rows(),
	})

	return nil
}
