package segmenter

import (
	"fmt"

	"gocv.io/x/gocv"

	"cellseg/internal/deconv"
	"cellseg/internal/logger"
	"cellseg/internal/opencv/safe"
)

const slideComponent = "SlideSegmenter"

// Slide is the static-threshold segmenter for whole-slide foreground
// detection: deconvolution, fixed threshold with inverted polarity,
// then a closing/opening/closing chain that removes holes, drops small
// objects and merges nearby architectural patterns. No watershed, no
// validity-mask statistics.
type Slide struct {
	deconvolver *deconv.Deconvolver
	structElem  gocv.Mat
	thresh      float32
	morphIter   [3]int
	log         logger.Logger
}

// NewSlide builds a slide segmenter. morphIter holds the iteration
// counts of the first closing, the opening and the second closing.
func NewSlide(deconvolver *deconv.Deconvolver, thresh int, morphIter [3]int, log logger.Logger) *Slide {
	if log == nil {
		log = logger.NewNop()
	}

	return &Slide{
		deconvolver: deconvolver,
		structElem:  StandardStructElem(),
		thresh:      float32(thresh),
		morphIter:   morphIter,
		log:         log,
	}
}

func (s *Slide) Name() string {
	return "slide"
}

// Close releases the structuring element.
func (s *Slide) Close() {
	s.structElem.Close()
}

// Segment accepts RGB or RGBA tiles; the alpha channel, when present,
// is ignored because the static threshold needs no masked statistic.
func (s *Slide) Segment(tile *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(tile, "slide segmentation"); err != nil {
		return nil, err
	}

	src := tile.GetMat()

	rgb := gocv.NewMat()
	defer rgb.Close()

	switch tile.Channels() {
	case 3:
		src.CopyTo(&rgb)
	case 4:
		channels := gocv.Split(src)
		defer closeAll(channels)
		gocv.Merge(channels[:3], &rgb)
	default:
		return nil, fmt.Errorf("slide segmentation requires 3 or 4 channels, got %d", tile.Channels())
	}

	imageDec, err := s.deconvolver.TransformMat(rgb)
	if err != nil {
		return nil, fmt.Errorf("deconvolution failed: %w", err)
	}
	defer imageDec.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(imageDec, &gray, gocv.ColorRGBToGray)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, s.thresh, 255, gocv.ThresholdBinaryInv)

	s.log.Debug(slideComponent, "threshold applied", map[string]interface{}{
		"threshold":     s.thresh,
		"foreground_px": gocv.CountNonZero(binary),
	})

	// Close holes in cells, drop small objects, then merge nearby
	// architectural patterns.
	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyExWithParams(binary, &closed, gocv.MorphClose, s.structElem, s.morphIter[0], gocv.BorderConstant)

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyExWithParams(closed, &opened, gocv.MorphOpen, s.structElem, s.morphIter[1], gocv.BorderConstant)

	merged := gocv.NewMat()
	gocv.MorphologyExWithParams(opened, &merged, gocv.MorphClose, s.structElem, s.morphIter[2], gocv.BorderConstant)

	return safe.Adopt(merged)
}
