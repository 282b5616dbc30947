package segmenter

import (
	"fmt"

	"gocv.io/x/gocv"

	"cellseg/internal/deconv"
	"cellseg/internal/logger"
	"cellseg/internal/opencv/safe"
	"cellseg/internal/threshold"
)

const aggregateComponent = "AggregateSegmenter"

// Aggregate separates clustered cells in a tile into individual masks.
// The pipeline runs seven stages in strict sequence: masked-Otsu
// preprocessing, hole-contour cleaning, morphological smoothing, seed
// extraction on the distance field, marker encoding with the border
// sentinel, watershed flooding on the deconvolved intensities, and an
// erode/dilate postprocess that sharpens inter-cell separation.
type Aggregate struct {
	deconvolver    *deconv.Deconvolver
	structElem     gocv.Mat
	smallElem      gocv.Mat
	maxCellArea    float64
	minCircularity float64
	log            logger.Logger
}

// NewAggregate builds an aggregate segmenter. The deconvolver is shared
// read-only; maxCellArea and minCircularity drive the hole-cleaning
// heuristics of the contour stage.
func NewAggregate(deconvolver *deconv.Deconvolver, maxCellArea, minCircularity float64, log logger.Logger) *Aggregate {
	if log == nil {
		log = logger.NewNop()
	}

	return &Aggregate{
		deconvolver:    deconvolver,
		structElem:     StandardStructElem(),
		smallElem:      SmallStructElem(),
		maxCellArea:    maxCellArea,
		minCircularity: minCircularity,
		log:            log,
	}
}

func (s *Aggregate) Name() string {
	return "aggregate"
}

// Close releases the structuring elements.
func (s *Aggregate) Close() {
	s.structElem.Close()
	s.smallElem.Close()
}

// Segment runs the full pipeline on one RGBA tile and returns the
// result mask (values {0,255}, one connected region per separated
// cell). Degenerate tiles resolve to an all-zero mask. Every raster is
// created fresh for this call and released before returning; only the
// result transfers to the caller.
func (s *Aggregate) Segment(tile *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateTile(tile, "aggregate segmentation"); err != nil {
		return nil, err
	}

	src := tile.GetMat()
	rows := src.Rows()
	cols := src.Cols()

	channels := gocv.Split(src)
	defer closeAll(channels)

	alpha := channels[3]
	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.Merge(channels[:3], &rgb)

	if gocv.CountNonZero(alpha) == 0 {
		s.log.Debug(aggregateComponent, "validity mask empty, returning zero mask", map[string]interface{}{
			"width":  cols,
			"height": rows,
		})
		return zeroMask(rows, cols)
	}

	imageDec, binary, thresh, err := s.preprocess(rgb, alpha)
	if err != nil {
		return nil, err
	}
	defer imageDec.Close()
	defer binary.Close()

	s.log.Debug(aggregateComponent, "threshold applied", map[string]interface{}{
		"otsu_threshold": thresh,
		"foreground_px":  gocv.CountNonZero(binary),
	})

	found, err := cleanHoles(&binary, s.maxCellArea, s.minCircularity)
	if err != nil {
		return nil, fmt.Errorf("contour cleaning failed: %w", err)
	}
	if !found {
		s.log.Debug(aggregateComponent, "no contours found, returning zero mask", map[string]interface{}{
			"width":  cols,
			"height": rows,
		})
		return zeroMask(rows, cols)
	}

	smoothed := s.smooth(binary)
	defer smoothed.Close()

	markers, seedCount := s.extractSeeds(smoothed, &imageDec)
	defer markers.Close()

	s.log.Debug(aggregateComponent, "seeds extracted", map[string]interface{}{
		"seed_count": seedCount,
	})

	borders := s.buildBorders(smoothed)
	defer borders.Close()
	encodeMarkers(&markers, borders, seedCount)

	gocv.Watershed(imageDec, &markers)

	collapsed := collapseMarkers(markers)
	defer collapsed.Close()

	result := s.sharpen(collapsed)
	return safe.Adopt(result)
}

// preprocess deconvolves the tile, converts to grayscale and applies
// the mask-aware Otsu threshold with inverted polarity. The returned
// Mats transfer to the caller.
func (s *Aggregate) preprocess(rgb, alpha gocv.Mat) (gocv.Mat, gocv.Mat, uint8, error) {
	imageDec, err := s.deconvolver.TransformMat(rgb)
	if err != nil {
		return gocv.Mat{}, gocv.Mat{}, 0, fmt.Errorf("deconvolution failed: %w", err)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(imageDec, &gray, gocv.ColorRGBToGray)

	thresh, binary, err := threshold.OtsuWithMask(gray, alpha)
	if err != nil {
		imageDec.Close()
		return gocv.Mat{}, gocv.Mat{}, 0, fmt.Errorf("masked Otsu threshold failed: %w", err)
	}

	return imageDec, binary, thresh, nil
}

// smooth closes small residual holes before opening removes small noise
// blobs. Closing runs first so opening cannot erode thin bridges around
// true small holes.
func (s *Aggregate) smooth(binary gocv.Mat) gocv.Mat {
	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyExWithParams(binary, &closed, gocv.MorphClose, s.structElem, 1, gocv.BorderConstant)

	opened := gocv.NewMat()
	gocv.MorphologyExWithParams(closed, &opened, gocv.MorphOpen, s.structElem, 2, gocv.BorderConstant)
	return opened
}

// sharpen erodes with the main element and dilates back with the
// smaller one: erosion widens the inter-cell separation, the smaller
// dilation restores area without re-merging the regions.
func (s *Aggregate) sharpen(mask gocv.Mat) gocv.Mat {
	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.MorphologyExWithParams(mask, &eroded, gocv.MorphErode, s.structElem, 1, gocv.BorderConstant)

	dilated := gocv.NewMat()
	gocv.MorphologyExWithParams(eroded, &dilated, gocv.MorphDilate, s.smallElem, 1, gocv.BorderConstant)
	return dilated
}
