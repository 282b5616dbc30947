package segmenter

import (
	"gocv.io/x/gocv"
)

// borderLabel is the sentinel stamped into the marker raster for the
// ring outside the foreground boundary. Label ids share the same
// integer domain, so encodeMarkers must keep real ids away from it.
const borderLabel = 255

// buildBorders returns a ring one structuring element wide strictly
// outside the foreground boundary: the mask dilated once minus the mask
// itself. The caller owns the returned Mat.
func (s *Aggregate) buildBorders(smoothed gocv.Mat) gocv.Mat {
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.MorphologyExWithParams(smoothed, &dilated, gocv.MorphDilate, s.structElem, 1, gocv.BorderConstant)

	borders := gocv.NewMat()
	gocv.Subtract(dilated, smoothed, &borders)
	return borders
}

// encodeMarkers writes the border sentinel into the label raster.
// Resulting color code: borders at 255, background at 0, labels in
// ]0,255[ and ]255,...].
//
// Any label currently equal to the sentinel is remapped above the
// highest real id BEFORE the borders are stamped; stamping first would
// make a true label-255 seed indistinguishable from border pixels.
func encodeMarkers(markers *gocv.Mat, borders gocv.Mat, seedCount int) {
	remapped := int32(borderLabel + 1)
	if seedCount >= borderLabel {
		remapped = int32(seedCount + 1)
	}

	rows := markers.Rows()
	cols := markers.Cols()

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if markers.GetIntAt(y, x) == borderLabel {
				markers.SetIntAt(y, x, remapped)
			}
		}
	}

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if borders.GetUCharAt(y, x) == 255 {
				markers.SetIntAt(y, x, borderLabel)
			}
		}
	}
}

// collapseMarkers folds the flooded marker raster back to a binary
// mask: watershed boundaries (negative) and border-sentinel pixels
// become background, every remaining positive label becomes foreground.
// The caller owns the returned Mat.
func collapseMarkers(markers gocv.Mat) gocv.Mat {
	rows := markers.Rows()
	cols := markers.Cols()

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := markers.GetIntAt(y, x)
			if v > 0 && v != borderLabel {
				mask.SetUCharAt(y, x, 255)
			}
		}
	}

	return mask
}
