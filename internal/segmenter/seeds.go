package segmenter

import (
	"image"

	"gocv.io/x/gocv"
)

// localMaxWindow is the sliding max-filter window used to detect seed
// candidates on the distance field.
const localMaxWindow = 9

// extractSeeds computes watershed seeds from the smoothed mask: an exact
// Euclidean distance transform, its local maxima restricted to the
// foreground, dilated into coherent blobs and labeled into connected
// components. It returns the CV_32S label raster (ids 1..count, 0 =
// background) and the seed count; the caller owns the raster.
//
// As a side effect imageDec's background pixels are set to white so the
// intensity edges seen by the watershed flooding are not biased by
// background texture.
func (s *Aggregate) extractSeeds(smoothed gocv.Mat, imageDec *gocv.Mat) (gocv.Mat, int) {
	dist := gocv.NewMat()
	defer dist.Close()
	distLabels := gocv.NewMat()
	defer distLabels.Close()
	gocv.DistanceTransform(smoothed, &dist, &distLabels, gocv.DistL2, gocv.DistanceMask3, gocv.DistanceLabelCComp)

	whitenBackground(imageDec, smoothed)

	// A pixel is a seed candidate iff its distance equals the max of its
	// 9x9 neighborhood; dilation with a rect kernel is the max filter.
	maxKernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(localMaxWindow, localMaxWindow))
	defer maxKernel.Close()

	dilatedDist := gocv.NewMat()
	defer dilatedDist.Close()
	gocv.Dilate(dist, &dilatedDist, maxKernel)

	peaks := gocv.NewMat()
	defer peaks.Close()
	gocv.Compare(dist, dilatedDist, &peaks, gocv.CompareEQ)

	// Background pixels trivially equal their zero neighborhood maximum;
	// masking with the foreground discards them.
	seeds := gocv.NewMat()
	defer seeds.Close()
	gocv.BitwiseAnd(peaks, smoothed, &seeds)

	// Merge nearby maxima into coherent seed blobs.
	blobs := gocv.NewMat()
	defer blobs.Close()
	gocv.MorphologyExWithParams(seeds, &blobs, gocv.MorphDilate, s.structElem, 2, gocv.BorderConstant)

	labels := gocv.NewMat()
	count := gocv.ConnectedComponents(blobs, &labels)

	// ConnectedComponents counts the background label.
	return labels, count - 1
}

func whitenBackground(imageDec *gocv.Mat, smoothed gocv.Mat) {
	rows := smoothed.Rows()
	cols := smoothed.Cols()

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if smoothed.GetUCharAt(y, x) != 0 {
				continue
			}
			imageDec.SetUCharAt3(y, x, 0, 255)
			imageDec.SetUCharAt3(y, x, 1, 255)
			imageDec.SetUCharAt3(y, x, 2, 255)
		}
	}
}
