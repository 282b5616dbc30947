// Package threshold provides histogram thresholding for grayscale
// rasters, including the mask-aware Otsu variant used on tiles whose
// validity mask excludes out-of-tissue pixels.
package threshold

import (
	"fmt"

	"gocv.io/x/gocv"
)

// OtsuWithMask computes the Otsu threshold over the pixels of gray where
// validity is non-zero, then applies it to the whole image with inverted
// polarity (stained/dark pixels become 255). Pixels outside the validity
// mask do not influence the threshold statistic.
//
// The returned Mat is owned by the caller. An entirely empty validity
// mask is an error; callers treat that case as a degenerate tile before
// calling.
func OtsuWithMask(gray, validity gocv.Mat) (uint8, gocv.Mat, error) {
	if gray.Empty() || validity.Empty() {
		return 0, gocv.Mat{}, fmt.Errorf("empty input to masked Otsu")
	}
	if gray.Rows() != validity.Rows() || gray.Cols() != validity.Cols() {
		return 0, gocv.Mat{}, fmt.Errorf("gray %dx%d and validity %dx%d dimensions differ",
			gray.Cols(), gray.Rows(), validity.Cols(), validity.Rows())
	}

	var histogram [256]int64
	total := int64(0)

	rows := gray.Rows()
	cols := gray.Cols()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if validity.GetUCharAt(y, x) == 0 {
				continue
			}
			histogram[gray.GetUCharAt(y, x)]++
			total++
		}
	}

	if total == 0 {
		return 0, gocv.Mat{}, fmt.Errorf("validity mask is entirely empty")
	}

	thresh := otsuFromHistogram(histogram[:], total)

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, float32(thresh), 255, gocv.ThresholdBinaryInv)

	return thresh, binary, nil
}

// otsuFromHistogram maximizes between-class variance over the masked
// histogram. A histogram with no separable modes (all mass in one bin)
// resolves to that bin, so the inverted threshold keeps a uniform
// stained region as foreground. A uniform bin at 255 is unstained
// background; it resolves to 254 so the inverted threshold empties the
// mask instead.
func otsuFromHistogram(histogram []int64, total int64) uint8 {
	weightedSum := 0.0
	for i, count := range histogram {
		weightedSum += float64(i) * float64(count)
	}

	bestThreshold := 0
	maxVariance := 0.0

	backgroundCount := int64(0)
	backgroundSum := 0.0

	for t := 0; t < 255; t++ {
		backgroundCount += histogram[t]
		if backgroundCount == 0 {
			continue
		}

		foregroundCount := total - backgroundCount
		if foregroundCount == 0 {
			break
		}

		backgroundSum += float64(t) * float64(histogram[t])

		meanBackground := backgroundSum / float64(backgroundCount)
		meanForeground := (weightedSum - backgroundSum) / float64(foregroundCount)

		meanDiff := meanBackground - meanForeground
		variance := float64(backgroundCount) * float64(foregroundCount) * meanDiff * meanDiff

		if variance > maxVariance {
			maxVariance = variance
			bestThreshold = t
		}
	}

	if maxVariance == 0 {
		for i, count := range histogram {
			if count == 0 {
				continue
			}
			if i == 255 {
				return 254
			}
			return uint8(i)
		}
	}

	return uint8(bestThreshold)
}
