package segmenter

import (
	"gocv.io/x/gocv"
)

// The standard structuring elements of the reference workflow: a 7x7
// disk for the main morphology and a 6x6 disk for the final dilation.
var (
	standardElemPattern = [][]uint8{
		{0, 0, 1, 1, 1, 0, 0},
		{0, 1, 1, 1, 1, 1, 0},
		{1, 1, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 1, 1},
		{0, 1, 1, 1, 1, 1, 0},
		{0, 0, 1, 1, 1, 0, 0},
	}

	smallElemPattern = [][]uint8{
		{0, 1, 1, 1, 1, 0},
		{1, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 1},
		{1, 1, 1, 1, 1, 1},
		{0, 1, 1, 1, 1, 0},
	}
)

// StandardStructElem returns the 7x7 disk structuring element. The
// caller owns the returned Mat.
func StandardStructElem() gocv.Mat {
	return kernelFromPattern(standardElemPattern)
}

// SmallStructElem returns the 6x6 disk structuring element used by the
// postprocessing dilation.
func SmallStructElem() gocv.Mat {
	return kernelFromPattern(smallElemPattern)
}

func kernelFromPattern(pattern [][]uint8) gocv.Mat {
	rows := len(pattern)
	cols := len(pattern[0])

	kernel := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			kernel.SetUCharAt(y, x, pattern[y][x])
		}
	}
	return kernel
}
