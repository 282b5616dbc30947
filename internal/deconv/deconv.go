// Package deconv implements color deconvolution: a fixed 3x3 linear
// stain-unmixing transform applied per pixel in optical-density space.
// The transform is pure and deterministic; one Deconvolver is safely
// shared across concurrent tile workers.
package deconv

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"cellseg/internal/opencv/safe"
)

// StandardKernel returns the standard stain deconvolution kernel for the
// reference staining protocol. Rows are un-normalized stain vectors.
func StandardKernel() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		56.24850493, 71.98403122, 22.07749587,
		48.09104103, 62.02717516, 37.36866958,
		9.17867488, 10.89206473, 5.99225756,
	})
}

// Deconvolver holds the inverted, row-normalized stain matrix.
type Deconvolver struct {
	// unmix[i][j] maps optical density of input channel i onto stain
	// channel j; cached from the gonum inverse for per-pixel speed.
	unmix [3][3]float64
}

// New builds a Deconvolver from a 3x3 stain kernel. Rows are normalized
// to unit length before inversion; a singular kernel is rejected.
func New(kernel *mat.Dense) (*Deconvolver, error) {
	rows, cols := kernel.Dims()
	if rows != 3 || cols != 3 {
		return nil, fmt.Errorf("stain kernel must be 3x3, got %dx%d", rows, cols)
	}

	normalized := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		row := mat.Row(nil, i, kernel)
		norm := math.Hypot(math.Hypot(row[0], row[1]), row[2])
		if norm == 0 {
			return nil, fmt.Errorf("stain kernel row %d is zero", i)
		}
		for j := 0; j < 3; j++ {
			normalized.Set(i, j, row[j]/norm)
		}
	}

	var inverse mat.Dense
	if err := inverse.Inverse(normalized); err != nil {
		return nil, fmt.Errorf("stain kernel is singular: %w", err)
	}

	d := &Deconvolver{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d.unmix[i][j] = inverse.At(i, j)
		}
	}

	return d, nil
}

// NewStandard builds a Deconvolver with the standard kernel.
func NewStandard() *Deconvolver {
	d, err := New(StandardKernel())
	if err != nil {
		// The standard kernel is a fixed non-singular constant.
		panic(err)
	}
	return d
}

// NewFromRows builds a Deconvolver from a row-major 3x3 matrix, e.g. a
// config file override. Empty input selects the standard kernel.
func NewFromRows(rows [][]float64) (*Deconvolver, error) {
	if len(rows) == 0 {
		return NewStandard(), nil
	}
	if len(rows) != 3 {
		return nil, fmt.Errorf("stain matrix must have 3 rows, got %d", len(rows))
	}

	flat := make([]float64, 0, 9)
	for i, row := range rows {
		if len(row) != 3 {
			return nil, fmt.Errorf("stain matrix row %d must have 3 entries, got %d", i, len(row))
		}
		flat = append(flat, row...)
	}

	return New(mat.NewDense(3, 3, flat))
}

// Transform applies the stain unmixing to a 3-channel 8-bit image and
// returns a new image of the same dimensions. Same-size, pure, no side
// effects on src.
func (d *Deconvolver) Transform(src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "color deconvolution"); err != nil {
		return nil, err
	}

	dstMat, err := d.TransformMat(src.GetMat())
	if err != nil {
		return nil, err
	}

	return safe.Adopt(dstMat)
}

// TransformMat is the gocv-level transform used inside pipeline stages.
// The returned Mat is owned by the caller.
func (d *Deconvolver) TransformMat(src gocv.Mat) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.Mat{}, fmt.Errorf("deconvolution input is empty")
	}
	if src.Channels() != 3 {
		return gocv.Mat{}, fmt.Errorf("deconvolution requires 3 channels, got %d", src.Channels())
	}

	rows := src.Rows()
	cols := src.Cols()
	dst := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)

	var od [3]float64
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			for c := 0; c < 3; c++ {
				v := float64(src.GetUCharAt3(y, x, c))
				od[c] = -math.Log((v + 1.0) / 256.0)
			}
			for c := 0; c < 3; c++ {
				conc := od[0]*d.unmix[0][c] + od[1]*d.unmix[1][c] + od[2]*d.unmix[2][c]
				dst.SetUCharAt3(y, x, c, clampByte(math.Exp(-conc)*255.0))
			}
		}
	}

	return dst, nil
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
