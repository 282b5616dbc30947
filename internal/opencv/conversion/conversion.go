// Package conversion bridges Go images and OpenCV Mats for the tile
// pipeline. Tiles are kept in RGBA channel order (channel 3 is the
// validity mask), unlike OpenCV's default BGR convention.
package conversion

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"cellseg/internal/opencv/safe"
)

// TileToMat converts a decoded tile image to an 8-bit RGBA Mat.
// Images without an alpha channel get a fully opaque validity mask.
func TileToMat(img image.Image) (*safe.Mat, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if err := safe.ValidateDimensions(width, height, "tile conversion"); err != nil {
		return nil, err
	}

	mat, err := safe.NewMat(height, width, gocv.MatTypeCV8UC4)
	if err != nil {
		return nil, err
	}

	switch typed := img.(type) {
	case *image.RGBA:
		err = rgbaToMat(typed, mat, width, height)
	case *image.NRGBA:
		err = nrgbaToMat(typed, mat, width, height)
	default:
		err = genericToMat(img, mat, width, height)
	}
	if err != nil {
		mat.Close()
		return nil, err
	}

	return mat, nil
}

// MaskToImage converts a single-channel binary mask to a grayscale image.
func MaskToImage(src *safe.Mat) (*image.Gray, error) {
	if err := safe.ValidateMatForOperation(src, "mask to image conversion"); err != nil {
		return nil, err
	}

	if src.Channels() != 1 {
		return nil, fmt.Errorf("mask must be single-channel, got %d channels", src.Channels())
	}

	rows := src.Rows()
	cols := src.Cols()
	img := image.NewGray(image.Rect(0, 0, cols, rows))

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			value, err := src.GetUCharAt(y, x)
			if err != nil {
				return nil, fmt.Errorf("pixel access failed at (%d,%d): %w", x, y, err)
			}
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}

	return img, nil
}

func rgbaToMat(img *image.RGBA, mat *safe.Mat, width, height int) error {
	bounds := img.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixel := img.RGBAAt(x+bounds.Min.X, y+bounds.Min.Y)
			if err := setRGBA(mat, y, x, pixel.R, pixel.G, pixel.B, pixel.A); err != nil {
				return err
			}
		}
	}
	return nil
}

func nrgbaToMat(img *image.NRGBA, mat *safe.Mat, width, height int) error {
	bounds := img.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixel := img.NRGBAAt(x+bounds.Min.X, y+bounds.Min.Y)
			if err := setRGBA(mat, y, x, pixel.R, pixel.G, pixel.B, pixel.A); err != nil {
				return err
			}
		}
	}
	return nil
}

func genericToMat(img image.Image, mat *safe.Mat, width, height int) error {
	bounds := img.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			if err := setRGBA(mat, y, x, uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8)); err != nil {
				return err
			}
		}
	}
	return nil
}

func setRGBA(mat *safe.Mat, row, col int, r, g, b, a uint8) error {
	if err := mat.SetUCharAt3(row, col, 0, r); err != nil {
		return fmt.Errorf("R channel setting failed at (%d,%d): %w", col, row, err)
	}
	if err := mat.SetUCharAt3(row, col, 1, g); err != nil {
		return fmt.Errorf("G channel setting failed at (%d,%d): %w", col, row, err)
	}
	if err := mat.SetUCharAt3(row, col, 2, b); err != nil {
		return fmt.Errorf("B channel setting failed at (%d,%d): %w", col, row, err)
	}
	if err := mat.SetUCharAt3(row, col, 3, a); err != nil {
		return fmt.Errorf("A channel setting failed at (%d,%d): %w", col, row, err)
	}
	return nil
}
