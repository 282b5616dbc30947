package deconv

import (
	"testing"

	"gocv.io/x/gocv"

	"cellseg/internal/opencv/safe"
)

func TestNewFromRowsValidation(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]float64
		wantErr bool
	}{
		{"empty selects standard kernel", nil, false},
		{"valid 3x3", [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, false},
		{"wrong row count", [][]float64{{1, 0, 0}}, true},
		{"wrong column count", [][]float64{{1, 0}, {0, 1}, {0, 0}}, true},
		{"zero row", [][]float64{{0, 0, 0}, {0, 1, 0}, {0, 0, 1}}, true},
		{"singular", [][]float64{{1, 0, 0}, {1, 0, 0}, {0, 0, 1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromRows(tt.rows)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFromRows() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func newColorMat(t *testing.T, r, g, b uint8) *safe.Mat {
	t.Helper()

	m, err := safe.NewMat(10, 10, gocv.MatTypeCV8UC3)
	if err != nil {
		t.Fatalf("failed to create Mat: %v", err)
	}
	t.Cleanup(m.Close)

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			for c, v := range []uint8{r, g, b} {
				if err := m.SetUCharAt3(y, x, c, v); err != nil {
					t.Fatalf("failed to set pixel: %v", err)
				}
			}
		}
	}
	return m
}

func TestTransformPreservesDimensions(t *testing.T) {
	d := NewStandard()
	src := newColorMat(t, 120, 80, 200)

	dst, err := d.Transform(src)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	defer dst.Close()

	if dst.Rows() != src.Rows() || dst.Cols() != src.Cols() || dst.Channels() != 3 {
		t.Errorf("output is %dx%dx%d, want %dx%dx3",
			dst.Cols(), dst.Rows(), dst.Channels(), src.Cols(), src.Rows())
	}
}

func TestTransformWhiteStaysWhite(t *testing.T) {
	// White has zero optical density in every channel, so unmixing must
	// map it back to white.
	d := NewStandard()
	src := newColorMat(t, 255, 255, 255)

	dst, err := d.Transform(src)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	defer dst.Close()

	for c := 0; c < 3; c++ {
		v, err := dst.GetUCharAt3(5, 5, c)
		if err != nil {
			t.Fatalf("failed to read pixel: %v", err)
		}
		if v != 255 {
			t.Errorf("channel %d = %d, want 255", c, v)
		}
	}
}

func TestTransformIsDeterministic(t *testing.T) {
	d := NewStandard()
	src := newColorMat(t, 90, 40, 160)

	first, err := d.Transform(src)
	if err != nil {
		t.Fatalf("first Transform failed: %v", err)
	}
	defer first.Close()

	second, err := d.Transform(src)
	if err != nil {
		t.Fatalf("second Transform failed: %v", err)
	}
	defer second.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Compare(first.GetMat(), second.GetMat(), &diff, gocv.CompareNE)

	channels := gocv.Split(diff)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()
	for c := range channels {
		if n := gocv.CountNonZero(channels[c]); n != 0 {
			t.Errorf("transforms differ on %d pixels in channel %d, want identical output", n, c)
		}
	}
}

func TestTransformRejectsWrongChannelCount(t *testing.T) {
	d := NewStandard()

	gray, err := safe.NewMat(10, 10, gocv.MatTypeCV8UC1)
	if err != nil {
		t.Fatalf("failed to create Mat: %v", err)
	}
	defer gray.Close()

	if _, err := d.Transform(gray); err == nil {
		t.Error("Transform accepted a single-channel image")
	}
}
