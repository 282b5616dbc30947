package segmenter

import (
	"testing"

	"gocv.io/x/gocv"
)

func newMarkerFixture(t *testing.T) (gocv.Mat, gocv.Mat) {
	t.Helper()

	markers := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 40, 40, gocv.MatTypeCV32S)
	t.Cleanup(func() { markers.Close() })

	borders := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 40, 40, gocv.MatTypeCV8UC1)
	t.Cleanup(func() { borders.Close() })

	return markers, borders
}

func TestEncodeMarkersRemapsCollidingLabelBeforeStamping(t *testing.T) {
	markers, borders := newMarkerFixture(t)

	// Seeds: label 42 and the colliding label 255, with 300 seeds total.
	markers.SetIntAt(10, 10, 42)
	markers.SetIntAt(20, 20, 255)
	markers.SetIntAt(21, 20, 255)

	// Border ring pixels away from both seeds.
	borders.SetUCharAt(0, 5, 255)
	borders.SetUCharAt(0, 6, 255)

	encodeMarkers(&markers, borders, 300)

	if v := markers.GetIntAt(20, 20); v != 301 {
		t.Errorf("colliding label = %d, want remap to 301 (seed count + 1)", v)
	}
	if v := markers.GetIntAt(21, 20); v != 301 {
		t.Errorf("colliding label = %d, want remap to 301 (seed count + 1)", v)
	}
	if v := markers.GetIntAt(10, 10); v != 42 {
		t.Errorf("unrelated label = %d, want 42 untouched", v)
	}
	if v := markers.GetIntAt(0, 5); v != borderLabel {
		t.Errorf("border pixel = %d, want sentinel %d", v, borderLabel)
	}

	// No pixel carrying a real label may equal the sentinel.
	for y := 0; y < markers.Rows(); y++ {
		for x := 0; x < markers.Cols(); x++ {
			if markers.GetIntAt(y, x) == borderLabel && borders.GetUCharAt(y, x) != 255 {
				t.Fatalf("non-border pixel (%d,%d) carries the border sentinel", x, y)
			}
		}
	}
}

func TestEncodeMarkersSmallLabelCountLeavesLabelsAlone(t *testing.T) {
	markers, borders := newMarkerFixture(t)

	markers.SetIntAt(5, 5, 1)
	markers.SetIntAt(15, 15, 7)
	borders.SetUCharAt(30, 30, 255)

	encodeMarkers(&markers, borders, 7)

	if v := markers.GetIntAt(5, 5); v != 1 {
		t.Errorf("label = %d, want 1", v)
	}
	if v := markers.GetIntAt(15, 15); v != 7 {
		t.Errorf("label = %d, want 7", v)
	}
	if v := markers.GetIntAt(30, 30); v != borderLabel {
		t.Errorf("border pixel = %d, want sentinel %d", v, borderLabel)
	}
}

func TestCollapseMarkersMapsClassesToBinary(t *testing.T) {
	markers := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 10, 10, gocv.MatTypeCV32S)
	defer markers.Close()

	markers.SetIntAt(1, 1, -1)         // watershed boundary
	markers.SetIntAt(2, 2, 0)          // background
	markers.SetIntAt(3, 3, borderLabel) // border sentinel
	markers.SetIntAt(4, 4, 3)          // real label
	markers.SetIntAt(5, 5, 301)        // remapped label

	mask := collapseMarkers(markers)
	defer mask.Close()

	cases := []struct {
		y, x int
		want uint8
	}{
		{1, 1, 0},
		{2, 2, 0},
		{3, 3, 0},
		{4, 4, 255},
		{5, 5, 255},
	}
	for _, tc := range cases {
		if got := mask.GetUCharAt(tc.y, tc.x); got != tc.want {
			t.Errorf("mask[%d][%d] = %d, want %d", tc.y, tc.x, got, tc.want)
		}
	}
}

func TestBuildBordersRingIsOutsideForeground(t *testing.T) {
	s := newTestAggregate(t)

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 60, 60, gocv.MatTypeCV8UC1)
	defer mask.Close()
	for y := 20; y < 40; y++ {
		for x := 20; x < 40; x++ {
			mask.SetUCharAt(y, x, 255)
		}
	}

	borders := s.buildBorders(mask)
	defer borders.Close()

	if gocv.CountNonZero(borders) == 0 {
		t.Fatal("border ring is empty")
	}

	// The ring must not overlap the foreground.
	overlap := gocv.NewMat()
	defer overlap.Close()
	gocv.BitwiseAnd(borders, mask, &overlap)
	if n := gocv.CountNonZero(overlap); n != 0 {
		t.Errorf("border ring overlaps foreground on %d pixels, want 0", n)
	}
}
