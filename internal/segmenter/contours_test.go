package segmenter

import (
	"testing"

	"gocv.io/x/gocv"
)

// newMaskWithHole builds a filled rectangle with a small square hole.
func newMaskWithHole(t *testing.T) gocv.Mat {
	t.Helper()

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 100, 100, gocv.MatTypeCV8UC1)
	t.Cleanup(func() { mask.Close() })

	for y := 20; y < 80; y++ {
		for x := 20; x < 80; x++ {
			mask.SetUCharAt(y, x, 255)
		}
	}
	for y := 45; y < 55; y++ {
		for x := 45; x < 55; x++ {
			mask.SetUCharAt(y, x, 0)
		}
	}
	return mask
}

func masksEqual(t *testing.T, a, b gocv.Mat) bool {
	t.Helper()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Compare(a, b, &diff, gocv.CompareNE)
	return gocv.CountNonZero(diff) == 0
}

func TestCleanHolesFillsSmallHole(t *testing.T) {
	mask := newMaskWithHole(t)

	found, err := cleanHoles(&mask, 4000, 0.8)
	if err != nil {
		t.Fatalf("cleanHoles failed: %v", err)
	}
	if !found {
		t.Fatal("cleanHoles reported no contours on a non-empty mask")
	}

	// The 10x10 hole (hull area 100 < 4000/10) must be filled.
	if v := mask.GetUCharAt(50, 50); v != 255 {
		t.Errorf("hole center = %d after cleaning, want 255", v)
	}
}

func TestCleanHolesIsIdempotent(t *testing.T) {
	mask := newMaskWithHole(t)

	if _, err := cleanHoles(&mask, 4000, 0.8); err != nil {
		t.Fatalf("first cleanHoles failed: %v", err)
	}

	once := mask.Clone()
	defer once.Close()

	if _, err := cleanHoles(&mask, 4000, 0.8); err != nil {
		t.Fatalf("second cleanHoles failed: %v", err)
	}

	if !masksEqual(t, once, mask) {
		t.Error("second cleaning pass changed the mask, want idempotent filling")
	}
}

func TestCleanHolesKeepsLargeHole(t *testing.T) {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 200, 200, gocv.MatTypeCV8UC1)
	defer mask.Close()

	for y := 10; y < 190; y++ {
		for x := 10; x < 190; x++ {
			mask.SetUCharAt(y, x, 255)
		}
	}
	// A 100x100 hole: hull area 10000 is above both fill thresholds for
	// cellMaxArea 4000, and a square is not circular enough either.
	for y := 50; y < 150; y++ {
		for x := 50; x < 150; x++ {
			mask.SetUCharAt(y, x, 0)
		}
	}

	if _, err := cleanHoles(&mask, 4000, 0.8); err != nil {
		t.Fatalf("cleanHoles failed: %v", err)
	}

	if v := mask.GetUCharAt(100, 100); v != 0 {
		t.Errorf("large hole center = %d after cleaning, want 0 (kept as background)", v)
	}
}

func TestCleanHolesReportsNoContours(t *testing.T) {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 50, 50, gocv.MatTypeCV8UC1)
	defer mask.Close()

	found, err := cleanHoles(&mask, 4000, 0.8)
	if err != nil {
		t.Fatalf("cleanHoles failed: %v", err)
	}
	if found {
		t.Error("cleanHoles reported contours on an empty mask")
	}
}
