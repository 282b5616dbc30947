package segmenter

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// cleanHoles reclassifies interior (hole) contours of the binary mask
// as foreground when they look like thresholding artifacts rather than
// true interior structure. It reports false when the mask has no
// contours at all, which segmentation treats as a terminal empty result.
//
// Two independent fill conditions, both evaluated per hole:
//   - convex hull area below maxCellArea/10: small spurious hole;
//   - hull area below maxCellArea/2 with circularity above
//     minCircularity: near-circular inclusion missed by the threshold.
//
// Filling is idempotent; a hull already filled fills to the same mask.
func cleanHoles(binary *gocv.Mat, maxCellArea, minCircularity float64) (bool, error) {
	// FindContours gets its own scratch copy so the fills below cannot
	// disturb the contour walk.
	scratch := binary.Clone()
	defer scratch.Close()

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()

	contours := gocv.FindContoursWithParams(scratch, &hierarchy, gocv.RetrievalCComp, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 || hierarchy.Empty() {
		return false, nil
	}

	for i := 0; i < contours.Size(); i++ {
		// Hierarchy element layout: [next, previous, firstChild, parent].
		// A defined parent marks the contour as a hole.
		relation := hierarchy.GetVeciAt(0, i)
		if len(relation) < 4 || relation[3] < 0 {
			continue
		}

		if err := fillHullIfArtifact(binary, contours.At(i), maxCellArea, minCircularity); err != nil {
			return true, fmt.Errorf("hole contour %d: %w", i, err)
		}
	}

	return true, nil
}

func fillHullIfArtifact(binary *gocv.Mat, contour gocv.PointVector, maxCellArea, minCircularity float64) error {
	if contour.Size() == 0 {
		return nil
	}

	// The convex hull irons out jagged artifacts on the hole boundary
	// before the area/shape heuristics run.
	hullMat := gocv.NewMat()
	defer hullMat.Close()
	gocv.ConvexHull(contour, &hullMat, false, true)

	hullPoints := make([]image.Point, 0, hullMat.Rows())
	for i := 0; i < hullMat.Rows(); i++ {
		pt := hullMat.GetVeciAt(i, 0)
		if len(pt) < 2 {
			return fmt.Errorf("unexpected hull element with %d values", len(pt))
		}
		hullPoints = append(hullPoints, image.Pt(int(pt[0]), int(pt[1])))
	}
	if len(hullPoints) == 0 {
		return nil
	}

	hull := gocv.NewPointVectorFromPoints(hullPoints)
	defer hull.Close()

	area := gocv.ContourArea(hull)
	perimeter := gocv.ArcLength(hull, true)

	// A zero perimeter leaves circularity undefined; the circularity
	// condition then fails, the small-area condition still applies.
	circularity := 0.0
	if perimeter > 0 {
		circularity = 4 * math.Pi * area / (perimeter * perimeter)
	}

	fill := area < maxCellArea/10
	if area < maxCellArea/2 && circularity > minCircularity {
		fill = true
	}
	if !fill {
		return nil
	}

	polys := gocv.NewPointsVector()
	defer polys.Close()
	polys.Append(hull)
	gocv.FillPoly(binary, polys, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	return nil
}
