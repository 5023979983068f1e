package segmentation

import "github.com/chewxy/math32"

// Spacing is the physical size of one pixel along each axis. Distances scale
// by it, so Hausdorff and ASSD come out in physical units (e.g. millimeters)
// when the caller supplies the acquisition spacing.
type Spacing struct {
	// Y is the physical extent of a pixel along the row axis.
	Y float32 `json:"y" yaml:"y"`
	// X is the physical extent of a pixel along the column axis.
	X float32 `json:"x" yaml:"x"`
}

// UnitSpacing returns isotropic unit spacing, the default when no physical
// calibration is known.
func UnitSpacing() Spacing {
	return Spacing{Y: 1, X: 1}
}

func (s Spacing) valid() bool {
	return s.Y > 0 && s.X > 0
}

// directedDistances computes, for every point of a, the Euclidean distance to
// its nearest neighbor in b, returning the maximum and the mean of those
// distances. Both point sets must be non-empty.
func directedDistances(a, b []boundaryPoint, spacing Spacing) (max, mean float64) {
	var sum float64
	for _, p := range a {
		nearest := float32(math32.MaxFloat32)
		for _, q := range b {
			dy := float32(p.y-q.y) * spacing.Y
			dx := float32(p.x-q.x) * spacing.X
			if d := math32.Hypot(dy, dx); d < nearest {
				nearest = d
				if nearest == 0 {
					break
				}
			}
		}
		if d := float64(nearest); d > max {
			max = d
		}
		sum += float64(nearest)
	}
	return max, sum / float64(len(a))
}

// surfaceDistances computes the symmetric Hausdorff distance and the average
// symmetric surface distance between two non-empty boundary point sets.
// Hausdorff takes the greater of the two directed maxima; ASSD averages the
// two directed means.
func surfaceDistances(a, b []boundaryPoint, spacing Spacing) (hausdorff, assd float64) {
	maxAB, meanAB := directedDistances(a, b, spacing)
	maxBA, meanBA := directedDistances(b, a, spacing)
	hausdorff = maxAB
	if maxBA > hausdorff {
		hausdorff = maxBA
	}
	assd = (meanAB + meanBA) / 2
	return hausdorff, assd
}
