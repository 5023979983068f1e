package segmentation

import "github.com/pkg/errors"

// ClassScore holds the three quality metrics for one class of one sample.
//
// Dice is defined whenever at least one of the two masks has foreground
// pixels. The surface metrics need a boundary on both sides, so they are only
// defined when both masks are non-empty. When both masks are empty (the
// structure is genuinely absent and correctly predicted absent) all three
// metrics are undefined and excluded from aggregation; the score is never
// silently defaulted.
type ClassScore struct {
	// Dice is the overlap ratio 2|A∩B| / (|A|+|B|), in [0, 1].
	Dice float64 `json:"dice"`
	// DiceValid reports whether Dice is defined for this sample.
	DiceValid bool `json:"dice_valid"`
	// Hausdorff is the symmetric Hausdorff distance between the mask boundaries.
	Hausdorff float64 `json:"hausdorff"`
	// ASSD is the average symmetric surface distance between the mask boundaries.
	ASSD float64 `json:"assd"`
	// SurfaceValid reports whether Hausdorff and ASSD are defined for this sample.
	SurfaceValid bool `json:"surface_valid"`
}

// SampleResult maps class indices to their scores for one sample. Background
// (class 0) is never scored individually; Combined scores the union of all
// non-background classes as a single binary mask.
type SampleResult struct {
	// Combined scores all foreground classes merged into one mask.
	Combined ClassScore
	// Classes holds one score per foreground class index, 1..classCount-1.
	Classes map[int]ClassScore
}

// EvaluateSample scores a predicted label map against its reference. It is a
// pure function over its inputs.
//
// Arguments:
//   - ref: The ground-truth label map.
//   - pred: The predicted label map, same shape as ref.
//   - classCount: Number of classes including background; at least 2. Any
//     label outside [0, classCount) on either map is a data-integrity error.
//   - spacing: Physical pixel spacing for the distance metrics.
//
// Returns:
//   - SampleResult: Scores for every foreground class plus the combined mask.
//   - error: ErrShapeMismatch, ErrInvalidLabel, or a configuration error.
func EvaluateSample(ref, pred LabelMap, classCount int, spacing Spacing) (SampleResult, error) {
	if !ref.sameShape(pred) {
		return SampleResult{}, errors.Wrapf(ErrShapeMismatch,
			"reference %dx%d, prediction %dx%d", ref.Height, ref.Width, pred.Height, pred.Width)
	}
	if classCount < 2 {
		return SampleResult{}, errors.Errorf("class count must be at least 2 (background plus one structure), got %d", classCount)
	}
	if !spacing.valid() {
		return SampleResult{}, errors.Errorf("pixel spacing must be positive, got y=%g x=%g", spacing.Y, spacing.X)
	}

	// One pass over both maps: range-check every label and tally per-class
	// pixel counts plus intersections. The combined-foreground intersection
	// counts pixels that are foreground on both sides regardless of which
	// structure they belong to.
	refCounts := make([]int, classCount)
	predCounts := make([]int, classCount)
	interCounts := make([]int, classCount)
	combinedInter := 0
	for i := range ref.Labels {
		r, p := ref.Labels[i], pred.Labels[i]
		if r < 0 || r >= classCount {
			return SampleResult{}, errors.Wrapf(ErrInvalidLabel, "reference label %d at pixel %d, class count %d", r, i, classCount)
		}
		if p < 0 || p >= classCount {
			return SampleResult{}, errors.Wrapf(ErrInvalidLabel, "predicted label %d at pixel %d, class count %d", p, i, classCount)
		}
		refCounts[r]++
		predCounts[p]++
		if r == p {
			interCounts[r]++
		}
		if r != 0 && p != 0 {
			combinedInter++
		}
	}

	result := SampleResult{Classes: make(map[int]ClassScore, classCount-1)}
	for class := 1; class < classCount; class++ {
		result.Classes[class] = scoreMasks(
			refCounts[class], predCounts[class], interCounts[class],
			func() []bool { return classMask(ref, class) },
			func() []bool { return classMask(pred, class) },
			ref.Height, ref.Width, spacing,
		)
	}

	total := len(ref.Labels)
	result.Combined = scoreMasks(
		total-refCounts[0], total-predCounts[0], combinedInter,
		func() []bool { return foregroundMask(ref) },
		func() []bool { return foregroundMask(pred) },
		ref.Height, ref.Width, spacing,
	)
	return result, nil
}

// scoreMasks computes one ClassScore from precomputed pixel counts, building
// the binary masks lazily since the surface metrics only need them when both
// sides have foreground.
func scoreMasks(refCount, predCount, inter int, refMask, predMask func() []bool, height, width int, spacing Spacing) ClassScore {
	var score ClassScore
	if refCount+predCount > 0 {
		score.Dice = 2 * float64(inter) / float64(refCount+predCount)
		score.DiceValid = true
	}
	if refCount > 0 && predCount > 0 {
		refBoundary := boundary(refMask(), height, width)
		predBoundary := boundary(predMask(), height, width)
		score.Hausdorff, score.ASSD = surfaceDistances(refBoundary, predBoundary, spacing)
		score.SurfaceValid = true
	}
	return score
}
