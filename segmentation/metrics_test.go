package segmentation_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatis-myriad/camus-hands-on/segmentation"
)

// mapOf builds a label map from literal rows. Every row must have the same
// length.
func mapOf(t *testing.T, rows ...[]int) segmentation.LabelMap {
	t.Helper()
	require.NotEmpty(t, rows)
	m := segmentation.NewLabelMap(len(rows), len(rows[0]))
	for y, row := range rows {
		require.Len(t, row, m.Width, "ragged row in test fixture")
		for x, label := range row {
			m.Set(y, x, label)
		}
	}
	return m
}

// squareMap builds a height x width map that is background except for a
// square of the given label with corners (y0, x0) and (y1, x1) inclusive.
func squareMap(height, width, label, y0, x0, y1, x1 int) segmentation.LabelMap {
	m := segmentation.NewLabelMap(height, width)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			m.Set(y, x, label)
		}
	}
	return m
}

func TestEvaluateSampleMatchingSquare(t *testing.T) {
	// A 2x2 square of class 1 predicted exactly: perfect scores for class 1,
	// classes 2 and 3 are absent on both sides and must be marked undefined.
	ref := squareMap(5, 5, 1, 1, 1, 2, 2)
	pred := squareMap(5, 5, 1, 1, 1, 2, 2)

	result, err := segmentation.EvaluateSample(ref, pred, 4, segmentation.UnitSpacing())
	require.NoError(t, err)

	class1 := result.Classes[1]
	require.True(t, class1.DiceValid)
	require.True(t, class1.SurfaceValid)
	assert.Equal(t, 1.0, class1.Dice, "exact match should give Dice 1")
	assert.Equal(t, 0.0, class1.Hausdorff, "exact match should give Hausdorff 0")
	assert.Equal(t, 0.0, class1.ASSD, "exact match should give ASSD 0")

	for _, class := range []int{2, 3} {
		score := result.Classes[class]
		assert.False(t, score.DiceValid, "class %d is empty on both sides", class)
		assert.False(t, score.SurfaceValid, "class %d is empty on both sides", class)
	}

	assert.Equal(t, 1.0, result.Combined.Dice)
	assert.Equal(t, 0.0, result.Combined.Hausdorff)
}

func TestEvaluateSampleShiftedSquare(t *testing.T) {
	// Prediction shifted one row down: 2 of 4 pixels overlap, so
	// Dice = 2*2/(4+4) = 0.5. Every boundary point is within one pixel of the
	// other boundary, so Hausdorff = 1 and ASSD = 0.5.
	ref := squareMap(5, 5, 1, 1, 1, 2, 2)
	pred := squareMap(5, 5, 1, 2, 1, 3, 2)

	result, err := segmentation.EvaluateSample(ref, pred, 4, segmentation.UnitSpacing())
	require.NoError(t, err)

	class1 := result.Classes[1]
	require.True(t, class1.DiceValid)
	require.True(t, class1.SurfaceValid)
	assert.InDelta(t, 0.5, class1.Dice, 1e-12)
	assert.InDelta(t, 1.0, class1.Hausdorff, 1e-6)
	assert.InDelta(t, 0.5, class1.ASSD, 1e-6)
}

func TestEvaluateSampleSelfComparison(t *testing.T) {
	// Comparing a map against itself must give perfect scores for every
	// class present in it.
	m := mapOf(t,
		[]int{0, 0, 1, 1, 0},
		[]int{0, 2, 1, 1, 0},
		[]int{2, 2, 2, 0, 0},
		[]int{0, 2, 3, 3, 0},
		[]int{0, 0, 3, 0, 0},
	)

	result, err := segmentation.EvaluateSample(m, m, 4, segmentation.UnitSpacing())
	require.NoError(t, err)

	for class := 1; class <= 3; class++ {
		score := result.Classes[class]
		require.True(t, score.DiceValid, "class %d", class)
		require.True(t, score.SurfaceValid, "class %d", class)
		assert.Equal(t, 1.0, score.Dice, "class %d", class)
		assert.Equal(t, 0.0, score.Hausdorff, "class %d", class)
		assert.Equal(t, 0.0, score.ASSD, "class %d", class)
	}
	assert.Equal(t, 1.0, result.Combined.Dice)
}

func TestEvaluateSampleSymmetry(t *testing.T) {
	// All three metrics are symmetric under swapping reference and
	// prediction.
	a := mapOf(t,
		[]int{0, 1, 1, 0, 0},
		[]int{0, 1, 2, 2, 0},
		[]int{0, 0, 2, 2, 0},
		[]int{0, 3, 0, 0, 0},
		[]int{0, 0, 0, 0, 0},
	)
	b := mapOf(t,
		[]int{1, 1, 0, 0, 0},
		[]int{0, 1, 0, 2, 2},
		[]int{0, 0, 2, 2, 0},
		[]int{0, 0, 3, 0, 0},
		[]int{0, 0, 0, 0, 0},
	)

	forward, err := segmentation.EvaluateSample(a, b, 4, segmentation.UnitSpacing())
	require.NoError(t, err)
	backward, err := segmentation.EvaluateSample(b, a, 4, segmentation.UnitSpacing())
	require.NoError(t, err)

	for class := 1; class <= 3; class++ {
		f, g := forward.Classes[class], backward.Classes[class]
		assert.Equal(t, f.DiceValid, g.DiceValid, "class %d", class)
		assert.Equal(t, f.SurfaceValid, g.SurfaceValid, "class %d", class)
		assert.InDelta(t, f.Dice, g.Dice, 1e-12, "class %d", class)
		assert.InDelta(t, f.Hausdorff, g.Hausdorff, 1e-6, "class %d", class)
		assert.InDelta(t, f.ASSD, g.ASSD, 1e-6, "class %d", class)
	}
	assert.InDelta(t, forward.Combined.Dice, backward.Combined.Dice, 1e-12)
	assert.InDelta(t, forward.Combined.Hausdorff, backward.Combined.Hausdorff, 1e-6)
	assert.InDelta(t, forward.Combined.ASSD, backward.Combined.ASSD, 1e-6)
}

func TestEvaluateSampleTotalMiss(t *testing.T) {
	// The structure exists in the reference but the prediction missed it
	// entirely: Dice is well defined and equals 0, the surface metrics are
	// undefined because the predicted boundary is empty.
	ref := squareMap(5, 5, 1, 1, 1, 2, 2)
	pred := segmentation.NewLabelMap(5, 5)

	result, err := segmentation.EvaluateSample(ref, pred, 2, segmentation.UnitSpacing())
	require.NoError(t, err)

	class1 := result.Classes[1]
	require.True(t, class1.DiceValid, "Dice is defined for a total miss")
	assert.Equal(t, 0.0, class1.Dice)
	assert.False(t, class1.SurfaceValid, "surface metrics are undefined on an empty mask")
}

func TestEvaluateSampleBothEmpty(t *testing.T) {
	// A structure absent from the reference and correctly predicted absent
	// is undefined for all three metrics. It is flagged, never defaulted.
	ref := segmentation.NewLabelMap(5, 5)
	pred := segmentation.NewLabelMap(5, 5)

	result, err := segmentation.EvaluateSample(ref, pred, 2, segmentation.UnitSpacing())
	require.NoError(t, err)

	class1 := result.Classes[1]
	assert.False(t, class1.DiceValid)
	assert.False(t, class1.SurfaceValid)
	assert.False(t, result.Combined.DiceValid)
	assert.False(t, result.Combined.SurfaceValid)
}

func TestEvaluateSampleDisjointMasks(t *testing.T) {
	// Two single-pixel masks at (0,0) and (3,4): no overlap so Dice is 0,
	// and both distance metrics equal the 3-4-5 Euclidean distance between
	// the two points.
	ref := segmentation.NewLabelMap(6, 6)
	ref.Set(0, 0, 1)
	pred := segmentation.NewLabelMap(6, 6)
	pred.Set(3, 4, 1)

	result, err := segmentation.EvaluateSample(ref, pred, 2, segmentation.UnitSpacing())
	require.NoError(t, err)

	class1 := result.Classes[1]
	require.True(t, class1.DiceValid)
	require.True(t, class1.SurfaceValid)
	assert.Equal(t, 0.0, class1.Dice)
	assert.InDelta(t, 5.0, class1.Hausdorff, 1e-6)
	assert.InDelta(t, 5.0, class1.ASSD, 1e-6)
}

func TestEvaluateSampleCombinedIsUnion(t *testing.T) {
	// Reference and prediction swap the labels of two structures. Each
	// individual class scores Dice 0, but the merged-foreground masks are
	// identical, so the combined Dice is 1. The combined row scores the
	// union, it does not average the per-class rows.
	ref := squareMap(6, 6, 1, 0, 0, 1, 1)
	for y := 4; y <= 5; y++ {
		for x := 4; x <= 5; x++ {
			ref.Set(y, x, 2)
		}
	}
	pred := squareMap(6, 6, 2, 0, 0, 1, 1)
	for y := 4; y <= 5; y++ {
		for x := 4; x <= 5; x++ {
			pred.Set(y, x, 1)
		}
	}

	result, err := segmentation.EvaluateSample(ref, pred, 3, segmentation.UnitSpacing())
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Classes[1].Dice)
	assert.Equal(t, 0.0, result.Classes[2].Dice)
	require.True(t, result.Combined.DiceValid)
	assert.Equal(t, 1.0, result.Combined.Dice)
	assert.Equal(t, 0.0, result.Combined.Hausdorff)
}

func TestEvaluateSampleDiceBounds(t *testing.T) {
	// Dice stays in [0, 1] for arbitrary label patterns.
	seed := uint64(42)
	next := func(n int) int {
		seed = seed*6364136223846793005 + 1442695040888963407
		return int(seed>>33) % n
	}

	for trial := 0; trial < 20; trial++ {
		ref := segmentation.NewLabelMap(8, 8)
		pred := segmentation.NewLabelMap(8, 8)
		for i := range ref.Labels {
			ref.Labels[i] = next(4)
			pred.Labels[i] = next(4)
		}

		result, err := segmentation.EvaluateSample(ref, pred, 4, segmentation.UnitSpacing())
		require.NoError(t, err)
		for class, score := range result.Classes {
			if score.DiceValid {
				assert.GreaterOrEqual(t, score.Dice, 0.0, "trial %d class %d", trial, class)
				assert.LessOrEqual(t, score.Dice, 1.0, "trial %d class %d", trial, class)
			}
		}
	}
}

func TestEvaluateSamplePhysicalSpacing(t *testing.T) {
	// With 2mm row spacing, the one-row shift doubles both distance metrics
	// while Dice, a pure pixel-count ratio, is unchanged.
	ref := squareMap(5, 5, 1, 1, 1, 2, 2)
	pred := squareMap(5, 5, 1, 2, 1, 3, 2)

	result, err := segmentation.EvaluateSample(ref, pred, 2, segmentation.Spacing{Y: 2, X: 1})
	require.NoError(t, err)

	class1 := result.Classes[1]
	assert.InDelta(t, 0.5, class1.Dice, 1e-12)
	assert.InDelta(t, 2.0, class1.Hausdorff, 1e-6)
	assert.InDelta(t, 1.0, class1.ASSD, 1e-6)
}

func TestEvaluateSampleShapeMismatch(t *testing.T) {
	ref := segmentation.NewLabelMap(5, 5)
	pred := segmentation.NewLabelMap(4, 5)

	_, err := segmentation.EvaluateSample(ref, pred, 2, segmentation.UnitSpacing())
	require.Error(t, err)
	assert.True(t, errors.Is(err, segmentation.ErrShapeMismatch))
}

func TestEvaluateSampleInvalidLabel(t *testing.T) {
	ref := segmentation.NewLabelMap(5, 5)
	ref.Set(2, 2, 7)
	pred := segmentation.NewLabelMap(5, 5)

	_, err := segmentation.EvaluateSample(ref, pred, 4, segmentation.UnitSpacing())
	require.Error(t, err)
	assert.True(t, errors.Is(err, segmentation.ErrInvalidLabel))
}

func TestEvaluateSampleClassCountTooSmall(t *testing.T) {
	m := segmentation.NewLabelMap(3, 3)
	_, err := segmentation.EvaluateSample(m, m, 1, segmentation.UnitSpacing())
	require.Error(t, err)
}
