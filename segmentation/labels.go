// Package segmentation - Multi-class segmentation quality metrics.
//
// The package evaluates predicted label maps against ground truth and reports
// Dice, Hausdorff distance, and average symmetric surface distance (ASSD) per
// class, per sample, and aggregated over a test set.
package segmentation

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// LabelMap is a single 2D segmentation mask with one integer class label per
// pixel, stored row-major.
type LabelMap struct {
	// Height is the number of rows.
	Height int
	// Width is the number of columns.
	Width int
	// Labels holds Height*Width class indices, row-major.
	Labels []int
}

// NewLabelMap allocates a zero-filled (all background) label map.
func NewLabelMap(height, width int) LabelMap {
	return LabelMap{
		Height: height,
		Width:  width,
		Labels: make([]int, height*width),
	}
}

// At returns the class label at row y, column x. No bounds checking beyond
// the underlying slice.
func (m LabelMap) At(y, x int) int {
	return m.Labels[y*m.Width+x]
}

// Set assigns the class label at row y, column x.
func (m *LabelMap) Set(y, x, label int) {
	m.Labels[y*m.Width+x] = label
}

// sameShape reports whether two label maps share spatial dimensions.
func (m LabelMap) sameShape(o LabelMap) bool {
	return m.Height == o.Height && m.Width == o.Width
}

// LabeledVolume is a stack of label maps, one per sample. All samples in a
// volume are expected to share spatial dimensions; Evaluator verifies this.
type LabeledVolume []LabelMap

// ArgmaxLabels resolves a probability volume into a labeled volume by taking,
// per pixel, the class index with the maximum value. Ties break toward the
// lowest class index, the same rule a one-hot ground-truth encoding resolves
// under, so reference and prediction are always resolved consistently.
//
// Arguments:
//   - probs: A dense float32 or float64 tensor of shape (samples, height, width, classes).
//
// Returns:
//   - LabeledVolume: One label map per sample.
//   - error: ErrClassCount when the class dimension is smaller than 2, or a
//     shape/dtype error for malformed input.
func ArgmaxLabels(probs *tensor.Dense) (LabeledVolume, error) {
	shape := probs.Shape()
	if len(shape) != 4 {
		return nil, errors.Errorf("expected a 4D (samples, height, width, classes) tensor, got shape %v", shape)
	}
	samples, height, width, classes := shape[0], shape[1], shape[2], shape[3]
	if classes < 2 {
		return nil, errors.Wrapf(ErrClassCount, "probability volume has %d classes, need at least 2", classes)
	}

	var at func(i int) float64
	switch data := probs.Data().(type) {
	case []float32:
		at = func(i int) float64 { return float64(data[i]) }
	case []float64:
		at = func(i int) float64 { return data[i] }
	default:
		return nil, errors.Errorf("unsupported probability dtype %v", probs.Dtype())
	}

	volume := make(LabeledVolume, samples)
	pixels := height * width
	for s := 0; s < samples; s++ {
		m := NewLabelMap(height, width)
		base := s * pixels * classes
		for p := 0; p < pixels; p++ {
			offset := base + p*classes
			best := 0
			bestValue := at(offset)
			for c := 1; c < classes; c++ {
				// Strict inequality keeps the lowest index on ties.
				if v := at(offset + c); v > bestValue {
					best = c
					bestValue = v
				}
			}
			m.Labels[p] = best
		}
		volume[s] = m
	}
	return volume, nil
}
