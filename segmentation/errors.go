package segmentation

import "github.com/pkg/errors"

// Structural errors abort an evaluation outright: a corrupted sample means the
// whole run can no longer be trusted, so no partial result is returned.
// Empty-mask conditions are not errors; they surface as validity flags on the
// per-sample scores instead.
var (
	// ErrShapeMismatch indicates that the reference and prediction disagree in
	// sample count or spatial dimensions.
	ErrShapeMismatch = errors.New("reference and prediction shapes do not match")

	// ErrInvalidLabel indicates a label value outside [0, classCount), which
	// points at upstream data corruption.
	ErrInvalidLabel = errors.New("label value outside configured class range")

	// ErrClassCount indicates that the configured class count does not match
	// the class dimension observed on the input.
	ErrClassCount = errors.New("class count mismatch")
)
