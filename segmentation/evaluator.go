package segmentation

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
)

// Config configures an Evaluator. The class count is always explicit and
// validated against the inputs rather than inferred from tensor shapes, and
// the worker budget is a per-evaluator setting instead of process-wide state.
type Config struct {
	// ClassCount is the number of classes including background. At least 2.
	ClassCount int `json:"class_count"  yaml:"class_count"`

	// ClassNames labels the report rows, background first. Optional; missing
	// names fall back to "class N". When present its length must equal
	// ClassCount.
	ClassNames []string `json:"class_names"  yaml:"class_names"`

	// Spacing is the physical pixel spacing used by the distance metrics.
	Spacing Spacing `json:"spacing"      yaml:"spacing"`

	// Workers bounds how many samples are scored concurrently. Values below 1
	// mean sequential evaluation. Per-sample scoring is independent, and the
	// aggregation is an order-insensitive reduction, so the worker count never
	// affects the result.
	Workers int `json:"workers"      yaml:"workers"`
}

// DefaultConfig returns the configuration for the CAMUS echocardiography test
// set: four classes, unit spacing, sequential evaluation.
func DefaultConfig() Config {
	return Config{
		ClassCount: 4,
		ClassNames: []string{"background", "left ventricle", "myocardium", "left atrium"},
		Spacing:    UnitSpacing(),
		Workers:    1,
	}
}

// Evaluator scores predicted segmentation volumes against ground truth and
// aggregates the per-sample scores into a Report. It is stateless apart from
// its configuration and safe for concurrent use.
type Evaluator struct {
	config Config
}

// New creates an Evaluator from the given configuration.
func New(config Config) (*Evaluator, error) {
	if config.ClassCount < 2 {
		return nil, errors.Errorf("class count must be at least 2, got %d", config.ClassCount)
	}
	if len(config.ClassNames) != 0 && len(config.ClassNames) != config.ClassCount {
		return nil, errors.Wrapf(ErrClassCount, "%d class names for %d classes", len(config.ClassNames), config.ClassCount)
	}
	if len(config.ClassNames) == 0 {
		names := make([]string, config.ClassCount)
		names[0] = "background"
		for c := 1; c < config.ClassCount; c++ {
			names[c] = fmt.Sprintf("class %d", c)
		}
		config.ClassNames = names
	}
	if config.Spacing == (Spacing{}) {
		config.Spacing = UnitSpacing()
	}
	if !config.Spacing.valid() {
		return nil, errors.Errorf("pixel spacing must be positive, got y=%g x=%g", config.Spacing.Y, config.Spacing.X)
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Evaluator{config: config}, nil
}

// Config returns the evaluator's effective configuration.
func (e *Evaluator) Config() Config {
	return e.config
}

// EvaluateLabeled scores every sample of pred against ref and aggregates the
// results. Both volumes must have the same sample count and per-sample
// spatial dimensions; any violation, or any out-of-range label, aborts the
// evaluation with no partial result.
//
// Arguments:
//   - ref: Ground-truth labeled volume.
//   - pred: Predicted labeled volume.
//
// Returns:
//   - *Report: Aggregated per-class means with valid-sample counts.
//   - error: ErrShapeMismatch or ErrInvalidLabel on structural problems.
func (e *Evaluator) EvaluateLabeled(ref, pred LabeledVolume) (*Report, error) {
	if len(ref) != len(pred) {
		return nil, errors.Wrapf(ErrShapeMismatch, "reference has %d samples, prediction has %d", len(ref), len(pred))
	}
	if len(ref) == 0 {
		return nil, errors.New("cannot evaluate an empty volume")
	}

	results, err := e.scoreSamples(ref, pred)
	if err != nil {
		return nil, err
	}
	return e.aggregate(results), nil
}

// EvaluateProbabilities resolves both probability volumes to labeled volumes
// via per-pixel argmax and evaluates them. The class dimension of each volume
// must equal the configured class count.
//
// Arguments:
//   - ref: Ground-truth one-hot volume, shape (samples, height, width, classes).
//   - pred: Predicted probability volume, same shape.
//
// Returns:
//   - *Report: Aggregated per-class means with valid-sample counts.
//   - error: ErrClassCount when a class dimension disagrees with the
//     configuration, or any structural error from the labeled evaluation.
func (e *Evaluator) EvaluateProbabilities(ref, pred *tensor.Dense) (*Report, error) {
	refLabels, err := e.resolve(ref, "reference")
	if err != nil {
		return nil, err
	}
	predLabels, err := e.resolve(pred, "prediction")
	if err != nil {
		return nil, err
	}
	return e.EvaluateLabeled(refLabels, predLabels)
}

// resolve converts one probability volume to labels, checking its class
// dimension against the configuration first.
func (e *Evaluator) resolve(probs *tensor.Dense, role string) (LabeledVolume, error) {
	shape := probs.Shape()
	if len(shape) == 4 && shape[3] != e.config.ClassCount {
		return nil, errors.Wrapf(ErrClassCount,
			"%s volume has %d classes, evaluator configured for %d", role, shape[3], e.config.ClassCount)
	}
	labels, err := ArgmaxLabels(probs)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s volume", role)
	}
	return labels, nil
}

// scoreSamples evaluates every sample, fanning out across the configured
// worker budget. Results land in a slice indexed by sample, so completion
// order is irrelevant.
func (e *Evaluator) scoreSamples(ref, pred LabeledVolume) ([]SampleResult, error) {
	results := make([]SampleResult, len(ref))
	sampleErrs := make([]error, len(ref))

	sem := make(chan struct{}, e.config.Workers)
	var wg sync.WaitGroup
	for i := range ref {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := EvaluateSample(ref[idx], pred[idx], e.config.ClassCount, e.config.Spacing)
			if err != nil {
				sampleErrs[idx] = errors.Wrapf(err, "sample %d", idx)
				return
			}
			results[idx] = result
		}(i)
	}
	wg.Wait()

	for _, err := range sampleErrs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// aggregate reduces per-sample scores into the report. For each class only
// samples whose score is valid contribute to the mean, and the contributing
// count is reported alongside so consumers can judge reliability.
func (e *Evaluator) aggregate(results []SampleResult) *Report {
	report := &Report{
		SampleCount: len(results),
		Rows:        make([]Row, 0, e.config.ClassCount),
	}

	pick := func(class int, r SampleResult) ClassScore {
		if class == combinedClass {
			return r.Combined
		}
		return r.Classes[class]
	}

	rowOrder := make([]int, 0, e.config.ClassCount)
	rowOrder = append(rowOrder, combinedClass)
	for c := 1; c < e.config.ClassCount; c++ {
		rowOrder = append(rowOrder, c)
	}

	for _, class := range rowOrder {
		var dice, hausdorff, assd []float64
		for _, r := range results {
			score := pick(class, r)
			if score.DiceValid {
				dice = append(dice, score.Dice)
			}
			if score.SurfaceValid {
				hausdorff = append(hausdorff, score.Hausdorff)
				assd = append(assd, score.ASSD)
			}
		}

		row := Row{
			Class:          e.className(class),
			DiceSamples:    len(dice),
			SurfaceSamples: len(hausdorff),
		}
		if len(dice) > 0 {
			row.MeanDice = stat.Mean(dice, nil)
		}
		if len(hausdorff) > 0 {
			row.MeanHausdorff = stat.Mean(hausdorff, nil)
			row.MeanASSD = stat.Mean(assd, nil)
		}
		report.Rows = append(report.Rows, row)
	}
	return report
}

func (e *Evaluator) className(class int) string {
	if class == combinedClass {
		return CombinedClassName
	}
	return e.config.ClassNames[class]
}
