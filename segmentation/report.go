package segmentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// combinedClass is the internal row key for the merged-foreground mask. It
// deliberately sits outside the valid label range.
const combinedClass = -1

// CombinedClassName is the report row name for the merged-foreground score.
const CombinedClassName = "all classes"

// Metric names accepted by Report.Value.
const (
	MetricDice      = "dice"
	MetricHausdorff = "hausdorff"
	MetricASSD      = "assd"
)

// Row is one aggregated line of a report: the mean of each metric over the
// samples where that metric was defined, plus those sample counts. A mean
// with a zero sample count carries no information and renders as absent.
type Row struct {
	// Class is the display name of the class.
	Class string `json:"class"`
	// MeanDice is the mean Dice over DiceSamples samples.
	MeanDice float64 `json:"mean_dice"`
	// DiceSamples is how many samples had a defined Dice for this class.
	DiceSamples int `json:"dice_samples"`
	// MeanHausdorff is the mean Hausdorff distance over SurfaceSamples samples.
	MeanHausdorff float64 `json:"mean_hausdorff"`
	// MeanASSD is the mean ASSD over SurfaceSamples samples.
	MeanASSD float64 `json:"mean_assd"`
	// SurfaceSamples is how many samples had defined surface metrics.
	SurfaceSamples int `json:"surface_samples"`
}

// Report is the aggregate result of one evaluation run. Rows are ordered
// [all classes, class 1, class 2, ...] to match the conventional
// "overall / structure-by-structure" presentation; the combined row merges
// every non-background class into a single binary mask before scoring, it is
// not an average of the per-class rows. A report is immutable once built.
type Report struct {
	// SampleCount is the number of samples evaluated.
	SampleCount int `json:"sample_count"`
	// Rows holds one aggregated row per reported class.
	Rows []Row `json:"rows"`
}

// Row returns the aggregated row for the given class name.
func (r *Report) Row(class string) (Row, bool) {
	for _, row := range r.Rows {
		if row.Class == class {
			return row, true
		}
	}
	return Row{}, false
}

// Value looks a single aggregate up by class name and metric name, the plain
// numeric-table access the reporting layer consumes.
//
// Arguments:
//   - class: A class name from the evaluator configuration, or CombinedClassName.
//   - metric: One of MetricDice, MetricHausdorff, MetricASSD.
//
// Returns:
//   - float64: The mean of that metric for that class.
//   - error: When the class or metric is unknown, or no sample had the metric defined.
func (r *Report) Value(class, metric string) (float64, error) {
	row, ok := r.Row(class)
	if !ok {
		return 0, errors.Errorf("no report row for class %q", class)
	}
	switch metric {
	case MetricDice:
		if row.DiceSamples == 0 {
			return 0, errors.Errorf("dice undefined for class %q: no valid samples", class)
		}
		return row.MeanDice, nil
	case MetricHausdorff:
		if row.SurfaceSamples == 0 {
			return 0, errors.Errorf("hausdorff undefined for class %q: no valid samples", class)
		}
		return row.MeanHausdorff, nil
	case MetricASSD:
		if row.SurfaceSamples == 0 {
			return 0, errors.Errorf("assd undefined for class %q: no valid samples", class)
		}
		return row.MeanASSD, nil
	default:
		return 0, errors.Errorf("unknown metric %q", metric)
	}
}

// WriteJSON serializes the report.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "encoding report")
	}
	return nil
}

// String renders the report as a fixed-width text table. Metrics with no
// valid samples render as "-".
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %10s %8s %12s %10s %8s\n",
		"class", "dice", "n", "hausdorff", "assd", "n")
	for _, row := range r.Rows {
		dice := "-"
		if row.DiceSamples > 0 {
			dice = fmt.Sprintf("%.4f", row.MeanDice)
		}
		hausdorff, assd := "-", "-"
		if row.SurfaceSamples > 0 {
			hausdorff = fmt.Sprintf("%.4f", row.MeanHausdorff)
			assd = fmt.Sprintf("%.4f", row.MeanASSD)
		}
		fmt.Fprintf(&b, "%-16s %10s %8d %12s %10s %8d\n",
			row.Class, dice, row.DiceSamples, hausdorff, assd, row.SurfaceSamples)
	}
	return b.String()
}
