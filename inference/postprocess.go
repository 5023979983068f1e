package inference

import "github.com/chewxy/math32"

// softmaxClassAxis normalizes logits to probabilities over the class axis of
// a (samples, classes, pixels) layout, in place. The per-pixel maximum is
// subtracted first so large logits cannot overflow the exponential.
func softmaxClassAxis(data []float32, samples, classes, pixels int) {
	for s := 0; s < samples; s++ {
		base := s * classes * pixels
		for p := 0; p < pixels; p++ {
			max := data[base+p]
			for c := 1; c < classes; c++ {
				if v := data[base+c*pixels+p]; v > max {
					max = v
				}
			}
			var sum float32
			for c := 0; c < classes; c++ {
				e := math32.Exp(data[base+c*pixels+p] - max)
				data[base+c*pixels+p] = e
				sum += e
			}
			for c := 0; c < classes; c++ {
				data[base+c*pixels+p] /= sum
			}
		}
	}
}

// chwToHWC reorders a (samples, classes, pixels) batch into the
// (samples, pixels, classes) layout the evaluator consumes, where the class
// values of one pixel are contiguous.
func chwToHWC(data []float32, samples, classes, pixels int) []float32 {
	out := make([]float32, len(data))
	for s := 0; s < samples; s++ {
		base := s * classes * pixels
		for c := 0; c < classes; c++ {
			for p := 0; p < pixels; p++ {
				out[(s*pixels+p)*classes+c] = data[base+c*pixels+p]
			}
		}
	}
	return out
}
