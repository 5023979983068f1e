// Package dataset - Paired ultrasound frame / label mask loading.
//
// A test set is a flat directory of image files where each frame
// "<name>.png" is accompanied by its ground-truth mask "<name>_gt.png". Mask
// pixels store the class index directly (0 background, then one index per
// structure).
package dataset

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/creatis-myriad/camus-hands-on/segmentation"
)

const maskSuffix = "_gt"

// Options controls how a test set is loaded.
type Options struct {
	// ImageSize is the square resolution frames and masks are resized to.
	ImageSize int `json:"image_size"  yaml:"image_size"`
	// ClassCount is the number of classes including background; every mask
	// label is validated against it at load time.
	ClassCount int `json:"class_count" yaml:"class_count"`
}

// Set is a fully loaded, in-memory test set.
type Set struct {
	// Names are the sample base names, sorted, aligned with the batch order.
	Names []string
	// Images is the frame batch, shape (samples, size, size, 1), float32 in [0, 1].
	Images *tensor.Dense
	// Labels are the ground-truth label maps, one per sample.
	Labels segmentation.LabeledVolume
	// OneHot is the ground truth as a one-hot probability volume,
	// shape (samples, size, size, classes).
	OneHot *tensor.Dense
}

// Len returns the number of samples in the set.
func (s *Set) Len() int {
	return len(s.Names)
}

// Load reads every frame/mask pair under dir, resizes both to the target
// square resolution, and assembles the evaluation batch. Frames are resized
// with Lanczos3; masks with nearest-neighbor, since interpolating class
// labels would invent values that belong to no class.
//
// Arguments:
//   - dir: Directory containing the paired files.
//   - opts: Target resolution and class count.
//
// Returns:
//   - *Set: The loaded test set.
//   - error: When the directory is unreadable, a frame has no mask, an image
//     fails to decode, or a mask label falls outside [0, ClassCount).
func Load(dir string, opts Options) (*Set, error) {
	if opts.ImageSize <= 0 {
		return nil, errors.Errorf("image size must be positive, got %d", opts.ImageSize)
	}
	if opts.ClassCount < 2 {
		return nil, errors.Errorf("class count must be at least 2, got %d", opts.ClassCount)
	}

	pairs, err := discoverPairs(dir)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, errors.Errorf("no frame/mask pairs found in %s", dir)
	}

	size := opts.ImageSize
	names := make([]string, 0, len(pairs))
	imageData := make([]float32, 0, len(pairs)*size*size)
	oneHotData := make([]float32, len(pairs)*size*size*opts.ClassCount)
	labels := make(segmentation.LabeledVolume, 0, len(pairs))

	for i, sample := range pairs {
		frame, err := decodeImage(sample.framePath)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %s", sample.name)
		}
		mask, err := decodeImage(sample.maskPath)
		if err != nil {
			return nil, errors.Wrapf(err, "mask %s", sample.name)
		}

		frame = resize.Resize(uint(size), uint(size), frame, resize.Lanczos3)
		mask = resize.Resize(uint(size), uint(size), mask, resize.NearestNeighbor)

		imageData = append(imageData, frameToGray(frame, size)...)

		labelMap, err := maskToLabels(mask, size, opts.ClassCount)
		if err != nil {
			return nil, errors.Wrapf(err, "mask %s", sample.name)
		}
		labels = append(labels, labelMap)

		base := i * size * size * opts.ClassCount
		for p, label := range labelMap.Labels {
			oneHotData[base+p*opts.ClassCount+label] = 1
		}
		names = append(names, sample.name)
	}

	return &Set{
		Names: names,
		Images: tensor.New(
			tensor.WithShape(len(pairs), size, size, 1),
			tensor.WithBacking(imageData),
		),
		Labels: labels,
		OneHot: tensor.New(
			tensor.WithShape(len(pairs), size, size, opts.ClassCount),
			tensor.WithBacking(oneHotData),
		),
	}, nil
}

type pair struct {
	name      string
	framePath string
	maskPath  string
}

// discoverPairs scans a directory for frames and their masks, sorted by name
// so batch order is deterministic across runs.
func discoverPairs(dir string) ([]pair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading test set directory %s", dir)
	}

	masks := make(map[string]string)
	var frames []pair
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		full := filepath.Join(dir, entry.Name())
		if strings.HasSuffix(base, maskSuffix) {
			masks[strings.TrimSuffix(base, maskSuffix)] = full
		} else {
			frames = append(frames, pair{name: base, framePath: full})
		}
	}

	for i := range frames {
		maskPath, ok := masks[frames[i].name]
		if !ok {
			return nil, errors.Errorf("frame %s has no %s mask", frames[i].name, maskSuffix)
		}
		frames[i].maskPath = maskPath
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].name < frames[j].name
	})
	return frames, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening image")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	return img, nil
}

// frameToGray flattens a frame to single-channel float32 in [0, 1] using the
// usual luminance weights.
func frameToGray(img image.Image, size int) []float32 {
	bounds := img.Bounds()
	out := make([]float32, size*size)
	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			gray := 0.299*float32(r>>8) + 0.587*float32(g>>8) + 0.114*float32(b>>8)
			out[i] = gray / 255.0
			i++
		}
	}
	return out
}

// maskToLabels reads class indices out of a mask image, validating the range.
func maskToLabels(img image.Image, size, classCount int) (segmentation.LabelMap, error) {
	bounds := img.Bounds()
	m := segmentation.NewLabelMap(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			label := int(r >> 8)
			if label >= classCount {
				return segmentation.LabelMap{}, errors.Wrapf(segmentation.ErrInvalidLabel,
					"pixel (%d,%d) has value %d, class count %d", y, x, label, classCount)
			}
			m.Set(y, x, label)
		}
	}
	return m, nil
}
