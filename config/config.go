// Package config - Evaluation run configuration.
//
// A run configuration ties together the test-set location, the model, and the
// evaluator settings, loaded from a YAML file with per-field defaults.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/creatis-myriad/camus-hands-on/segmentation"
)

// Config describes one evaluation run.
type Config struct {
	// Data holds the test-set settings.
	Data struct {
		// Dir is the directory of paired frame/mask files.
		Dir string `yaml:"dir"        json:"dir"`
		// ImageSize is the square resolution everything is resized to.
		ImageSize int `yaml:"imageSize"  json:"image_size"`
	} `yaml:"data"    json:"data"`

	// Model holds the segmentation model settings.
	Model struct {
		// Path is the ONNX model file.
		Path string `yaml:"path"           json:"path"`
		// LibraryPath optionally points at the onnxruntime shared library.
		LibraryPath string `yaml:"libraryPath"    json:"library_path,omitempty"`
		// InputName and OutputName are the model tensor names.
		InputName  string `yaml:"inputName"      json:"input_name"`
		OutputName string `yaml:"outputName"     json:"output_name"`
		// ApplySoftmax normalizes logit outputs over the class axis.
		ApplySoftmax bool `yaml:"applySoftmax"   json:"apply_softmax"`
		// IntraOpThreads bounds onnxruntime's per-operator threads.
		IntraOpThreads int `yaml:"intraOpThreads" json:"intra_op_threads"`
	} `yaml:"model"   json:"model"`

	// Classes names every class, background first; its length is the class
	// count used everywhere.
	Classes []string `yaml:"classes" json:"classes"`

	// Spacing is the physical pixel spacing for the distance metrics.
	Spacing segmentation.Spacing `yaml:"spacing" json:"spacing"`

	// Workers bounds concurrent per-sample scoring.
	Workers int `yaml:"workers" json:"workers"`

	// OutputPath optionally receives the report as JSON.
	OutputPath string `yaml:"outputPath" json:"output_path,omitempty"`
}

// Default returns the configuration for the CAMUS four-structure test set.
func Default() *Config {
	cfg := &Config{}
	cfg.Data.ImageSize = 256
	cfg.Model.InputName = "input"
	cfg.Model.OutputName = "output"
	cfg.Classes = []string{"background", "left ventricle", "myocardium", "left atrium"}
	cfg.Spacing = segmentation.UnitSpacing()
	cfg.Workers = 1
	return cfg
}

// Load reads a YAML run configuration, applying defaults for omitted fields.
//
// Arguments:
//   - path: The YAML file to read.
//
// Returns:
//   - *Config: The merged configuration.
//   - error: On read, parse, or validation failure.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no run could work with.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return errors.New("data.dir is required")
	}
	if c.Data.ImageSize <= 0 {
		return errors.Errorf("data.imageSize must be positive, got %d", c.Data.ImageSize)
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if len(c.Classes) < 2 {
		return errors.Errorf("at least 2 classes are required (background plus one structure), got %d", len(c.Classes))
	}
	if c.Spacing.Y <= 0 || c.Spacing.X <= 0 {
		return errors.Errorf("spacing must be positive, got y=%g x=%g", c.Spacing.Y, c.Spacing.X)
	}
	return nil
}

// ClassCount is the number of classes including background.
func (c *Config) ClassCount() int {
	return len(c.Classes)
}
