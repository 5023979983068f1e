// Command camus-eval scores a segmentation model against a held-out
// echocardiography test set and prints per-structure Dice, Hausdorff
// distance, and ASSD.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/creatis-myriad/camus-hands-on/config"
	"github.com/creatis-myriad/camus-hands-on/dataset"
	"github.com/creatis-myriad/camus-hands-on/inference"
	"github.com/creatis-myriad/camus-hands-on/segmentation"
)

func main() {
	var (
		configPath string
		dataDir    string
		modelPath  string
		outputPath string
		workers    int
	)
	flag.StringVar(&configPath, "config", "camus-eval.yaml", "Path to the run configuration YAML")
	flag.StringVar(&dataDir, "data", "", "Override the test set directory")
	flag.StringVar(&modelPath, "model", "", "Override the ONNX model path")
	flag.StringVar(&outputPath, "output", "", "Override the JSON report path")
	flag.IntVar(&workers, "workers", 0, "Override the evaluation worker count")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}
	if outputPath != "" {
		cfg.OutputPath = outputPath
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	set, err := dataset.Load(cfg.Data.Dir, dataset.Options{
		ImageSize:  cfg.Data.ImageSize,
		ClassCount: cfg.ClassCount(),
	})
	if err != nil {
		log.Fatalf("loading test set: %v", err)
	}
	fmt.Printf("Loaded %d samples from %s at %dx%d\n",
		set.Len(), cfg.Data.Dir, cfg.Data.ImageSize, cfg.Data.ImageSize)

	session, err := inference.NewSession(inference.Config{
		ModelPath:      cfg.Model.Path,
		LibraryPath:    cfg.Model.LibraryPath,
		InputName:      cfg.Model.InputName,
		OutputName:     cfg.Model.OutputName,
		ClassCount:     cfg.ClassCount(),
		ApplySoftmax:   cfg.Model.ApplySoftmax,
		IntraOpThreads: cfg.Model.IntraOpThreads,
	})
	if err != nil {
		log.Fatalf("loading model: %v", err)
	}
	fmt.Printf("Model loaded: %s\n", cfg.Model.Path)

	probs, err := session.Predict(set.Images)
	if err != nil {
		log.Fatalf("running inference: %v", err)
	}

	evaluator, err := segmentation.New(segmentation.Config{
		ClassCount: cfg.ClassCount(),
		ClassNames: cfg.Classes,
		Spacing:    cfg.Spacing,
		Workers:    cfg.Workers,
	})
	if err != nil {
		log.Fatalf("configuring evaluator: %v", err)
	}

	report, err := evaluator.EvaluateProbabilities(set.OneHot, probs)
	if err != nil {
		log.Fatalf("evaluating predictions: %v", err)
	}

	fmt.Println()
	fmt.Print(report.String())

	if cfg.OutputPath != "" {
		f, err := os.Create(cfg.OutputPath)
		if err != nil {
			log.Fatalf("creating report file: %v", err)
		}
		defer f.Close()
		if err := report.WriteJSON(f); err != nil {
			log.Fatalf("writing report: %v", err)
		}
		fmt.Printf("\nReport written to %s\n", cfg.OutputPath)
	}
}
