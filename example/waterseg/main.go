package main

import (
	"flag"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/hydrocam/waterseg/config"
	"github.com/hydrocam/waterseg/logging"
)

var (
	ConfigPath string
	task       string

	AnnotatedPath string
	FolderPath    string
	InputPath     string
	ModelDir      string
	ResultsDir    string
	Pretrained    string

	Epochs    int
	BatchSize int
	LR        float64
	Optimizer string
	Backbone  string
	CUDA      bool

	Cfg config.Config
)

func init() {
	flag.StringVar(&ConfigPath, "config", "", "YAML config file")
	flag.StringVar(&task, "task", "train", "specify a task to run: train|predict|eval|eda|summary")

	flag.StringVar(&AnnotatedPath, "annotated", "", "directory of images with a VIA annotation file")
	flag.StringVar(&FolderPath, "folder", "", "root of images/<subset> and truth/<subset> trees")
	flag.StringVar(&InputPath, "input", "", "directory of images to segment")
	flag.StringVar(&ModelDir, "model", "", "directory of the saved model")
	flag.StringVar(&ResultsDir, "results", "", "directory for plots, masks and CSV files")
	flag.StringVar(&Pretrained, "pretrained", "", "pretrained backbone weights")

	flag.IntVar(&Epochs, "epochs", 0, "number of epochs")
	flag.IntVar(&BatchSize, "batch", 0, "batch size")
	flag.Float64Var(&LR, "lr", 0, "learning rate")
	flag.StringVar(&Optimizer, "opt", "", "optimizer: adam|adamw|sgd|rmsprop")
	flag.StringVar(&Backbone, "backbone", "", "encoder: mobilenet_v2|resnet34|scratch")
	flag.BoolVar(&CUDA, "cuda", false, "use CUDA if available instead of the configured device")
}

func main() {
	flag.Parse()

	var err error
	Cfg, err = config.Load(ConfigPath)
	if err != nil {
		log.Fatal(err)
	}
	override(&Cfg)

	if err := logging.Setup(Cfg.Log); err != nil {
		log.Fatal(err)
	}
	if err := Cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	switch task {
	case "train":
		runTrain()
	case "predict":
		runPredict()
	case "eval":
		runEval()
	case "eda":
		runEDA()
	case "summary":
		runSummary()
	default:
		log.Fatalf("Unspecified task %q. Available: train|predict|eval|eda|summary", task)
	}
}

// override applies command line flags on top of the loaded config.
func override(cfg *config.Config) {
	if AnnotatedPath != "" {
		cfg.Data.Annotated = absPath(AnnotatedPath)
	}
	if FolderPath != "" {
		cfg.Data.Folder = absPath(FolderPath)
	}
	if ModelDir != "" {
		cfg.ModelDir = absPath(ModelDir)
	}
	if ResultsDir != "" {
		cfg.Results = absPath(ResultsDir)
	}
	if Pretrained != "" {
		cfg.Train.PretrainedWeights = absPath(Pretrained)
	}
	if Epochs > 0 {
		cfg.Train.Epochs = Epochs
	}
	if BatchSize > 0 {
		cfg.Train.BatchSize = BatchSize
	}
	if LR > 0 {
		cfg.Train.LearningRate = LR
	}
	if Optimizer != "" {
		cfg.Train.Optimizer = Optimizer
	}
	if Backbone != "" {
		cfg.Arch.Backbone = Backbone
	}
	if CUDA {
		cfg.Device = "auto"
	}
}

func absPath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		log.Fatal(err)
	}

	return absPath
}
