package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/hydrocam/waterseg/config"
	"github.com/hydrocam/waterseg/dataset"
	"github.com/hydrocam/waterseg/gan"
	"github.com/hydrocam/waterseg/imgutil"
	"github.com/hydrocam/waterseg/logging"
)

var (
	ConfigPath string
	task       string

	DataPath string
	ModelDir string
	NoiseDim int
	Epochs   int
	Samples  int
	CUDA     bool

	Cfg config.Config
)

func init() {
	flag.StringVar(&ConfigPath, "config", "", "YAML config file")
	flag.StringVar(&task, "task", "train", "specify a task to run: train|generate|summary")
	flag.StringVar(&DataPath, "input", "", "directory of training images")
	flag.StringVar(&ModelDir, "model", "saved_models/regan", "directory of the saved generator")
	flag.IntVar(&NoiseDim, "noise-dim", 0, "dimension of the generator noise")
	flag.IntVar(&Epochs, "epochs", 0, "number of epochs")
	flag.IntVar(&Samples, "samples", 16, "number of images to generate")
	flag.BoolVar(&CUDA, "cuda", false, "use CUDA if available instead of the configured device")
}

func main() {
	flag.Parse()

	var err error
	Cfg, err = config.Load(ConfigPath)
	if err != nil {
		log.Fatal(err)
	}
	if DataPath != "" {
		Cfg.Data.GAN = absPath(DataPath)
	}
	if NoiseDim > 0 {
		Cfg.GAN.NoiseDim = NoiseDim
	}
	if Epochs > 0 {
		Cfg.GAN.Epochs = Epochs
	}
	if CUDA {
		Cfg.Device = "auto"
	}
	ModelDir = absPath(ModelDir)

	if err := logging.Setup(Cfg.Log); err != nil {
		log.Fatal(err)
	}

	switch task {
	case "train":
		runTrain()
	case "generate":
		runGenerate()
	case "summary":
		runSummary()
	default:
		log.Fatalf("Unspecified task %q. Available: train|generate|summary", task)
	}
}

func newModel() *gan.Model {
	device, err := Cfg.DeviceOf()
	if err != nil {
		log.Fatal(err)
	}
	m, err := gan.New(Cfg.GAN, device)
	if err != nil {
		log.Fatal(err)
	}
	log.WithField("state", m.State()).Info("gan created")

	return m
}

func runTrain() {
	if Cfg.Data.GAN == "" {
		log.Fatal("train needs -input")
	}
	m := newModel()

	frames, err := dataset.LoadImages(Cfg.Data.GAN, Cfg.GAN.ImageSize, Cfg.GAN.Channels == 1)
	if err != nil {
		log.Fatal(err)
	}
	log.WithField("images", len(frames)).Info("dataset loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := m.Train(ctx, frames)
	if err != nil {
		log.Fatal(err)
	}
	for _, l := range res.Losses {
		log.WithFields(log.Fields{
			"epoch":         l.Epoch,
			"generator":     l.Generator,
			"discriminator": l.Discriminator,
		}).Debug("min loss")
	}

	if len(res.Snapshots) > 0 {
		path := filepath.Join(Cfg.Results, "regan", "snapshots.png")
		if err := imgutil.WriteGrid(path, gan.SnapshotGrid(res.Snapshots)); err != nil {
			log.Fatal(err)
		}
		log.WithField("file", path).Info("snapshots written")
	}

	if err := m.Save(ModelDir); err != nil {
		log.Fatal(err)
	}
}

func runGenerate() {
	device, err := Cfg.DeviceOf()
	if err != nil {
		log.Fatal(err)
	}
	m, err := gan.Load(ModelDir, Cfg.GAN, device)
	if err != nil {
		log.Fatal(err)
	}

	frames, err := m.Generate(Samples)
	if err != nil {
		log.Fatal(err)
	}

	outDir := filepath.Join(Cfg.Results, "regan", "generated")
	row := make([]image.Image, 0, len(frames))
	for i, f := range frames {
		img := f.Image()
		if err := imgutil.WritePNG(filepath.Join(outDir, fmt.Sprintf("%03d.png", i)), img); err != nil {
			log.Fatal(err)
		}
		row = append(row, img)
	}
	if err := imgutil.WriteGrid(filepath.Join(outDir, "grid.png"), [][]image.Image{row}); err != nil {
		log.Fatal(err)
	}
	log.WithFields(log.Fields{"images": len(frames), "dir": outDir}).Info("images generated")
}

func runSummary() {
	if err := newModel().Summary(os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func absPath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		log.Fatal(err)
	}

	return absPath
}
