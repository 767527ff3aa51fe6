package main

import (
	"context"
	"image"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hydrocam/waterseg/dataset"
	"github.com/hydrocam/waterseg/imgutil"
	"github.com/hydrocam/waterseg/segment"
)

// Number of rows of the image/truth/prediction grids.
const displayRows = 5

// loadPairs loads the annotated and folder datasets, whichever are set.
func loadPairs() []dataset.Pair {
	size := Cfg.Arch.ImageSize

	var pairs []dataset.Pair
	if Cfg.Data.Annotated != "" {
		annotated, err := dataset.LoadAnnotated(Cfg.Data.Annotated, Cfg.Data.AnnotationFile, size)
		if err != nil {
			log.Fatal(err)
		}
		pairs = append(pairs, annotated...)
	}
	if Cfg.Data.Folder != "" {
		folder, err := dataset.LoadFolderPairs(Cfg.Data.Folder, size)
		if err != nil {
			log.Fatal(err)
		}
		pairs = append(pairs, folder...)
	}
	if len(pairs) == 0 {
		log.Fatal("no training data: set -annotated or -folder")
	}
	log.WithField("pairs", len(pairs)).Info("dataset loaded")

	return pairs
}

func runTrain() {
	pairs := loadPairs()

	device, err := Cfg.DeviceOf()
	if err != nil {
		log.Fatal(err)
	}
	model, err := segment.New(Cfg.Arch, Cfg.Train, device)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	history, err := model.Fit(ctx, pairs)
	if err != nil {
		log.Fatal(err)
	}

	if err := model.Save(Cfg.ModelDir); err != nil {
		log.Fatal(err)
	}
	log.WithField("dir", Cfg.ModelDir).Info("model saved")

	runDir := filepath.Join(Cfg.Results, model.RunID())
	if err := history.SaveCSV(filepath.Join(runDir, "history.csv")); err != nil {
		log.Fatal(err)
	}
	if err := history.Plot(filepath.Join(runDir, "history.svg")); err != nil {
		log.Fatal(err)
	}

	if err := displayPredictions(model, pairs, filepath.Join(runDir, "predictions.svg")); err != nil {
		log.Fatal(err)
	}
}

// displayPredictions writes a grid of image, truth and predicted mask for
// the first pairs.
func displayPredictions(model *segment.Model, pairs []dataset.Pair, path string) error {
	n := min(displayRows, len(pairs))
	frames := make([]imgutil.Frame, n)
	for i := 0; i < n; i++ {
		frames[i] = pairs[i].Image
	}
	preds, err := model.Predict(frames)
	if err != nil {
		return err
	}

	rows := make([][]image.Image, n)
	for i := range rows {
		rows[i] = []image.Image{
			pairs[i].Image.Image(),
			pairs[i].Mask.Image(),
			preds[i].Binarize(0.5),
		}
	}
	if err := imgutil.WriteGrid(path, rows); err != nil {
		return errors.Wrap(err, "display predictions")
	}
	log.WithField("file", path).Info("predictions written")

	return nil
}

func runEval() {
	pairs := loadPairs()

	device, err := Cfg.DeviceOf()
	if err != nil {
		log.Fatal(err)
	}
	model, err := segment.Load(Cfg.ModelDir, Cfg.Train, device)
	if err != nil {
		log.Fatal(err)
	}

	m, err := model.Evaluate(pairs)
	if err != nil {
		log.Fatal(err)
	}
	log.WithFields(log.Fields{
		"loss":      m.Loss,
		"dice":      m.Dice,
		"recall":    m.Recall,
		"precision": m.Precision,
	}).Info("evaluation")
}

func runSummary() {
	device, err := Cfg.DeviceOf()
	if err != nil {
		log.Fatal(err)
	}
	model, err := segment.New(Cfg.Arch, Cfg.Train, device)
	if err != nil {
		log.Fatal(err)
	}
	if err := model.Summary(os.Stdout); err != nil {
		log.Fatal(err)
	}
}
