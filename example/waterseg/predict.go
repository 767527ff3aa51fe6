package main

import (
	"image"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hydrocam/waterseg/dataset"
	"github.com/hydrocam/waterseg/imgutil"
	"github.com/hydrocam/waterseg/segment"
)

func runPredict() {
	if InputPath == "" {
		log.Fatal("predict needs -input")
	}
	dir := absPath(InputPath)

	device, err := Cfg.DeviceOf()
	if err != nil {
		log.Fatal(err)
	}
	model, err := segment.Load(Cfg.ModelDir, Cfg.Train, device)
	if err != nil {
		log.Fatal(err)
	}

	names, err := dataset.ListImages(dir)
	if err != nil {
		log.Fatal(err)
	}
	frames, err := dataset.LoadImages(dir, model.Arch().ImageSize, false)
	if err != nil {
		log.Fatal(err)
	}
	preds, err := model.Predict(frames)
	if err != nil {
		log.Fatal(err)
	}

	outDir := filepath.Join(Cfg.Results, "predict")
	var rows [][]image.Image
	for i, pred := range preds {
		mask := pred.Binarize(0.5)
		img := frames[i].Image()
		overlay := imgutil.Overlay(img, mask, imgutil.WaterTint)

		base := strings.TrimSuffix(names[i], filepath.Ext(names[i]))
		if err := imgutil.WritePNG(filepath.Join(outDir, base+"_mask.png"), mask); err != nil {
			log.Fatal(err)
		}
		if err := imgutil.WritePNG(filepath.Join(outDir, base+"_overlay.png"), overlay); err != nil {
			log.Fatal(err)
		}
		if len(rows) < displayRows {
			rows = append(rows, []image.Image{img, mask, overlay})
		}
	}

	if len(rows) > 0 {
		if err := imgutil.WriteGrid(filepath.Join(outDir, "predictions.svg"), rows); err != nil {
			log.Fatal(err)
		}
	}
	log.WithFields(log.Fields{"images": len(preds), "dir": outDir}).Info("predictions written")
}
