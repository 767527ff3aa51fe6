package main

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/hydrocam/waterseg/dataset"
)

func runEDA() {
	pairs := loadPairs()

	s := dataset.Summarize(pairs)
	log.WithFields(log.Fields{
		"pairs":  s.Pairs,
		"mean":   s.Mean,
		"stddev": s.StdDev,
		"min":    s.Min,
		"max":    s.Max,
	}).Info("water fraction")

	outDir := filepath.Join(Cfg.Results, "eda")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.Fatal(err)
	}

	f, err := os.Create(filepath.Join(outDir, "water-fraction.csv"))
	if err != nil {
		log.Fatal(err)
	}
	df := dataset.FractionFrame(pairs)
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}

	fractions := dataset.WaterFraction(pairs)
	v := make(plotter.Values, len(fractions))
	copy(v, fractions)

	p := plot.New()
	p.Title.Text = "Water fraction"
	p.X.Label.Text = "fraction of pixels"

	h, err := plotter.NewHist(v, 20)
	if err != nil {
		log.Fatal(err)
	}
	p.Add(h)

	if err := p.Save(4*vg.Inch, 4*vg.Inch, filepath.Join(outDir, "water-fraction.svg")); err != nil {
		log.Fatal(err)
	}
}
