package segment

import (
	"io"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// EpochStats are the metrics of one training epoch.
type EpochStats struct {
	Epoch     int
	Loss      float64
	Dice      float64
	Recall    float64
	Precision float64
	ValLoss   float64
	ValDice   float64
	Seconds   float64
}

// History is the per-epoch record of a Fit call.
type History struct {
	RunID  string
	Epochs []EpochStats
}

// DataFrame returns the history with one row per epoch.
func (h *History) DataFrame() dataframe.DataFrame {
	return dataframe.LoadStructs(h.Epochs)
}

// WriteCSV writes the history as CSV with a header row.
func (h *History) WriteCSV(w io.Writer) error {
	if len(h.Epochs) == 0 {
		return errors.New("empty history")
	}
	df := h.DataFrame()
	if df.Err != nil {
		return errors.Wrap(df.Err, "history frame")
	}

	return df.WriteCSV(w)
}

// SaveCSV writes the history as CSV file.
func (h *History) SaveCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "save history")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "save history")
	}
	if err := h.WriteCSV(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Plot draws the loss and Dice curves and saves them to path. The format
// follows the extension (svg, png, pdf...).
func (h *History) Plot(path string) error {
	if len(h.Epochs) == 0 {
		return errors.New("empty history")
	}
	p := plot.New()
	p.Title.Text = "Training " + h.RunID
	p.X.Label.Text = "epoch"

	curves := []struct {
		name  string
		value func(EpochStats) float64
	}{
		{"loss", func(e EpochStats) float64 { return e.Loss }},
		{"dice", func(e EpochStats) float64 { return e.Dice }},
		{"val loss", func(e EpochStats) float64 { return e.ValLoss }},
		{"val dice", func(e EpochStats) float64 { return e.ValDice }},
	}
	hasVal := false
	for _, e := range h.Epochs {
		if e.ValLoss != 0 || e.ValDice != 0 {
			hasVal = true
			break
		}
	}

	for i, c := range curves {
		if i >= 2 && !hasVal {
			break
		}
		xys := make(plotter.XYs, len(h.Epochs))
		for j, e := range h.Epochs {
			xys[j].X = float64(e.Epoch)
			xys[j].Y = c.value(e)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrap(err, "plot history")
		}
		line.Color = plotutil.Color(i)
		if i >= 2 {
			line.Dashes = plotutil.Dashes(1)
		}
		p.Add(line)
		p.Legend.Add(c.name, line)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "plot history")
	}

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
