package imgutil

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"
)

// CellSize is the side of one grid cell.
const CellSize = 2 * vg.Inch

// WriteGrid lays out rows of images (e.g. image, truth, prediction per row)
// in a grid and writes it as svg or png depending on the path extension.
func WriteGrid(path string, rows [][]image.Image) error {
	if len(rows) == 0 {
		return errors.New("empty grid")
	}
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	w := CellSize * vg.Length(cols)
	h := CellSize * vg.Length(len(rows))

	var c vg.CanvasWriterTo
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".svg":
		c = vgsvg.New(w, h)
	case ".png":
		c = vgimg.PngCanvas{Canvas: vgimg.New(w, h)}
	default:
		return errors.Errorf("unsupported grid format: %q", ext)
	}

	pad := vg.Points(2)
	for i, r := range rows {
		// vg origin is bottom-left, first row goes on top.
		top := h - CellSize*vg.Length(i)
		for j, img := range r {
			if img == nil {
				continue
			}
			left := CellSize * vg.Length(j)
			rect := vg.Rectangle{
				Min: vg.Point{X: left + pad, Y: top - CellSize + pad},
				Max: vg.Point{X: left + CellSize - pad, Y: top - pad},
			}
			c.DrawImage(rect, img)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "write grid")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "write grid")
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write grid %s", path)
	}

	return f.Close()
}
