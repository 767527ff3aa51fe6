package imgutil

import (
	"image"
	"math"

	"golang.org/x/image/vector"
)

// Polygon is a closed region given as parallel x and y pixel coordinates.
type Polygon struct {
	X []float64
	Y []float64
}

// Area returns the absolute shoelace area of the polygon.
func (p Polygon) Area() float64 {
	n := len(p.X)
	var s float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		s += p.X[i]*p.Y[j] - p.X[j]*p.Y[i]
	}
	return math.Abs(s) / 2
}

// Rect returns the four corner polygon of an axis aligned rectangle.
func Rect(x, y, w, h float64) Polygon {
	return Polygon{
		X: []float64{x, x + w, x + w, x},
		Y: []float64{y, y, y + h, y + h},
	}
}

// FillPolygons rasterizes polygons onto a w x h mask: pixels touched by a
// polygon are 255, everything else 0. Polygons with less than 3 points are
// skipped. Self-intersecting outlines fill every lobe. Vertices address
// pixel centers.
func FillPolygons(w, h int, polygons []Polygon) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return mask
	}
	cover := image.NewAlpha(mask.Bounds())
	r := vector.NewRasterizer(w, h)
	for _, p := range polygons {
		if len(p.X) < 3 || len(p.X) != len(p.Y) {
			continue
		}
		r.Reset(w, h)
		r.MoveTo(float32(p.X[0]+0.5), float32(p.Y[0]+0.5))
		for i := 1; i < len(p.X); i++ {
			r.LineTo(float32(p.X[i]+0.5), float32(p.Y[i]+0.5))
		}
		r.ClosePath()
		r.Draw(cover, cover.Bounds(), image.Opaque, image.Point{})
	}

	for i, a := range cover.Pix {
		if a > 0 {
			mask.Pix[i] = 255
		}
	}

	return mask
}
