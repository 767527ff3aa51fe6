package imgutil

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// PadGeometry returns the resized width and height of a w x h image fit into
// a size x size square keeping aspect ratio, and the offsets centering it.
func PadGeometry(w, h, size int) (nw, nh, offX, offY int) {
	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	nw = clamp(int(math.Round(float64(w)*scale)), 1, size)
	nh = clamp(int(math.Round(float64(h)*scale)), 1, size)

	return nw, nh, (size - nw) / 2, (size - nh) / 2
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ResizeWithPad resizes img with bilinear filtering to fit in a size x size
// square and pastes it centered on a black canvas.
func ResizeWithPad(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	nw, nh, offX, offY := PadGeometry(b.Dx(), b.Dy(), size)
	resized := imaging.Resize(img, nw, nh, imaging.Linear)
	canvas := imaging.New(size, size, color.NRGBA{0, 0, 0, 255})

	return imaging.Paste(canvas, resized, image.Pt(offX, offY))
}

// ResizeMaskWithPad is ResizeWithPad for masks, with the same geometry as
// the image. Nearest neighbour averages source pixels when shrinking so the
// result is thresholded back to 0/255.
func ResizeMaskWithPad(mask image.Image, size int) *image.Gray {
	b := mask.Bounds()
	nw, nh, offX, offY := PadGeometry(b.Dx(), b.Dy(), size)
	resized := resize.Resize(uint(nw), uint(nh), mask, resize.NearestNeighbor)
	canvas := image.NewGray(image.Rect(0, 0, size, size))
	dst := image.Rect(offX, offY, offX+nw, offY+nh)
	draw.Draw(canvas, dst, resized, resized.Bounds().Min, draw.Src)
	for i, v := range canvas.Pix {
		if v > 127 {
			canvas.Pix[i] = 255
		} else {
			canvas.Pix[i] = 0
		}
	}

	return canvas
}
