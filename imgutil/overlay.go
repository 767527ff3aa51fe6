package imgutil

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// WaterTint is the overlay color of predicted water.
var WaterTint = color.RGBA{0, 90, 255, 255}

// Overlay tints the foreground of mask over img at 40% opacity. mask must
// have the same bounds as img.
func Overlay(img image.Image, mask *image.Gray, tint color.Color) *image.RGBA {
	rec := img.Bounds()
	dst := image.NewRGBA(rec)
	draw.Draw(dst, rec, img, rec.Min, draw.Src)

	alpha := image.NewAlpha(mask.Bounds())
	for i, v := range mask.Pix {
		if v > 127 {
			alpha.Pix[i] = 102
		}
	}
	draw.DrawMask(dst, rec, image.NewUniform(tint), image.Point{}, alpha, mask.Bounds().Min, draw.Over)

	return dst
}
