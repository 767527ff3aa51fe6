package dataset

import (
	"image"

	"github.com/hydrocam/waterseg/imgutil"
)

// Pair is an image and its water mask after the same resize-with-pad
// transform.
type Pair struct {
	Name  string
	Image imgutil.Frame // 3 channels
	Mask  imgutil.Frame // 1 channel
}

// NewPair resizes img and mask to size x size with identical geometry and
// scales them to [0,1].
func NewPair(name string, img, mask image.Image, size int) Pair {
	return Pair{
		Name:  name,
		Image: imgutil.ToFrame(imgutil.ResizeWithPad(img, size), 3),
		Mask:  imgutil.ToFrame(imgutil.ResizeMaskWithPad(mask, size), 1),
	}
}

// Split returns the last fraction of pairs as validation set. With a zero
// fraction, val is empty. At least one training pair is kept.
func Split(pairs []Pair, fraction float64) (train, val []Pair) {
	n := int(float64(len(pairs)) * fraction)
	if n >= len(pairs) {
		n = len(pairs) - 1
	}
	if n <= 0 {
		return pairs, nil
	}
	cut := len(pairs) - n

	return pairs[:cut], pairs[cut:]
}
