package imgutil

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"
)

// Frame is a planar (CHW) float32 image with values in [0,1].
type Frame struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}

// NewFrame creates a zero Frame.
func NewFrame(c, h, w int) Frame {
	return Frame{
		Channels: c,
		Height:   h,
		Width:    w,
		Data:     make([]float32, c*h*w),
	}
}

// At returns the value of channel c at (x, y).
func (f Frame) At(c, x, y int) float32 {
	return f.Data[(c*f.Height+y)*f.Width+x]
}

// ToFrame converts img to a Frame of 1 (luminance) or 3 (RGB) channels
// scaled to [0,1].
func ToFrame(img image.Image, channels int) Frame {
	b := img.Bounds()
	f := NewFrame(channels, b.Dy(), b.Dx())
	plane := f.Height * f.Width
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := y*f.Width + x
			c := img.At(b.Min.X+x, b.Min.Y+y)
			if channels == 1 {
				g := color.GrayModel.Convert(c).(color.Gray)
				f.Data[i] = float32(g.Y) / 255
				continue
			}
			r, g, bl, _ := c.RGBA()
			f.Data[i] = float32(r>>8) / 255
			f.Data[plane+i] = float32(g>>8) / 255
			f.Data[2*plane+i] = float32(bl>>8) / 255
		}
	}

	return f
}

// Image converts a Frame back to an 8-bit image: *image.Gray for a single
// channel, *image.NRGBA otherwise.
func (f Frame) Image() image.Image {
	rect := image.Rect(0, 0, f.Width, f.Height)
	plane := f.Height * f.Width
	if f.Channels == 1 {
		img := image.NewGray(rect)
		for i := 0; i < plane; i++ {
			img.Pix[i] = toUint8(f.Data[i])
		}
		return img
	}

	img := image.NewNRGBA(rect)
	for i := 0; i < plane; i++ {
		img.Pix[4*i] = toUint8(f.Data[i])
		img.Pix[4*i+1] = toUint8(f.Data[plane+i])
		img.Pix[4*i+2] = toUint8(f.Data[2*plane+i])
		img.Pix[4*i+3] = 255
	}

	return img
}

// Binarize returns a single channel mask with 255 where the first channel
// exceeds threshold.
func (f Frame) Binarize(threshold float32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for i := range img.Pix {
		if f.Data[i] > threshold {
			img.Pix[i] = 255
		}
	}

	return img
}

func toUint8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

// Stack creates a [N C H W] float tensor on device from frames of identical
// shape.
func Stack(frames []Frame, device gotch.Device) (*ts.Tensor, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frame to stack")
	}
	c, h, w := frames[0].Channels, frames[0].Height, frames[0].Width
	size := c * h * w
	data := make([]float32, 0, len(frames)*size)
	for i, f := range frames {
		if f.Channels != c || f.Height != h || f.Width != w {
			return nil, errors.Errorf("frame %d has shape [%d %d %d], want [%d %d %d]", i, f.Channels, f.Height, f.Width, c, h, w)
		}
		data = append(data, f.Data...)
	}

	x := ts.MustOfSlice(data).MustView([]int64{int64(len(frames)), int64(c), int64(h), int64(w)}, true)
	if device != gotch.CPU {
		return x.MustTo(device, true), nil
	}

	return x, nil
}

// Unstack converts a [N C H W] tensor back to frames.
func Unstack(x *ts.Tensor) []Frame {
	size := x.MustSize()
	n, c, h, w := int(size[0]), int(size[1]), int(size[2]), int(size[3])
	vals := x.Float64Values()
	frames := make([]Frame, n)
	plane := c * h * w
	for i := range frames {
		f := NewFrame(c, h, w)
		for j := range f.Data {
			f.Data[j] = float32(vals[i*plane+j])
		}
		frames[i] = f
	}

	return frames
}
