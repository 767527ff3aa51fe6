package encoder

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"
)

// Encoder is encoder interface for a image segmentation model.
//
// ForwardAll returns five activations ordered from shallow to deep. The
// first four are skip connections, the last one is the bottleneck. Each
// activation halves the spatial size of the previous one.
type Encoder interface {
	ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor
	// Channels returns the channel count of each ForwardAll activation.
	Channels() []int64
}

// Supported backbones.
const (
	MobileNetV2 = "mobilenet_v2"
	ResNet34    = "resnet34"
)

// New creates the named backbone at the root path p so that variable names
// match the public pretrained weight files.
func New(backbone string, p *nn.Path) (Encoder, error) {
	switch backbone {
	case MobileNetV2:
		return NewMobileNetV2(p), nil
	case ResNet34:
		return NewResNet34(p), nil
	default:
		return nil, fmt.Errorf("unsupported backbone %q", backbone)
	}
}

func rgbNormalize(x *ts.Tensor) *ts.Tensor {
	meanVals := []float32{0.485, 0.456, 0.406} // image RGB mean
	sdVals := []float32{0.229, 0.224, 0.225}   // image RGB standard error

	device := x.MustDevice()
	mean := ts.MustOfSlice(meanVals).MustView([]int64{1, 3, 1, 1}, true).MustTo(device, true)
	sd := ts.MustOfSlice(sdVals).MustView([]int64{1, 3, 1, 1}, true).MustTo(device, true)

	// x = (x - mean)/sd
	n := x.MustSub(mean, false).MustDiv(sd, true)
	mean.MustDrop()
	sd.MustDrop()

	return n
}
