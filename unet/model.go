package unet

import (
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/base"
	"github.com/hydrocam/waterseg/encoder"
)

// DefaultFilters is the descending decoder schedule, deepest stage first.
var DefaultFilters = []int64{128, 64, 48, 32}

// UNet is a UNET model struct with a pretrained backbone as encoder.
// Ref: https://arxiv.org/abs/1505.04597
type UNet struct {
	encoder encoder.Encoder
	decoder *UNetDecoder
	segHead *nn.SequentialT
	freeze  bool
}

// ForwardT implements ts.ModuleT for UNet struct. Output is a per-pixel
// probability in shape [B 1 H W].
func (n *UNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	var features []*ts.Tensor
	if n.freeze {
		ts.NoGrad(func() {
			features = n.encoder.ForwardAll(x, false)
		})
	} else {
		features = n.encoder.ForwardAll(x, train)
	}

	out := n.decoder.ForwardFeatures(features, train)
	for _, f := range features {
		f.MustDrop()
	}
	masks := n.segHead.ForwardT(out, train)
	out.MustDrop()

	return masks
}

// Frozen reports whether encoder weights are excluded from training.
func (n *UNet) Frozen() bool {
	return n.freeze
}

// New creates a UNet on top of enc. The encoder should have been created at
// the root of the same var store so pretrained weights keep their names.
// Decoder and head live under `decoder` and `head`.
func New(p *nn.Path, enc encoder.Encoder, filters []int64, freeze bool) (*UNet, error) {
	if len(filters) == 0 {
		filters = DefaultFilters
	}
	dec, err := NewUNetDecoder(p.Sub("decoder"), enc.Channels(), filters)
	if err != nil {
		return nil, err
	}
	head := base.NewSegmentationHead(p.Sub("head"), filters[len(filters)-1], 1)

	return &UNet{
		encoder: enc,
		decoder: dec,
		segHead: head,
		freeze:  freeze,
	}, nil
}

// DefaultUNet creates UNet with default values.
// MobileNetV2 as encoder, frozen.
func DefaultUNet(p *nn.Path) *UNet {
	enc := encoder.NewMobileNetV2(p)
	net, err := New(p, enc, DefaultFilters, true)
	if err != nil {
		panic(err) // default filters always match the encoder
	}

	return net
}
