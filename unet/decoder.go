package unet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/base"
)

// DecoderLayer upsamples its input, concatenates a skip activation and runs
// two conv-bn-relu blocks.
type DecoderLayer struct {
	Conv1 *nn.SequentialT
	Conv2 *nn.SequentialT
}

// NewDecoderLayer creates a DecoderLayer.
func NewDecoderLayer(p *nn.Path, cIn, skip, cOut int64) *DecoderLayer {
	conv1 := base.Conv2dRelu(p.Sub("conv1"), cIn+skip, cOut, 3, 1, 1)
	conv2 := base.Conv2dRelu(p.Sub("conv2"), cOut, cOut, 3, 1, 1)

	return &DecoderLayer{
		Conv1: conv1,
		Conv2: conv2,
	}
}

// ForwardSkip upsamples x to the size of skip, concatenates [x, skip] along
// channels and forwards through the two convs.
func (d *DecoderLayer) ForwardSkip(x, skip *ts.Tensor, train bool) *ts.Tensor {
	up := base.Upsample(x, skip)
	cat := ts.MustCat([]*ts.Tensor{up, skip}, 1)
	up.MustDrop()
	conv1 := d.Conv1.ForwardT(cat, train)
	cat.MustDrop()
	conv2 := d.Conv2.ForwardT(conv1, train)
	conv1.MustDrop()

	return conv2
}

// UNetDecoder is Decoder struct for UNet model.
type UNetDecoder struct {
	layers []*DecoderLayer
}

// NewUNetDecoder creates UNetDecoder.
//
// encoderChannels are the channels of the encoder activations ordered from
// shallow to deep, the last one being the bottleneck. filters holds one
// output channel count per decoder stage, deepest stage first.
func NewUNetDecoder(p *nn.Path, encoderChannels, filters []int64) (*UNetDecoder, error) {
	skips := len(encoderChannels) - 1
	if len(filters) != skips {
		return nil, fmt.Errorf("decoder needs %d filters for %d skip connections, got %d", skips, skips, len(filters))
	}

	layers := make([]*DecoderLayer, 0, len(filters))
	cIn := encoderChannels[skips]
	for i, f := range filters {
		skip := encoderChannels[skips-1-i]
		layers = append(layers, NewDecoderLayer(p.Sub(fmt.Sprintf("decoder%d", i)), cIn, skip, f))
		cIn = f
	}

	return &UNetDecoder{layers: layers}, nil
}

// ForwardFeatures decodes encoder features, taking skips in reverse depth
// order so the shallowest one is consumed last.
func (n *UNetDecoder) ForwardFeatures(features []*ts.Tensor, train bool) *ts.Tensor {
	last := len(features) - 1
	x := features[last].MustShallowClone()
	for i, l := range n.layers {
		z := l.ForwardSkip(x, features[last-1-i], train)
		x.MustDrop()
		x = z
	}

	return x
}
