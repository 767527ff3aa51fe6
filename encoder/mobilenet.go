package encoder

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/base"
)

// invertedResidual is one MobileNetV2 bottleneck block. Variable names follow
// torchvision (`features.N.conv.M`) so the public weights load with
// `vs.LoadPartial`.
type invertedResidual struct {
	expand   *nn.SequentialT // nil when expand ratio is 1
	depth    *nn.SequentialT
	project  *nn.Conv2D
	bn       *nn.BatchNorm
	residual bool
}

func newInvertedResidual(p *nn.Path, cIn, cOut, stride, ratio int64) *invertedResidual {
	c := p.Sub("conv")
	hidden := cIn * ratio
	id := 0

	var expand *nn.SequentialT
	if ratio != 1 {
		expand = base.ConvBNReLU6(c.Sub(fmt.Sprint(id)), cIn, hidden, 1, 1, 1)
		id++
	}
	depth := base.ConvBNReLU6(c.Sub(fmt.Sprint(id)), hidden, hidden, 3, stride, hidden)
	config := nn.DefaultConv2DConfig()
	config.Bias = false
	project := nn.NewConv2D(c.Sub(fmt.Sprint(id+1)), hidden, cOut, 1, config)
	bn := nn.BatchNorm2D(c.Sub(fmt.Sprint(id+2)), cOut, nn.DefaultBatchNormConfig())

	return &invertedResidual{
		expand:   expand,
		depth:    depth,
		project:  project,
		bn:       bn,
		residual: stride == 1 && cIn == cOut,
	}
}

// ForwardT implements ts.ModuleT.
func (b *invertedResidual) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	if b.expand == nil {
		return b.forwardFrom(x, x, train)
	}
	expanded := b.expand.ForwardT(x, train)
	out := b.forwardFrom(x, expanded, train)
	expanded.MustDrop()

	return out
}

// forwardFrom runs the depthwise and projection convs starting at the
// expanded activation h. x is the block input for the residual sum.
func (b *invertedResidual) forwardFrom(x, h *ts.Tensor, train bool) *ts.Tensor {
	dw := b.depth.ForwardT(h, train)
	pw := b.project.ForwardT(dw, train)
	dw.MustDrop()
	out := b.bn.ForwardT(pw, train)
	pw.MustDrop()
	if b.residual {
		return out.MustAdd(x, true)
	}

	return out
}

// MobileNetEncoder is a MobileNetV2 truncated at the expansion activation of
// block 13 (Keras name `block_13_expand_relu`).
type MobileNetEncoder struct {
	stem    *nn.SequentialT
	blocks  []*invertedResidual
	neck    *nn.SequentialT // expansion conv of block 13
	skipIdx map[int]bool
}

// Keras block k is torchvision `features.(k+1)`. Skip activations are taken
// at the expansion output of blocks 1, 3 and 6.
var mobileNetSkips = []int{1, 3, 6}

const mobileNetNeck = 13

// NewMobileNetV2 creates the MobileNetV2 encoder.
func NewMobileNetV2(p *nn.Path) *MobileNetEncoder {
	fp := p.Sub("features")

	// expand ratio, channels, repeats, stride
	settings := [][]int64{
		{1, 16, 1, 1},
		{6, 24, 2, 2},
		{6, 32, 3, 2},
		{6, 64, 4, 2},
		{6, 96, 3, 1},
		{6, 160, 3, 2},
	}

	stem := base.ConvBNReLU6(fp.Sub("0"), 3, 32, 3, 2, 1)
	var blocks []*invertedResidual
	cIn := int64(32)
	layerID := 1
	for _, s := range settings {
		t, c, n, stride := s[0], s[1], s[2], s[3]
		for i := 0; i < int(n); i++ {
			if layerID-1 == mobileNetNeck {
				break
			}
			st := int64(1)
			if i == 0 {
				st = stride
			}
			blocks = append(blocks, newInvertedResidual(fp.Sub(fmt.Sprint(layerID)), cIn, c, st, t))
			cIn = c
			layerID++
		}
	}

	// Only the expansion conv of block 13 is kept.
	neck := base.ConvBNReLU6(fp.Sub(fmt.Sprint(mobileNetNeck+1)).Sub("conv").Sub("0"), cIn, cIn*6, 1, 1, 1)

	skipIdx := make(map[int]bool, len(mobileNetSkips))
	for _, k := range mobileNetSkips {
		skipIdx[k] = true
	}

	return &MobileNetEncoder{
		stem:    stem,
		blocks:  blocks,
		neck:    neck,
		skipIdx: skipIdx,
	}
}

// ForwardAll implements Encoder interface for MobileNetEncoder.
//
//	0- input               [B   3 H    W   ]
//	1- block_1_expand_relu [B  96 H/2  W/2 ]
//	2- block_3_expand_relu [B 144 H/4  W/4 ]
//	3- block_6_expand_relu [B 192 H/8  W/8 ]
//	4- block_13_expand_relu [B 576 H/16 W/16]
func (e *MobileNetEncoder) ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor {
	xn := rgbNormalize(x)
	features := []*ts.Tensor{xn}

	h := e.stem.ForwardT(xn, train)
	for i, b := range e.blocks {
		var next *ts.Tensor
		if e.skipIdx[i] && b.expand != nil {
			expanded := b.expand.ForwardT(h, train)
			features = append(features, expanded)
			next = b.forwardFrom(h, expanded, train)
		} else {
			next = b.ForwardT(h, train)
		}
		h.MustDrop()
		h = next
	}
	neck := e.neck.ForwardT(h, train)
	h.MustDrop()

	return append(features, neck)
}

// Channels implements Encoder interface for MobileNetEncoder.
func (e *MobileNetEncoder) Channels() []int64 {
	return []int64{3, 96, 144, 192, 576}
}
