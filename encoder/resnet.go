package encoder

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/base"
)

// ResNetEncoder is a ResNet34 truncated after `layer3`.
type ResNetEncoder struct {
	stem   ts.ModuleT
	layer1 ts.ModuleT
	layer2 ts.ModuleT
	layer3 ts.ModuleT
}

// ForwardAll implements Encoder interface for ResNetEncoder.
//
//	0- input  [B   3 H    W   ]
//	1- stem   [B  64 H/2  W/2 ]
//	2- layer1 [B  64 H/4  W/4 ]
//	3- layer2 [B 128 H/8  W/8 ]
//	4- layer3 [B 256 H/16 W/16]
func (e *ResNetEncoder) ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor {
	xn := rgbNormalize(x)
	x0 := e.stem.ForwardT(xn, train)
	pool := x0.MustMaxPool2d([]int64{3, 3}, []int64{2, 2}, []int64{1, 1}, []int64{1, 1}, false, false)
	x1 := e.layer1.ForwardT(pool, train)
	pool.MustDrop()
	x2 := e.layer2.ForwardT(x1, train)
	x3 := e.layer3.ForwardT(x2, train)

	return []*ts.Tensor{xn, x0, x1, x2, x3}
}

// Channels implements Encoder interface for ResNetEncoder.
func (e *ResNetEncoder) Channels() []int64 {
	return []int64{3, 64, 64, 128, 256}
}

// NewResNet34 creates a ResNet34 encoder.
func NewResNet34(p *nn.Path) *ResNetEncoder {
	return &ResNetEncoder{
		stem:   stem(p), // NOTE. `conv1` and `bn1` are at root of pretrained model
		layer1: basicLayer(p.Sub("layer1"), 64, 64, 1, 3),
		layer2: basicLayer(p.Sub("layer2"), 64, 128, 2, 4),
		layer3: basicLayer(p.Sub("layer3"), 128, 256, 2, 6),
	}
}

func stem(p *nn.Path) ts.ModuleT {
	conv1 := base.Conv2dNoBias(p.Sub("conv1"), 3, 64, 7, 3, 2)
	bn1 := nn.BatchNorm2D(p.Sub("bn1"), 64, nn.DefaultBatchNormConfig())
	layer0 := nn.SeqT()
	layer0.Add(conv1)
	layer0.Add(bn1)
	layer0.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustRelu(false)
	}))

	return layer0
}

func basicLayer(path *nn.Path, cIn, cOut, stride, cnt int64) ts.ModuleT {
	layer := nn.SeqT()
	layer.Add(NewBasicBlock(path.Sub("0"), cIn, cOut, stride))
	for blockIndex := 1; blockIndex < int(cnt); blockIndex++ {
		layer.Add(NewBasicBlock(path.Sub(fmt.Sprint(blockIndex)), cOut, cOut, 1))
	}

	return layer
}

func downSample(path *nn.Path, cIn, cOut, stride int64) ts.ModuleT {
	if stride != 1 || cIn != cOut {
		seq := nn.SeqT()
		seq.Add(base.Conv2dNoBias(path.Sub("0"), cIn, cOut, 1, 0, stride))
		seq.Add(nn.BatchNorm2D(path.Sub("1"), cOut, nn.DefaultBatchNormConfig()))

		return seq
	}
	return nil
}

// BasicBlock is the two-conv residual block of ResNet18/34.
type BasicBlock struct {
	Conv1      *nn.Conv2D
	Bn1        *nn.BatchNorm
	Conv2      *nn.Conv2D
	Bn2        *nn.BatchNorm
	Downsample ts.ModuleT
}

func NewBasicBlock(path *nn.Path, cIn, cOut, stride int64) *BasicBlock {
	conv1 := base.Conv2dNoBias(path.Sub("conv1"), cIn, cOut, 3, 1, stride)
	bn1 := nn.BatchNorm2D(path.Sub("bn1"), cOut, nn.DefaultBatchNormConfig())
	conv2 := base.Conv2dNoBias(path.Sub("conv2"), cOut, cOut, 3, 1, 1)
	bn2 := nn.BatchNorm2D(path.Sub("bn2"), cOut, nn.DefaultBatchNormConfig())
	downsample := downSample(path.Sub("downsample"), cIn, cOut, stride)

	return &BasicBlock{conv1, bn1, conv2, bn2, downsample}
}

func (bb *BasicBlock) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	c1 := bb.Conv1.ForwardT(x, train)
	bn1Ts := bb.Bn1.ForwardT(c1, train)
	c1.MustDrop()
	relu := bn1Ts.MustRelu(true)
	c2 := bb.Conv2.ForwardT(relu, train)
	relu.MustDrop()
	bn2Ts := bb.Bn2.ForwardT(c2, train)
	c2.MustDrop()

	var res *ts.Tensor
	if bb.Downsample != nil {
		dsl := bb.Downsample.ForwardT(x, train)
		res = dsl.MustAdd(bn2Ts, true)
	} else {
		res = bn2Ts.MustAdd(x, false)
	}
	bn2Ts.MustDrop()

	return res.MustRelu(true)
}
