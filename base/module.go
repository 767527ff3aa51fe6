package base

import (
	"reflect"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"
)

// Conv2d creates Conv2D module.
func Conv2d(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

// Conv2dNoBias creates Conv2D with no bias.
func Conv2dNoBias(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Bias = false
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

// Conv2dRelu creates a SequentialT composing of Conv2D No bias, a batch norm
// and a ReLU activation.
func Conv2dRelu(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.SequentialT {
	bnConfig := nn.DefaultBatchNormConfig()
	bnConfig.Eps = 0.001
	seq := nn.SeqT()
	seq.Add(Conv2dNoBias(p.Sub("conv"), cIn, cOut, ksize, padding, stride))
	seq.Add(nn.BatchNorm2D(p.Sub("bn"), cOut, bnConfig))
	seq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustRelu(false)
	}))

	return seq
}

// ConvBNReLU6 creates the grouped conv + batch norm + ReLU6 unit used by
// MobileNet. Variables are named `<p>.0` and `<p>.1` to match torchvision.
func ConvBNReLU6(p *nn.Path, cIn, cOut, ksize, stride, groups int64) *nn.SequentialT {
	config := nn.DefaultConv2DConfig()
	pad := (ksize - 1) / 2
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{pad, pad}
	config.Groups = groups
	config.Bias = false

	seq := nn.SeqT()
	seq.Add(nn.NewConv2D(p.Sub("0"), cIn, cOut, ksize, config))
	seq.Add(nn.BatchNorm2D(p.Sub("1"), cOut, nn.DefaultBatchNormConfig()))
	seq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		relu := xs.MustRelu(false)
		return relu.MustClampMax(ts.FloatScalar(6.0), true)
	}))

	return seq
}

// DoubleConv stacks two Conv2dRelu 3x3 blocks with same padding.
func DoubleConv(p *nn.Path, cIn, cOut int64) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(Conv2dRelu(p.Sub("conv1"), cIn, cOut, 3, 1, 1))
	seq.Add(Conv2dRelu(p.Sub("conv2"), cOut, cOut, 3, 1, 1))

	return seq
}

// Upsample interpolates x to the spatial size of ref using `nearest`
// algorithm. Both should be in shape [B C H W].
func Upsample(x, ref *ts.Tensor) *ts.Tensor {
	xSize := x.MustSize()
	refSize := ref.MustSize()
	if reflect.DeepEqual(xSize[2:], refSize[2:]) {
		return x.MustShallowClone()
	}

	return x.MustUpsampleNearest2d(refSize[2:], nil, nil, false)
}

// Upsample2x doubles the spatial size of x with `nearest` interpolation.
func Upsample2x(x *ts.Tensor) *ts.Tensor {
	size := x.MustSize()
	return x.MustUpsampleNearest2d([]int64{size[2] * 2, size[3] * 2}, nil, nil, false)
}

// LeakyRelu computes max(x, slope*x) for 0 < slope < 1.
func LeakyRelu(x *ts.Tensor, slope float64) *ts.Tensor {
	pos := x.MustRelu(false)
	neg := x.MustNeg(false).MustRelu(true).MustMulScalar(ts.FloatScalar(slope), true)
	res := pos.MustSub(neg, true)
	neg.MustDrop()

	return res
}
