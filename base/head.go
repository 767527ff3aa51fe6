package base

import (
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"
)

// NewSegmentationHead creates new SegmentationHead (nn.SequentialT): a 1x1
// convolution to `cOut` channels followed by a sigmoid, giving per-pixel
// probabilities.
func NewSegmentationHead(p *nn.Path, cIn, cOut int64) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(Conv2d(p, cIn, cOut, 1, 0, 1))
	seq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustSigmoid(false)
	}))

	return seq
}
