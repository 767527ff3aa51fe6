package unet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/base"
)

// Down is a SequentialT module composed of maxpool and 2x conv.
type Down struct {
	MaxpoolConv *nn.SequentialT
}

// NewDown creates a new Down ModuleT layer.
func NewDown(p *nn.Path, cIn, cOut int64) *Down {
	down := nn.SeqT()
	down.AddFn(nn.NewFunc(func(x *ts.Tensor) *ts.Tensor {
		// [B C H W] => [B C H/2 W/2]
		return x.MustMaxPool2d([]int64{2, 2}, []int64{2, 2}, []int64{0, 0}, []int64{1, 1}, false, false)
	}))
	down.Add(base.DoubleConv(p, cIn, cOut))

	return &Down{down}
}

// ForwardT implements nn.ModuleT interface.
func (l *Down) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return l.MaxpoolConv.ForwardT(x, train)
}

// PlainUNet is a UNet trained from scratch. Its encoder path is the mirror of
// the decoder schedule so it shares the same head as UNet.
type PlainUNet struct {
	inc     *nn.SequentialT
	downs   []*Down
	decoder *UNetDecoder
	segHead *nn.SequentialT
}

// NewPlain creates a PlainUNet with 3 input channels and 1 class. filters is
// the decoder schedule, deepest stage first; the encoder uses it reversed
// plus a bottleneck of twice the deepest filter.
func NewPlain(p *nn.Path, filters []int64) (*PlainUNet, error) {
	if len(filters) == 0 {
		filters = DefaultFilters
	}
	n := len(filters)
	channels := make([]int64, 0, n+1)
	for i := n - 1; i >= 0; i-- {
		channels = append(channels, filters[i])
	}
	channels = append(channels, filters[0]*2)

	inc := base.DoubleConv(p.Sub("inc"), 3, channels[0])
	downs := make([]*Down, 0, n)
	for i := 1; i <= n; i++ {
		downs = append(downs, NewDown(p.Sub(fmt.Sprintf("down%d", i)), channels[i-1], channels[i]))
	}
	dec, err := NewUNetDecoder(p.Sub("decoder"), channels, filters)
	if err != nil {
		return nil, err
	}
	head := base.NewSegmentationHead(p.Sub("head"), filters[n-1], 1)

	return &PlainUNet{
		inc:     inc,
		downs:   downs,
		decoder: dec,
		segHead: head,
	}, nil
}

// ForwardT implements ts.ModuleT for PlainUNet.
func (m *PlainUNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	x1 := m.inc.ForwardT(x, train) // [B c0 H W]
	features := []*ts.Tensor{x1}
	for _, d := range m.downs {
		features = append(features, d.ForwardT(features[len(features)-1], train))
	}

	out := m.decoder.ForwardFeatures(features, train)
	for _, f := range features {
		f.MustDrop()
	}
	masks := m.segHead.ForwardT(out, train)
	out.MustDrop()

	return masks
}
