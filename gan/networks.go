package gan

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/base"
)

func batchNorm(p *nn.Path, c int64, kerasMomentum float64) *nn.BatchNorm {
	config := nn.DefaultBatchNormConfig()
	config.Momentum = 1 - kerasMomentum
	config.Eps = 0.001
	return nn.BatchNorm2D(p, c, config)
}

// imageEncoder maps an image to a latent code.
type imageEncoder struct {
	convs []*nn.Conv2D
	fc    *nn.Linear
}

func newImageEncoder(p *nn.Path, c Config) *imageEncoder {
	k := int64(c.KernelSize)
	cIn := int64(c.Channels)
	var convs []*nn.Conv2D
	for i, f := range c.EncoderFilters {
		convs = append(convs, base.Conv2d(p.Sub(fmt.Sprintf("conv%d", i)), cIn, f, k, k/2, int64(c.EncoderStride)))
		cIn = f
	}
	s := c.encodedSize()
	fc := nn.NewLinear(p.Sub("fc"), cIn*s*s, int64(c.LatentDim), nn.DefaultLinearConfig())

	return &imageEncoder{convs: convs, fc: fc}
}

func (e *imageEncoder) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	h := x.MustShallowClone()
	for _, conv := range e.convs {
		z := conv.Forward(h).MustRelu(true)
		h.MustDrop()
		h = z
	}
	flat := h.MustFlatten(1, -1, true)
	latent := e.fc.Forward(flat)
	flat.MustDrop()

	return latent
}

type convBN struct {
	conv *nn.Conv2D
	bn   *nn.BatchNorm
}

func newConvBN(p *nn.Path, cIn, cOut int64, c Config) convBN {
	return convBN{
		conv: base.Conv2d(p.Sub("conv"), cIn, cOut, 3, 1, 1),
		bn:   batchNorm(p.Sub("bn"), cOut, c.BNMomentum),
	}
}

func (l convBN) forwardT(x *ts.Tensor, train bool) *ts.Tensor {
	conv := l.conv.Forward(x)
	out := l.bn.ForwardT(conv, train)
	conv.MustDrop()
	return out
}

// generator turns a noise vector into an image in [0,1].
type generator struct {
	noiseDim int64
	seed     *nn.ConvTranspose2D
	stages   []convBN
	out      *nn.Conv2D
}

func newGenerator(p *nn.Path, c Config) *generator {
	seed := nn.NewConvTranspose2D(p.Sub("seed"), int64(c.NoiseDim), c.SeedChannels, []int64{4, 4}, nn.DefaultConvTranspose2DConfig())
	cIn := c.SeedChannels
	var stages []convBN
	for i, f := range c.GeneratorFilters {
		stages = append(stages, newConvBN(p.Sub(fmt.Sprintf("stage%d", i)), cIn, f, c))
		cIn = f
	}
	out := base.Conv2d(p.Sub("out"), cIn, int64(c.Channels), 3, 1, 1)

	return &generator{
		noiseDim: int64(c.NoiseDim),
		seed:     seed,
		stages:   stages,
		out:      out,
	}
}

// ForwardT maps noise [B NoiseDim] to images [B C S S].
func (g *generator) ForwardT(noise *ts.Tensor, train bool) *ts.Tensor {
	x := noise.MustView([]int64{-1, g.noiseDim, 1, 1}, false)
	h := g.seed.Forward(x).MustRelu(true) // [B 512 4 4]
	x.MustDrop()
	for _, s := range g.stages {
		bn := s.forwardT(h, train)
		h.MustDrop()
		relu := bn.MustRelu(true)
		h = base.Upsample2x(relu)
		relu.MustDrop()
	}
	logits := g.out.Forward(h)
	h.MustDrop()

	return logits.MustSigmoid(true)
}

// discriminator scores images with a real/fake logit.
type discriminator struct {
	stages  []convBN
	fc1     *nn.Linear
	fc2     *nn.Linear
	slope   float64
	dropout float64
}

func newDiscriminator(p *nn.Path, c Config) *discriminator {
	cIn := int64(c.Channels)
	var stages []convBN
	for i, f := range c.DiscriminatorFilters {
		stages = append(stages, newConvBN(p.Sub(fmt.Sprintf("stage%d", i)), cIn, f, c))
		cIn = f
	}
	s := int64(c.ImageSize >> len(c.DiscriminatorFilters))
	fc1 := nn.NewLinear(p.Sub("fc1"), cIn*s*s, c.DenseUnits, nn.DefaultLinearConfig())
	fc2 := nn.NewLinear(p.Sub("fc2"), c.DenseUnits, 1, nn.DefaultLinearConfig())

	return &discriminator{
		stages:  stages,
		fc1:     fc1,
		fc2:     fc2,
		slope:   c.LeakySlope,
		dropout: c.Dropout,
	}
}

// ForwardT maps images [B C S S] to logits [B 1].
func (d *discriminator) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	h := x.MustShallowClone()
	for _, s := range d.stages {
		bn := s.forwardT(h, train)
		h.MustDrop()
		act := base.LeakyRelu(bn, d.slope)
		bn.MustDrop()
		drop := ts.MustDropout(act, d.dropout, train)
		act.MustDrop()
		h = drop.MustAvgPool2d([]int64{2, 2}, []int64{2, 2}, []int64{0, 0}, false, true, nil, true)
	}
	flat := h.MustFlatten(1, -1, true)
	dense := d.fc1.Forward(flat)
	flat.MustDrop()
	act := base.LeakyRelu(dense, d.slope)
	dense.MustDrop()
	logit := d.fc2.Forward(act)
	act.MustDrop()

	return logit
}
