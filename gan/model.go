package gan

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/imgutil"
)

// optimizer is the part of *nn.Optimizer used by training.
type optimizer interface {
	BackwardStep(loss *ts.Tensor) error
}

// Model is the ReGAN: an image encoder, a generator, an image
// discriminator and an encoder discriminator which is not implemented yet.
// Each sub-network owns its var store. The encoder is only trained by the
// missing encoder adversarial path, so it is built on first use.
type Model struct {
	cfg    Config
	device gotch.Device

	encVS  *nn.VarStore
	genVS  *nn.VarStore
	discVS *nn.VarStore

	encoder       *imageEncoder
	generator     *generator
	discriminator *discriminator

	genOpt  optimizer
	discOpt optimizer
}

// New validates cfg and builds the sub-networks on device.
func New(cfg Config, device gotch.Device) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	encVS := nn.NewVarStore(device)
	genVS := nn.NewVarStore(device)
	discVS := nn.NewVarStore(device)

	m := &Model{
		cfg:           cfg,
		device:        device,
		encVS:         encVS,
		genVS:         genVS,
		discVS:        discVS,
		generator:     newGenerator(genVS.Root(), cfg),
		discriminator: newDiscriminator(discVS.Root(), cfg),
	}

	genOpt, err := adam(genVS, cfg.GeneratorLR, cfg.Beta1)
	if err != nil {
		return nil, err
	}
	discOpt, err := adam(discVS, cfg.DiscriminatorLR, cfg.Beta1)
	if err != nil {
		return nil, err
	}
	m.genOpt, m.discOpt = genOpt, discOpt

	return m, nil
}

// encoderNet returns the image encoder, building it on first call.
func (m *Model) encoderNet() *imageEncoder {
	if m.encoder == nil {
		m.encoder = newImageEncoder(m.encVS.Root(), m.cfg)
	}
	return m.encoder
}

func adam(vs *nn.VarStore, lr, beta1 float64) (*nn.Optimizer, error) {
	config := nn.DefaultAdamConfig()
	config.Beta1 = beta1
	opt, err := config.Build(vs, lr)
	if err != nil {
		return nil, errors.Wrap(err, "build optimizer")
	}
	return opt, nil
}

// Config returns the model configuration.
func (m *Model) Config() Config {
	return m.cfg
}

func (m *Model) has(c Capability) bool {
	switch c {
	case Encode:
		return true
	case Generate:
		return m.generator != nil
	case ImageAdversarialTraining:
		return m.generator != nil && m.discriminator != nil
	case EncoderAdversarialTraining:
		// No encoder discriminator exists yet.
		return false
	case Reconstruct:
		return m.generator != nil && m.cfg.NoiseDim == m.cfg.LatentDim
	}
	return false
}

// State reports which capabilities are missing.
func (m *Model) State() State {
	var missing []Capability
	for _, c := range Capabilities {
		if !m.has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return Complete{}
	}
	return Partial{Missing: missing}
}

// require returns an IncompleteError when any of caps is missing.
func (m *Model) require(op string, caps ...Capability) error {
	var missing []Capability
	for _, c := range caps {
		if !m.has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &IncompleteError{Op: op, Missing: missing}
	}
	return nil
}

func (m *Model) checkFrames(frames []imgutil.Frame) error {
	if len(frames) == 0 {
		return errors.New("gan: no frame")
	}
	for i, f := range frames {
		if f.Channels != m.cfg.Channels || f.Height != m.cfg.ImageSize || f.Width != m.cfg.ImageSize {
			return errors.Wrapf(ErrInvalidConfig, "frame %d is [%d %d %d], model expects [%d %d %d]",
				i, f.Channels, f.Height, f.Width, m.cfg.Channels, m.cfg.ImageSize, m.cfg.ImageSize)
		}
	}
	return nil
}

func (m *Model) noise(n int) *ts.Tensor {
	return ts.MustRandn([]int64{int64(n), int64(m.cfg.NoiseDim)}, gotch.Float, m.device)
}

// Generate creates n images from pure noise.
func (m *Model) Generate(n int) ([]imgutil.Frame, error) {
	if err := m.require("generate", Generate); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, errors.Errorf("gan: invalid sample count %d", n)
	}

	var out *ts.Tensor
	ts.NoGrad(func() {
		noise := m.noise(n)
		out = m.generator.ForwardT(noise, false).MustTo(gotch.CPU, true)
		noise.MustDrop()
	})
	frames := imgutil.Unstack(out)
	out.MustDrop()

	return frames, nil
}

// Encode maps frames to latent codes of LatentDim values.
func (m *Model) Encode(frames []imgutil.Frame) ([][]float32, error) {
	if err := m.require("encode", Encode); err != nil {
		return nil, err
	}
	latent, err := m.encode(frames)
	if err != nil {
		return nil, err
	}
	vals := latent.Float64Values()
	latent.MustDrop()

	dim := m.cfg.LatentDim
	codes := make([][]float32, len(frames))
	for i := range codes {
		codes[i] = make([]float32, dim)
		for j := range codes[i] {
			codes[i][j] = float32(vals[i*dim+j])
		}
	}

	return codes, nil
}

func (m *Model) encode(frames []imgutil.Frame) (*ts.Tensor, error) {
	if err := m.checkFrames(frames); err != nil {
		return nil, err
	}
	x, err := imgutil.Stack(frames, m.device)
	if err != nil {
		return nil, err
	}
	var latent *ts.Tensor
	enc := m.encoderNet()
	ts.NoGrad(func() {
		latent = enc.ForwardT(x, false)
	})
	x.MustDrop()

	return latent, nil
}

// Reconstruct encodes frames and generates images back from their codes.
// It needs the noise and latent dimensions to agree.
func (m *Model) Reconstruct(frames []imgutil.Frame) ([]imgutil.Frame, error) {
	if err := m.require("reconstruct", Reconstruct); err != nil {
		return nil, err
	}
	latent, err := m.encode(frames)
	if err != nil {
		return nil, err
	}
	var out *ts.Tensor
	ts.NoGrad(func() {
		out = m.generator.ForwardT(latent, false).MustTo(gotch.CPU, true)
	})
	latent.MustDrop()
	recon := imgutil.Unstack(out)
	out.MustDrop()

	return recon, nil
}

// TrainEncoder trains the encoder against the encoder discriminator.
func (m *Model) TrainEncoder(frames []imgutil.Frame) error {
	return m.require("train encoder", Encode, EncoderAdversarialTraining)
}

// Summary prints the variables of every sub-network.
func (m *Model) Summary(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "ReGAN %s\n", m.State()); err != nil {
		return err
	}
	encNote := ""
	if m.encoder == nil {
		encNote = "built on first use"
	}
	for _, sub := range []struct {
		name string
		vs   *nn.VarStore
		note string
	}{
		{"encoder", m.encVS, encNote},
		{"encoder discriminator", nil, "not implemented"},
		{"generator", m.genVS, ""},
		{"image discriminator", m.discVS, ""},
	} {
		if _, err := fmt.Fprintf(w, "\n== %s\n", sub.name); err != nil {
			return err
		}
		if sub.note != "" {
			if _, err := fmt.Fprintln(w, sub.note); err != nil {
				return err
			}
			continue
		}
		if err := summarize(w, sub.vs); err != nil {
			return err
		}
	}

	return nil
}

func summarize(w io.Writer, vs *nn.VarStore) error {
	vars := vs.Variables()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var total int64
	for _, name := range names {
		x := vars[name]
		size := x.MustSize()
		n := int64(1)
		for _, d := range size {
			n *= d
		}
		total += n
		if _, err := fmt.Fprintf(w, "%-40s %v\n", name, size); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "parameters: %d\n", total)

	return err
}

// Weight files inside a model directory.
const (
	EncoderFile       = "encoder.ot"
	GeneratorFile     = "generator.ot"
	DiscriminatorFile = "discriminator.ot"
)

// stores returns the var stores to persist by file name. The encoder is
// included once built.
func (m *Model) stores() map[string]*nn.VarStore {
	stores := map[string]*nn.VarStore{
		GeneratorFile:     m.genVS,
		DiscriminatorFile: m.discVS,
	}
	if m.encoder != nil {
		stores[EncoderFile] = m.encVS
	}
	return stores
}

// Save writes the weights of every built sub-network to dir.
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "save gan")
	}
	for file, vs := range m.stores() {
		if err := vs.Save(filepath.Join(dir, file)); err != nil {
			return errors.Wrapf(err, "save %s", file)
		}
	}
	log.WithField("dir", dir).Info("saved gan weights")

	return nil
}

// Load creates a model from cfg and loads weights saved in dir. The encoder
// is built and loaded only when dir holds its weights.
func Load(dir string, cfg Config, device gotch.Device) (*Model, error) {
	m, err := New(cfg, device)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, EncoderFile)); err == nil {
		m.encoderNet()
	}
	for file, vs := range m.stores() {
		if err := vs.Load(filepath.Join(dir, file)); err != nil {
			return nil, errors.Wrapf(err, "load %s", file)
		}
	}

	return m, nil
}
