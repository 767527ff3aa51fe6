package segment

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/encoder"
	"github.com/hydrocam/waterseg/unet"
)

// optimizer is the part of *nn.Optimizer used by training.
type optimizer interface {
	BackwardStep(loss *ts.Tensor) error
}

// Model is a water segmentation network with its weights, optimizer and
// training configuration.
type Model struct {
	arch   Arch
	cfg    TrainConfig
	device gotch.Device
	vs     *nn.VarStore
	net    ts.ModuleT
	opt    optimizer
	runID  string
}

// New creates a model with freshly initialized weights. When
// cfg.PretrainedWeights is set, matching encoder variables are loaded from
// it.
func New(arch Arch, cfg TrainConfig, device gotch.Device) (*Model, error) {
	m, err := build(arch, cfg, device)
	if err != nil {
		return nil, err
	}

	if cfg.PretrainedWeights != "" {
		if arch.Backbone == Scratch {
			return nil, errors.Wrap(ErrInvalidConfig, "scratch backbone has no pretrained weights")
		}
		missing, err := m.vs.LoadPartial(cfg.PretrainedWeights)
		if err != nil {
			return nil, errors.Wrap(err, "load pretrained weights")
		}
		log.WithFields(log.Fields{
			"file":    cfg.PretrainedWeights,
			"missing": len(missing),
		}).Info("loaded pretrained encoder")
	}

	return m, nil
}

func build(arch Arch, cfg TrainConfig, device gotch.Device) (*Model, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vs := nn.NewVarStore(device)
	var net ts.ModuleT
	switch arch.Backbone {
	case Scratch:
		n, err := unet.NewPlain(vs.Root(), arch.Filters)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidConfig, err.Error())
		}
		net = n
	default:
		enc, err := encoder.New(arch.Backbone, vs.Root())
		if err != nil {
			return nil, errors.Wrap(ErrInvalidConfig, err.Error())
		}
		n, err := unet.New(vs.Root(), enc, arch.Filters, arch.FreezeEncoder)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidConfig, err.Error())
		}
		net = n
	}

	opt, err := buildOptimizer(vs, cfg)
	if err != nil {
		return nil, err
	}

	return &Model{
		arch:   arch,
		cfg:    cfg,
		device: device,
		vs:     vs,
		net:    net,
		opt:    opt,
		runID:  uuid.NewString(),
	}, nil
}

func buildOptimizer(vs *nn.VarStore, cfg TrainConfig) (*nn.Optimizer, error) {
	var (
		opt *nn.Optimizer
		err error
	)
	switch cfg.Optimizer {
	case Adam:
		opt, err = nn.DefaultAdamConfig().Build(vs, cfg.LearningRate)
	case AdamW:
		opt, err = nn.DefaultAdamWConfig().Build(vs, cfg.LearningRate)
	case SGD:
		opt, err = nn.DefaultSGDConfig().Build(vs, cfg.LearningRate)
	case RMSProp:
		opt, err = nn.DefaultRMSPropConfig().Build(vs, cfg.LearningRate)
	default:
		err = errors.Wrapf(ErrInvalidConfig, "unknown optimizer %q", cfg.Optimizer)
	}
	if err != nil {
		return nil, errors.Wrap(err, "build optimizer")
	}

	return opt, nil
}

// Arch returns the model architecture.
func (m *Model) Arch() Arch {
	return m.arch
}

// Config returns the training configuration.
func (m *Model) Config() TrainConfig {
	return m.cfg
}

// RunID identifies the training run that produced the weights.
func (m *Model) RunID() string {
	return m.runID
}

// Summary prints every variable with its shape and the parameter count.
func (m *Model) Summary(w io.Writer) error {
	vars := m.vs.Variables()
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
		if _, err := fmt.Fprintf(w, "%-60s %v\n", name, size); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "backbone: %s  image: %dx%d  frozen encoder: %v\nvariables: %d  parameters: %d\n",
		m.arch.Backbone, m.arch.ImageSize, m.arch.ImageSize, m.arch.FreezeEncoder, len(names), total)

	return err
}
