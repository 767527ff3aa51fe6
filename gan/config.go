package gan

import (
	"github.com/pkg/errors"
)

// ErrInvalidConfig is returned for a configuration the networks cannot be
// built from.
var ErrInvalidConfig = errors.New("invalid gan config")

// Config holds every hyperparameter of the ReGAN networks and training loop.
// NoiseDim has no default and must be set explicitly.
type Config struct {
	ImageSize  int `yaml:"image_size"`
	Channels   int `yaml:"channels"`
	LatentDim  int `yaml:"latent_dim"`
	NoiseDim   int `yaml:"noise_dim"`
	BatchSize  int `yaml:"batch_size"`
	KernelSize int `yaml:"kernel_size"`

	// EncoderStride is the stride of every encoder convolution.
	EncoderStride        int     `yaml:"encoder_stride"`
	EncoderFilters       []int64 `yaml:"encoder_filters"`
	SeedChannels         int64   `yaml:"seed_channels"`
	GeneratorFilters     []int64 `yaml:"generator_filters"`
	DiscriminatorFilters []int64 `yaml:"discriminator_filters"`
	DenseUnits           int64   `yaml:"dense_units"`

	// BNMomentum uses Keras semantics: weight of the running average.
	BNMomentum float64 `yaml:"bn_momentum"`
	LeakySlope float64 `yaml:"leaky_slope"`
	Dropout    float64 `yaml:"dropout"`

	GeneratorLR     float64 `yaml:"generator_lr"`
	DiscriminatorLR float64 `yaml:"discriminator_lr"`
	Beta1           float64 `yaml:"beta1"`
	Epochs          int     `yaml:"epochs"`
	VizSamples      int     `yaml:"viz_samples"`
}

// DefaultConfig returns the ReGAN defaults for 512x512 gray images.
// NoiseDim is left unset.
func DefaultConfig() Config {
	return Config{
		ImageSize:            512,
		Channels:             1,
		LatentDim:            4096,
		BatchSize:            128,
		KernelSize:           5,
		EncoderStride:        2,
		EncoderFilters:       []int64{16, 32, 64, 128},
		SeedChannels:         512,
		GeneratorFilters:     []int64{256, 128, 64, 32, 16, 8, 4},
		DiscriminatorFilters: []int64{4, 8, 16, 32, 64, 128, 256},
		DenseUnits:           128,
		BNMomentum:           0.7,
		LeakySlope:           0.2,
		Dropout:              0.25,
		GeneratorLR:          2e-4,
		DiscriminatorLR:      2e-4,
		Beta1:                0.5,
		Epochs:               100,
		VizSamples:           16,
	}
}

func positive(name string, v int) error {
	if v <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "%s must be > 0, got %d", name, v)
	}
	return nil
}

func filters(name string, fs []int64) error {
	if len(fs) == 0 {
		return errors.Wrapf(ErrInvalidConfig, "%s is empty", name)
	}
	for _, f := range fs {
		if f <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "%s has invalid filter %d", name, f)
		}
	}
	return nil
}

// Validate checks the configuration, including the geometry linking image
// size and filter schedules.
func (c Config) Validate() error {
	if c.NoiseDim <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "noise dim is required, got %d", c.NoiseDim)
	}
	for _, v := range []struct {
		name string
		v    int
	}{
		{"image size", c.ImageSize},
		{"channels", c.Channels},
		{"latent dim", c.LatentDim},
		{"batch size", c.BatchSize},
		{"kernel size", c.KernelSize},
		{"encoder stride", c.EncoderStride},
		{"epochs", c.Epochs},
		{"viz samples", c.VizSamples},
	} {
		if err := positive(v.name, v.v); err != nil {
			return err
		}
	}
	if c.KernelSize%2 == 0 {
		return errors.Wrapf(ErrInvalidConfig, "kernel size %d must be odd", c.KernelSize)
	}
	if err := filters("encoder filters", c.EncoderFilters); err != nil {
		return err
	}
	if err := filters("generator filters", c.GeneratorFilters); err != nil {
		return err
	}
	if err := filters("discriminator filters", c.DiscriminatorFilters); err != nil {
		return err
	}
	if c.SeedChannels <= 0 || c.DenseUnits <= 0 {
		return errors.Wrap(ErrInvalidConfig, "seed channels and dense units must be > 0")
	}

	if want := 4 << len(c.GeneratorFilters); c.ImageSize != want {
		return errors.Wrapf(ErrInvalidConfig, "generator with %d stages produces %dx%d images, image size is %d",
			len(c.GeneratorFilters), want, want, c.ImageSize)
	}
	if c.ImageSize%(1<<len(c.DiscriminatorFilters)) != 0 {
		return errors.Wrapf(ErrInvalidConfig, "image size %d not divisible by 2^%d", c.ImageSize, len(c.DiscriminatorFilters))
	}
	div := 1
	for range c.EncoderFilters {
		div *= c.EncoderStride
	}
	if c.ImageSize%div != 0 {
		return errors.Wrapf(ErrInvalidConfig, "image size %d not divisible by encoder reduction %d", c.ImageSize, div)
	}

	if c.BNMomentum <= 0 || c.BNMomentum >= 1 {
		return errors.Wrapf(ErrInvalidConfig, "bn momentum %v not in (0, 1)", c.BNMomentum)
	}
	if c.LeakySlope <= 0 || c.LeakySlope >= 1 {
		return errors.Wrapf(ErrInvalidConfig, "leaky slope %v not in (0, 1)", c.LeakySlope)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return errors.Wrapf(ErrInvalidConfig, "dropout %v not in [0, 1)", c.Dropout)
	}
	if c.GeneratorLR <= 0 || c.DiscriminatorLR <= 0 {
		return errors.Wrap(ErrInvalidConfig, "learning rates must be > 0")
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 {
		return errors.Wrapf(ErrInvalidConfig, "beta1 %v not in [0, 1)", c.Beta1)
	}

	return nil
}

// encodedSize is the spatial size of the last encoder activation.
func (c Config) encodedSize() int64 {
	s := c.ImageSize
	for range c.EncoderFilters {
		s /= c.EncoderStride
	}
	return int64(s)
}
