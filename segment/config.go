package segment

import (
	"github.com/pkg/errors"

	"github.com/hydrocam/waterseg/encoder"
	"github.com/hydrocam/waterseg/unet"
)

// ErrInvalidConfig is returned for an architecture or training
// configuration that cannot be used.
var ErrInvalidConfig = errors.New("invalid segmentation config")

// Scratch is the backbone name of the plain U-Net without pretrained
// encoder.
const Scratch = "scratch"

// Arch describes the network. It is the only configuration saved with the
// weights.
type Arch struct {
	Backbone      string  `yaml:"backbone"`
	ImageSize     int     `yaml:"image_size"`
	Filters       []int64 `yaml:"filters"`
	FreezeEncoder bool    `yaml:"freeze_encoder"`
}

// DefaultArch returns a MobileNetV2 U-Net on 512x512 frames with a frozen
// encoder.
func DefaultArch() Arch {
	return Arch{
		Backbone:      encoder.MobileNetV2,
		ImageSize:     512,
		Filters:       append([]int64(nil), unet.DefaultFilters...),
		FreezeEncoder: true,
	}
}

// Validate checks the architecture.
func (a Arch) Validate() error {
	switch a.Backbone {
	case encoder.MobileNetV2, encoder.ResNet34, Scratch:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown backbone %q", a.Backbone)
	}
	if a.ImageSize <= 0 || a.ImageSize%16 != 0 {
		return errors.Wrapf(ErrInvalidConfig, "image size %d must be a positive multiple of 16", a.ImageSize)
	}
	if len(a.Filters) != 4 {
		return errors.Wrapf(ErrInvalidConfig, "need 4 decoder filters, got %d", len(a.Filters))
	}
	for _, f := range a.Filters {
		if f <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "invalid filter %d", f)
		}
	}

	return nil
}

// Supported optimizers.
const (
	Adam    = "adam"
	AdamW   = "adamw"
	SGD     = "sgd"
	RMSProp = "rmsprop"
)

// TrainConfig holds everything needed to train and evaluate a model. It is
// never persisted and must be supplied again when a model is loaded.
type TrainConfig struct {
	Optimizer        string  `yaml:"optimizer"`
	LearningRate     float64 `yaml:"learning_rate"`
	Epochs           int     `yaml:"epochs"`
	BatchSize        int     `yaml:"batch_size"`
	PredictBatchSize int     `yaml:"predict_batch_size"`
	ValidationSplit  float64 `yaml:"validation_split"`
	Smooth           float64 `yaml:"smooth"`
	Shuffle          bool    `yaml:"shuffle"`
	Seed             uint64  `yaml:"seed"`

	// PretrainedWeights is a gotch weight file partially loaded into the
	// encoder of a new model.
	PretrainedWeights string `yaml:"pretrained_weights"`
}

// DefaultTrainConfig returns the default training setup: Adam 1e-4, 150
// epochs of batch 20, Dice loss smoothing 1e-15.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Optimizer:        Adam,
		LearningRate:     1e-4,
		Epochs:           150,
		BatchSize:        20,
		PredictBatchSize: 32,
		ValidationSplit:  0,
		Smooth:           1e-15,
		Shuffle:          true,
	}
}

// Validate checks the training configuration.
func (c TrainConfig) Validate() error {
	switch c.Optimizer {
	case Adam, AdamW, SGD, RMSProp:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown optimizer %q", c.Optimizer)
	}
	switch {
	case c.LearningRate <= 0:
		return errors.Wrapf(ErrInvalidConfig, "learning rate %v", c.LearningRate)
	case c.Epochs <= 0:
		return errors.Wrapf(ErrInvalidConfig, "epochs %d", c.Epochs)
	case c.BatchSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "batch size %d", c.BatchSize)
	case c.PredictBatchSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "predict batch size %d", c.PredictBatchSize)
	case c.ValidationSplit < 0 || c.ValidationSplit >= 1:
		return errors.Wrapf(ErrInvalidConfig, "validation split %v not in [0, 1)", c.ValidationSplit)
	case c.Smooth < 0:
		return errors.Wrapf(ErrInvalidConfig, "smooth %v", c.Smooth)
	}

	return nil
}
