package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sugarme/gotch"
	"gopkg.in/yaml.v3"

	"github.com/hydrocam/waterseg/gan"
	"github.com/hydrocam/waterseg/logging"
	"github.com/hydrocam/waterseg/segment"
)

// Environment variables read by Load.
const (
	EnvConfig = "WATERSEG_CONFIG"
	EnvDevice = "WATERSEG_DEVICE"
)

// Data locates the datasets.
type Data struct {
	// Annotated is a directory of images with a VIA annotation file.
	Annotated      string `yaml:"annotated"`
	AnnotationFile string `yaml:"annotation_file"`
	// Folder is a root with images/<subset> and truth/<subset> trees.
	Folder string `yaml:"folder"`
	// GAN is a flat directory of training images for the generator.
	GAN string `yaml:"gan"`
}

// Config is the configuration of both command line drivers.
type Config struct {
	Device   string              `yaml:"device"` // cpu | cuda | auto
	ModelDir string              `yaml:"model_dir"`
	Results  string              `yaml:"results"`
	Log      logging.Config      `yaml:"log"`
	Data     Data                `yaml:"data"`
	Arch     segment.Arch        `yaml:"arch"`
	Train    segment.TrainConfig `yaml:"train"`
	GAN      gan.Config          `yaml:"gan"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Device:   "cpu",
		ModelDir: "saved_models/u-net",
		Results:  "results",
		Log:      logging.DefaultConfig(),
		Data: Data{
			AnnotationFile: "segmentation.json",
		},
		Arch:  segment.DefaultArch(),
		Train: segment.DefaultTrainConfig(),
		GAN:   gan.DefaultConfig(),
	}
}

// Load reads `.env` if present, then the YAML file at path (or the
// WATERSEG_CONFIG file when path is empty) over the defaults. WATERSEG_DEVICE
// overrides the device.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if d := os.Getenv(EnvDevice); d != "" {
		cfg.Device = d
	}

	return cfg, nil
}

// Validate checks the segmentation part of the configuration. The GAN part
// is validated when a GAN is built since its noise dimension has no default.
func (c Config) Validate() error {
	if _, err := c.DeviceOf(); err != nil {
		return err
	}
	if err := c.Arch.Validate(); err != nil {
		return err
	}
	return c.Train.Validate()
}

// DeviceOf resolves the configured device.
func (c Config) DeviceOf() (gotch.Device, error) {
	switch strings.ToLower(c.Device) {
	case "", "auto":
		return gotch.NewCuda().CudaIfAvailable(), nil
	case "cpu":
		return gotch.CPU, nil
	case "cuda", "gpu":
		return gotch.CudaBuilder(0), nil
	default:
		return gotch.CPU, errors.Errorf("unknown device %q", c.Device)
	}
}
