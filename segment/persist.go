package segment

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sugarme/gotch"
	"gopkg.in/yaml.v3"
)

// File names inside a model directory.
const (
	WeightsFile  = "weights.ot"
	ManifestFile = "model.yaml"
)

// manifest is the persisted description of a model. It only holds the
// architecture: the training configuration is supplied again at Load.
type manifest struct {
	Arch    Arch      `yaml:"arch"`
	RunID   string    `yaml:"run_id"`
	SavedAt time.Time `yaml:"saved_at"`
}

// Save writes the weights and architecture of m to dir.
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "save model")
	}
	if err := m.vs.Save(filepath.Join(dir, WeightsFile)); err != nil {
		return errors.Wrap(err, "save weights")
	}

	data, err := yaml.Marshal(manifest{Arch: m.arch, RunID: m.runID, SavedAt: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "encode manifest")
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return errors.Wrap(err, "save manifest")
	}
	log.WithFields(log.Fields{"dir": dir, "run": m.runID}).Info("saved model")

	return nil
}

// Load rebuilds a model saved in dir. cfg is required: it re-attaches the
// optimizer, loss and metric settings that are not saved with the model.
func Load(dir string, cfg TrainConfig, device gotch.Device) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, errors.Wrap(err, "load model")
	}
	var mf manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "decode manifest: %v", err)
	}

	m, err := build(mf.Arch, cfg, device)
	if err != nil {
		return nil, err
	}
	if err := m.vs.Load(filepath.Join(dir, WeightsFile)); err != nil {
		return nil, errors.Wrap(err, "load weights")
	}
	if mf.RunID != "" {
		m.runID = mf.RunID
	}

	return m, nil
}
