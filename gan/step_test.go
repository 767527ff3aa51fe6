package gan

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/imgutil"
)

type failingStep struct {
	calls int
}

func (f *failingStep) BackwardStep(loss *ts.Tensor) error {
	f.calls++
	return errors.New("step failed")
}

func stepConfig() Config {
	cfg := DefaultConfig()
	cfg.ImageSize = 32
	cfg.LatentDim = 16
	cfg.NoiseDim = 8
	cfg.BatchSize = 2
	cfg.EncoderFilters = []int64{4, 8}
	cfg.SeedChannels = 16
	cfg.GeneratorFilters = []int64{8, 4, 4}
	cfg.DiscriminatorFilters = []int64{4, 8, 8}
	cfg.DenseUnits = 8
	cfg.Epochs = 2
	cfg.VizSamples = 2

	return cfg
}

func grayFrames(n int) []imgutil.Frame {
	out := make([]imgutil.Frame, n)
	for i := range out {
		out[i] = imgutil.NewFrame(1, 32, 32)
	}
	return out
}

func TestTrainStopsOnDiscriminatorStepError(t *testing.T) {
	m, err := New(stepConfig(), gotch.CPU)
	require.NoError(t, err)
	step := &failingStep{}
	m.discOpt = step

	res, err := m.Train(context.Background(), grayFrames(4))
	require.ErrorContains(t, err, "discriminator step")
	require.Equal(t, 1, step.calls)
	require.Empty(t, res.Losses)
}

func TestTrainStopsOnGeneratorStepError(t *testing.T) {
	m, err := New(stepConfig(), gotch.CPU)
	require.NoError(t, err)
	step := &failingStep{}
	m.genOpt = step

	res, err := m.Train(context.Background(), grayFrames(4))
	require.ErrorContains(t, err, "generator step")
	require.Equal(t, 1, step.calls)
	require.Empty(t, res.Losses)
}
