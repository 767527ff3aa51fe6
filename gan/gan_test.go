package gan_test

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"

	"github.com/hydrocam/waterseg/gan"
	"github.com/hydrocam/waterseg/imgutil"
)

func smallConfig() gan.Config {
	cfg := gan.DefaultConfig()
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
	cfg.VizSamples = 3

	return cfg
}

func frames(n, size int) []imgutil.Frame {
	out := make([]imgutil.Frame, n)
	for i := range out {
		f := imgutil.NewFrame(1, size, size)
		for j := range f.Data {
			f.Data[j] = float32((i+j)%7) / 6
		}
		out[i] = f
	}
	return out
}

func TestNoiseDimRequired(t *testing.T) {
	cfg := gan.DefaultConfig()
	require.Equal(t, 0, cfg.NoiseDim)

	_, err := gan.New(cfg, gotch.CPU)
	require.True(t, errors.Is(err, gan.ErrInvalidConfig))

	cfg.NoiseDim = 100
	require.NoError(t, cfg.Validate())
}

func TestConfigGeometry(t *testing.T) {
	cfg := smallConfig()
	cfg.ImageSize = 64
	require.True(t, errors.Is(cfg.Validate(), gan.ErrInvalidConfig))

	cfg = smallConfig()
	cfg.DiscriminatorFilters = []int64{1, 1, 1, 1, 1, 1}
	require.True(t, errors.Is(cfg.Validate(), gan.ErrInvalidConfig))

	cfg = smallConfig()
	cfg.BNMomentum = 1
	require.True(t, errors.Is(cfg.Validate(), gan.ErrInvalidConfig))

	require.Equal(t, 10, gan.DefaultConfig().VizEvery())
	cfg.Epochs = 3
	require.Equal(t, 1, cfg.VizEvery())
}

func TestState(t *testing.T) {
	m, err := gan.New(smallConfig(), gotch.CPU)
	require.NoError(t, err)

	state, ok := m.State().(gan.Partial)
	require.True(t, ok)
	require.Equal(t, []gan.Capability{gan.EncoderAdversarialTraining, gan.Reconstruct}, state.Missing)
	require.True(t, state.Has(gan.Generate))
	require.False(t, state.Has(gan.Reconstruct))

	cfg := smallConfig()
	cfg.NoiseDim = cfg.LatentDim
	m, err = gan.New(cfg, gotch.CPU)
	require.NoError(t, err)
	state, ok = m.State().(gan.Partial)
	require.True(t, ok)
	require.Equal(t, []gan.Capability{gan.EncoderAdversarialTraining}, state.Missing)
}

func TestIncompleteOperations(t *testing.T) {
	m, err := gan.New(smallConfig(), gotch.CPU)
	require.NoError(t, err)

	err = m.TrainEncoder(frames(2, 32))
	var inc *gan.IncompleteError
	require.True(t, errors.As(err, &inc))
	require.Equal(t, []gan.Capability{gan.EncoderAdversarialTraining}, inc.Missing)

	_, err = m.Reconstruct(frames(2, 32))
	require.True(t, errors.As(err, &inc))
	require.Equal(t, "reconstruct", inc.Op)
}

func TestShapes(t *testing.T) {
	cfg := smallConfig()
	m, err := gan.New(cfg, gotch.CPU)
	require.NoError(t, err)

	images, err := m.Generate(3)
	require.NoError(t, err)
	require.Len(t, images, 3)
	for _, img := range images {
		require.Equal(t, 1, img.Channels)
		require.Equal(t, 32, img.Height)
		require.Equal(t, 32, img.Width)
		for _, v := range img.Data {
			require.GreaterOrEqual(t, v, float32(0))
			require.LessOrEqual(t, v, float32(1))
		}
	}

	codes, err := m.Encode(frames(2, 32))
	require.NoError(t, err)
	require.Len(t, codes, 2)
	require.Len(t, codes[0], cfg.LatentDim)

	_, err = m.Encode(frames(1, 16))
	require.True(t, errors.Is(err, gan.ErrInvalidConfig))
}

func TestReconstruct(t *testing.T) {
	cfg := smallConfig()
	cfg.NoiseDim = cfg.LatentDim
	m, err := gan.New(cfg, gotch.CPU)
	require.NoError(t, err)

	recon, err := m.Reconstruct(frames(2, 32))
	require.NoError(t, err)
	require.Len(t, recon, 2)
	require.Equal(t, 32, recon[0].Width)
}

func TestTrain(t *testing.T) {
	cfg := smallConfig()
	m, err := gan.New(cfg, gotch.CPU)
	require.NoError(t, err)

	res, err := m.Train(context.Background(), frames(5, 32))
	require.NoError(t, err)
	require.Len(t, res.Losses, 2)
	for _, l := range res.Losses {
		require.Greater(t, l.Generator, 0.0)
		require.Greater(t, l.Discriminator, 0.0)
	}
	// VizEvery is 1 for 2 epochs
	require.Len(t, res.Snapshots, 2)
	require.Len(t, res.Snapshots[0].Images, cfg.VizSamples)

	grid := gan.SnapshotGrid(res.Snapshots)
	require.Len(t, grid, 2)
	require.Len(t, grid[1], cfg.VizSamples)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Train(ctx, frames(2, 32))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSummaryAndSave(t *testing.T) {
	cfg := smallConfig()
	m, err := gan.New(cfg, gotch.CPU)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Summary(&buf))
	out := buf.String()
	require.Contains(t, out, "== encoder discriminator\nnot implemented")
	require.Contains(t, out, "seed.weight")
	require.Contains(t, out, "fc2.weight")
	require.Contains(t, out, "partial")

	dir := t.TempDir()
	require.NoError(t, m.Save(dir))
	_, err = gan.Load(dir, cfg, gotch.CPU)
	require.NoError(t, err)
}

func TestTrainKeepsEncoder(t *testing.T) {
	m, err := gan.New(smallConfig(), gotch.CPU)
	require.NoError(t, err)

	sample := frames(2, 32)
	before, err := m.Encode(sample)
	require.NoError(t, err)

	_, err = m.Train(context.Background(), frames(4, 32))
	require.NoError(t, err)

	after, err := m.Encode(sample)
	require.NoError(t, err)
	for i := range before {
		require.InDeltaSlice(t, before[i], after[i], 1e-6)
	}
}

func TestEncoderBuiltOnFirstUse(t *testing.T) {
	cfg := smallConfig()
	m, err := gan.New(cfg, gotch.CPU)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Summary(&buf))
	require.Contains(t, buf.String(), "== encoder\nbuilt on first use")
	require.NotContains(t, buf.String(), "conv0.weight")

	dir := t.TempDir()
	require.NoError(t, m.Save(dir))
	require.NoFileExists(t, filepath.Join(dir, gan.EncoderFile))
	require.FileExists(t, filepath.Join(dir, gan.GeneratorFile))

	codes, err := m.Encode(frames(2, 32))
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, m.Summary(&buf))
	require.Contains(t, buf.String(), "conv0.weight")

	dir = t.TempDir()
	require.NoError(t, m.Save(dir))
	require.FileExists(t, filepath.Join(dir, gan.EncoderFile))

	loaded, err := gan.Load(dir, cfg, gotch.CPU)
	require.NoError(t, err)
	again, err := loaded.Encode(frames(2, 32))
	require.NoError(t, err)
	for i := range codes {
		require.InDeltaSlice(t, codes[i], again[i], 1e-6)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestSummaryWriteError(t *testing.T) {
	m, err := gan.New(smallConfig(), gotch.CPU)
	require.NoError(t, err)
	require.ErrorIs(t, m.Summary(failingWriter{}), io.ErrClosedPipe)
}
