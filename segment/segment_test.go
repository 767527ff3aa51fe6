package segment_test

import (
	"bytes"
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"

	"github.com/hydrocam/waterseg/dataset"
	"github.com/hydrocam/waterseg/encoder"
	"github.com/hydrocam/waterseg/imgutil"
	"github.com/hydrocam/waterseg/segment"
)

func randomPairs(n, size int) []dataset.Pair {
	rng := rand.New(rand.NewSource(7))
	pairs := make([]dataset.Pair, n)
	for i := range pairs {
		img := imgutil.NewFrame(3, size, size)
		for j := range img.Data {
			img.Data[j] = rng.Float32()
		}
		mask := imgutil.NewFrame(1, size, size)
		for j := size * size / 2; j < len(mask.Data); j++ {
			mask.Data[j] = 1
		}
		pairs[i] = dataset.Pair{Name: "p", Image: img, Mask: mask}
	}

	return pairs
}

func tinyConfig() (segment.Arch, segment.TrainConfig) {
	arch := segment.Arch{
		Backbone:  segment.Scratch,
		ImageSize: 16,
		Filters:   []int64{16, 8, 8, 4},
	}
	cfg := segment.DefaultTrainConfig()
	cfg.Epochs = 1
	cfg.BatchSize = 2
	cfg.PredictBatchSize = 3
	cfg.Seed = 1

	return arch, cfg
}

func TestFitSaveLoadPredict(t *testing.T) {
	arch, cfg := tinyConfig()
	m, err := segment.New(arch, cfg, gotch.CPU)
	require.NoError(t, err)

	pairs := randomPairs(4, arch.ImageSize)
	history, err := m.Fit(context.Background(), pairs)
	require.NoError(t, err)
	require.Len(t, history.Epochs, 1)
	require.Equal(t, m.RunID(), history.RunID)

	frames := []imgutil.Frame{pairs[0].Image, pairs[1].Image, pairs[2].Image, pairs[3].Image}
	before, err := m.Predict(frames)
	require.NoError(t, err)
	require.Len(t, before, 4)

	dir := t.TempDir()
	require.NoError(t, m.Save(dir))

	loaded, err := segment.Load(dir, cfg, gotch.CPU)
	require.NoError(t, err)
	require.Equal(t, arch, loaded.Arch())
	require.Equal(t, m.RunID(), loaded.RunID())

	after, err := loaded.Predict(frames)
	require.NoError(t, err)
	require.Len(t, after, 4)
	for i := range before {
		require.Equal(t, 1, after[i].Channels)
		require.Equal(t, arch.ImageSize, after[i].Height)
		require.InDeltaSlice(t, before[i].Data, after[i].Data, 1e-5)
	}

	metrics, err := loaded.Evaluate(pairs)
	require.NoError(t, err)
	require.GreaterOrEqual(t, metrics.Dice, 0.0)
	require.LessOrEqual(t, metrics.Dice, 1.0)
}

func TestLoadRequiresValidConfig(t *testing.T) {
	arch, cfg := tinyConfig()
	m, err := segment.New(arch, cfg, gotch.CPU)
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, m.Save(dir))

	_, err = segment.Load(dir, segment.TrainConfig{}, gotch.CPU)
	require.True(t, errors.Is(err, segment.ErrInvalidConfig))

	_, err = segment.Load(filepath.Join(dir, "missing"), cfg, gotch.CPU)
	require.Error(t, err)
}

func TestFitFrozenMobileNet(t *testing.T) {
	arch := segment.DefaultArch()
	arch.ImageSize = 32
	_, cfg := tinyConfig()
	cfg.ValidationSplit = 0.25
	m, err := segment.New(arch, cfg, gotch.CPU)
	require.NoError(t, err)

	history, err := m.Fit(context.Background(), randomPairs(4, 32))
	require.NoError(t, err)
	require.Len(t, history.Epochs, 1)
	require.Greater(t, history.Epochs[0].ValLoss, 0.0)

	var buf bytes.Buffer
	require.NoError(t, history.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "ValDice")

	require.NoError(t, history.Plot(filepath.Join(t.TempDir(), "history.svg")))
}

func TestFitCancelled(t *testing.T) {
	arch, cfg := tinyConfig()
	m, err := segment.New(arch, cfg, gotch.CPU)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	history, err := m.Fit(ctx, randomPairs(2, arch.ImageSize))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, history.Epochs)
}

func TestFitRejectsWrongSize(t *testing.T) {
	arch, cfg := tinyConfig()
	m, err := segment.New(arch, cfg, gotch.CPU)
	require.NoError(t, err)

	_, err = m.Fit(context.Background(), randomPairs(2, 32))
	require.True(t, errors.Is(err, segment.ErrInvalidConfig))
	_, err = m.Predict([]imgutil.Frame{imgutil.NewFrame(1, 16, 16)})
	require.True(t, errors.Is(err, segment.ErrInvalidConfig))
}

func TestValidate(t *testing.T) {
	require.NoError(t, segment.DefaultArch().Validate())
	require.NoError(t, segment.DefaultTrainConfig().Validate())

	arch := segment.DefaultArch()
	arch.Backbone = "vgg"
	require.True(t, errors.Is(arch.Validate(), segment.ErrInvalidConfig))

	arch = segment.DefaultArch()
	arch.ImageSize = 100
	require.True(t, errors.Is(arch.Validate(), segment.ErrInvalidConfig))

	arch = segment.DefaultArch()
	arch.Backbone = encoder.ResNet34
	arch.Filters = []int64{1, 2}
	require.True(t, errors.Is(arch.Validate(), segment.ErrInvalidConfig))

	cfg := segment.DefaultTrainConfig()
	cfg.ValidationSplit = 1
	require.True(t, errors.Is(cfg.Validate(), segment.ErrInvalidConfig))

	cfg = segment.DefaultTrainConfig()
	cfg.Optimizer = "nadam"
	require.True(t, errors.Is(cfg.Validate(), segment.ErrInvalidConfig))
}

func TestSummary(t *testing.T) {
	arch, cfg := tinyConfig()
	m, err := segment.New(arch, cfg, gotch.CPU)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Summary(&buf))
	require.Contains(t, buf.String(), "head.weight")
	require.Contains(t, buf.String(), "backbone: scratch")
}
