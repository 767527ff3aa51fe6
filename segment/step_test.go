package segment

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/dataset"
	"github.com/hydrocam/waterseg/imgutil"
)

type failingStep struct {
	calls int
}

func (f *failingStep) BackwardStep(loss *ts.Tensor) error {
	f.calls++
	return errors.New("step failed")
}

func TestFitStopsOnStepError(t *testing.T) {
	arch := Arch{Backbone: Scratch, ImageSize: 16, Filters: []int64{16, 8, 8, 4}}
	cfg := DefaultTrainConfig()
	cfg.Epochs = 2
	cfg.BatchSize = 2
	cfg.ValidationSplit = 0

	m, err := New(arch, cfg, gotch.CPU)
	require.NoError(t, err)
	step := &failingStep{}
	m.opt = step

	pairs := make([]dataset.Pair, 4)
	for i := range pairs {
		pairs[i] = dataset.Pair{Image: imgutil.NewFrame(3, 16, 16), Mask: imgutil.NewFrame(1, 16, 16)}
	}

	history, err := m.Fit(context.Background(), pairs)
	require.ErrorContains(t, err, "backward step")
	require.Equal(t, 1, step.calls)
	require.Empty(t, history.Epochs)
}
