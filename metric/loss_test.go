package metric_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/metric"
)

func mask(vals []float32) *ts.Tensor {
	return ts.MustOfSlice(vals).MustView([]int64{1, 1, 3, 3}, true)
}

func TestDiceLossIdentical(t *testing.T) {
	m := []float32{1, 0, 0, 1, 0, 0, 1, 0, 0}
	pred := mask(m)
	target := mask(m)

	loss := metric.DiceLoss(pred, target, metric.DefaultSmooth)
	require.InDelta(t, 0.0, loss.Float64Values()[0], 1e-6)
}

func TestDiceLossDisjoint(t *testing.T) {
	pred := mask([]float32{1, 1, 1, 0, 0, 0, 0, 0, 0})
	target := mask([]float32{0, 0, 0, 0, 0, 0, 1, 1, 1})

	loss := metric.DiceLoss(pred, target, metric.DefaultSmooth)
	require.InDelta(t, 1.0, loss.Float64Values()[0], 1e-6)
}

func TestDiceCoeff(t *testing.T) {
	pred := mask([]float32{1, 0, 0, 1, 0, 0, 1, 0, 0})
	target := mask([]float32{1, 0, 0, 1, 1, 0, 1, 0, 0})

	dice := metric.DiceCoeff(pred, target, metric.DefaultSmooth)
	require.InDelta(t, 6.0/7.0, dice.Float64Values()[0], 1e-4) // 0.8571
	require.InDelta(t, 6.0/7.0, metric.DiceScore(pred, target), 1e-4)
}

func TestConfusion(t *testing.T) {
	pred := mask([]float32{0.9, 0, 0, 0.8, 0, 0, 0.7, 0.6, 0})
	target := mask([]float32{1, 0, 0, 1, 1, 0, 1, 0, 0})

	var c metric.Confusion
	c.Update(pred, target)
	require.Equal(t, metric.Confusion{TP: 3, FP: 1, FN: 1, TN: 4}, c)

	// Counts accumulate across batches.
	c.Update(pred, target)
	require.Equal(t, 6.0, c.TP)
	require.InDelta(t, 0.75, c.Recall(), 1e-9)
	require.InDelta(t, 0.75, c.Precision(), 1e-9)
	require.InDelta(t, 0.6, c.IoU(), 1e-9)

	c.Reset()
	require.Equal(t, 0.0, c.Recall())
	require.Equal(t, 0.0, c.Precision())
}

func TestBCEWithLogits(t *testing.T) {
	logits := ts.MustOfSlice([]float32{0, 2, -3})
	targets := ts.MustOfSlice([]float32{1, 1, 0})

	loss := metric.BCEWithLogits(logits, targets).Float64Values()[0]

	// -log(sigmoid(x)) for t=1, -log(1-sigmoid(x)) for t=0
	want := (math.Log(2) + math.Log1p(math.Exp(-2)) + math.Log1p(math.Exp(-3))) / 3
	require.InDelta(t, want, loss, 1e-5)
}
