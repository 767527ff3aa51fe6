package metric

import (
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"
)

// Threshold is the probability above which a pixel counts as foreground.
const Threshold = 0.5

// Confusion accumulates pixel counts of thresholded predictions over many
// batches. Recall and precision are computed on the totals, not averaged per
// batch.
type Confusion struct {
	TP float64
	FP float64
	FN float64
	TN float64
}

// Update adds the counts of one batch.
func (c *Confusion) Update(pred, target *ts.Tensor) {
	ts.NoGrad(func() {
		p := pred.MustView([]int64{-1}, false).MustGt(ts.FloatScalar(Threshold), true).MustTotype(gotch.Double, true)
		t := target.MustView([]int64{-1}, false).MustGt(ts.FloatScalar(Threshold), true).MustTotype(gotch.Double, true)

		ptMul := p.MustMul(t, false)
		tp := ptMul.MustSum(gotch.Double, true).Float64Values()[0]
		pSum := p.MustSum(gotch.Double, true).Float64Values()[0]
		tSum := t.MustSum(gotch.Double, true).Float64Values()[0]
		n := float64(pred.Numel())

		c.TP += tp
		c.FP += pSum - tp
		c.FN += tSum - tp
		c.TN += n - pSum - tSum + tp
	})
}

// Reset zeroes all counts.
func (c *Confusion) Reset() {
	*c = Confusion{}
}

// Recall is TP / (TP + FN), 0 when there is no positive target.
func (c *Confusion) Recall() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

// Precision is TP / (TP + FP), 0 when nothing was predicted positive.
func (c *Confusion) Precision() float64 {
	return ratio(c.TP, c.TP+c.FP)
}

// IoU is TP / (TP + FP + FN).
func (c *Confusion) IoU() float64 {
	return ratio(c.TP, c.TP+c.FP+c.FN)
}

// Accuracy is the fraction of correctly classified pixels.
func (c *Confusion) Accuracy() float64 {
	return ratio(c.TP+c.TN, c.TP+c.TN+c.FP+c.FN)
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
