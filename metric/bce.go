package metric

import (
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"
)

// BCEWithLogits computes the mean binary cross entropy between logits and
// targets in the numerically stable form
//
//	max(x, 0) - x*t + log(1 + exp(-|x|))
func BCEWithLogits(logits, targets *ts.Tensor) *ts.Tensor {
	x := logits.MustView([]int64{-1}, false)
	t := targets.MustView([]int64{-1}, false).MustTotype(x.DType(), true)

	pos := x.MustRelu(false)
	xt := x.MustMul(t, false)
	t.MustDrop()
	softplus := x.MustAbs(false).MustNeg(true).MustExp(true).MustLog1p(true)
	x.MustDrop()

	loss := pos.MustSub(xt, true).MustAdd(softplus, true)
	xt.MustDrop()
	softplus.MustDrop()

	return loss.MustMean(gotch.Float, true)
}

// Fill returns a tensor shaped like x filled with value. It is used to build
// the real/fake targets of adversarial losses.
func Fill(x *ts.Tensor, value float64) *ts.Tensor {
	return x.MustOnesLike(false).MustMulScalar(ts.FloatScalar(value), true)
}
