package metric

import (
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"
)

// DefaultSmooth is the smoothing term added to both sides of the Dice ratio.
const DefaultSmooth = 1e-15

// DiceCoeff computes the soft Dice coefficient between predicted
// probabilities and a binary target on flattened tensors:
//
//	(2*sum(y*p) + smooth) / (sum(y) + sum(p) + smooth)
//
// The result is a differentiable scalar tensor.
// Ref. http://campar.in.tum.de/pub/milletari2016Vnet/milletari2016Vnet.pdf
func DiceCoeff(pred, target *ts.Tensor, smooth float64) *ts.Tensor {
	pflat := pred.MustView([]int64{-1}, false)
	tflat := target.MustView([]int64{-1}, false).MustTotype(pflat.DType(), true)

	ptMul := pflat.MustMul(tflat, false)
	intersection := ptMul.MustSum(gotch.Double, true)
	pSum := pflat.MustSum(gotch.Double, true)
	tSum := tflat.MustSum(gotch.Double, true)

	numerator := intersection.MustMulScalar(ts.FloatScalar(2.0), true).MustAddScalar(ts.FloatScalar(smooth), true)
	denominator := pSum.MustAdd(tSum, true).MustAddScalar(ts.FloatScalar(smooth), true)
	tSum.MustDrop()

	dice := numerator.MustDiv(denominator, true)
	denominator.MustDrop()

	return dice
}

// DiceLoss is 1 - DiceCoeff. It is 0 for identical binary masks and close to
// 1 for disjoint non-empty ones.
func DiceLoss(pred, target *ts.Tensor, smooth float64) *ts.Tensor {
	dice := DiceCoeff(pred, target, smooth)
	return dice.MustMulScalar(ts.FloatScalar(-1), true).MustAddScalar(ts.FloatScalar(1), true)
}

// DiceScore returns the Dice coefficient as a float value.
func DiceScore(pred, target *ts.Tensor) float64 {
	var score float64
	ts.NoGrad(func() {
		dice := DiceCoeff(pred, target, DefaultSmooth)
		score = dice.Float64Values()[0]
		dice.MustDrop()
	})

	return score
}
