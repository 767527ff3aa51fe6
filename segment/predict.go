package segment

import (
	"github.com/pkg/errors"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"

	"github.com/hydrocam/waterseg/imgutil"
)

// Predict returns one water probability frame per input frame. Frames must
// be 3 channel and of the model image size.
func (m *Model) Predict(frames []imgutil.Frame) ([]imgutil.Frame, error) {
	out := make([]imgutil.Frame, 0, len(frames))
	for i, f := range frames {
		if f.Channels != 3 || f.Height != m.arch.ImageSize || f.Width != m.arch.ImageSize {
			return nil, errors.Wrapf(ErrInvalidConfig, "frame %d is [%d %d %d], model expects [3 %d %d]",
				i, f.Channels, f.Height, f.Width, m.arch.ImageSize, m.arch.ImageSize)
		}
	}

	for start := 0; start < len(frames); start += m.cfg.PredictBatchSize {
		end := min(start+m.cfg.PredictBatchSize, len(frames))
		x, err := imgutil.Stack(frames[start:end], m.device)
		if err != nil {
			return nil, err
		}
		var probs *ts.Tensor
		ts.NoGrad(func() {
			probs = m.net.ForwardT(x, false).MustTo(gotch.CPU, true)
		})
		x.MustDrop()
		out = append(out, imgutil.Unstack(probs)...)
		probs.MustDrop()
	}

	return out, nil
}
