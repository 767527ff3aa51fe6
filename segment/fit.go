package segment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"
	"gonum.org/v1/gonum/stat"

	"github.com/hydrocam/waterseg/dataset"
	"github.com/hydrocam/waterseg/imgutil"
	"github.com/hydrocam/waterseg/metric"
)

// Metrics are the Dice loss and scores of one pass over a dataset.
type Metrics struct {
	Loss      float64
	Dice      float64
	Recall    float64
	Precision float64
}

// batchTensors stacks a batch of pairs into image and mask tensors on
// device.
func batchTensors(batch []dataset.Pair, device gotch.Device) (img, mask *ts.Tensor, err error) {
	images := make([]imgutil.Frame, len(batch))
	masks := make([]imgutil.Frame, len(batch))
	for i, p := range batch {
		images[i] = p.Image
		masks[i] = p.Mask
	}
	img, err = imgutil.Stack(images, device)
	if err != nil {
		return nil, nil, err
	}
	mask, err = imgutil.Stack(masks, device)
	if err != nil {
		img.MustDrop()
		return nil, nil, err
	}

	return img, mask, nil
}

// epochMeter accumulates batch results weighted by batch size.
type epochMeter struct {
	losses  []float64
	dices   []float64
	weights []float64
	conf    metric.Confusion
}

func (e *epochMeter) add(loss, dice float64, n int) {
	e.losses = append(e.losses, loss)
	e.dices = append(e.dices, dice)
	e.weights = append(e.weights, float64(n))
}

func (e *epochMeter) metrics() Metrics {
	if len(e.losses) == 0 {
		return Metrics{}
	}
	return Metrics{
		Loss:      stat.Mean(e.losses, e.weights),
		Dice:      stat.Mean(e.dices, e.weights),
		Recall:    e.conf.Recall(),
		Precision: e.conf.Precision(),
	}
}

func (m *Model) checkPairs(pairs []dataset.Pair) error {
	for _, p := range pairs {
		if p.Image.Height != m.arch.ImageSize || p.Image.Width != m.arch.ImageSize {
			return errors.Wrapf(ErrInvalidConfig, "pair %q is %dx%d, model expects %dx%d",
				p.Name, p.Image.Width, p.Image.Height, m.arch.ImageSize, m.arch.ImageSize)
		}
	}
	return nil
}

// Fit trains the model on pairs for the configured number of epochs. The last
// ValidationSplit fraction of pairs is held out and evaluated after each
// epoch. Cancelling ctx stops training between batches and returns the
// history so far with the context error.
func (m *Model) Fit(ctx context.Context, pairs []dataset.Pair) (*History, error) {
	if len(pairs) == 0 {
		return nil, errors.New("fit: no training pair")
	}
	if err := m.checkPairs(pairs); err != nil {
		return nil, err
	}
	train, val := dataset.Split(pairs, m.cfg.ValidationSplit)

	dl, err := dataset.NewLoader(train, m.cfg.BatchSize, m.cfg.Shuffle, m.cfg.Seed)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"run":       m.runID,
		"train":     len(train),
		"val":       len(val),
		"epochs":    m.cfg.Epochs,
		"batchSize": m.cfg.BatchSize,
	}).Info("start training")

	history := &History{RunID: m.runID}
	for e := 0; e < m.cfg.Epochs; e++ {
		start := time.Now()
		if e > 0 {
			dl.Reset(m.cfg.Shuffle)
		}
		var meter epochMeter
		for dl.HasNext() {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			batch, err := dataset.NextBatch(dl)
			if err != nil {
				return history, err
			}
			if err := m.trainStep(batch, &meter); err != nil {
				return history, err
			}
		}

		tm := meter.metrics()
		stats := EpochStats{
			Epoch:     e + 1,
			Loss:      tm.Loss,
			Dice:      tm.Dice,
			Recall:    tm.Recall,
			Precision: tm.Precision,
		}
		if len(val) > 0 {
			vm, err := m.Evaluate(val)
			if err != nil {
				return history, err
			}
			stats.ValLoss = vm.Loss
			stats.ValDice = vm.Dice
		}
		stats.Seconds = time.Since(start).Seconds()
		history.Epochs = append(history.Epochs, stats)

		log.WithFields(log.Fields{
			"epoch":     stats.Epoch,
			"loss":      stats.Loss,
			"dice":      stats.Dice,
			"recall":    stats.Recall,
			"precision": stats.Precision,
			"valLoss":   stats.ValLoss,
			"valDice":   stats.ValDice,
		}).Infof("epoch %03d done in %.1fs", stats.Epoch, stats.Seconds)
	}

	return history, nil
}

func (m *Model) trainStep(batch []dataset.Pair, meter *epochMeter) error {
	img, mask, err := batchTensors(batch, m.device)
	if err != nil {
		return err
	}
	pred := m.net.ForwardT(img, true)
	img.MustDrop()

	loss := metric.DiceLoss(pred, mask, m.cfg.Smooth)
	if err := m.opt.BackwardStep(loss); err != nil {
		loss.MustDrop()
		pred.MustDrop()
		mask.MustDrop()
		return errors.Wrap(err, "backward step")
	}
	lossVal := loss.Float64Values()[0]
	loss.MustDrop()

	var dice float64
	ts.NoGrad(func() {
		d := metric.DiceCoeff(pred, mask, m.cfg.Smooth)
		dice = d.Float64Values()[0]
		d.MustDrop()
	})
	meter.conf.Update(pred, mask)
	meter.add(lossVal, dice, len(batch))

	pred.MustDrop()
	mask.MustDrop()

	return nil
}

// Evaluate computes the Dice loss and metrics of pairs without updating
// weights.
func (m *Model) Evaluate(pairs []dataset.Pair) (Metrics, error) {
	if len(pairs) == 0 {
		return Metrics{}, errors.New("evaluate: no pair")
	}
	if err := m.checkPairs(pairs); err != nil {
		return Metrics{}, err
	}

	var meter epochMeter
	for start := 0; start < len(pairs); start += m.cfg.PredictBatchSize {
		end := min(start+m.cfg.PredictBatchSize, len(pairs))
		batch := pairs[start:end]
		img, mask, err := batchTensors(batch, m.device)
		if err != nil {
			return Metrics{}, err
		}

		var loss, dice float64
		ts.NoGrad(func() {
			pred := m.net.ForwardT(img, false)
			l := metric.DiceLoss(pred, mask, m.cfg.Smooth)
			loss = l.Float64Values()[0]
			dice = 1 - loss
			l.MustDrop()
			meter.conf.Update(pred, mask)
			pred.MustDrop()
		})
		meter.add(loss, dice, len(batch))
		img.MustDrop()
		mask.MustDrop()
	}

	return meter.metrics(), nil
}
