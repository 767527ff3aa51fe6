package gan

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hydrocam/waterseg/imgutil"
	"github.com/hydrocam/waterseg/metric"
)

// Snapshot holds images generated from pure noise at the end of an epoch.
type Snapshot struct {
	Epoch  int
	Images []imgutil.Frame
}

// EpochLoss is the smallest generator and discriminator loss seen in an
// epoch.
type EpochLoss struct {
	Epoch         int
	Generator     float64
	Discriminator float64
}

// Result is the outcome of Train.
type Result struct {
	Losses    []EpochLoss
	Snapshots []Snapshot
}

// VizEvery returns the epoch interval between snapshots.
func (c Config) VizEvery() int {
	return max(1, c.Epochs/10)
}

// Train runs adversarial training of the generator against the image
// discriminator on frames. Every VizEvery epochs, VizSamples images are
// generated and kept in the result.
func (m *Model) Train(ctx context.Context, frames []imgutil.Frame) (*Result, error) {
	if err := m.require("train", ImageAdversarialTraining); err != nil {
		return nil, err
	}
	if err := m.checkFrames(frames); err != nil {
		return nil, err
	}

	res := &Result{}
	every := m.cfg.VizEvery()
	for epoch := 0; epoch < m.cfg.Epochs; epoch++ {
		start := time.Now()
		loss := EpochLoss{Epoch: epoch + 1, Generator: math.Inf(1), Discriminator: math.Inf(1)}

		batch := make([]imgutil.Frame, 0, m.cfg.BatchSize)
		for i, f := range frames {
			batch = append(batch, f)
			if len(batch) < m.cfg.BatchSize && i < len(frames)-1 {
				continue
			}
			if err := ctx.Err(); err != nil {
				return res, err
			}
			gLoss, dLoss, err := m.trainStep(batch)
			if err != nil {
				return res, err
			}
			loss.Generator = math.Min(loss.Generator, gLoss)
			loss.Discriminator = math.Min(loss.Discriminator, dLoss)
			batch = batch[:0]
		}
		res.Losses = append(res.Losses, loss)

		if epoch%every == 0 {
			images, err := m.Generate(m.cfg.VizSamples)
			if err != nil {
				return res, err
			}
			res.Snapshots = append(res.Snapshots, Snapshot{Epoch: epoch + 1, Images: images})
		}

		log.WithFields(log.Fields{
			"generatorLoss":     loss.Generator,
			"discriminatorLoss": loss.Discriminator,
		}).Infof("epoch %d/%d done in %.1fs", epoch+1, m.cfg.Epochs, time.Since(start).Seconds())
	}

	return res, nil
}

// trainStep updates the discriminator on real and detached generated images,
// then the generator on the discriminator verdict of its images. Each
// optimizer only steps its own sub-network.
func (m *Model) trainStep(batch []imgutil.Frame) (gLoss, dLoss float64, err error) {
	realImgs, err := imgutil.Stack(batch, m.device)
	if err != nil {
		return 0, 0, err
	}
	noise := m.noise(len(batch))
	fake := m.generator.ForwardT(noise, true)
	noise.MustDrop()

	// discriminator: real -> 1, fake -> 0
	fakeDetached := fake.MustDetach(false)
	realLogit := m.discriminator.ForwardT(realImgs, true)
	fakeLogit := m.discriminator.ForwardT(fakeDetached, true)
	realImgs.MustDrop()
	fakeDetached.MustDrop()

	ones := metric.Fill(realLogit, 1)
	zeros := metric.Fill(fakeLogit, 0)
	realLoss := metric.BCEWithLogits(realLogit, ones)
	fakeLoss := metric.BCEWithLogits(fakeLogit, zeros)
	discLoss := realLoss.MustAdd(fakeLoss, true)
	fakeLoss.MustDrop()
	realLogit.MustDrop()
	fakeLogit.MustDrop()
	zeros.MustDrop()

	if err := m.discOpt.BackwardStep(discLoss); err != nil {
		discLoss.MustDrop()
		ones.MustDrop()
		fake.MustDrop()
		return 0, 0, errors.Wrap(err, "discriminator step")
	}
	dLoss = discLoss.Float64Values()[0]
	discLoss.MustDrop()

	// generator: fake -> 1
	verdict := m.discriminator.ForwardT(fake, true)
	genLoss := metric.BCEWithLogits(verdict, ones)
	if err := m.genOpt.BackwardStep(genLoss); err != nil {
		genLoss.MustDrop()
		verdict.MustDrop()
		ones.MustDrop()
		fake.MustDrop()
		return 0, 0, errors.Wrap(err, "generator step")
	}
	gLoss = genLoss.Float64Values()[0]

	genLoss.MustDrop()
	verdict.MustDrop()
	ones.MustDrop()
	fake.MustDrop()

	return gLoss, dLoss, nil
}

// SnapshotGrid arranges snapshot images as grid rows, one row per snapshot.
func SnapshotGrid(snapshots []Snapshot) [][]image.Image {
	rows := make([][]image.Image, len(snapshots))
	for i, s := range snapshots {
		for _, f := range s.Images {
			rows[i] = append(rows[i], f.Image())
		}
	}
	return rows
}
