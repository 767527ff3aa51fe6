package dataset

import (
	"math/rand/v2"
	"reflect"

	"github.com/pkg/errors"
	"github.com/sugarme/gotch/dutil"
)

// PairDataset implements dutil.Dataset over pairs held in memory.
type PairDataset struct {
	pairs []Pair
}

// NewPairDataset creates a PairDataset.
func NewPairDataset(pairs []Pair) *PairDataset {
	return &PairDataset{pairs: pairs}
}

// Len implements dutil.Dataset.
func (ds *PairDataset) Len() int {
	return len(ds.pairs)
}

// Item implements dutil.Dataset. The item is a Pair.
func (ds *PairDataset) Item(idx int) (interface{}, error) {
	if idx < 0 || idx >= len(ds.pairs) {
		return nil, errors.Errorf("pair index %d out of range [0, %d)", idx, len(ds.pairs))
	}
	return ds.pairs[idx], nil
}

// DType implements dutil.Dataset.
func (ds *PairDataset) DType() reflect.Type {
	return reflect.TypeOf(ds.pairs)
}

// seededSampler permutes the batches of an ordered dutil.BatchSampler with
// its own random stream so a seeded run repeats its shuffles.
type seededSampler struct {
	*dutil.BatchSampler
	n   int
	rng *rand.Rand
}

// Sample implements dutil.Sampler.
func (s *seededSampler) Sample() []int {
	perm := s.rng.Perm(s.n)
	idx := s.BatchSampler.Sample()
	for i, j := range idx {
		idx[i] = perm[j]
	}
	return idx
}

// NewLoader creates a data loader over pairs. batchSize is capped at the
// number of pairs and the trailing partial batch is kept. With shuffle, a
// non-zero seed makes the order reproducible; call Reset(true) on the
// loader to reshuffle for a new epoch.
func NewLoader(pairs []Pair, batchSize int, shuffle bool, seed uint64) (*dutil.DataLoader, error) {
	n := len(pairs)
	if n == 0 {
		return nil, errors.New("loader: no pair")
	}
	batchSize = min(batchSize, n)

	var s dutil.Sampler
	switch {
	case shuffle && seed != 0:
		base, err := dutil.NewBatchSampler(n, batchSize, false)
		if err != nil {
			return nil, errors.Wrap(err, "loader")
		}
		s = &seededSampler{BatchSampler: base, n: n, rng: rand.New(rand.NewPCG(seed, seed))}
	default:
		bs, err := dutil.NewBatchSampler(n, batchSize, false, shuffle)
		if err != nil {
			return nil, errors.Wrap(err, "loader")
		}
		s = bs
	}

	dl, err := dutil.NewDataLoader(NewPairDataset(pairs), s)
	if err != nil {
		return nil, errors.Wrap(err, "loader")
	}
	return dl, nil
}

// NextBatch returns the next batch of pairs from a loader created by
// NewLoader.
func NextBatch(dl *dutil.DataLoader) ([]Pair, error) {
	v, err := dl.Next()
	if err != nil {
		return nil, errors.Wrap(err, "next batch")
	}
	batch, ok := v.([]Pair)
	if !ok {
		return nil, errors.Errorf("next batch: unexpected item type %T", v)
	}
	return batch, nil
}
