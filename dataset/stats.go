package dataset

import (
	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/stat"
)

// WaterFraction returns the fraction of foreground pixels of each pair mask.
func WaterFraction(pairs []Pair) []float64 {
	fractions := make([]float64, len(pairs))
	for i, p := range pairs {
		var n int
		for _, v := range p.Mask.Data {
			if v > 0.5 {
				n++
			}
		}
		if len(p.Mask.Data) > 0 {
			fractions[i] = float64(n) / float64(len(p.Mask.Data))
		}
	}

	return fractions
}

// Summary holds water fraction statistics of a dataset.
type Summary struct {
	Pairs  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize computes water fraction statistics.
func Summarize(pairs []Pair) Summary {
	fractions := WaterFraction(pairs)
	s := Summary{Pairs: len(pairs)}
	if len(fractions) == 0 {
		return s
	}
	s.Mean = stat.Mean(fractions, nil)
	if len(fractions) > 1 {
		s.StdDev = stat.StdDev(fractions, nil)
	}
	s.Min, s.Max = fractions[0], fractions[0]
	for _, f := range fractions {
		if f < s.Min {
			s.Min = f
		}
		if f > s.Max {
			s.Max = f
		}
	}

	return s
}

type fractionRow struct {
	Name          string
	WaterFraction float64
}

// FractionFrame returns one row per pair with its water fraction.
func FractionFrame(pairs []Pair) dataframe.DataFrame {
	fractions := WaterFraction(pairs)
	rows := make([]fractionRow, len(pairs))
	for i, p := range pairs {
		rows[i] = fractionRow{Name: p.Name, WaterFraction: fractions[i]}
	}

	return dataframe.LoadStructs(rows)
}
