package masked

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// subsampleBudget caps how many elements Percentile looks at when
// subsampling is requested. Every axis is strided by the same relative
// amount so the sample keeps the array's density profile.
const subsampleBudget = 40000

// Percentile computes the requested percentiles over the unmasked, non-NaN
// elements. Percentiles are interpolated linearly between order statistics.
// With subsample set, each axis is first downsampled by a stride chosen so
// roughly subsampleBudget elements remain. When no unmasked elements exist
// the result is NaN for every requested percentile; the call never fails.
func (a *Array) Percentile(ps []float64, subsample bool) []float64 {
	src := a
	if subsample {
		src = a.subsampled(subsampleBudget)
	}
	out := make([]float64, len(ps))
	vals := src.validFloats()
	if len(vals) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	sort.Float64s(vals)
	for i, p := range ps {
		out[i] = quantileLinear(vals, p)
	}
	return out
}

// subsampled returns a strided view with about budget elements. Small
// arrays are returned as-is.
func (a *Array) subsampled(budget int) *Array {
	nd := a.NDim()
	if nd == 0 || a.Len() <= budget {
		return a
	}
	targetDimSize := math.Pow(float64(budget), 1/float64(nd))
	sels := make([]Sel, nd)
	for axis, dim := range a.Data.shape {
		step := int(math.Ceil(float64(dim) / targetDimSize))
		if step < 1 {
			step = 1
		}
		sels[axis] = RangeStep(0, dim, step)
	}
	out, err := a.Select(sels...)
	if err != nil {
		return a
	}
	return out
}

// quantileLinear interpolates the p-th percentile (0-100) of an ascending
// sorted sample, placing percentile p at fractional position p/100*(n-1).
func quantileLinear(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(n-1)
	if pos <= 0 {
		return sorted[0]
	}
	if pos >= float64(n-1) {
		return sorted[n-1]
	}
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Stats summarizes the unmasked, non-NaN elements of an array.
type Stats struct {
	N    int
	Min  float64
	Max  float64
	Mean float64
	Std  float64
}

// Summary computes basic statistics over the unmasked, non-NaN elements.
// With no valid elements every statistic is NaN and N is zero.
func (a *Array) Summary() Stats {
	vals := a.validFloats()
	if len(vals) == 0 {
		nan := math.NaN()
		return Stats{Min: nan, Max: nan, Mean: nan, Std: nan}
	}
	return Stats{
		N:    len(vals),
		Min:  floats.Min(vals),
		Max:  floats.Max(vals),
		Mean: stat.Mean(vals, nil),
		Std:  stat.StdDev(vals, nil),
	}
}
