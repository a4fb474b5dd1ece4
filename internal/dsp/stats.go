package dsp

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Median returns the median of x, averaging the two middle values for even
// lengths. Returns 0 for an empty slice. x is not modified.
func Median(x []float64) float64 {
	return Quantile(x, 0.5)
}

// Quantile returns the q-th quantile (0 ≤ q ≤ 1) of x using linear
// interpolation between closest ranks, position q·(n−1). This is the
// estimator most analysis tooling defaults to; gonum's stat.Quantile only
// offers empirical and CDF-interpolated variants.
// Returns 0 for an empty slice.
func Quantile(x []float64, q float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := slices.Clone(x)
	slices.Sort(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Percentile is Quantile with p expressed in percent.
func Percentile(x []float64, p float64) float64 {
	return Quantile(x, p/100)
}

// Mean returns the arithmetic mean of x, or 0 when empty.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// RMS returns the root mean square of x, or 0 when empty.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// PeakAbs returns max |x|, or 0 when empty.
func PeakAbs(x []float64) float64 {
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// ColumnMedian returns the element-wise median across rows, which must all
// have the same length. Used for per-bin spectral profiles.
func ColumnMedian(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	out := make([]float64, width)
	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		out[j] = Median(col)
	}
	return out
}

// LinearInterp samples y (defined at integer positions 0..len(y)-1) at n
// evenly spaced points covering [0, len(y)-1] inclusive.
func LinearInterp(y []float64, n int) []float64 {
	if len(y) == 0 || n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if len(y) == 1 || n == 1 {
		for i := range out {
			out[i] = y[0]
		}
		return out
	}
	last := float64(len(y) - 1)
	step := last / float64(n-1)
	for i := range out {
		pos := float64(i) * step
		lo := int(pos)
		if lo >= len(y)-1 {
			out[i] = y[len(y)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = y[lo] + (y[lo+1]-y[lo])*frac
	}
	return out
}

// Linspace returns n evenly spaced values from start to stop. When endpoint
// is false the interval is half open and stop is excluded.
func Linspace(start, stop float64, n int, endpoint bool) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	div := float64(n)
	if endpoint {
		div = float64(n - 1)
	}
	if div == 0 {
		out[0] = start
		return out
	}
	step := (stop - start) / div
	for i := range out {
		out[i] = start + float64(i)*step
	}
	if endpoint {
		out[n-1] = stop
	}
	return out
}
