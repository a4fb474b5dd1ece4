package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// RealFFT wraps a gonum real FFT plan of a fixed length.
// A plan is not safe for concurrent use; create one per goroutine.
type RealFFT struct {
	n    int
	plan *fourier.FFT
	buf  []float64
}

// NewRealFFT creates an FFT plan for frames of length n.
func NewRealFFT(n int) *RealFFT {
	return &RealFFT{
		n:    n,
		plan: fourier.NewFFT(n),
		buf:  make([]float64, n),
	}
}

// Len returns the frame length of the plan.
func (f *RealFFT) Len() int { return f.n }

// Bins returns the number of non-negative frequency bins (n/2 + 1).
func (f *RealFFT) Bins() int { return f.n/2 + 1 }

// Forward returns the n/2+1 complex coefficients of frame.
// Frames shorter than the plan are zero padded; longer frames are truncated.
func (f *RealFFT) Forward(dst []complex128, frame []float64) []complex128 {
	clear(f.buf)
	copy(f.buf, frame)
	return f.plan.Coefficients(dst, f.buf)
}

// Magnitude returns |X[k]| for the n/2+1 bins of frame.
func (f *RealFFT) Magnitude(dst []float64, frame []float64) []float64 {
	coeffs := f.Forward(nil, frame)
	if cap(dst) < len(coeffs) {
		dst = make([]float64, len(coeffs))
	}
	dst = dst[:len(coeffs)]
	for i, c := range coeffs {
		dst[i] = cmplx.Abs(c)
	}
	return dst
}

// Inverse reconstructs a length-n real frame from n/2+1 coefficients.
// gonum's inverse transform is unnormalised, so the result is scaled by 1/n.
func (f *RealFFT) Inverse(dst []float64, coeffs []complex128) []float64 {
	dst = f.plan.Sequence(dst, coeffs)
	scale := 1 / float64(f.n)
	for i := range dst {
		dst[i] *= scale
	}
	return dst
}

// BinFrequency returns the centre frequency in Hz of bin k for sampleRate.
func (f *RealFFT) BinFrequency(k int, sampleRate int) float64 {
	return float64(k) * float64(sampleRate) / float64(f.n)
}

// Polar splits coefficients into magnitude and phase slices.
func Polar(coeffs []complex128) (mag, phase []float64) {
	mag = make([]float64, len(coeffs))
	phase = make([]float64, len(coeffs))
	for i, c := range coeffs {
		mag[i] = cmplx.Abs(c)
		phase[i] = math.Atan2(imag(c), real(c))
	}
	return mag, phase
}

// FromPolar rebuilds complex coefficients from magnitude and phase.
func FromPolar(mag, phase []float64) []complex128 {
	out := make([]complex128, len(mag))
	for i := range mag {
		out[i] = cmplx.Rect(mag[i], phase[i])
	}
	return out
}
