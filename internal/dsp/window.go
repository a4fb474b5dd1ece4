// Package dsp provides the numeric building blocks shared by the analysis,
// cleaning and realtime packages: windows, real FFTs, IIR filter design,
// zero-phase filtering and robust order statistics.
package dsp

import "math"

// Hann returns a symmetric Hann window of length n.
// The endpoints are zero, matching the classic "hanning" definition used for
// spectral analysis frames. A length of 1 yields a single unity tap.
func Hann(n int) []float64 {
	if n <= 0 {
		return nil
	}
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	den := float64(n - 1)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/den)
	}
	return w
}

// ApplyWindow multiplies frame by window into dst and returns dst.
// dst may be nil; it is allocated to len(frame) when too short.
func ApplyWindow(dst, frame, window []float64) []float64 {
	if cap(dst) < len(frame) {
		dst = make([]float64, len(frame))
	}
	dst = dst[:len(frame)]
	for i, v := range frame {
		dst[i] = v * window[i]
	}
	return dst
}

// PrevPow2 returns the largest power of two not exceeding n (n >= 1).
func PrevPow2(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
