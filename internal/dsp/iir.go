package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// ErrSignalTooShort is returned by FiltFilt when the input cannot be padded
// by the edge extension the filter order requires.
var ErrSignalTooShort = errors.New("dsp: signal too short for zero-phase filtering")

// Coeffs holds transfer-function coefficients of a digital IIR filter,
// normalised so that A[0] == 1.
type Coeffs struct {
	B []float64 // numerator (feed-forward)
	A []float64 // denominator (feedback)
}

// order returns the filter state length (max(len(A), len(B)) - 1).
func (c Coeffs) order() int {
	return max(len(c.A), len(c.B)) - 1
}

// padded returns copies of B and A zero-extended to the same length.
func (c Coeffs) padded() ([]float64, []float64) {
	n := max(len(c.A), len(c.B))
	b := make([]float64, n)
	a := make([]float64, n)
	copy(b, c.B)
	copy(a, c.A)
	if a[0] != 1 && a[0] != 0 {
		a0 := a[0]
		for i := range a {
			a[i] /= a0
			b[i] /= a0
		}
	}
	return b, a
}

// ButterworthHighpass designs an order-N Butterworth high-pass filter.
// wn is the cutoff normalised to Nyquist (0 < wn < 1).
//
// Design path:
//   - Analog lowpass prototype poles on the unit circle
//   - Frequency prewarp, lowpass → highpass transform (zeros move to s=0)
//   - Bilinear transform to the z-plane, then expand zpk to polynomials
func ButterworthHighpass(order int, wn float64) Coeffs {
	// Analog prototype: p_k = -exp(j·π·m/(2N)), m = -N+1, -N+3, ..., N-1
	poles := make([]complex128, 0, order)
	for m := -order + 1; m < order; m += 2 {
		poles = append(poles, -cmplx.Exp(complex(0, math.Pi*float64(m)/float64(2*order))))
	}

	const fs = 2.0
	warped := 2 * fs * math.Tan(math.Pi*wn/fs)

	// lowpass → highpass: p' = wo/p, N zeros at the origin, k' = 1/Re(prod(-p))
	hpPoles := make([]complex128, order)
	prodNegP := complex(1, 0)
	for i, p := range poles {
		hpPoles[i] = complex(warped, 0) / p
		prodNegP *= -p
	}
	gain := 1 / real(prodNegP)
	hpZeros := make([]complex128, order)

	// Bilinear transform with fs2 = 2·fs
	const fs2 = 2 * fs
	zZeros := make([]complex128, order)
	zPoles := make([]complex128, order)
	num := complex(1, 0)
	den := complex(1, 0)
	for i := range hpPoles {
		zZeros[i] = (fs2 + hpZeros[i]) / (fs2 - hpZeros[i])
		zPoles[i] = (fs2 + hpPoles[i]) / (fs2 - hpPoles[i])
		num *= fs2 - hpZeros[i]
		den *= fs2 - hpPoles[i]
	}
	gain *= real(num / den)

	b := realPoly(zZeros)
	for i := range b {
		b[i] *= gain
	}
	return Coeffs{B: b, A: realPoly(zPoles)}
}

// Notch designs a second-order IIR notch at f0 Hz with quality factor q.
// The -3 dB bandwidth is f0/q.
func Notch(f0, q float64, sampleRate int) Coeffs {
	w0 := 2 * f0 / float64(sampleRate)
	bw := w0 / q
	bw *= math.Pi
	w0 *= math.Pi

	// Gain at the band edges is 1/sqrt(2), so beta reduces to tan(bw/2)
	gb := 1 / math.Sqrt2
	beta := (math.Sqrt(1-gb*gb) / gb) * math.Tan(bw/2)
	g := 1 / (1 + beta)

	cosW0 := math.Cos(w0)
	return Coeffs{
		B: []float64{g, -2 * g * cosW0, g},
		A: []float64{1, -2 * g * cosW0, 2*g - 1},
	}
}

// realPoly expands roots into monic polynomial coefficients (highest power
// first) and keeps the real part. Conjugate-paired roots yield real results.
func realPoly(roots []complex128) []float64 {
	coeffs := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(coeffs)+1)
		for i, c := range coeffs {
			next[i] += c
			next[i+1] -= c * r
		}
		coeffs = next
	}
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = real(c)
	}
	return out
}

// LFilter runs the filter over x in transposed direct form II.
// zi is the initial state (length order) and may be nil for rest.
// It returns the output and the final state.
func LFilter(c Coeffs, x, zi []float64) ([]float64, []float64) {
	b, a := c.padded()
	n := len(b) - 1
	z := make([]float64, n)
	copy(z, zi)

	y := make([]float64, len(x))
	for i, xi := range x {
		yi := b[0]*xi + firstOr(z)
		for k := 0; k < n-1; k++ {
			z[k] = b[k+1]*xi + z[k+1] - a[k+1]*yi
		}
		if n > 0 {
			z[n-1] = b[n]*xi - a[n]*yi
		}
		y[i] = yi
	}
	return y, z
}

func firstOr(z []float64) float64 {
	if len(z) == 0 {
		return 0
	}
	return z[0]
}

// LFilterZi computes the steady-state initial conditions of the filter for a
// unit step input, by solving (I - Aᵀ)·zi = B[1:] - A[1:]·B[0] where A is the
// companion matrix of the denominator.
func LFilterZi(c Coeffs) ([]float64, error) {
	b, a := c.padded()
	n := len(a) - 1
	if n == 0 {
		return nil, nil
	}

	iMinusAT := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var companionT float64
			// Companion matrix: first row -a[1:], ones on the sub-diagonal.
			// Element (i, j) of its transpose is companion(j, i).
			switch {
			case j == 0:
				companionT = -a[i+1]
			case j == i+1:
				companionT = 1
			}
			ident := 0.0
			if i == j {
				ident = 1
			}
			iMinusAT.Set(i, j, ident-companionT)
		}
	}

	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, b[i+1]-a[i+1]*b[0])
	}

	var zi mat.VecDense
	if err := zi.SolveVec(iMinusAT, rhs); err != nil {
		return nil, fmt.Errorf("dsp: solve initial conditions: %w", err)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = zi.AtVec(i)
	}
	return out, nil
}

// FiltFilt applies the filter forwards and backwards for zero phase
// distortion. The signal is extended at both ends by odd reflection of
// 3·max(len(A), len(B)) samples, and each pass starts from the steady-state
// response to the first sample it sees.
func FiltFilt(c Coeffs, x []float64) ([]float64, error) {
	padLen := 3 * (c.order() + 1)
	if len(x) <= padLen {
		return nil, fmt.Errorf("%w: need more than %d samples, have %d", ErrSignalTooShort, padLen, len(x))
	}

	zi, err := LFilterZi(c)
	if err != nil {
		return nil, err
	}

	ext := oddExtend(x, padLen)

	state := scaled(zi, ext[0])
	fwd, _ := LFilter(c, ext, state)

	reverse(fwd)
	state = scaled(zi, fwd[0])
	back, _ := LFilter(c, fwd, state)
	reverse(back)

	out := make([]float64, len(x))
	copy(out, back[padLen:padLen+len(x)])
	return out, nil
}

// oddExtend reflects x about its end points: 2·x[0] - x[n..1] and
// 2·x[last] - x[last-1..last-n].
func oddExtend(x []float64, n int) []float64 {
	last := len(x) - 1
	ext := make([]float64, 0, len(x)+2*n)
	for i := n; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := 1; i <= n; i++ {
		ext = append(ext, 2*x[last]-x[last-i])
	}
	return ext
}

func scaled(v []float64, k float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * k
	}
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
