package processor

import (
	"github.com/linuxmatters/mouthpiece/internal/dsp"
)

// Spectral subtraction framing
const (
	denoiseFrameSize     = 2048
	denoiseHopSize       = 512
	denoiseProfileFrames = 10  // leading frames used for the noise profile
	denoiseFallbackScale = 0.1 // profile scale when the clip is too short to profile
	denoiseEpsilon       = 1e-10
)

// reduceNoise applies frame-wise spectral subtraction.
//
// Strategy:
//   - Estimate a per-bin noise profile from the leading frames, which for TTS
//     output are usually near-silent
//   - Attenuate each bin by how close it sits to the profile (the lower the
//     bin SNR, the stronger the cut)
//   - Never reduce a bin below NoiseFloor dB of its own magnitude
//   - Resynthesise with the original phase and overlap-add into a new buffer
//
// Clips shorter than one frame plus one hop are returned unchanged.
func reduceNoise(x []float64, _ int, p *CleaningPreset) ([]float64, error) {
	n := len(x)
	overlap := denoiseFrameSize - denoiseHopSize
	numFrames := (n - overlap) / denoiseHopSize
	if numFrames <= 0 {
		return x, nil
	}

	window := dsp.Hann(denoiseFrameSize)
	fft := dsp.NewRealFFT(denoiseFrameSize)
	profile := estimateNoiseProfile(x, fft, window)
	floor := DbToLinear(p.NoiseFloor)

	out := make([]float64, n)
	frame := make([]float64, denoiseFrameSize)
	var coeffs []complex128
	var clean []float64
	for i := 0; i < numFrames; i++ {
		start := i * denoiseHopSize
		end := start + denoiseFrameSize
		if end > n {
			break
		}

		dsp.ApplyWindow(frame, x[start:end], window)
		coeffs = fft.Forward(coeffs, frame)
		mag, phase := dsp.Polar(coeffs)
		subtractSpectrum(mag, profile, floor)

		clean = fft.Inverse(clean, dsp.FromPolar(mag, phase))
		for j, v := range clean {
			out[start+j] += v * window[j]
		}
	}
	return out, nil
}

// estimateNoiseProfile returns the per-bin median magnitude of the first ten
// frames. When fewer than one full hop of frames exists, a conservative
// 0.1x copy of the first frame's spectrum is used instead.
func estimateNoiseProfile(x []float64, fft *dsp.RealFFT, window []float64) []float64 {
	frames := min(denoiseProfileFrames, (len(x)-denoiseFrameSize)/denoiseHopSize)
	frame := make([]float64, denoiseFrameSize)

	if frames <= 0 {
		dsp.ApplyWindow(frame, x[:min(len(x), denoiseFrameSize)], window)
		mag := fft.Magnitude(nil, frame)
		for i := range mag {
			mag[i] *= denoiseFallbackScale
		}
		return mag
	}

	spectra := make([][]float64, frames)
	for i := range spectra {
		start := i * denoiseHopSize
		dsp.ApplyWindow(frame, x[start:start+denoiseFrameSize], window)
		spectra[i] = fft.Magnitude(nil, frame)
	}
	return dsp.ColumnMedian(spectra)
}

// subtractSpectrum scales mag in place by an SNR-dependent factor and then
// raises every bin to at least floor times its original magnitude.
func subtractSpectrum(mag, profile []float64, floor float64) {
	for k, m := range mag {
		snr := m / (profile[k] + denoiseEpsilon)
		alpha := 1.0
		switch {
		case snr < 1.5:
			alpha = 0.1
		case snr < 2.0:
			alpha = 0.3
		case snr < 3.0:
			alpha = 0.5
		}
		mag[k] = max(m*alpha, m*floor)
	}
}
