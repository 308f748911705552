package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the Fast Fourier Transform of a real signal using mjibson/go-dsp
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes, including non-power-of-2
	return fft.FFTReal(x)
}

// ComputeInverseReal computes inverse FFT and returns real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))

	for i, val := range result {
		realResult[i] = real(val)
	}

	return realResult
}

// CrossCorrelate returns c[lag] = sum_j a[j]*b[j+lag] for lag in [0, maxLag].
// b must hold at least len(a)+maxLag samples; missing samples count as zero.
func (f *FFT) CrossCorrelate(a, b []float64, maxLag int) []float64 {
	if len(a) == 0 || maxLag < 0 {
		return []float64{}
	}

	size := nextPowerOfTwo(len(a) + len(b))
	pa := make([]float64, size)
	pb := make([]float64, size)
	copy(pa, a)
	copy(pb, b)

	fa := f.Compute(pa)
	fb := f.Compute(pb)

	// conj(A)·B in the frequency domain is the correlation of a against b
	prod := make([]complex128, size)
	for i := range prod {
		ar, ai := real(fa[i]), imag(fa[i])
		prod[i] = complex(ar, -ai) * fb[i]
	}

	full := f.ComputeInverseReal(prod)

	n := min(maxLag+1, len(full))
	out := make([]float64, n)
	copy(out, full[:n])
	return out
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
