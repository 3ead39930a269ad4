package analysis

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/pkg/errors"
)

// Spectrum returns Hann-windowed magnitudes of the first fftSize samples of x
// (zero-padded when shorter). fftSize must be a power of two.
func Spectrum(x []float64, fftSize int) ([]float64, error) {
	if fftSize < 2 || fftSize&(fftSize-1) != 0 {
		return nil, errors.Errorf("fft size %d is not a power of two", fftSize)
	}
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return nil, errors.Wrap(err, "fft plan")
	}
	buf := make([]float64, fftSize)
	n := min(len(x), fftSize)
	for i := 0; i < n; i++ {
		buf[i] = x[i] * hann(i, n)
	}
	spec := make([]complex128, fftSize/2+1)
	plan.Forward(spec, buf)

	mags := make([]float64, len(spec))
	for k, c := range spec {
		mags[k] = cmplx.Abs(c)
	}
	return mags, nil
}

// Centroid returns the magnitude-weighted mean frequency of a spectrum
// computed with fftSize = 2*(len(mags)-1).
func Centroid(mags []float64, sampleRate int) float64 {
	if len(mags) < 2 || sampleRate <= 0 {
		return 0
	}
	binHz := float64(sampleRate) / float64(2*(len(mags)-1))
	var num, den float64
	for k, m := range mags {
		num += float64(k) * binHz * m
		den += m
	}
	if den <= 0 {
		return 0
	}
	return num / den
}

func hann(i, n int) float64 {
	if n < 2 {
		return 1
	}
	return 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
