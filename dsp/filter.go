package dsp

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// FilterMode selects the biquad response.
type FilterMode int

const (
	FilterOff FilterMode = iota
	FilterLowpass
	FilterHighpass
	FilterBandpass
)

// Filter is a stereo RBJ biquad. Coefficients are computed once per voice, so
// the per-sample path is two section updates.
type Filter struct {
	mode  FilterMode
	left  biquad.Section
	right biquad.Section
}

// NewFilter returns a filter configured for the given response.
func NewFilter(mode FilterMode, cutoff, q, sampleRate float32) *Filter {
	f := &Filter{}
	f.Set(mode, cutoff, q, sampleRate)
	return f
}

// Set recomputes the coefficients and clears the filter state.
func (f *Filter) Set(mode FilterMode, cutoff, q, sampleRate float32) {
	f.mode = mode
	if mode == FilterOff {
		return
	}
	c := rbjCoefficients(mode, float64(cutoff), float64(q), float64(sampleRate))
	f.left = *biquad.NewSection(c)
	f.right = *biquad.NewSection(c)
}

// Enabled reports whether the filter does anything.
func (f *Filter) Enabled() bool { return f != nil && f.mode != FilterOff }

// ProcessMono filters the left section only.
func (f *Filter) ProcessMono(buf []float32) {
	if !f.Enabled() {
		return
	}
	for i, x := range buf {
		buf[i] = FlushDenormals(float32(f.left.ProcessSample(float64(x))))
	}
}

// Process filters a stereo block in place.
func (f *Filter) Process(left, right []float32) {
	if !f.Enabled() {
		return
	}
	for i := range left {
		left[i] = FlushDenormals(float32(f.left.ProcessSample(float64(left[i]))))
		right[i] = FlushDenormals(float32(f.right.ProcessSample(float64(right[i]))))
	}
}

// TailSamples is zero: a biquad decays within a block at audio cutoffs.
func (f *Filter) TailSamples() int { return 0 }

// Reset clears the filter history.
func (f *Filter) Reset() {
	f.left.Reset()
	f.right.Reset()
}

func rbjCoefficients(mode FilterMode, cutoff, q, sampleRate float64) biquad.Coefficients {
	if sampleRate <= 0 {
		return biquad.Coefficients{B0: 1}
	}
	nyquist := 0.5 * sampleRate
	cutoff = math.Max(10, math.Min(cutoff, nyquist*0.98))
	if q <= 0 {
		q = 0.7071067811865476
	}
	w0 := 2 * math.Pi * cutoff / sampleRate
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	inv := 1 / (1 + alpha)

	var b0, b1, b2 float64
	switch mode {
	case FilterHighpass:
		b0 = (1 + cw) / 2
		b1 = -(1 + cw)
		b2 = (1 + cw) / 2
	case FilterBandpass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	default:
		b0 = (1 - cw) / 2
		b1 = 1 - cw
		b2 = (1 - cw) / 2
	}
	return biquad.Coefficients{
		B0: b0 * inv,
		B1: b1 * inv,
		B2: b2 * inv,
		A1: -2 * cw * inv,
		A2: (1 - alpha) * inv,
	}
}
