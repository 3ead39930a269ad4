package dsp

import "math"

func directConvolve(x, h []float32) []float32 {
	out := make([]float32, len(x)+len(h)-1)
	for i, xv := range x {
		for j, hv := range h {
			out[i+j] += xv * hv
		}
	}
	return out
}

func maxAbsDiff(a, b []float32) float64 {
	n := min(len(a), len(b))
	var d float64
	for i := 0; i < n; i++ {
		d = math.Max(d, math.Abs(float64(a[i]-b[i])))
	}
	return d
}

func rms(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var s float64
	for _, v := range x {
		s += float64(v) * float64(v)
	}
	return math.Sqrt(s / float64(len(x)))
}

func sine(n int, freq, sampleRate float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sampleRate))
	}
	return out
}
