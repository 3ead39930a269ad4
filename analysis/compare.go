// Package analysis measures rendered sampler output: level metering, decay
// detection for offline renders, and a regression distance between a render
// and a reference recording.
package analysis

import (
	"math"
)

// Metrics describes how far a candidate render is from a reference.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	TimeRMSE       float64 `json:"time_rmse"`
	EnvelopeRMSEDB float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB float64 `json:"spectral_rmse_db"`
	RefTailS       float64 `json:"ref_tail_s"`
	CandTailS      float64 `json:"cand_tail_s"`
	TailDiffS      float64 `json:"tail_diff_s"`
	CentroidDiffHz float64 `json:"centroid_diff_hz"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// envelope frame and hop in samples
const (
	envFrame = 256
	envHop   = 128
)

// Compare aligns the candidate to the reference and returns distance metrics
// with a combined score in [0,1] (0 = identical).
func Compare(reference []float64, candidate []float64, sampleRate int) Metrics {
	m := Metrics{
		SampleRate:      sampleRate,
		ReferenceFrames: len(reference),
		CandidateFrames: len(candidate),
		Score:           1,
	}
	if sampleRate <= 0 {
		return m
	}
	ref := normalizeRMS(trimLeadingSilence(reference, 1e-6), 0.1)
	cand := normalizeRMS(trimLeadingSilence(candidate, 1e-6), 0.1)
	if len(ref) < 2 || len(cand) < 2 {
		return m
	}

	maxLag := max(1, min(sampleRate/2, len(ref)-1, len(cand)-1))
	m.LagSamples = estimateLag(ref, cand, maxLag)
	refA, candA := alignByLag(ref, cand, m.LagSamples)
	n := min(len(refA), len(candA), sampleRate*12)
	if n < envFrame {
		return m
	}
	refA, candA = refA[:n], candA[:n]
	m.AlignedFrames = n

	m.TimeRMSE = rmse(refA, candA)

	refEnv := rmsEnvelope(refA, envFrame, envHop)
	candEnv := rmsEnvelope(candA, envFrame, envHop)
	if envN := min(len(refEnv), len(candEnv)); envN > 0 {
		diff := make([]float64, envN)
		for i := range diff {
			diff[i] = linToDB(refEnv[i]) - linToDB(candEnv[i])
		}
		m.EnvelopeRMSEDB = rms1(diff)
	}

	fftSize := min(4096, nextPow2(n))
	refSpec, errR := Spectrum(refA, fftSize)
	candSpec, errC := Spectrum(candA, fftSize)
	if errR == nil && errC == nil {
		m.SpectralRMSEDB = spectralRMSEDB(refSpec, candSpec)
		m.CentroidDiffHz = math.Abs(Centroid(refSpec, sampleRate) - Centroid(candSpec, sampleRate))
	}

	m.RefTailS = TailSeconds(ref, sampleRate, 60)
	m.CandTailS = TailSeconds(cand, sampleRate, 60)
	m.TailDiffS = math.Abs(m.RefTailS - m.CandTailS)

	timeNorm := clamp01(m.TimeRMSE / 0.25)
	envNorm := clamp01(m.EnvelopeRMSEDB / 30.0)
	specNorm := clamp01(m.SpectralRMSEDB / 30.0)
	tailNorm := clamp01(m.TailDiffS / 2.0)
	m.Score = clamp01(0.30*timeNorm + 0.25*envNorm + 0.30*specNorm + 0.15*tailNorm)
	m.Similarity = clamp01(math.Exp(-4.0 * m.Score))
	return m
}

// Mixdown averages an interleaved buffer to mono.
func Mixdown(interleaved []float32, channels int) []float64 {
	channels = max(channels, 1)
	out := make([]float64, len(interleaved)/channels)
	for i := range out {
		var s float64
		for c := 0; c < channels; c++ {
			s += float64(interleaved[i*channels+c])
		}
		out[i] = s / float64(channels)
	}
	return out
}

func trimLeadingSilence(x []float64, threshold float64) []float64 {
	for i := 0; i < len(x); i++ {
		if math.Abs(x[i]) > threshold {
			return x[i:]
		}
	}
	return nil
}

func normalizeRMS(x []float64, target float64) []float64 {
	if len(x) == 0 {
		return x
	}
	r := rms1(x)
	if r <= 1e-12 {
		return append([]float64(nil), x...)
	}
	g := target / r
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] * g
	}
	return out
}

func estimateLag(ref []float64, cand []float64, maxLag int) int {
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}
	step := 2
	if len(ref) > 200000 || len(cand) > 200000 {
		step = 4
	}
	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		if s := dotAtLag(ref, cand, lag, step); s > best {
			best = s
			bestLag = lag
		}
	}
	return bestLag
}

func dotAtLag(a []float64, b []float64, lag int, step int) float64 {
	ai, bi := 0, 0
	if lag >= 0 {
		ai = lag
	} else {
		bi = -lag
	}
	n := min(len(a)-ai, len(b)-bi)
	var sum float64
	for i := 0; i < n; i += step {
		sum += a[ai+i] * b[bi+i]
	}
	return sum
}

func alignByLag(ref []float64, cand []float64, lag int) ([]float64, []float64) {
	if lag >= 0 {
		if lag >= len(ref) {
			return nil, nil
		}
		return ref[lag:], cand
	}
	if -lag >= len(cand) {
		return nil, nil
	}
	return ref, cand[-lag:]
}

func rmse(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	out := make([]float64, 1+(len(x)-frame)/hop)
	for i := range out {
		start := i * hop
		out[i] = rms1(x[start : start+frame])
	}
	return out
}

// spectralRMSEDB compares two magnitude spectra bin by bin, skipping DC.
func spectralRMSEDB(a, b []float64) float64 {
	bins := min(len(a), len(b))
	if bins < 3 {
		return 0
	}
	var sum float64
	for k := 1; k < bins; k++ {
		d := linToDB(a[k]) - linToDB(b[k])
		sum += d * d
	}
	return math.Sqrt(sum / float64(bins-1))
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
