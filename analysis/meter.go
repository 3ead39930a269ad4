package analysis

import "math"

// Meter accumulates peak and RMS over interleaved blocks.
type Meter struct {
	peak  float64
	sumSq float64
	count int
}

// Add folds a block into the running totals.
func (m *Meter) Add(block []float32) {
	for _, v := range block {
		a := math.Abs(float64(v))
		m.peak = math.Max(m.peak, a)
		m.sumSq += a * a
	}
	m.count += len(block)
}

// Peak returns the absolute peak seen so far.
func (m *Meter) Peak() float64 { return m.peak }

// RMS returns the overall RMS level.
func (m *Meter) RMS() float64 {
	if m.count == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.count))
}

// PeakDBFS returns the peak in dB relative to full scale.
func (m *Meter) PeakDBFS() float64 { return linToDB(m.peak) }

// RMSDBFS returns the RMS level in dB relative to full scale.
func (m *Meter) RMSDBFS() float64 { return linToDB(m.RMS()) }

// Clipped reports whether any sample reached full scale.
func (m *Meter) Clipped() bool { return m.peak >= 1 }

// DecayDetector decides when a render has gone quiet: after some signal was
// seen, every sample stays below the threshold for holdSamples.
type DecayDetector struct {
	threshold   float64
	holdSamples int
	quiet       int
	heard       bool
}

// NewDecayDetector creates a detector for thresholdDB (e.g. -90) and a hold
// time in frames.
func NewDecayDetector(thresholdDB float64, holdSamples int) *DecayDetector {
	return &DecayDetector{
		threshold:   math.Pow(10, thresholdDB/20),
		holdSamples: max(holdSamples, 1),
	}
}

// Feed inspects an interleaved block with the given channel count and
// reports whether the signal has decayed.
func (d *DecayDetector) Feed(block []float32, channels int) bool {
	channels = max(channels, 1)
	for i := 0; i+channels <= len(block); i += channels {
		loud := false
		for c := 0; c < channels; c++ {
			if math.Abs(float64(block[i+c])) > d.threshold {
				loud = true
				break
			}
		}
		if loud {
			d.heard = true
			d.quiet = 0
			continue
		}
		d.quiet++
	}
	return d.Done()
}

// Done reports whether the detector has triggered.
func (d *DecayDetector) Done() bool {
	return d.heard && d.quiet >= d.holdSamples
}

// Heard reports whether any sample rose above the threshold.
func (d *DecayDetector) Heard() bool { return d.heard }

// Reset clears the detector.
func (d *DecayDetector) Reset() {
	d.quiet = 0
	d.heard = false
}

// TailSeconds returns the time from the peak until the signal falls dropDB
// below it for good.
func TailSeconds(x []float64, sampleRate int, dropDB float64) float64 {
	if len(x) == 0 || sampleRate <= 0 {
		return 0
	}
	peak, peakIdx := 0.0, 0
	for i, v := range x {
		if a := math.Abs(v); a > peak {
			peak, peakIdx = a, i
		}
	}
	if peak == 0 {
		return 0
	}
	floor := peak * math.Pow(10, -dropDB/20)
	last := peakIdx
	for i := len(x) - 1; i > peakIdx; i-- {
		if math.Abs(x[i]) > floor {
			last = i
			break
		}
	}
	return float64(last-peakIdx) / float64(sampleRate)
}
