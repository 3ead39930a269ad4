package dsp

import "math"

// LFOShape is the oscillator waveform.
type LFOShape int

const (
	LFOSine LFOShape = iota
	LFOTriangle
	LFOSquare
)

// LFO is a block-rate low frequency oscillator with output in [-1, 1].
type LFO struct {
	shape LFOShape
	phase float64
	inc   float64
}

// NewLFO creates an oscillator at rateHz.
func NewLFO(shape LFOShape, rateHz, sampleRate float32) *LFO {
	l := &LFO{}
	l.Set(shape, rateHz, sampleRate)
	return l
}

// Set changes shape and rate without resetting the phase.
func (l *LFO) Set(shape LFOShape, rateHz, sampleRate float32) {
	l.shape = shape
	if sampleRate > 0 {
		l.inc = float64(rateHz) / float64(sampleRate)
	}
}

// Reset restarts at phase zero.
func (l *LFO) Reset() { l.phase = 0 }

// Advance moves the phase by n samples and returns the value at the new
// phase.
func (l *LFO) Advance(n int) float32 {
	l.phase += l.inc * float64(n)
	l.phase -= math.Floor(l.phase)
	return l.Value()
}

// Value returns the current output.
func (l *LFO) Value() float32 {
	switch l.shape {
	case LFOTriangle:
		return float32(1 - 4*math.Abs(l.phase-0.5))
	case LFOSquare:
		if l.phase < 0.5 {
			return 1
		}
		return -1
	default:
		return float32(math.Sin(2 * math.Pi * l.phase))
	}
}
