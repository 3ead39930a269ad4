// Package dsp contains the per-voice and per-bus signal blocks used by the
// sampler engine: envelopes, LFOs, pan laws, filters and effects that report
// how long they keep ringing after their input goes silent.
package dsp

import dspcore "github.com/cwbudde/algo-dsp/dsp/core"

// Processor is a stereo in-place effect. TailSamples reports how many samples
// the effect keeps producing output after its input becomes silent; the
// engine uses it to keep a group or part alive during ringout.
type Processor interface {
	Process(left, right []float32)
	TailSamples() int
	Reset()
}

// Chain runs processors in order.
type Chain []Processor

// Process runs every processor on the block.
func (c Chain) Process(left, right []float32) {
	for _, p := range c {
		if p != nil {
			p.Process(left, right)
		}
	}
}

// TailSamples returns the longest tail in the chain.
func (c Chain) TailSamples() int {
	tail := 0
	for _, p := range c {
		if p != nil {
			tail = max(tail, p.TailSamples())
		}
	}
	return tail
}

// Reset clears every processor's state.
func (c Chain) Reset() {
	for _, p := range c {
		if p != nil {
			p.Reset()
		}
	}
}

// FlushDenormals converts denormal numbers to zero.
func FlushDenormals(x float32) float32 {
	return float32(dspcore.FlushDenormals(float64(x)))
}
