package dsp

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// EnvelopeStage is the current ADSR segment.
type EnvelopeStage int

const (
	StageIdle EnvelopeStage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
)

// envelopeFloor is where exponential segments are considered finished (-80 dB).
const envelopeFloor = 1e-4

// ADSRParams are envelope times in seconds and a sustain level in [0, 1].
type ADSRParams struct {
	Attack  float32
	Decay   float32
	Sustain float32
	Release float32
}

// DefaultADSR is a short attack with full sustain and a 100 ms release.
func DefaultADSR() ADSRParams {
	return ADSRParams{Attack: 0.002, Decay: 0.1, Sustain: 1, Release: 0.1}
}

// ADSR is a linear-attack, exponential decay/release envelope.
type ADSR struct {
	stage       EnvelopeStage
	level       float32
	attackStep  float32
	decayCoef   float32
	releaseCoef float32
	sustain     float32
}

// Setup configures the envelope for sampleRate. It does not change the stage.
func (e *ADSR) Setup(p ADSRParams, sampleRate float32) {
	e.sustain = max(0, min(p.Sustain, 1))
	attackSamples := max(p.Attack*sampleRate, 1)
	e.attackStep = 1 / attackSamples
	e.decayCoef = segmentCoef(p.Decay, sampleRate)
	e.releaseCoef = segmentCoef(p.Release, sampleRate)
}

// segmentCoef returns the per-sample multiplier that decays to envelopeFloor
// in seconds.
func segmentCoef(seconds, sampleRate float32) float32 {
	n := max(seconds*sampleRate, 1)
	return approx.FastExp(float32(math.Log(envelopeFloor)) / n)
}

// Gate starts the attack from the current level.
func (e *ADSR) Gate() {
	e.stage = StageAttack
}

// Release enters the release segment unless the envelope is idle.
func (e *ADSR) Release() {
	if e.stage != StageIdle {
		e.stage = StageRelease
	}
}

// Kill stops the envelope immediately.
func (e *ADSR) Kill() {
	e.stage = StageIdle
	e.level = 0
}

// Stage returns the current segment.
func (e *ADSR) Stage() EnvelopeStage { return e.stage }

// Level returns the last output value.
func (e *ADSR) Level() float32 { return e.level }

// Finished reports whether the envelope has reached idle.
func (e *ADSR) Finished() bool { return e.stage == StageIdle }

// Next advances one sample.
func (e *ADSR) Next() float32 {
	switch e.stage {
	case StageAttack:
		e.level += e.attackStep
		if e.level >= 1 {
			e.level = 1
			e.stage = StageDecay
		}
	case StageDecay:
		e.level = e.sustain + (e.level-e.sustain)*e.decayCoef
		if e.level-e.sustain < envelopeFloor {
			e.level = e.sustain
			e.stage = StageSustain
			if e.sustain <= envelopeFloor {
				e.Kill()
			}
		}
	case StageSustain:
		e.level = e.sustain
	case StageRelease:
		e.level *= e.releaseCoef
		if e.level < envelopeFloor {
			e.Kill()
		}
	}
	return e.level
}

// Process writes one envelope value per element of out.
func (e *ADSR) Process(out []float32) {
	for i := range out {
		out[i] = e.Next()
	}
}
