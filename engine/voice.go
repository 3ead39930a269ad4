package engine

import (
	"math"

	"github.com/cwbudde/algo-approx"
	"github.com/cwbudde/algo-sampler/dsp"
	"github.com/cwbudde/algo-sampler/generator"
	"github.com/cwbudde/algo-sampler/messaging"
)

// Voice is one sounding note on one sample variant. Voices live in the pool's
// preallocated slots and are reconstructed in place for each note.
type Voice struct {
	Channel  int
	Key      int
	NoteID   int32
	Velocity float32

	pool    *VoicePool
	slot    int
	zone    *Zone
	variant int
	started uint64

	// termination is -1 for a free slot, 0 while playing normally and the
	// remaining fade blocks during an uber-release.
	termination int
	gated       bool
	sustained   bool
	playing     bool

	gen        generator.State
	io         generator.IO
	oversample bool
	decimator  dsp.Filter

	aeg    dsp.ADSR
	filter dsp.Filter

	gainL, gainR       float32
	fadeGain, fadeStep float32

	genL, genR [2 * BlockSize]float32
	env        [BlockSize]float32
	outL, outR [BlockSize]float32
}

// noteStart carries the note identity into voice construction.
type noteStart struct {
	channel  int
	key      int
	noteID   int32
	velocity float32
}

// Zone returns the zone the voice plays through, or nil for a free slot.
func (v *Voice) Zone() *Zone { return v.zone }

// VariantIndex returns the variant being played.
func (v *Voice) VariantIndex() int { return v.variant }

// Started returns the voice's creation sequence number.
func (v *Voice) Started() uint64 { return v.started }

// Free reports whether the slot is unassigned.
func (v *Voice) Free() bool { return v.termination < 0 }

// Terminating reports whether the voice is in an uber-release fade.
func (v *Voice) Terminating() bool { return v.termination > 0 }

// Gated reports whether the key is still held.
func (v *Voice) Gated() bool { return v.gated }

// Playing reports whether the voice still produces output.
func (v *Voice) Playing() bool { return v.playing }

// Position returns the playback cursor.
func (v *Voice) Position() generator.State { return v.gen }

// construct sets the voice up in place for a new note.
func (v *Voice) construct(n noteStart, z *Zone, vi int, started uint64) {
	e := v.pool.engine
	sr := float32(e.cfg.SampleRate)
	va := &z.variants[vi]
	s := va.Sample

	v.Channel = n.channel
	v.Key = n.key
	v.NoteID = n.noteID
	v.Velocity = n.velocity
	v.zone = z
	v.variant = vi
	v.started = started
	v.termination = 0
	v.gated = true
	v.sustained = false
	v.playing = true
	v.fadeGain = 1
	v.fadeStep = 0

	last := s.Frames - 1
	start := max(0, min(va.StartSample, last))
	end := va.EndSample
	if end <= 0 || end > last {
		end = last
	}
	end = max(end, start)
	lower, upper := start, end
	if va.Mode == generator.Loop || va.Mode == generator.Bidirectional {
		lower = va.LoopStart
		upper = va.LoopEnd
		if upper <= 0 {
			upper = end
		}
	}
	pos, dir := start, 1
	if va.Reverse {
		pos, dir = end, -1
	}

	speed := playbackRatio(n.key, z.Mapping.RootKey, z.Mapping.PitchCents+va.PitchCents) *
		float64(s.SampleRate) / float64(e.cfg.SampleRate)
	v.oversample = speed > e.cfg.OversampleRatio
	frames := BlockSize
	if v.oversample {
		speed /= 2
		frames *= 2
		v.decimator.Set(dsp.FilterLowpass, 0.45*sr, 0.7071, 2*sr)
		v.decimator.Reset()
	}
	v.gen.Reset(int64(pos), int64(lower), int64(upper), generator.RatioFromFloat(speed), dir)
	v.io = generator.IO{
		Sample:        s,
		OutL:          v.genL[:frames],
		OutR:          v.genR[:frames],
		Frames:        frames,
		Mode:          va.Mode,
		Interpolation: z.Interpolation,
	}

	v.aeg.Setup(z.Envelope, sr)
	v.aeg.Kill()
	v.aeg.Gate()
	v.filter.Set(z.Filter.Mode, z.Filter.Cutoff, z.Filter.Q, sr)
	v.filter.Reset()

	vel := max(0, min(n.velocity, 1))
	velInt := int(vel*127 + 0.5)
	gain := vel * z.Mapping.Amplitude * va.gain() * z.Mapping.CrossfadeGain(n.key, velInt)
	gl, gr := float32(1), float32(1)
	if z.Mapping.Pan != 0 {
		gl, gr = dsp.PanGains(z.Mapping.Pan)
		gl *= math.Sqrt2
		gr *= math.Sqrt2
	}
	v.gainL = gain * gl
	v.gainR = gain * gr
}

// playbackRatio returns the speed factor for key relative to root, detuned
// by cents. Unison at zero detune is exactly 1.
func playbackRatio(key, root int, cents float32) float64 {
	semis := float32(key-root) + cents/100
	if semis == 0 {
		return 1
	}
	return float64(approx.FastExp(semis * (math.Ln2 / 12)))
}

// release ends the key-held phase.
func (v *Voice) release() {
	v.ungate()
	v.sustained = false
	v.aeg.Release()
}

func (v *Voice) ungate() {
	if !v.gated {
		return
	}
	v.gated = false
	if v.zone != nil && v.zone.group != nil {
		v.zone.group.noteReleased()
	}
}

// forceTerminate starts an uber-release: a short linear fade after which the
// slot may be reused.
func (v *Voice) forceTerminate(fadeBlocks int) {
	if v.termination != 0 {
		return
	}
	v.ungate()
	v.termination = max(fadeBlocks, 1)
	v.fadeStep = v.fadeGain / float32(v.termination*BlockSize)
	v.pool.forced++
	v.pool.engine.diag(DiagForcedTermination, int64(v.Key), int64(v.started), int64(v.slot))
}

// process renders one block into outL/outR.
func (v *Voice) process() {
	generator.Render(&v.gen, &v.io)
	if v.gen.Clamped {
		v.gen.Clamped = false
		v.pool.engine.diag(DiagRangeClamped, int64(v.Key), v.gen.LowerBound, v.gen.UpperBound)
	}

	if v.oversample {
		v.decimator.Process(v.genL[:2*BlockSize], v.genR[:2*BlockSize])
		for i := range BlockSize {
			v.outL[i] = v.genL[2*i]
			v.outR[i] = v.genR[2*i]
		}
	} else {
		copy(v.outL[:], v.genL[:BlockSize])
		copy(v.outR[:], v.genR[:BlockSize])
	}

	if v.filter.Enabled() {
		v.filter.Process(v.outL[:], v.outR[:])
	}

	v.aeg.Process(v.env[:])
	fading := v.termination > 0
	for i := range BlockSize {
		g := v.env[i]
		if fading {
			g *= v.fadeGain
			v.fadeGain = max(0, v.fadeGain-v.fadeStep)
		}
		v.outL[i] = dsp.FlushDenormals(v.outL[i] * g * v.gainL)
		v.outR[i] = dsp.FlushDenormals(v.outR[i] * g * v.gainR)
	}

	if fading {
		v.termination--
		if v.termination == 0 {
			// Keep the slot marked as terminating until it is freed.
			v.termination = 1
			v.playing = false
		}
	}
	if v.aeg.Finished() || v.gen.IsFinished {
		v.playing = false
	}
}

// DiagCode classifies audio-thread diagnostics.
type DiagCode int64

const (
	DiagRangeClamped DiagCode = iota + 1
	DiagForcedTermination
	DiagHardKill
	DiagZoneFull
	DiagUnloadedVariant
	DiagQueueOverflow
)

func (c DiagCode) String() string {
	switch c {
	case DiagRangeClamped:
		return "range_clamped"
	case DiagForcedTermination:
		return "forced_termination"
	case DiagHardKill:
		return "hard_kill"
	case DiagZoneFull:
		return "zone_full"
	case DiagUnloadedVariant:
		return "unloaded_variant"
	case DiagQueueOverflow:
		return "queue_overflow"
	default:
		return "unknown"
	}
}

func diagMessage(code DiagCode, b, c, d int64) messaging.Message {
	return messaging.Message{
		Tag:     messaging.Diagnostic,
		Payload: messaging.Payload{A: int64(code), B: b, C: c, D: d},
	}
}
