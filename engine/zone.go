package engine

import (
	"math/rand/v2"

	"github.com/cwbudde/algo-sampler/dsp"
	"github.com/cwbudde/algo-sampler/generator"
)

// Mapping places a zone on the keyboard. Ranges are inclusive; fades are the
// number of keys (or velocity steps) over which the zone fades in at each
// edge.
type Mapping struct {
	RootKey     int
	KeyLow      int
	KeyHigh     int
	KeyFadeLow  int
	KeyFadeHigh int
	VelLow      int
	VelHigh     int
	VelFadeLow  int
	VelFadeHigh int

	PitchCents float32
	Amplitude  float32
	Pan        float32
}

// DefaultMapping covers the whole keyboard at root key 60.
func DefaultMapping() Mapping {
	return Mapping{RootKey: 60, KeyHigh: 127, VelHigh: 127, Amplitude: 1}
}

// Matches reports whether key and velocity (both 0..127) fall in the ranges.
func (m *Mapping) Matches(key, vel int) bool {
	return key >= m.KeyLow && key <= m.KeyHigh && vel >= m.VelLow && vel <= m.VelHigh
}

// CrossfadeGain returns the edge-fade gain for key and velocity.
func (m *Mapping) CrossfadeGain(key, vel int) float32 {
	return edgeFade(key, m.KeyLow, m.KeyHigh, m.KeyFadeLow, m.KeyFadeHigh) *
		edgeFade(vel, m.VelLow, m.VelHigh, m.VelFadeLow, m.VelFadeHigh)
}

func edgeFade(x, lo, hi, fadeLo, fadeHi int) float32 {
	g := float32(1)
	if fadeLo > 0 && x < lo+fadeLo {
		g *= float32(x-lo+1) / float32(fadeLo+1)
	}
	if fadeHi > 0 && x > hi-fadeHi {
		g *= float32(hi-x+1) / float32(fadeHi+1)
	}
	return max(0, min(g, 1))
}

// FilterSettings configures the per-voice filter.
type FilterSettings struct {
	Mode   dsp.FilterMode
	Cutoff float32
	Q      float32
}

// ZoneConfig describes a zone before it joins a group.
type ZoneConfig struct {
	Name          string
	Mapping       Mapping
	Variants      []Variant
	VariantMode   VariantMode
	Envelope      dsp.ADSRParams
	Filter        FilterSettings
	Interpolation generator.Interpolation
}

// Zone is a leaf of the process tree: a key/velocity range mapped to up to
// MaxVariants samples.
type Zone struct {
	Name          string
	Mapping       Mapping
	Envelope      dsp.ADSRParams
	Filter        FilterSettings
	Interpolation generator.Interpolation

	variants    [MaxVariants]Variant
	numVariants int
	sel         variantSelector

	group *Group

	voiceWeakPointers [MaxVoicesPerZone]*Voice
	activeVoices      int
	activeInGroup     bool

	outL, outR [BlockSize]float32
}

// NewZone builds a detached zone. A zero Mapping means DefaultMapping and a
// zero Envelope means dsp.DefaultADSR.
func NewZone(cfg ZoneConfig) (*Zone, error) {
	if len(cfg.Variants) > MaxVariants {
		return nil, ErrCapacity
	}
	z := &Zone{
		Name:          cfg.Name,
		Mapping:       cfg.Mapping,
		Envelope:      cfg.Envelope,
		Filter:        cfg.Filter,
		Interpolation: cfg.Interpolation,
	}
	if z.Mapping == (Mapping{}) {
		z.Mapping = DefaultMapping()
	}
	if z.Envelope == (dsp.ADSRParams{}) {
		z.Envelope = dsp.DefaultADSR()
	}
	z.numVariants = copy(z.variants[:], cfg.Variants)
	z.sel.mode = cfg.VariantMode
	z.sel.reset()
	return z, nil
}

// Group returns the owning group, or nil for a detached zone.
func (z *Zone) Group() *Group { return z.group }

// NumVariants returns the number of variant slots in use.
func (z *Zone) NumVariants() int { return z.numVariants }

// Variant returns variant i.
func (z *Zone) Variant(i int) (Variant, bool) {
	if i < 0 || i >= z.numVariants {
		return Variant{}, false
	}
	return z.variants[i], true
}

// VariantMode returns the selection policy.
func (z *Zone) VariantMode() VariantMode { return z.sel.mode }

// ActiveVoices returns the number of voices sounding through the zone.
func (z *Zone) ActiveVoices() int { return z.activeVoices }

// loadedVariants appends the indices of variants with sample data to dst.
func (z *Zone) loadedVariants(dst []int) []int {
	for i := 0; i < z.numVariants; i++ {
		if z.variants[i].loaded() {
			dst = append(dst, i)
		}
	}
	return dst
}

// selectVariants chooses the variants a new note plays. It returns 0 when the
// zone has no loaded variant.
func (z *Zone) selectVariants(rng *rand.Rand, dst []int) int {
	var buf [MaxVariants]int
	return z.sel.pick(z.loadedVariants(buf[:0]), rng, dst)
}

func (z *Zone) pool() *VoicePool {
	if z.group == nil || z.group.part == nil || z.group.part.engine == nil {
		return nil
	}
	return &z.group.part.engine.pool
}

// addVoice links v into the zone and activates the zone in its group.
func (z *Zone) addVoice(v *Voice) bool {
	for i := range z.voiceWeakPointers {
		if z.voiceWeakPointers[i] == nil {
			z.voiceWeakPointers[i] = v
			z.activeVoices++
			if z.group != nil {
				z.group.voiceCount++
				if v.gated {
					z.group.noteStarted()
				}
				z.group.activateZone(z)
			}
			return true
		}
	}
	return false
}

// removeVoice unlinks v. The zone stays in its group's active list until the
// group compacts it.
func (z *Zone) removeVoice(v *Voice) {
	for i := range z.voiceWeakPointers {
		if z.voiceWeakPointers[i] == v {
			z.voiceWeakPointers[i] = nil
			z.activeVoices--
			if z.group != nil {
				z.group.voiceCount--
			}
			return
		}
	}
}

// oldestVoice returns the voice that started first, or nil.
func (z *Zone) oldestVoice() *Voice {
	var oldest *Voice
	for _, v := range z.voiceWeakPointers {
		if v != nil && (oldest == nil || v.started < oldest.started) {
			oldest = v
		}
	}
	return oldest
}

// TerminateAllVoices frees every voice in the zone immediately. Calling it
// again does nothing.
func (z *Zone) TerminateAllVoices() {
	p := z.pool()
	for i, v := range z.voiceWeakPointers {
		if v == nil {
			continue
		}
		if p != nil {
			p.kill(v)
		} else {
			z.voiceWeakPointers[i] = nil
			z.activeVoices--
		}
	}
}

// forceTerminateAllVoices starts an uber-release on every sounding voice.
func (z *Zone) forceTerminateAllVoices(fadeBlocks int) {
	for _, v := range z.voiceWeakPointers {
		if v != nil && v.termination == 0 {
			v.forceTerminate(fadeBlocks)
		}
	}
}

// process renders all voices into the zone buffer. Voices that finish are
// collected in a second pass so the first pass never mutates the set it
// walks.
func (z *Zone) process() {
	clear(z.outL[:])
	clear(z.outR[:])
	if z.activeVoices == 0 {
		return
	}
	rescan := false
	for _, v := range z.voiceWeakPointers {
		if v == nil {
			continue
		}
		if v.playing {
			v.process()
			for i := range z.outL {
				z.outL[i] += v.outL[i]
				z.outR[i] += v.outR[i]
			}
		}
		if !v.playing {
			rescan = true
		}
	}
	if !rescan {
		return
	}
	p := z.pool()
	for _, v := range z.voiceWeakPointers {
		if v != nil && !v.playing && p != nil {
			p.free(v)
		}
	}
}
