package engine

import (
	"math/rand/v2"

	"github.com/cwbudde/algo-sampler/generator"
	"github.com/cwbudde/algo-sampler/sample"
)

// VariantMode picks which sample variant a new note plays.
type VariantMode int

const (
	RoundRobin VariantMode = iota
	TrueRandom
	RandomNoRepeat
	// RandomCycle plays every loaded variant once in random order before
	// any repeats, and never plays the same one twice across a cycle
	// boundary.
	RandomCycle
	// Unison plays every loaded variant at once.
	Unison
)

func (m VariantMode) String() string {
	switch m {
	case TrueRandom:
		return "random"
	case RandomNoRepeat:
		return "random_no_repeat"
	case RandomCycle:
		return "random_cycle"
	case Unison:
		return "unison"
	default:
		return "round_robin"
	}
}

// ParseVariantMode maps a preset name to a VariantMode.
func ParseVariantMode(s string) (VariantMode, bool) {
	for m := RoundRobin; m <= Unison; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return RoundRobin, s == ""
}

// Variant is one sample a zone can play.
type Variant struct {
	Sample *sample.Sample

	// StartSample and EndSample bound playback; EndSample 0 means the last
	// frame.
	StartSample int
	EndSample   int
	// LoopStart and LoopEnd are used in Loop and Bidirectional modes;
	// LoopEnd 0 means EndSample.
	LoopStart int
	LoopEnd   int
	Mode      generator.PlayMode
	Reverse   bool

	PitchCents float32
	// Amplitude is a linear gain; 0 is treated as 1.
	Amplitude float32
}

func (v *Variant) loaded() bool { return v.Sample.Loaded() }

func (v *Variant) gain() float32 {
	if v.Amplitude == 0 {
		return 1
	}
	return v.Amplitude
}

// variantSelector holds the per-zone selection state.
type variantSelector struct {
	mode        VariantMode
	sampleIndex int
	lastPlayed  int

	// rrs is the random-cycle bag; its first numAvail entries are still
	// unplayed this cycle. bagMask is the loaded set the bag was built from.
	rrs      [MaxVariants]int
	numAvail int
	bagMask  uint32
}

func (s *variantSelector) reset() {
	s.sampleIndex = 0
	s.lastPlayed = -1
	s.invalidate()
}

// invalidate drops the random-cycle bag so the next draw rebuilds it from the
// variants loaded at that time.
func (s *variantSelector) invalidate() {
	s.numAvail = 0
	s.bagMask = 0
}

// pick writes the chosen variant indices into dst and returns how many were
// chosen. loaded lists the indices of variants whose samples are present.
func (s *variantSelector) pick(loaded []int, rng *rand.Rand, dst []int) int {
	n := len(loaded)
	if n == 0 || len(dst) == 0 {
		return 0
	}
	if n == 1 && s.mode != Unison {
		s.lastPlayed = loaded[0]
		dst[0] = loaded[0]
		return 1
	}

	var idx int
	switch s.mode {
	case Unison:
		return copy(dst, loaded)
	case TrueRandom:
		idx = loaded[rng.IntN(n)]
	case RandomNoRepeat:
		idx = loaded[rng.IntN(n)]
		for tries := 0; idx == s.lastPlayed && tries < 4*MaxVariants; tries++ {
			idx = loaded[rng.IntN(n)]
		}
		if idx == s.lastPlayed {
			idx = loaded[(indexOf(loaded, idx)+1)%n]
		}
	case RandomCycle:
		idx = s.drawFromBag(loaded, rng)
	default:
		idx = loaded[s.sampleIndex%n]
		s.sampleIndex = (s.sampleIndex + 1) % n
	}
	s.lastPlayed = idx
	dst[0] = idx
	return 1
}

func (s *variantSelector) drawFromBag(loaded []int, rng *rand.Rand) int {
	n := len(loaded)
	var mask uint32
	for _, i := range loaded {
		mask |= 1 << uint(i)
	}
	if mask != s.bagMask {
		s.numAvail = 0
		s.bagMask = mask
	}
	fresh := false
	if s.numAvail == 0 {
		copy(s.rrs[:], loaded)
		s.numAvail = n
		fresh = true
	}
	r := rng.IntN(s.numAvail)
	if fresh && s.rrs[r] == s.lastPlayed {
		r = (r + 1) % s.numAvail
	}
	idx := s.rrs[r]
	last := s.numAvail - 1
	s.rrs[r], s.rrs[last] = s.rrs[last], s.rrs[r]
	s.numAvail--
	return idx
}

func indexOf(xs []int, v int) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return 0
}
