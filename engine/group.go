package engine

import (
	"github.com/cwbudde/algo-sampler/dsp"
)

// Routing selects where a group's output goes.
type Routing int

const (
	// RouteToPart mixes the group into its part before the part effects.
	RouteToPart Routing = iota
	// RouteToBus sends the group straight to an output bus.
	RouteToBus
)

// LFOSettings configures the group's amplitude LFO. Depth 0 disables it.
type LFOSettings struct {
	Shape dsp.LFOShape
	Rate  float32
	Depth float32
}

// GroupConfig describes a group before it joins a part.
type GroupConfig struct {
	Name  string
	Level float32
	Pan   float32
	// Mono cuts the group's sounding voices when a new note starts in it.
	Mono bool
	// PolyphonyGroup shares a voice ceiling with other groups; 0 is none.
	PolyphonyGroup int
	Routing        Routing
	Bus            int
	// Envelope gates the whole group output; nil disables it.
	Envelope *dsp.ADSRParams
	LFO      LFOSettings
	Effects  dsp.Chain
}

// Group is the middle level of the process tree. It sums its active zones,
// runs its own envelope, LFO and effects and keeps processing after the last
// voice ends until the effect tail has rung out.
type Group struct {
	Name           string
	Level          float32
	Pan            float32
	Mono           bool
	PolyphonyGroup int
	Routing        Routing
	Bus            int

	part  *Part
	zones []*Zone

	activeZoneWeakRefs [MaxZonesPerGroup]*Zone
	activeZones        int
	activeInPart       bool

	gatedCount int
	voiceCount int
	monoNote   uint64

	envEnabled bool
	env        dsp.ADSR
	envParams  dsp.ADSRParams
	envBuf     [BlockSize]float32

	lfo      dsp.LFO
	lfoShape dsp.LFOShape
	lfoRate  float32
	lfoDepth float32

	effects     dsp.Chain
	silenceTime int
	silenceMax  int

	sampleRate  int
	termination int
	termGain    float32
	termStep    float32

	outL, outR [BlockSize]float32
}

// NewGroup builds a detached group.
func NewGroup(cfg GroupConfig) *Group {
	g := &Group{
		Name:           cfg.Name,
		Level:          cfg.Level,
		Pan:            cfg.Pan,
		Mono:           cfg.Mono,
		PolyphonyGroup: cfg.PolyphonyGroup,
		Routing:        cfg.Routing,
		Bus:            cfg.Bus,
		zones:          make([]*Zone, 0, MaxZonesPerGroup),
		lfoShape:       cfg.LFO.Shape,
		lfoRate:        cfg.LFO.Rate,
		lfoDepth:       max(0, min(cfg.LFO.Depth, 1)),
		termGain:       1,
	}
	if g.Level == 0 {
		g.Level = 1
	}
	if cfg.Envelope != nil {
		g.envEnabled = true
		g.envParams = *cfg.Envelope
	}
	g.setEffects(cfg.Effects)
	g.bind(48000)
	return g
}

// bind prepares the rate-dependent state for sampleRate.
func (g *Group) bind(sampleRate int) {
	if g.sampleRate == sampleRate {
		return
	}
	g.sampleRate = sampleRate
	g.env.Setup(g.envParams, float32(sampleRate))
	g.lfo.Set(g.lfoShape, g.lfoRate, float32(sampleRate))
}

// Part returns the owning part, or nil.
func (g *Group) Part() *Part { return g.part }

// Zones returns the group's zones in insertion order.
func (g *Group) Zones() []*Zone { return g.zones }

// ActiveZones returns the number of zones with sounding voices.
func (g *Group) ActiveZones() int { return g.activeZones }

// GatedCount returns the number of voices whose key is still held.
func (g *Group) GatedCount() int { return g.gatedCount }

// VoiceCount returns the number of voices sounding in the group.
func (g *Group) VoiceCount() int { return g.voiceCount }

// SilenceTime returns the samples processed since the last zone went quiet.
func (g *Group) SilenceTime() int { return g.silenceTime }

// SilenceMax returns the effect-chain tail length in samples.
func (g *Group) SilenceMax() int { return g.silenceMax }

// IsActive reports whether the group still needs processing: a voice is
// sounding, the group envelope is running, or the effects are ringing out.
func (g *Group) IsActive() bool {
	return g.activeZones > 0 || (g.envEnabled && !g.env.Finished()) || g.silenceTime < g.silenceMax
}

func (g *Group) engine() *Engine {
	if g.part == nil {
		return nil
	}
	return g.part.engine
}

// detached reports whether g is outside any engine. Attached groups change
// only through an Editor.
func (g *Group) detached() bool {
	ok := g.engine() == nil
	assertf(ok, "group %q edited outside an Editor", g.Name)
	return ok
}

// AddZone attaches z to a detached group and returns its index. Use
// Editor.AddZone for groups inside an engine.
func (g *Group) AddZone(z *Zone) (int, error) {
	if !g.detached() {
		return -1, ErrStructureNotLocked
	}
	return g.addZone(z)
}

func (g *Group) addZone(z *Zone) (int, error) {
	if z.group != nil {
		return -1, ErrAlreadyAttached
	}
	if len(g.zones) == MaxZonesPerGroup {
		return -1, ErrCapacity
	}
	g.zones = append(g.zones, z)
	z.group = g
	for i := 0; i < z.numVariants; i++ {
		if s := z.variants[i].Sample; s != nil {
			s.Acquire()
		}
	}
	return len(g.zones) - 1, nil
}

// RemoveZone detaches z from a detached group. Use Editor.DetachZone for
// groups inside an engine.
func (g *Group) RemoveZone(z *Zone) error {
	if !g.detached() {
		return ErrStructureNotLocked
	}
	return g.removeZone(z)
}

// removeZone rejects a zone with sounding voices; terminate them first.
func (g *Group) removeZone(z *Zone) error {
	if z.group != g {
		return ErrNoSuchZone
	}
	if z.activeVoices > 0 {
		return ErrZoneHasActiveVoices
	}
	g.dropActiveZone(z)
	for i, x := range g.zones {
		if x == z {
			copy(g.zones[i:], g.zones[i+1:])
			g.zones[len(g.zones)-1] = nil
			g.zones = g.zones[:len(g.zones)-1]
			break
		}
	}
	z.group = nil
	for i := 0; i < z.numVariants; i++ {
		if s := z.variants[i].Sample; s != nil {
			s.Release()
		}
	}
	return nil
}

// TerminateAllVoices frees every voice in the group without a fade.
func (g *Group) TerminateAllVoices() {
	for _, z := range g.zones {
		z.TerminateAllVoices()
	}
}

func (g *Group) setEffects(chain dsp.Chain) {
	g.effects = chain
	g.silenceMax = chain.TailSamples()
	if g.activeZones == 0 {
		g.silenceTime = g.silenceMax
	}
}

func (g *Group) noteStarted() {
	g.gatedCount++
	if g.gatedCount == 1 && g.envEnabled {
		g.env.Gate()
	}
}

func (g *Group) noteReleased() {
	g.gatedCount--
	assertf(g.gatedCount >= 0, "group %q gated count below zero", g.Name)
	if g.gatedCount <= 0 {
		g.gatedCount = 0
		if g.envEnabled {
			g.env.Release()
		}
	}
}

// activateZone puts z on the active list and wakes the group.
func (g *Group) activateZone(z *Zone) {
	if z.activeInGroup {
		return
	}
	g.activeZoneWeakRefs[g.activeZones] = z
	g.activeZones++
	z.activeInGroup = true
	g.silenceTime = 0
	g.termination = 0
	g.termGain = 1
	if g.part != nil {
		g.part.activateGroup(g)
	}
}

func (g *Group) dropActiveZone(z *Zone) {
	if !z.activeInGroup {
		return
	}
	for i := 0; i < g.activeZones; i++ {
		if g.activeZoneWeakRefs[i] == z {
			last := g.activeZones - 1
			copy(g.activeZoneWeakRefs[i:last], g.activeZoneWeakRefs[i+1:g.activeZones])
			g.activeZoneWeakRefs[last] = nil
			g.activeZones--
			break
		}
	}
	z.activeInGroup = false
}

// beginTermination uber-releases the group's voices, fades the group out
// over fadeBlocks and discards its effect tail once the fade completes.
func (g *Group) beginTermination(voiceFade, fadeBlocks int) {
	for i := 0; i < g.activeZones; i++ {
		g.activeZoneWeakRefs[i].forceTerminateAllVoices(voiceFade)
	}
	if !g.IsActive() || g.termination > 0 {
		return
	}
	g.termination = max(fadeBlocks, 1)
	g.termStep = g.termGain / float32(g.termination*BlockSize)
}

func (g *Group) process() {
	clear(g.outL[:])
	clear(g.outR[:])

	hadZones := g.activeZones > 0
	for i := 0; i < g.activeZones; i++ {
		z := g.activeZoneWeakRefs[i]
		z.process()
		for j := range g.outL {
			g.outL[j] += z.outL[j]
			g.outR[j] += z.outR[j]
		}
	}

	// Zones left without voices drop off the list after the walk.
	n := 0
	for i := 0; i < g.activeZones; i++ {
		z := g.activeZoneWeakRefs[i]
		if z.activeVoices > 0 {
			g.activeZoneWeakRefs[n] = z
			n++
		} else {
			z.activeInGroup = false
		}
	}
	clear(g.activeZoneWeakRefs[n:g.activeZones])
	g.activeZones = n

	if g.envEnabled {
		g.env.Process(g.envBuf[:])
		for i := range g.outL {
			g.outL[i] *= g.envBuf[i]
			g.outR[i] *= g.envBuf[i]
		}
	}
	if g.lfoDepth > 0 {
		m := 1 - g.lfoDepth*0.5*(1-g.lfo.Advance(BlockSize))
		for i := range g.outL {
			g.outL[i] *= m
			g.outR[i] *= m
		}
	}

	g.effects.Process(g.outL[:], g.outR[:])
	dsp.ApplyLevelPan(g.outL[:], g.outR[:], g.Level, g.Pan)

	if g.activeZones == 0 {
		if hadZones {
			g.silenceTime = 0
		} else {
			g.silenceTime += BlockSize
		}
	}

	if g.termination > 0 {
		for i := range g.outL {
			g.outL[i] *= g.termGain
			g.outR[i] *= g.termGain
			g.termGain = max(0, g.termGain-g.termStep)
		}
		g.termination--
		if g.termination == 0 {
			g.termGain = 0
			g.effects.Reset()
			g.silenceTime = g.silenceMax
			if g.envEnabled {
				g.env.Kill()
			}
		}
	} else if g.termGain == 0 {
		clear(g.outL[:])
		clear(g.outR[:])
	}
}
