package engine

import (
	"github.com/cwbudde/algo-sampler/dsp"
)

// PartConfig describes a part before it joins the engine.
type PartConfig struct {
	Name string
	// Channel is the MIDI channel the part listens on; -1 listens on all.
	Channel int
	Level   float32
	Pan     float32
	// VoiceLimit caps the part's non-fading voices; 0 is no limit.
	VoiceLimit int
	Bus        int
	Effects    dsp.Chain
}

// Part is the top level of the process tree: a channel-addressed set of
// groups with its own effects and output bus.
type Part struct {
	Name       string
	Channel    int
	Level      float32
	Pan        float32
	VoiceLimit int
	Bus        int

	engine *Engine
	groups []*Group

	activeGroupRefs [MaxGroupsPerPart]*Group
	activeGroups    int

	sustain bool

	effects     dsp.Chain
	silenceTime int
	silenceMax  int

	outL, outR [BlockSize]float32
}

// NewPart builds a detached part.
func NewPart(cfg PartConfig) *Part {
	p := &Part{
		Name:       cfg.Name,
		Channel:    cfg.Channel,
		Level:      cfg.Level,
		Pan:        cfg.Pan,
		VoiceLimit: cfg.VoiceLimit,
		Bus:        cfg.Bus,
		groups:     make([]*Group, 0, MaxGroupsPerPart),
	}
	if p.Level == 0 {
		p.Level = 1
	}
	p.setEffects(cfg.Effects)
	return p
}

// Groups returns the part's groups in insertion order.
func (p *Part) Groups() []*Group { return p.groups }

// ActiveGroups returns the number of groups still processing.
func (p *Part) ActiveGroups() int { return p.activeGroups }

// Sustain reports the pedal state.
func (p *Part) Sustain() bool { return p.sustain }

// IsActive reports whether the part still needs processing.
func (p *Part) IsActive() bool {
	return p.activeGroups > 0 || p.silenceTime < p.silenceMax
}

// listensOn reports whether a note on channel reaches this part.
func (p *Part) listensOn(channel int) bool {
	return p.Channel < 0 || channel < 0 || p.Channel == channel
}

// detached reports whether p is outside any engine.
func (p *Part) detached() bool {
	ok := p.engine == nil
	assertf(ok, "part %q edited outside an Editor", p.Name)
	return ok
}

// AddGroup attaches g to a detached part and returns its index. Use
// Editor.AddGroup for parts inside an engine.
func (p *Part) AddGroup(g *Group) (int, error) {
	if !p.detached() {
		return -1, ErrStructureNotLocked
	}
	return p.addGroup(g)
}

func (p *Part) addGroup(g *Group) (int, error) {
	if g.part != nil {
		return -1, ErrAlreadyAttached
	}
	if len(p.groups) == MaxGroupsPerPart {
		return -1, ErrCapacity
	}
	p.groups = append(p.groups, g)
	g.part = p
	if p.engine != nil {
		g.bind(p.engine.cfg.SampleRate)
	}
	return len(p.groups) - 1, nil
}

// RemoveGroup detaches g from a detached part.
func (p *Part) RemoveGroup(g *Group) error {
	if !p.detached() {
		return ErrStructureNotLocked
	}
	return p.removeGroup(g)
}

// removeGroup rejects a group with sounding voices.
func (p *Part) removeGroup(g *Group) error {
	if g.part != p {
		return ErrNoSuchGroup
	}
	if g.voiceCount > 0 {
		return ErrZoneHasActiveVoices
	}
	p.dropActiveGroup(g)
	for i, x := range p.groups {
		if x == g {
			copy(p.groups[i:], p.groups[i+1:])
			p.groups[len(p.groups)-1] = nil
			p.groups = p.groups[:len(p.groups)-1]
			break
		}
	}
	g.part = nil
	return nil
}

func (p *Part) setEffects(chain dsp.Chain) {
	p.effects = chain
	p.silenceMax = chain.TailSamples()
	if p.activeGroups == 0 {
		p.silenceTime = p.silenceMax
	}
}

func (p *Part) activateGroup(g *Group) {
	if g.activeInPart {
		return
	}
	p.activeGroupRefs[p.activeGroups] = g
	p.activeGroups++
	g.activeInPart = true
	p.silenceTime = 0
}

func (p *Part) dropActiveGroup(g *Group) {
	if !g.activeInPart {
		return
	}
	for i := 0; i < p.activeGroups; i++ {
		if p.activeGroupRefs[i] == g {
			last := p.activeGroups - 1
			copy(p.activeGroupRefs[i:last], p.activeGroupRefs[i+1:p.activeGroups])
			p.activeGroupRefs[last] = nil
			p.activeGroups--
			break
		}
	}
	g.activeInPart = false
}

// process renders the active groups, applies the part effects and mixes the
// result onto the output bus.
func (p *Part) process(buses *[1 + MaxAuxBuses]Bus) {
	if !p.IsActive() {
		return
	}
	clear(p.outL[:])
	clear(p.outR[:])

	hadGroups := p.activeGroups > 0
	for i := 0; i < p.activeGroups; i++ {
		g := p.activeGroupRefs[i]
		g.process()
		dstL, dstR := p.outL[:], p.outR[:]
		if g.Routing == RouteToBus {
			b := &buses[busIndex(g.Bus)]
			dstL, dstR = b.inL[:], b.inR[:]
		}
		for j := range BlockSize {
			dstL[j] += g.outL[j]
			dstR[j] += g.outR[j]
		}
	}

	n := 0
	for i := 0; i < p.activeGroups; i++ {
		g := p.activeGroupRefs[i]
		if g.IsActive() {
			p.activeGroupRefs[n] = g
			n++
		} else {
			g.activeInPart = false
		}
	}
	clear(p.activeGroupRefs[n:p.activeGroups])
	p.activeGroups = n

	p.effects.Process(p.outL[:], p.outR[:])
	dsp.ApplyLevelPan(p.outL[:], p.outR[:], p.Level, p.Pan)

	b := &buses[busIndex(p.Bus)]
	for j := range BlockSize {
		b.inL[j] += p.outL[j]
		b.inR[j] += p.outR[j]
	}

	if p.activeGroups == 0 {
		if hadGroups {
			p.silenceTime = 0
		} else {
			p.silenceTime += BlockSize
		}
	}
}

func busIndex(i int) int {
	if i < 0 || i > MaxAuxBuses {
		return 0
	}
	return i
}

// Bus is an output mix point. Bus 0 is the main output; aux buses run their
// effects and feed the main bus.
type Bus struct {
	Level   float32
	effects dsp.Chain

	inL, inR [BlockSize]float32
}

func (b *Bus) process() {
	b.effects.Process(b.inL[:], b.inR[:])
	if b.Level != 1 {
		for i := range b.inL {
			b.inL[i] *= b.Level
			b.inR[i] *= b.Level
		}
	}
}
