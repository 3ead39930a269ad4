package engine

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/cwbudde/algo-sampler/dsp"
	"github.com/cwbudde/algo-sampler/sample"
)

// Editor changes the process tree of an engine. An Editor is handed to a
// callback that runs under the structure lock and stops working when that
// callback returns; code that did not receive it cannot edit the tree.
type Editor struct {
	e    *Engine
	live atomic.Bool
}

func (ed *Editor) run(fn func(*Editor) error) error {
	ed.live.Store(true)
	defer ed.live.Store(false)
	return fn(ed)
}

func (ed *Editor) valid() bool {
	ok := ed != nil && ed.live.Load() && ed.e.ctrl.StructureHeld()
	assertf(ok, "tree edited outside a structure-locked callback")
	return ok
}

// AddPart attaches a new part and returns its index.
func (ed *Editor) AddPart(cfg PartConfig) (int, error) {
	if !ed.valid() {
		return -1, ErrStructureNotLocked
	}
	e := ed.e
	if len(e.parts) == MaxParts {
		return -1, ErrCapacity
	}
	p := NewPart(cfg)
	p.engine = e
	e.parts = append(e.parts, p)
	return len(e.parts) - 1, nil
}

// AddGroup attaches a new group to part and returns its index.
func (ed *Editor) AddGroup(part int, cfg GroupConfig) (int, error) {
	if !ed.valid() {
		return -1, ErrStructureNotLocked
	}
	p := ed.e.Part(part)
	if p == nil {
		return -1, ErrNoSuchPart
	}
	return p.addGroup(NewGroup(cfg))
}

// AddZone attaches z to a group and returns its index.
func (ed *Editor) AddZone(part, group int, z *Zone) (int, error) {
	if !ed.valid() {
		return -1, ErrStructureNotLocked
	}
	g := ed.e.groupAt(part, group)
	if g == nil {
		return -1, ErrNoSuchGroup
	}
	return g.addZone(z)
}

// DetachZone removes z from its group without touching its voices. A zone
// with sounding voices is rejected with ErrZoneHasActiveVoices.
func (ed *Editor) DetachZone(z *Zone) error {
	if !ed.valid() {
		return ErrStructureNotLocked
	}
	if z == nil || z.group == nil || z.group.engine() != ed.e {
		return ErrNoSuchZone
	}
	return z.group.removeZone(z)
}

// RemoveZone stops the zone's voices and detaches it.
func (ed *Editor) RemoveZone(part, group, zone int) error {
	if !ed.valid() {
		return ErrStructureNotLocked
	}
	z := ed.e.zoneAt(part, group, zone)
	if z == nil {
		return ErrNoSuchZone
	}
	z.TerminateAllVoices()
	return z.group.removeZone(z)
}

// RemoveGroup stops the group's voices and detaches it with its zones.
func (ed *Editor) RemoveGroup(part, group int) error {
	if !ed.valid() {
		return ErrStructureNotLocked
	}
	g := ed.e.groupAt(part, group)
	if g == nil {
		return ErrNoSuchGroup
	}
	g.TerminateAllVoices()
	if err := g.part.removeGroup(g); err != nil {
		return err
	}
	for len(g.zones) > 0 {
		if err := g.removeZone(g.zones[len(g.zones)-1]); err != nil {
			return err
		}
	}
	return nil
}

// SwapVariantSample replaces the sample behind one variant. Voices playing
// that variant are stopped first since they read the old sample data.
func (ed *Editor) SwapVariantSample(part, group, zone, variant int, s *sample.Sample) error {
	if !ed.valid() {
		return ErrStructureNotLocked
	}
	z := ed.e.zoneAt(part, group, zone)
	if z == nil {
		return ErrNoSuchZone
	}
	if variant < 0 || variant >= z.numVariants {
		return ErrNoSuchVariant
	}
	for _, v := range z.voiceWeakPointers {
		if v != nil && v.variant == variant {
			ed.e.pool.kill(v)
		}
	}
	va := &z.variants[variant]
	wasLoaded := va.loaded()
	if s != nil {
		s.Acquire()
	}
	if va.Sample != nil {
		va.Sample.Release()
	}
	va.Sample = s
	if va.loaded() != wasLoaded {
		z.sel.invalidate()
	}
	return nil
}

// SetGroupEffects replaces a group's effect chain.
func (ed *Editor) SetGroupEffects(part, group int, chain dsp.Chain) error {
	if !ed.valid() {
		return ErrStructureNotLocked
	}
	g := ed.e.groupAt(part, group)
	if g == nil {
		return ErrNoSuchGroup
	}
	g.setEffects(chain)
	return nil
}

// SetPartEffects replaces a part's effect chain.
func (ed *Editor) SetPartEffects(part int, chain dsp.Chain) error {
	if !ed.valid() {
		return ErrStructureNotLocked
	}
	p := ed.e.Part(part)
	if p == nil {
		return ErrNoSuchPart
	}
	p.setEffects(chain)
	return nil
}

// SetBusEffects replaces the effect chain of bus i (0 is main).
func (ed *Editor) SetBusEffects(bus int, chain dsp.Chain) error {
	if bus < 0 || bus > MaxAuxBuses {
		return errors.Errorf("engine: bus %d out of range", bus)
	}
	if !ed.valid() {
		return ErrStructureNotLocked
	}
	ed.e.buses[bus].effects = chain
	return nil
}

// SetGroupRouting sends a group to its part or straight to a bus.
func (ed *Editor) SetGroupRouting(part, group int, r Routing, bus int) error {
	if bus < 0 || bus > MaxAuxBuses {
		return errors.Errorf("engine: bus %d out of range", bus)
	}
	if !ed.valid() {
		return ErrStructureNotLocked
	}
	g := ed.e.groupAt(part, group)
	if g == nil {
		return ErrNoSuchGroup
	}
	g.Routing = r
	g.Bus = bus
	return nil
}

// SetPolyphonyLimit sets the voice ceiling for a polyphony group; 0 removes
// it.
func (ed *Editor) SetPolyphonyLimit(polyGroup, limit int) error {
	if polyGroup <= 0 || polyGroup > MaxPolyphonyGroups {
		return errors.Errorf("engine: polyphony group %d out of range", polyGroup)
	}
	if !ed.valid() {
		return ErrStructureNotLocked
	}
	ed.e.polyLimits[polyGroup] = max(0, limit)
	return nil
}

// Reset stops every voice and clears all effect state.
func (ed *Editor) Reset() error {
	if !ed.valid() {
		return ErrStructureNotLocked
	}
	e := ed.e
	e.pool.ImmediatelyTerminateAllVoices()
	for _, p := range e.parts {
		p.sustain = false
		for _, g := range p.groups {
			g.effects.Reset()
			g.silenceTime = g.silenceMax
		}
		p.effects.Reset()
		p.silenceTime = p.silenceMax
	}
	for i := range e.buses {
		e.buses[i].effects.Reset()
	}
	return nil
}
