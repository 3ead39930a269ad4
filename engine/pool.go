package engine

// VoicePool owns every Voice the engine can play. Slots are allocated once
// and reused; the audio thread never allocates a voice.
type VoicePool struct {
	engine  *Engine
	voices  []Voice
	counter uint64
	active  int

	forced    uint64
	hardKills uint64
}

func (p *VoicePool) init(e *Engine, capacity int) {
	p.engine = e
	p.voices = make([]Voice, capacity)
	for i := range p.voices {
		p.voices[i].pool = p
		p.voices[i].slot = i
		p.voices[i].termination = -1
	}
}

// Capacity returns the number of slots.
func (p *VoicePool) Capacity() int { return len(p.voices) }

// Active returns the number of assigned slots, fading voices included.
func (p *VoicePool) Active() int { return p.active }

// Voices exposes the slots for inspection on the audio thread.
func (p *VoicePool) Voices() []Voice { return p.voices }

// ForcedTerminations returns how many uber-releases were started.
func (p *VoicePool) ForcedTerminations() uint64 { return p.forced }

// HardKills returns how many voices were cut without a fade to free a slot.
func (p *VoicePool) HardKills() uint64 { return p.hardKills }

// VoicePath addresses one variant of one zone.
type VoicePath struct {
	Part    int
	Group   int
	Zone    int
	Variant int
}

// InitiateVoice starts a note on the variant at path. It returns nil when the
// path does not resolve to a loaded variant. Audio thread only.
func (p *VoicePool) InitiateVoice(path VoicePath, channel, key int, noteID int32, velocity float32) *Voice {
	z := p.engine.zoneAt(path.Part, path.Group, path.Zone)
	if z == nil || path.Variant < 0 || path.Variant >= z.numVariants || !z.variants[path.Variant].loaded() {
		return nil
	}
	return p.initiate(noteStart{channel: channel, key: key, noteID: noteID, velocity: velocity}, z, path.Variant)
}

func (p *VoicePool) initiate(n noteStart, z *Zone, vi int) *Voice {
	if vi < 0 || vi >= z.numVariants || !z.variants[vi].loaded() {
		p.engine.diag(DiagUnloadedVariant, int64(n.key), int64(vi), 0)
		return nil
	}
	v := p.findSlot()
	if z.activeVoices == MaxVoicesPerZone {
		if old := z.oldestVoice(); old != nil {
			p.engine.diag(DiagZoneFull, int64(old.Key), int64(old.started), 0)
			p.kill(old)
		}
	}
	p.counter++
	v.construct(n, z, vi, p.counter)
	if !z.addVoice(v) {
		v.termination = -1
		v.zone = nil
		v.playing = false
		return nil
	}
	p.active++
	return v
}

// findSlot returns a free slot. Without one it reuses a voice that is already
// fading out, and as a last resort hard-kills the oldest voice.
func (p *VoicePool) findSlot() *Voice {
	var fading, oldest *Voice
	for i := range p.voices {
		v := &p.voices[i]
		if v.termination < 0 {
			return v
		}
		if v.termination > 0 && (fading == nil || v.started < fading.started) {
			fading = v
		}
		if oldest == nil || v.started < oldest.started {
			oldest = v
		}
	}
	victim := fading
	if victim == nil {
		victim = oldest
		p.hardKills++
		p.engine.diag(DiagHardKill, int64(victim.Key), int64(victim.started), int64(victim.slot))
	}
	p.kill(victim)
	return victim
}

// kill frees an assigned voice immediately.
func (p *VoicePool) kill(v *Voice) {
	if v.termination < 0 {
		return
	}
	if v.gated {
		v.ungate()
	}
	p.free(v)
}

// free detaches v from its zone and returns the slot to the pool.
func (p *VoicePool) free(v *Voice) {
	if v.termination < 0 {
		return
	}
	if v.zone != nil {
		if v.gated {
			v.ungate()
		}
		v.zone.removeVoice(v)
	}
	v.zone = nil
	v.termination = -1
	v.playing = false
	v.sustained = false
	v.io.Sample = nil
	p.active--
}

// ReleaseVoice releases every gated voice matching channel, key and noteID.
// A value of -1 matches anything. With the sustain pedal down the release is
// deferred.
func (p *VoicePool) ReleaseVoice(channel, key int, noteID int32, velocity float32) int {
	n := 0
	for i := range p.voices {
		v := &p.voices[i]
		if v.termination != 0 || !v.gated {
			continue
		}
		if (channel >= 0 && v.Channel != channel) || (key >= 0 && v.Key != key) || (noteID >= 0 && v.NoteID >= 0 && v.NoteID != noteID) {
			continue
		}
		if part := v.part(); part != nil && part.sustain {
			v.sustained = true
		} else {
			v.release()
		}
		n++
	}
	return n
}

// ImmediatelyTerminateAllVoices frees every slot without a fade.
func (p *VoicePool) ImmediatelyTerminateAllVoices() {
	for i := range p.voices {
		p.kill(&p.voices[i])
	}
}

// releaseSustained releases voices held only by the pedal on part.
func (p *VoicePool) releaseSustained(part *Part) {
	for i := range p.voices {
		v := &p.voices[i]
		if v.termination == 0 && v.sustained && v.part() == part {
			v.release()
		}
	}
}

// voiceScope selects the voices a ceiling applies to.
type voiceScope struct {
	part      *Part
	polyGroup int
}

func (s voiceScope) contains(v *Voice) bool {
	if s.part != nil && v.part() != s.part {
		return false
	}
	if s.polyGroup > 0 && (v.zone == nil || v.zone.group == nil || v.zone.group.PolyphonyGroup != s.polyGroup) {
		return false
	}
	return true
}

// countPlaying counts voices in scope that are not already fading.
func (p *VoicePool) countPlaying(s voiceScope) int {
	n := 0
	for i := range p.voices {
		v := &p.voices[i]
		if v.termination == 0 && s.contains(v) {
			n++
		}
	}
	return n
}

// makeRoom uber-releases the oldest voices in scope until starting one more
// keeps the count within limit. When nothing in scope can be faded the
// oldest voice in scope is hard-killed.
func (p *VoicePool) makeRoom(s voiceScope, limit int) {
	if limit <= 0 {
		return
	}
	fade := p.engine.cfg.ForcedFadeBlocks
	for p.countPlaying(s) >= limit {
		var victim, oldest *Voice
		for i := range p.voices {
			v := &p.voices[i]
			if v.termination < 0 || !s.contains(v) {
				continue
			}
			if v.termination == 0 && (victim == nil || v.started < victim.started) {
				victim = v
			}
			if oldest == nil || v.started < oldest.started {
				oldest = v
			}
		}
		switch {
		case victim != nil:
			victim.forceTerminate(fade)
		case oldest != nil:
			p.hardKills++
			p.engine.diag(DiagHardKill, int64(oldest.Key), int64(oldest.started), int64(oldest.slot))
			p.kill(oldest)
		default:
			return
		}
	}
}

func (v *Voice) part() *Part {
	if v.zone == nil || v.zone.group == nil {
		return nil
	}
	return v.zone.group.part
}
