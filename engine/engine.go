// Package engine is the polyphonic sample-playback engine: a Part → Group →
// Zone process tree fed by a fixed voice pool, driven one block at a time by
// the audio thread and edited only through the messaging controller.
package engine

import (
	"log/slog"
	"math/rand/v2"
	"sync/atomic"

	"github.com/cwbudde/algo-sampler/messaging"
)

// Param addresses a value settable through SetParam.
type Param int64

const (
	ParamMasterLevel Param = iota + 1
	ParamPartLevel
	ParamPartPan
	ParamGroupLevel
	ParamGroupPan
	ParamGroupLFODepth
	ParamBusLevel
	// ParamChannelLevel sets the level of every part listening on a channel.
	ParamChannelLevel
)

type launch struct {
	zone    *Zone
	variant int
}

// Engine owns the process tree, the voice pool and the controller.
type Engine struct {
	cfg  Config
	log  *slog.Logger
	ctrl *messaging.Controller

	pool  VoicePool
	parts []*Part
	buses [1 + MaxAuxBuses]Bus

	masterLevel float32
	polyLimits  [MaxPolyphonyGroups + 1]int
	rng         *rand.Rand

	handle   func(messaging.Message)
	launches [maxLaunchesPerNote]launch
	noteSeq  uint64

	blockL, blockR [BlockSize]float32
	blockPos       int
	blocks         uint64
	lastVoices     int

	// Control-thread view of audio-side state.
	reportedVoices atomic.Int64
	purgeAck       atomic.Int64
	purgeSeq       atomic.Int64
	diagCounts     [DiagQueueOverflow + 1]atomic.Uint64
	lastOverflow   uint64
}

// New creates an engine. The returned engine processes silence until parts
// are added.
func New(cfg Config) *Engine {
	cfg.normalize()
	e := &Engine{
		cfg:      cfg,
		log:      cfg.Logger,
		ctrl:     messaging.NewController(cfg.QueueSize),
		parts:    make([]*Part, 0, MaxParts),
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		blockPos: BlockSize,

		masterLevel: cfg.MasterLevel,
	}
	e.ctrl.SetLogger(e.log)
	e.ctrl.SetSerialHandler(e.handleSerial)
	e.handle = e.handleMessage
	e.pool.init(e, cfg.Capacity())
	for i := range e.buses {
		e.buses[i].Level = 1
	}
	e.lastVoices = -1
	return e
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config { return e.cfg }

// Controller returns the engine's message controller.
func (e *Engine) Controller() *messaging.Controller { return e.ctrl }

// Pool returns the voice pool. Audio thread only, or while audio is stopped.
func (e *Engine) Pool() *VoicePool { return &e.pool }

// Parts returns the parts. Audio thread or structure lock only.
func (e *Engine) Parts() []*Part { return e.parts }

// Part returns part i or nil.
func (e *Engine) Part(i int) *Part {
	if i < 0 || i >= len(e.parts) {
		return nil
	}
	return e.parts[i]
}

// Blocks returns the number of blocks rendered.
func (e *Engine) Blocks() uint64 { return e.blocks }

// Start marks the audio thread as running. Call it before the first audio
// callback; after it, structural edits are dispatched to the audio thread.
func (e *Engine) Start() { e.ctrl.SetAudioRunning(true) }

// Stop marks the audio thread as stopped. Call it after the last callback.
func (e *Engine) Stop() { e.ctrl.SetAudioRunning(false) }

// Process renders numFrames of interleaved stereo.
func (e *Engine) Process(numFrames int) []float32 {
	out := make([]float32, numFrames*2)
	e.ProcessInto(out)
	return out
}

// ProcessInto fills out with interleaved stereo frames. Any length works;
// the engine renders internally in blocks of BlockSize.
func (e *Engine) ProcessInto(out []float32) {
	for i := 0; i+1 < len(out); i += 2 {
		if e.blockPos == BlockSize {
			e.renderBlock()
			e.blockPos = 0
		}
		out[i] = e.blockL[e.blockPos]
		out[i+1] = e.blockR[e.blockPos]
		e.blockPos++
	}
}

func (e *Engine) renderBlock() {
	if !e.ctrl.BeginBlock(e.handle) {
		clear(e.blockL[:])
		clear(e.blockR[:])
		return
	}

	for i := range e.buses {
		clear(e.buses[i].inL[:])
		clear(e.buses[i].inR[:])
	}
	for _, p := range e.parts {
		p.process(&e.buses)
	}

	main := &e.buses[0]
	for i := 1; i < len(e.buses); i++ {
		b := &e.buses[i]
		b.process()
		for j := range BlockSize {
			main.inL[j] += b.inL[j]
			main.inR[j] += b.inR[j]
		}
	}
	main.process()

	lvl := e.masterLevel
	for j := range BlockSize {
		e.blockL[j] = main.inL[j] * lvl
		e.blockR[j] = main.inR[j] * lvl
	}
	e.blocks++

	if e.pool.active != e.lastVoices {
		e.lastVoices = e.pool.active
		e.ctrl.PostToSerial(messaging.Message{
			Tag:     messaging.VoiceCount,
			Payload: messaging.Payload{A: int64(e.pool.active), B: int64(e.blocks)},
		})
	}
}

// handleMessage applies a control message on the audio thread.
func (e *Engine) handleMessage(m messaging.Message) {
	pl := m.Payload
	switch m.Tag {
	case messaging.NoteOn:
		e.noteOn(noteStart{channel: int(pl.A), key: int(pl.B), noteID: int32(pl.C), velocity: pl.Value})
	case messaging.NoteOff:
		e.pool.ReleaseVoice(int(pl.A), int(pl.B), int32(pl.C), pl.Value)
	case messaging.SustainPedal:
		e.setSustain(int(pl.A), pl.B != 0)
	case messaging.AllSoundOff:
		e.allSoundOff(int(pl.A))
	case messaging.ParamSetValue:
		e.setParam(Param(pl.A), int(pl.B), int(pl.C), pl.Value)
	case messaging.ScheduleSamplePurge:
		e.ctrl.PostToSerial(messaging.Message{Tag: messaging.SamplePurgeReady, Payload: pl})
	}
}

// noteOn collects every zone variant the note maps to, applies the mono and
// polyphony policies and starts the voices.
func (e *Engine) noteOn(n noteStart) {
	vel := int(max(0, min(n.velocity, 1))*127 + 0.5)
	count := 0
	var picks [MaxVariants]int
	for _, p := range e.parts {
		if !p.listensOn(n.channel) {
			continue
		}
		for _, g := range p.groups {
			for _, z := range g.zones {
				if !z.Mapping.Matches(n.key, vel) {
					continue
				}
				k := z.selectVariants(e.rng, picks[:])
				for j := 0; j < k && count < len(e.launches); j++ {
					e.launches[count] = launch{zone: z, variant: picks[j]}
					count++
				}
			}
		}
	}
	if count == 0 {
		return
	}

	e.noteSeq++
	fade := e.cfg.ForcedFadeBlocks
	for i := 0; i < count; i++ {
		g := e.launches[i].zone.group
		if g.Mono && g.monoNote != e.noteSeq {
			g.monoNote = e.noteSeq
			for j := 0; j < g.activeZones; j++ {
				g.activeZoneWeakRefs[j].forceTerminateAllVoices(fade)
			}
		}
	}

	for i := 0; i < count; i++ {
		l := e.launches[i]
		g := l.zone.group
		if pg := g.PolyphonyGroup; pg > 0 && pg <= MaxPolyphonyGroups {
			e.pool.makeRoom(voiceScope{polyGroup: pg}, e.polyLimits[pg])
		}
		e.pool.makeRoom(voiceScope{part: g.part}, g.part.VoiceLimit)
		e.pool.makeRoom(voiceScope{}, e.cfg.Polyphony)
		e.pool.initiate(n, l.zone, l.variant)
		e.launches[i] = launch{}
	}
}

func (e *Engine) setSustain(channel int, on bool) {
	for _, p := range e.parts {
		if !p.listensOn(channel) || p.sustain == on {
			continue
		}
		p.sustain = on
		if !on {
			e.pool.releaseSustained(p)
		}
	}
}

func (e *Engine) allSoundOff(channel int) {
	for _, p := range e.parts {
		if !p.listensOn(channel) {
			continue
		}
		p.sustain = false
		for _, g := range p.groups {
			g.beginTermination(e.cfg.ForcedFadeBlocks, e.cfg.GroupFadeBlocks)
		}
	}
}

func (e *Engine) setParam(id Param, a, b int, value float32) {
	switch id {
	case ParamMasterLevel:
		e.masterLevel = max(0, value)
	case ParamBusLevel:
		e.buses[busIndex(a)].Level = max(0, value)
	case ParamChannelLevel:
		for _, p := range e.parts {
			if p.listensOn(a) {
				p.Level = max(0, value)
			}
		}
	case ParamPartLevel, ParamPartPan:
		p := e.Part(a)
		if p == nil {
			return
		}
		if id == ParamPartLevel {
			p.Level = max(0, value)
		} else {
			p.Pan = max(-1, min(value, 1))
		}
	case ParamGroupLevel, ParamGroupPan, ParamGroupLFODepth:
		g := e.groupAt(a, b)
		if g == nil {
			return
		}
		switch id {
		case ParamGroupLevel:
			g.Level = max(0, value)
		case ParamGroupPan:
			g.Pan = max(-1, min(value, 1))
		default:
			g.lfoDepth = max(0, min(value, 1))
		}
	}
}

func (e *Engine) groupAt(part, group int) *Group {
	p := e.Part(part)
	if p == nil || group < 0 || group >= len(p.groups) {
		return nil
	}
	return p.groups[group]
}

func (e *Engine) zoneAt(part, group, zone int) *Zone {
	g := e.groupAt(part, group)
	if g == nil || zone < 0 || zone >= len(g.zones) {
		return nil
	}
	return g.zones[zone]
}

// diag reports an absorbed condition to the control thread.
func (e *Engine) diag(code DiagCode, b, c, d int64) {
	e.ctrl.PostToSerial(diagMessage(code, b, c, d))
}

// handleSerial runs on the control thread for every audio→control message.
func (e *Engine) handleSerial(m messaging.Message) {
	switch m.Tag {
	case messaging.VoiceCount:
		e.reportedVoices.Store(m.Payload.A)
	case messaging.SamplePurgeReady:
		e.purgeAck.Store(m.Payload.A)
	case messaging.Diagnostic:
		code := DiagCode(m.Payload.A)
		if code > 0 && int(code) < len(e.diagCounts) {
			e.diagCounts[code].Add(1)
		}
		switch code {
		case DiagForcedTermination:
			e.log.Debug("voice uber-released", "key", m.Payload.B, "started", m.Payload.C, "slot", m.Payload.D)
		default:
			e.log.Warn("audio diagnostic", "code", code.String(), "b", m.Payload.B, "c", m.Payload.C, "d", m.Payload.D)
		}
	}
}
