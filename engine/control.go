package engine

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cwbudde/algo-sampler/dsp"
	"github.com/cwbudde/algo-sampler/messaging"
	"github.com/cwbudde/algo-sampler/sample"
)

// The methods in this file run on the control thread.

// NoteOn queues a note start. velocity is in [0, 1]; noteID -1 means none.
func (e *Engine) NoteOn(channel, key int, noteID int32, velocity float32) error {
	return e.ctrl.TrySend(messaging.Message{
		Tag:     messaging.NoteOn,
		Payload: messaging.Payload{A: int64(channel), B: int64(key), C: int64(noteID), Value: velocity},
	})
}

// NoteOff queues a note release. -1 for any field matches every voice.
func (e *Engine) NoteOff(channel, key int, noteID int32, velocity float32) error {
	return e.ctrl.TrySend(messaging.Message{
		Tag:     messaging.NoteOff,
		Payload: messaging.Payload{A: int64(channel), B: int64(key), C: int64(noteID), Value: velocity},
	})
}

// SetSustain queues a sustain pedal change for the parts on channel.
func (e *Engine) SetSustain(channel int, on bool) error {
	var b int64
	if on {
		b = 1
	}
	return e.ctrl.TrySend(messaging.Message{
		Tag:     messaging.SustainPedal,
		Payload: messaging.Payload{A: int64(channel), B: b},
	})
}

// AllSoundOff fades out every group on channel (-1 for all) and drops their
// effect tails.
func (e *Engine) AllSoundOff(channel int) error {
	return e.ctrl.TrySend(messaging.Message{
		Tag:     messaging.AllSoundOff,
		Payload: messaging.Payload{A: int64(channel)},
	})
}

// SetParam queues a parameter change. a and b address the part/bus and the
// group where the parameter needs them.
func (e *Engine) SetParam(id Param, a, b int, value float32) error {
	return e.ctrl.TrySend(messaging.Message{
		Tag:     messaging.ParamSetValue,
		Payload: messaging.Payload{A: int64(id), B: int64(a), C: int64(b), Value: value},
	})
}

// PollControl handles everything the audio thread reported and returns the
// number of messages processed.
func (e *Engine) PollControl() int {
	n := e.ctrl.DrainSerial()
	if ov := e.ctrl.Overflows(); ov != e.lastOverflow {
		e.diagCounts[DiagQueueOverflow].Add(ov - e.lastOverflow)
		e.log.Warn("audio to control queue overflowed", "dropped", ov-e.lastOverflow)
		e.lastOverflow = ov
	}
	return n
}

// ActiveVoices returns the voice count last reported by the audio thread.
func (e *Engine) ActiveVoices() int { return int(e.reportedVoices.Load()) }

// DiagnosticCount returns how many diagnostics of code were received.
func (e *Engine) DiagnosticCount(code DiagCode) uint64 {
	if code <= 0 || int(code) >= len(e.diagCounts) {
		return 0
	}
	return e.diagCounts[code].Load()
}

// Edit runs fn with the audio thread paused and the structure lock held.
// Use it for bulk changes such as loading a preset. fn edits the tree
// through ed; calling the Engine edit methods from inside fn deadlocks.
func (e *Engine) Edit(ctx context.Context, fn func(ed *Editor) error) error {
	ed := &Editor{e: e}
	return e.ctrl.StopAudioThreadThenRunOnSerial(ctx, func() error { return ed.run(fn) })
}

// locked runs fn on the audio thread under the structure lock, or on the
// caller when audio is stopped. Concurrent callers wait for each other.
func (e *Engine) locked(ctx context.Context, fn func(ed *Editor) error) error {
	ed := &Editor{e: e}
	return e.ctrl.RunOnAudioUnderStructureLock(ctx, func() error { return ed.run(fn) })
}

// AddPart attaches a new part and returns its index.
func (e *Engine) AddPart(ctx context.Context, cfg PartConfig) (int, error) {
	idx := -1
	err := e.locked(ctx, func(ed *Editor) error {
		var err error
		idx, err = ed.AddPart(cfg)
		return err
	})
	return idx, err
}

// AddGroup attaches a new group to part and returns its index.
func (e *Engine) AddGroup(ctx context.Context, part int, cfg GroupConfig) (int, error) {
	idx := -1
	err := e.locked(ctx, func(ed *Editor) error {
		var err error
		idx, err = ed.AddGroup(part, cfg)
		return err
	})
	return idx, err
}

// AddZone attaches z to a group and returns its index.
func (e *Engine) AddZone(ctx context.Context, part, group int, z *Zone) (int, error) {
	idx := -1
	err := e.locked(ctx, func(ed *Editor) error {
		var err error
		idx, err = ed.AddZone(part, group, z)
		return err
	})
	return idx, err
}

// RemoveZone stops the zone's voices and detaches it.
func (e *Engine) RemoveZone(ctx context.Context, part, group, zone int) error {
	return e.locked(ctx, func(ed *Editor) error { return ed.RemoveZone(part, group, zone) })
}

// RemoveGroup stops the group's voices and detaches it with its zones.
func (e *Engine) RemoveGroup(ctx context.Context, part, group int) error {
	return e.locked(ctx, func(ed *Editor) error { return ed.RemoveGroup(part, group) })
}

// SwapVariantSample replaces the sample behind one variant.
func (e *Engine) SwapVariantSample(ctx context.Context, part, group, zone, variant int, s *sample.Sample) error {
	return e.locked(ctx, func(ed *Editor) error { return ed.SwapVariantSample(part, group, zone, variant, s) })
}

// SetGroupEffects replaces a group's effect chain.
func (e *Engine) SetGroupEffects(ctx context.Context, part, group int, chain dsp.Chain) error {
	return e.locked(ctx, func(ed *Editor) error { return ed.SetGroupEffects(part, group, chain) })
}

// SetPartEffects replaces a part's effect chain.
func (e *Engine) SetPartEffects(ctx context.Context, part int, chain dsp.Chain) error {
	return e.locked(ctx, func(ed *Editor) error { return ed.SetPartEffects(part, chain) })
}

// SetBusEffects replaces the effect chain of bus i (0 is main).
func (e *Engine) SetBusEffects(ctx context.Context, bus int, chain dsp.Chain) error {
	return e.locked(ctx, func(ed *Editor) error { return ed.SetBusEffects(bus, chain) })
}

// SetGroupRouting sends a group to its part or straight to a bus.
func (e *Engine) SetGroupRouting(ctx context.Context, part, group int, r Routing, bus int) error {
	return e.locked(ctx, func(ed *Editor) error { return ed.SetGroupRouting(part, group, r, bus) })
}

// SetPolyphonyLimit sets the voice ceiling for a polyphony group; 0 removes
// it.
func (e *Engine) SetPolyphonyLimit(ctx context.Context, polyGroup, limit int) error {
	return e.locked(ctx, func(ed *Editor) error { return ed.SetPolyphonyLimit(polyGroup, limit) })
}

// Reset stops every voice and clears all effect state.
func (e *Engine) Reset(ctx context.Context) error {
	return e.locked(ctx, func(ed *Editor) error { return ed.Reset() })
}

// PurgeSamples waits until the audio thread has processed every edit queued
// so far and then frees the samples no zone references.
func (e *Engine) PurgeSamples(ctx context.Context, mgr *sample.Manager) ([]sample.ID, error) {
	if e.ctrl.AudioRunning() {
		seq := e.purgeSeq.Add(1)
		err := e.ctrl.Send(ctx, messaging.Message{
			Tag:     messaging.ScheduleSamplePurge,
			Payload: messaging.Payload{A: seq},
		})
		if err != nil {
			return nil, errors.Wrap(err, "schedule sample purge")
		}
		for e.purgeAck.Load() < seq {
			e.PollControl()
			if e.purgeAck.Load() >= seq {
				break
			}
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "wait for sample purge")
			default:
			}
			if err := e.ctrl.RunOnAudio(ctx, func() {}); err != nil {
				return nil, errors.Wrap(err, "wait for sample purge")
			}
		}
	}
	return mgr.Purge(), nil
}
