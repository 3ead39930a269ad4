package engine

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func TestHandleMIDINotesAndPedal(t *testing.T) {
	e := newTestEngine(8)
	setupSingle(t, e, GroupConfig{Name: "g"}, longZone("z"))

	if err := e.HandleMIDI(midi.NoteOn(0, 60, 100)); err != nil {
		t.Fatalf("note on: %v", err)
	}
	renderBlocks(e, 1)
	v := newestVoice(e)
	if v == nil || v.Key != 60 {
		t.Fatalf("expected a voice on key 60")
	}
	if d := v.Velocity - 100.0/127; d > 1e-6 || d < -1e-6 {
		t.Fatalf("expected normalized velocity, got=%f", v.Velocity)
	}

	if err := e.HandleMIDI(midi.ControlChange(0, ccSustain, 127)); err != nil {
		t.Fatalf("sustain: %v", err)
	}
	if err := e.HandleMIDI(midi.NoteOff(0, 60)); err != nil {
		t.Fatalf("note off: %v", err)
	}
	renderBlocks(e, 50)
	if e.pool.Active() != 1 {
		t.Fatalf("expected pedal to hold the note, active=%d", e.pool.Active())
	}

	if err := e.HandleMIDI(midi.ControlChange(0, ccSustain, 0)); err != nil {
		t.Fatalf("sustain off: %v", err)
	}
	renderBlocks(e, 100)
	if e.pool.Active() != 0 {
		t.Fatalf("expected note released, active=%d", e.pool.Active())
	}
}

func TestHandleMIDIAllNotesOff(t *testing.T) {
	e := newTestEngine(8)
	setupSingle(t, e, GroupConfig{Name: "g"}, longZone("z"))
	for _, k := range []uint8{60, 64, 67} {
		if err := e.HandleMIDI(midi.NoteOn(0, k, 90)); err != nil {
			t.Fatalf("note on: %v", err)
		}
	}
	renderBlocks(e, 1)
	if err := e.HandleMIDI(midi.ControlChange(0, ccAllNotesOff, 0)); err != nil {
		t.Fatalf("all notes off: %v", err)
	}
	renderBlocks(e, 100)
	if e.pool.Active() != 0 {
		t.Fatalf("expected every note released, active=%d", e.pool.Active())
	}
}

func TestHandleMIDIChannelVolume(t *testing.T) {
	e := newTestEngine(8)
	setupSingle(t, e, GroupConfig{Name: "g"}, longZone("z"))
	if err := e.HandleMIDI(midi.ControlChange(3, ccChannelVolume, 0)); err != nil {
		t.Fatalf("volume: %v", err)
	}
	if err := e.HandleMIDI(midi.NoteOn(3, 60, 127)); err != nil {
		t.Fatalf("note on: %v", err)
	}
	out := renderBlocks(e, 4)
	if peakAbs(out) != 0 {
		t.Fatalf("expected silence at zero channel volume, peak=%f", peakAbs(out))
	}
}
