package score

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func TestChordOrdersEvents(t *testing.T) {
	s := Chord(0, []uint8{60, 64}, 100, 0.5, 0.25)
	if len(s.Events) != 4 {
		t.Fatalf("expected 4 events, got=%d", len(s.Events))
	}
	var ch, key, vel uint8
	if !s.Events[1].Msg.GetNoteEnd(&ch, &key) || key != 60 || s.Events[1].At != 0.25 {
		t.Fatalf("expected note-off of 60 second, got %s at %f", s.Events[1].Msg, s.Events[1].At)
	}
	if !s.Events[2].Msg.GetNoteStart(&ch, &key, &vel) || key != 64 || vel != 100 {
		t.Fatalf("expected note-on of 64 third, got %s", s.Events[2].Msg)
	}
	if s.End() != 0.75 {
		t.Fatalf("expected end 0.75, got=%f", s.End())
	}
}

func TestCursorDispatchesByFrame(t *testing.T) {
	s := Chord(0, []uint8{60}, 90, 0, 1)
	s.Add(0.5, midi.ControlChange(0, 64, 127))
	c := NewCursor(s, 1000)

	var got []midi.Message
	collect := func(m midi.Message) error {
		got = append(got, m)
		return nil
	}
	if err := c.Due(1, collect); err != nil || len(got) != 1 {
		t.Fatalf("expected the note-on at frame 0, got=%d err=%v", len(got), err)
	}
	if err := c.Due(500, collect); err != nil || len(got) != 1 {
		t.Fatalf("expected nothing before frame 500, got=%d", len(got))
	}
	if err := c.Due(1001, collect); err != nil || len(got) != 3 || !c.Done() {
		t.Fatalf("expected pedal and note-off, got=%d done=%v", len(got), c.Done())
	}
}
