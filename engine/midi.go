package engine

import (
	"gitlab.com/gomidi/midi/v2"
)

const (
	ccSustain       = 64
	ccAllSoundOff   = 120
	ccAllNotesOff   = 123
	ccChannelVolume = 7
)

// HandleMIDI translates a channel message into engine messages. Note-on with
// velocity zero is a release. Messages the engine does not use are ignored.
func (e *Engine) HandleMIDI(msg midi.Message) error {
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return e.NoteOn(int(ch), int(key), -1, float32(vel)/127)
	case msg.GetNoteEnd(&ch, &key):
		return e.NoteOff(int(ch), int(key), -1, 0)
	case msg.GetControlChange(&ch, &cc, &val):
		switch cc {
		case ccSustain:
			return e.SetSustain(int(ch), val >= 64)
		case ccAllSoundOff:
			return e.AllSoundOff(int(ch))
		case ccAllNotesOff:
			return e.NoteOff(int(ch), -1, -1, 0)
		case ccChannelVolume:
			return e.SetParam(ParamChannelLevel, int(ch), 0, float32(val)/127)
		}
	}
	return nil
}
