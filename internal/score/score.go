// Package score schedules MIDI messages against rendered frames for the
// command line tools.
package score

import (
	"sort"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Event is a MIDI message due at a time in seconds.
type Event struct {
	At  float64
	Msg midi.Message
}

// Score is a time-ordered list of events.
type Score struct {
	Events []Event
}

// Chord starts keys spaced by spacing seconds on channel and releases each
// one hold seconds after it started.
func Chord(channel uint8, keys []uint8, velocity uint8, spacing, hold float64) *Score {
	s := &Score{}
	for i, k := range keys {
		on := float64(i) * spacing
		s.Events = append(s.Events,
			Event{At: on, Msg: midi.NoteOn(channel, k, velocity)},
			Event{At: on + hold, Msg: midi.NoteOff(channel, k)},
		)
	}
	s.sort()
	return s
}

// LoadSMF reads every track of a standard MIDI file.
func LoadSMF(path string) (*Score, error) {
	s := &Score{}
	rd := smf.ReadTracks(path).Do(func(ev smf.TrackEvent) {
		msg := midi.Message(ev.Message)
		if msg.Type().Is(midi.ChannelMsg) {
			s.Events = append(s.Events, Event{At: float64(ev.AbsMicroSeconds) / 1e6, Msg: msg})
		}
	})
	if err := rd.Error(); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	s.sort()
	return s, nil
}

// Add appends an event and keeps the order.
func (s *Score) Add(at float64, msg midi.Message) {
	s.Events = append(s.Events, Event{At: at, Msg: msg})
	s.sort()
}

// End returns the time of the last event.
func (s *Score) End() float64 {
	if len(s.Events) == 0 {
		return 0
	}
	return s.Events[len(s.Events)-1].At
}

func (s *Score) sort() {
	sort.SliceStable(s.Events, func(i, j int) bool { return s.Events[i].At < s.Events[j].At })
}

// Cursor walks a score in frame order.
type Cursor struct {
	score      *Score
	sampleRate int
	next       int
}

// NewCursor starts at the first event.
func NewCursor(s *Score, sampleRate int) *Cursor {
	return &Cursor{score: s, sampleRate: sampleRate}
}

// Due calls fn for every event before frame and stops at the first error.
func (c *Cursor) Due(frame int64, fn func(midi.Message) error) error {
	for c.next < len(c.score.Events) {
		ev := c.score.Events[c.next]
		if int64(ev.At*float64(c.sampleRate)) >= frame {
			return nil
		}
		c.next++
		if err := fn(ev.Msg); err != nil {
			return err
		}
	}
	return nil
}

// Done reports whether every event was dispatched.
func (c *Cursor) Done() bool { return c.next >= len(c.score.Events) }
