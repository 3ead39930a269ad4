// Package sample holds PCM recordings in the layout the generator reads:
// planar channels with guard padding on both ends so interpolation kernels
// never need per-tap bounds checks.
package sample

import (
	"math"
	"sync/atomic"
)

// Pad is the number of guard frames stored before and after the audio.
// It covers the widest interpolation kernel plus one frame of overshoot.
const Pad = 10

// Format is the storage format of the sample data.
type Format int

const (
	Float32 Format = iota
	Int16
)

func (f Format) String() string {
	if f == Int16 {
		return "int16"
	}
	return "float32"
}

// ID identifies a sample inside a Manager.
type ID uint64

// Sample is an immutable recording. Only the reference count changes after
// construction.
type Sample struct {
	ID         ID
	Path       string
	SampleRate int
	Channels   int
	Frames     int
	Format     Format

	// Loop points in frames, from the file or the layout. LoopEnd == 0 means
	// the whole sample.
	LoopStart int
	LoopEnd   int

	f32 [2][]float32
	i16 [2][]int16

	refs atomic.Int32
}

// FromFloat32 builds a float32 sample from planar channel data (1 or 2
// channels; extra channels are ignored).
func FromFloat32(channels [][]float32, sampleRate int) *Sample {
	s := &Sample{SampleRate: sampleRate, Format: Float32}
	s.Channels = min(len(channels), 2)
	if s.Channels == 0 {
		return s
	}
	s.Frames = len(channels[0])
	for c := 0; c < s.Channels; c++ {
		buf := make([]float32, s.Frames+2*Pad)
		copy(buf[Pad:], channels[c])
		s.f32[c] = buf
	}
	return s
}

// FromInt16 builds an int16 sample from planar channel data.
func FromInt16(channels [][]int16, sampleRate int) *Sample {
	s := &Sample{SampleRate: sampleRate, Format: Int16}
	s.Channels = min(len(channels), 2)
	if s.Channels == 0 {
		return s
	}
	s.Frames = len(channels[0])
	for c := 0; c < s.Channels; c++ {
		buf := make([]int16, s.Frames+2*Pad)
		copy(buf[Pad:], channels[c])
		s.i16[c] = buf
	}
	return s
}

// toInt16 quantizes float data in [-1, 1] to int16.
func toInt16(channels [][]float32) [][]int16 {
	out := make([][]int16, len(channels))
	for c, ch := range channels {
		q := make([]int16, len(ch))
		for i, v := range ch {
			x := math.Round(float64(v) * 32767)
			q[i] = int16(max(-32768, min(32767, x)))
		}
		out[c] = q
	}
	return out
}

// Loaded reports whether the sample has any playable data.
func (s *Sample) Loaded() bool {
	return s != nil && s.Frames > 0 && s.Channels > 0
}

// Float32Data returns the padded planar float32 buffers (nil for int16).
// Frame i of channel c lives at index i+Pad.
func (s *Sample) Float32Data() [2][]float32 { return s.f32 }

// Int16Data returns the padded planar int16 buffers (nil for float32).
func (s *Sample) Int16Data() [2][]int16 { return s.i16 }

// At returns frame i of channel c as float32, or 0 outside the data.
func (s *Sample) At(c, i int) float32 {
	if !s.Loaded() || c >= s.Channels || i < 0 || i >= s.Frames {
		return 0
	}
	if s.Format == Int16 {
		return float32(s.i16[c][i+Pad]) * Int16Scale
	}
	return s.f32[c][i+Pad]
}

// Int16Scale converts int16 samples to [-1, 1).
const Int16Scale = 1.0 / 32768.0

// Acquire increments the reference count held by zone variants.
func (s *Sample) Acquire() { s.refs.Add(1) }

// Release decrements the reference count.
func (s *Sample) Release() {
	if s.refs.Add(-1) < 0 {
		s.refs.Store(0)
	}
}

// Refs returns the current reference count.
func (s *Sample) Refs() int { return int(s.refs.Load()) }
