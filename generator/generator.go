// Package generator advances a fixed-point playback cursor through a sample
// and produces interpolated output, one block at a time.
package generator

import (
	"github.com/cwbudde/algo-sampler/dsp"
	"github.com/cwbudde/algo-sampler/sample"
)

const (
	// FracBits is the width of the sub-sample fraction.
	FracBits = 24
	// FracOne is one sample in fixed point; a Ratio of FracOne plays at
	// the recorded pitch.
	FracOne  = int64(1) << FracBits
	FracMask = FracOne - 1
)

// PlayMode selects how the cursor behaves at the playable bounds.
type PlayMode int

const (
	Normal PlayMode = iota
	Loop
	Bidirectional
	Shot
)

func (m PlayMode) String() string {
	switch m {
	case Loop:
		return "loop"
	case Bidirectional:
		return "bidirectional"
	case Shot:
		return "shot"
	default:
		return "normal"
	}
}

// Interpolation selects the resampling kernel.
type Interpolation int

const (
	Sinc Interpolation = iota
	Cubic
	Linear
)

// State is the per-voice cursor. Bounds are inclusive frame indices.
type State struct {
	Position    int64
	SubPosition int64
	LowerBound  int64
	UpperBound  int64
	Direction   int
	Ratio       int64
	IsFinished  bool

	// Clamped is set when Render had to correct a degenerate range. The
	// owner clears it after reporting.
	Clamped bool
}

// Reset puts the cursor at start with the given range, speed and direction.
func (st *State) Reset(start, lower, upper, ratio int64, direction int) {
	*st = State{
		Position:   start,
		LowerBound: lower,
		UpperBound: upper,
		Ratio:      ratio,
		Direction:  direction,
	}
	if st.Direction == 0 {
		st.Direction = 1
	}
}

// RatioFromFloat converts a playback-speed factor to fixed point.
func RatioFromFloat(r float64) int64 {
	return int64(r*float64(FracOne) + 0.5*sign(r))
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

// IO describes one render request.
type IO struct {
	Sample        *sample.Sample
	OutL, OutR    []float32
	Frames        int
	Mode          PlayMode
	Interpolation Interpolation
}

// Render produces io.Frames samples and advances st in place. Once the state
// is finished the remaining frames are zero. Mono samples are written to both
// outputs.
func Render(st *State, io *IO) {
	n := min(io.Frames, len(io.OutL), len(io.OutR))
	s := io.Sample
	if !s.Loaded() {
		st.IsFinished = true
	}
	if !st.IsFinished {
		st.sanitize(int64(s.Frames), io.Mode)
	}
	if st.IsFinished {
		clear(io.OutL[:n])
		clear(io.OutR[:n])
		return
	}
	if s.Format == sample.Int16 {
		render(st, io, s.Int16Data(), sample.Int16Scale, n)
		return
	}
	render(st, io, s.Float32Data(), 1, n)
}

// sanitize clamps the state into a renderable configuration. A degenerate
// range never traps; an empty range finishes the voice.
func (st *State) sanitize(frames int64, mode PlayMode) {
	last := frames - 1
	if st.LowerBound < 0 {
		st.LowerBound = 0
		st.Clamped = true
	}
	if st.LowerBound > last {
		st.LowerBound = last
		st.Clamped = true
	}
	if st.UpperBound > last {
		st.UpperBound = last
		st.Clamped = true
	}
	if st.LowerBound > st.UpperBound {
		st.UpperBound = st.LowerBound
		st.Clamped = true
	}
	if st.Direction == 0 {
		st.Direction = 1
	}
	if st.LowerBound == st.UpperBound {
		st.Position = st.LowerBound
		st.SubPosition = 0
		st.IsFinished = true
		return
	}
	switch mode {
	case Normal, Shot:
		if st.Position < st.LowerBound {
			st.Position, st.SubPosition = st.LowerBound, 0
		} else if st.Position > st.UpperBound {
			st.Position, st.SubPosition = st.UpperBound, 0
		}
	default:
		st.Position = max(0, min(st.Position, last))
	}
}

func (st *State) forward() bool {
	return (st.Ratio >= 0) == (st.Direction >= 0)
}

// advance moves the cursor by Ratio*Direction with an integer carry.
func (st *State) advance() {
	total := st.SubPosition + st.Ratio*int64(st.Direction)
	st.Position += total >> FracBits
	st.SubPosition = total & FracMask
}

// bound applies the play-mode policy after one advance.
func (st *State) bound(mode PlayMode, frames int64) {
	switch mode {
	case Normal:
		if st.Position >= st.UpperBound && st.forward() {
			st.Position, st.SubPosition = st.UpperBound, 0
			st.IsFinished = true
		} else if st.Position < st.LowerBound {
			st.Position, st.SubPosition = st.LowerBound, 0
			st.IsFinished = !st.forward()
		} else if st.Position > st.UpperBound {
			st.Position, st.SubPosition = st.UpperBound, 0
		}

	case Loop:
		length := st.UpperBound - st.LowerBound
		if length <= 0 {
			st.IsFinished = true
			return
		}
		fwd := st.forward()
		if (fwd && st.Position >= st.UpperBound) || (!fwd && st.Position < st.LowerBound) {
			off := (st.Position - st.LowerBound) % length
			if off < 0 {
				off += length
			}
			st.Position = st.LowerBound + off
		}
		if st.Position < 0 {
			st.Position, st.SubPosition = 0, 0
		} else if st.Position > frames-1 {
			st.Position, st.SubPosition = frames-1, 0
		}

	case Bidirectional:
		// Position is left past the bound on a flip; snapping it clicks.
		fwd := st.forward()
		if (fwd && st.Position >= st.UpperBound) || (!fwd && st.Position < st.LowerBound) {
			st.Direction = -st.Direction
		}

	case Shot:
		if st.Position > st.UpperBound {
			st.Position, st.SubPosition = st.UpperBound, 0
			st.IsFinished = true
		} else if st.Position < st.LowerBound {
			st.Position, st.SubPosition = st.LowerBound, 0
			st.IsFinished = true
		}
	}
}

type pcm interface {
	~int16 | ~float32
}

func render[T pcm](st *State, io *IO, data [2][]T, scale float32, n int) {
	frames := int64(io.Sample.Frames)
	left, right := data[0], data[1]
	stereo := right != nil
	kernel := sincKernel()

	for i := 0; i < n; i++ {
		if st.IsFinished {
			io.OutL[i], io.OutR[i] = 0, 0
			continue
		}
		pos := st.Position
		if pos < 0 {
			pos = 0
		} else if pos > frames-1 {
			pos = frames - 1
		}
		base := int(pos) + sample.Pad
		var l, r float32
		switch io.Interpolation {
		case Linear:
			l = linearAt(left, base, st.SubPosition)
			if stereo {
				r = linearAt(right, base, st.SubPosition)
			}
		case Cubic:
			l = cubicAt(left, base, st.SubPosition)
			if stereo {
				r = cubicAt(right, base, st.SubPosition)
			}
		default:
			l = sincAt(left, base, st.SubPosition, kernel)
			if stereo {
				r = sincAt(right, base, st.SubPosition, kernel)
			}
		}
		l *= scale
		if stereo {
			r *= scale
		} else {
			r = l
		}
		io.OutL[i], io.OutR[i] = l, r

		st.advance()
		st.bound(io.Mode, frames)
	}
}

func sincAt[T pcm](buf []T, base int, sub int64, k *kernelTable) float32 {
	row := sub >> rowShift
	rf := float32(sub&rowFracMask) * rowFracNorm
	c := &k.coeff[row]
	d := &k.delta[row]
	w := buf[base-sincHalf+1 : base+sincHalf+1]
	var acc float32
	for t := range SincTaps {
		acc += float32(w[t]) * (c[t] + rf*d[t])
	}
	return acc
}

func cubicAt[T pcm](buf []T, base int, sub int64) float32 {
	f := float32(sub) / float32(FracOne)
	return dsp.Lagrange4(float32(buf[base-1]), float32(buf[base]), float32(buf[base+1]), float32(buf[base+2]), f)
}

func linearAt[T pcm](buf []T, base int, sub int64) float32 {
	f := float32(sub) / float32(FracOne)
	a := float32(buf[base])
	return a + f*(float32(buf[base+1])-a)
}
