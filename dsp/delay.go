package dsp

import "math"

// DelayLine implements a circular buffer for delay.
type DelayLine struct {
	buffer   []float32
	writePos int
	size     int
}

// NewDelayLine creates a new delay line with the given size.
func NewDelayLine(size int) *DelayLine {
	size = max(size, 1)
	return &DelayLine{
		buffer: make([]float32, size),
		size:   size,
	}
}

// Write writes a sample to the delay line.
func (d *DelayLine) Write(sample float32) {
	d.buffer[d.writePos] = sample
	d.writePos = (d.writePos + 1) % d.size
}

// Read reads a sample from the delay line at the given delay (in samples).
// A delay of 1 returns the most recently written sample.
func (d *DelayLine) Read(delay int) float32 {
	readPos := (d.writePos - delay + d.size) % d.size
	return d.buffer[readPos]
}

// Reset clears the delay line.
func (d *DelayLine) Reset() {
	clear(d.buffer)
	d.writePos = 0
}

// FeedbackDelay is a stereo feedback echo.
type FeedbackDelay struct {
	left, right *DelayLine
	delay       int
	feedback    float32
	mix         float32
}

// NewFeedbackDelay creates an echo of delaySamples with the given feedback
// (clamped below 1) and wet mix.
func NewFeedbackDelay(delaySamples int, feedback, mix float32) *FeedbackDelay {
	delaySamples = max(delaySamples, 1)
	return &FeedbackDelay{
		left:     NewDelayLine(delaySamples),
		right:    NewDelayLine(delaySamples),
		delay:    delaySamples,
		feedback: max(0, min(feedback, 0.98)),
		mix:      max(0, min(mix, 1)),
	}
}

// Process runs the echo in place.
func (d *FeedbackDelay) Process(left, right []float32) {
	for i := range left {
		dl := d.left.Read(d.delay)
		dr := d.right.Read(d.delay)
		d.left.Write(FlushDenormals(left[i] + dl*d.feedback))
		d.right.Write(FlushDenormals(right[i] + dr*d.feedback))
		left[i] += d.mix * dl
		right[i] += d.mix * dr
	}
}

// TailSamples is the time for the echoes to fall 60 dB.
func (d *FeedbackDelay) TailSamples() int {
	if d.feedback <= 0 {
		return d.delay
	}
	repeats := math.Ceil(math.Log(0.001) / math.Log(float64(d.feedback)))
	return d.delay * (int(repeats) + 1)
}

// Reset clears both lines.
func (d *FeedbackDelay) Reset() {
	d.left.Reset()
	d.right.Reset()
}
