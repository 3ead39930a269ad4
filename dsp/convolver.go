package dsp

import (
	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
	"github.com/pkg/errors"

	"github.com/cwbudde/algo-sampler/internal/wavio"
)

// Convolver is a stereo partitioned convolution effect. The left input is
// convolved with the left IR and the right input with the right IR.
type Convolver struct {
	sampleRate int
	partSize   int
	irLen      int
	wet, dry   float32

	leftOLA  *dspconv.StreamingOverlapAddT[float32, complex64]
	rightOLA *dspconv.StreamingOverlapAddT[float32, complex64]

	// Pre-allocated buffers for zero-allocation processing.
	leftIn, rightIn   []float32
	leftOut, rightOut []float32
}

// NewConvolver creates an identity convolver processing partSize-frame
// partitions. Blocks should be multiples of partSize; a short trailing chunk
// is zero-padded.
func NewConvolver(sampleRate, partSize int) *Convolver {
	c := &Convolver{
		sampleRate: sampleRate,
		partSize:   max(partSize, 1),
		wet:        1,
	}
	c.leftIn = make([]float32, c.partSize)
	c.rightIn = make([]float32, c.partSize)
	c.leftOut = make([]float32, c.partSize)
	c.rightOut = make([]float32, c.partSize)
	if err := c.SetIR([]float32{1.0}, []float32{1.0}); err != nil {
		panic(err)
	}
	return c
}

// SetMix sets wet and dry gains.
func (c *Convolver) SetMix(wet, dry float32) {
	c.wet, c.dry = wet, dry
}

// SetIR configures left/right impulse responses.
func (c *Convolver) SetIR(leftIR []float32, rightIR []float32) error {
	if len(leftIR) == 0 {
		leftIR = []float32{1.0}
	}
	if len(rightIR) == 0 {
		rightIR = leftIR
	}
	leftOLA, err := dspconv.NewStreamingOverlapAdd32(leftIR, c.partSize)
	if err != nil {
		return errors.Wrap(err, "left IR")
	}
	rightOLA, err := dspconv.NewStreamingOverlapAdd32(rightIR, c.partSize)
	if err != nil {
		return errors.Wrap(err, "right IR")
	}
	c.leftOLA = leftOLA
	c.rightOLA = rightOLA
	c.irLen = max(len(leftIR), len(rightIR), 1)
	c.Reset()
	return nil
}

// SetIRFromWAV loads a mono or stereo IR and converts it to the engine rate.
func (c *Convolver) SetIRFromWAV(path string) error {
	a, err := wavio.Read(path)
	if err != nil {
		return err
	}
	left := a.Channels[0]
	right := left
	if len(a.Channels) > 1 {
		right = a.Channels[1]
	}
	if left, err = c.resampleIfNeeded(left, a.SampleRate); err != nil {
		return err
	}
	if right, err = c.resampleIfNeeded(right, a.SampleRate); err != nil {
		return err
	}
	return c.SetIR(left, right)
}

// Process convolves the block in place in partSize chunks.
func (c *Convolver) Process(left, right []float32) {
	for start := 0; start < len(left); start += c.partSize {
		end := min(start+c.partSize, len(left))
		n := end - start
		copy(c.leftIn, left[start:end])
		copy(c.rightIn, right[start:end])
		clear(c.leftIn[n:])
		clear(c.rightIn[n:])

		errL := c.leftOLA.ProcessBlockTo(c.leftOut, c.leftIn)
		errR := c.rightOLA.ProcessBlockTo(c.rightOut, c.rightIn)
		if errL != nil || errR != nil {
			// Pass through on failure.
			continue
		}
		for i := range n {
			left[start+i] = c.dry*left[start+i] + c.wet*c.leftOut[i]
			right[start+i] = c.dry*right[start+i] + c.wet*c.rightOut[i]
		}
	}
}

// TailSamples is the IR length.
func (c *Convolver) TailSamples() int { return c.irLen }

// Reset clears convolver history and overlap buffers.
func (c *Convolver) Reset() {
	if c.leftOLA != nil {
		c.leftOLA.Reset()
	}
	if c.rightOLA != nil {
		c.rightOLA.Reset()
	}
}

func (c *Convolver) resampleIfNeeded(in []float32, inRate int) ([]float32, error) {
	if inRate == c.sampleRate || c.sampleRate <= 0 {
		return in, nil
	}
	out, err := wavio.Resample(in, inRate, c.sampleRate)
	return out, errors.Wrap(err, "IR resampler")
}
