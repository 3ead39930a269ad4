package wavio

import (
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
	"github.com/pkg/errors"
)

// Audio is a decoded WAV file in planar float32 layout.
type Audio struct {
	Channels   [][]float32
	SampleRate int
	BitDepth   int
}

// Frames returns the per-channel length.
func (a *Audio) Frames() int {
	if a == nil || len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// Read decodes a WAV file and de-interleaves it.
func Read(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, errors.Errorf("invalid wav buffer: %s", path)
	}
	if buf.Format.SampleRate <= 0 {
		return nil, errors.Errorf("invalid wav sample-rate %d: %s", buf.Format.SampleRate, path)
	}

	numCh := buf.Format.NumChannels
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, errors.Errorf("empty wav data: %s", path)
	}
	out := &Audio{
		Channels:   make([][]float32, numCh),
		SampleRate: buf.Format.SampleRate,
		BitDepth:   buf.SourceBitDepth,
	}
	for c := range numCh {
		ch := make([]float32, frames)
		for i := range frames {
			ch[i] = buf.Data[i*numCh+c]
		}
		out.Channels[c] = ch
	}
	return out, nil
}

// WriteStereo writes left/right channels as a 16-bit stereo WAV.
func WriteStereo(path string, left []float32, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return errors.New("left/right length mismatch")
	}
	data := make([]float32, len(left)*2)
	for i := range left {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	return WriteInterleaved(path, data, 2, sampleRate)
}

// WriteInterleaved writes interleaved samples as a 16-bit PCM WAV.
func WriteInterleaved(path string, samples []float32, numChannels int, sampleRate int) error {
	if numChannels < 1 {
		return errors.Errorf("invalid channel count %d", numChannels)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, numChannels, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: numChannels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(enc.Close(), "finalize %s", path)
}

// Resample converts one channel between sample rates.
func Resample(in []float32, fromRate int, toRate int) ([]float32, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	in64 := make([]float64, len(in))
	for i, v := range in {
		in64[i] = float64(v)
	}
	out64 := r.Process(in64)
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = float32(v)
	}
	return out, nil
}
