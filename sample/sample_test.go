package sample

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-sampler/internal/wavio"
)

func TestFromFloat32PadsBothEnds(t *testing.T) {
	s := FromFloat32([][]float32{{0.1, 0.2, 0.3}}, 48000)
	if !s.Loaded() || s.Frames != 3 || s.Channels != 1 {
		t.Fatalf("unexpected shape: frames=%d channels=%d", s.Frames, s.Channels)
	}
	buf := s.Float32Data()[0]
	if len(buf) != 3+2*Pad {
		t.Fatalf("expected padded length %d, got=%d", 3+2*Pad, len(buf))
	}
	for i := 0; i < Pad; i++ {
		if buf[i] != 0 || buf[len(buf)-1-i] != 0 {
			t.Fatalf("expected zero guard frames")
		}
	}
	if s.At(0, 1) != 0.2 {
		t.Fatalf("expected frame 1 = 0.2, got=%f", s.At(0, 1))
	}
	if s.At(0, -1) != 0 || s.At(0, 3) != 0 || s.At(1, 0) != 0 {
		t.Fatalf("expected zero outside the data")
	}
}

func TestFromInt16Scales(t *testing.T) {
	s := FromInt16([][]int16{{16384, -32768}, {0, 8192}}, 44100)
	if s.Format != Int16 || s.Channels != 2 {
		t.Fatalf("unexpected format=%s channels=%d", s.Format, s.Channels)
	}
	if s.At(0, 0) != 0.5 || s.At(0, 1) != -1 || s.At(1, 1) != 0.25 {
		t.Fatalf("unexpected scaled values: %f %f %f", s.At(0, 0), s.At(0, 1), s.At(1, 1))
	}
}

func TestEmptySampleIsNotLoaded(t *testing.T) {
	if FromFloat32(nil, 48000).Loaded() {
		t.Fatalf("expected empty sample to be unloaded")
	}
	var s *Sample
	if s.Loaded() {
		t.Fatalf("expected nil sample to be unloaded")
	}
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	s := FromFloat32([][]float32{{1}}, 48000)
	s.Acquire()
	s.Release()
	s.Release()
	if s.Refs() != 0 {
		t.Fatalf("expected refs=0, got=%d", s.Refs())
	}
}

func TestLoadWAVKeepsSixteenBitAsInt16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	left := make([]float32, 480)
	right := make([]float32, 480)
	for i := range left {
		left[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000))
		right[i] = -left[i]
	}
	if err := wavio.WriteStereo(path, left, right, 48000); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := LoadWAV(path, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Format != Int16 || s.Channels != 2 || s.Frames != 480 || s.SampleRate != 48000 {
		t.Fatalf("unexpected sample: format=%s channels=%d frames=%d rate=%d", s.Format, s.Channels, s.Frames, s.SampleRate)
	}
	for i := 0; i < 480; i += 37 {
		if math.Abs(float64(s.At(0, i)-left[i])) > 1e-3 {
			t.Fatalf("frame %d: expected %f, got=%f", i, left[i], s.At(0, i))
		}
	}
}

func TestLoadWAVResamplesToTargetRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	data := make([]float32, 2400)
	for i := range data {
		data[i] = float32(0.25 * math.Sin(2*math.Pi*200*float64(i)/24000))
	}
	if err := wavio.WriteStereo(path, data, data, 24000); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := LoadWAV(path, 48000)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.SampleRate != 48000 {
		t.Fatalf("expected rate 48000, got=%d", s.SampleRate)
	}
	if s.Frames < 4700 || s.Frames > 4900 {
		t.Fatalf("expected about 4800 frames after resampling, got=%d", s.Frames)
	}
}

func TestLoadWAVMissingFile(t *testing.T) {
	if _, err := LoadWAV(filepath.Join(t.TempDir(), "missing.wav"), 0); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
