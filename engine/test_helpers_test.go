package engine

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/cwbudde/algo-sampler/dsp"
	"github.com/cwbudde/algo-sampler/sample"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(polyphony int) *Engine {
	cfg := DefaultConfig()
	cfg.Polyphony = polyphony
	cfg.Logger = discardLogger()
	return New(cfg)
}

func constSample(frames int, v float32) *sample.Sample {
	data := make([]float32, frames)
	for i := range data {
		data[i] = v
	}
	return sample.FromFloat32([][]float32{data}, 48000)
}

func sineSample(frames int, freq float64) *sample.Sample {
	data := make([]float32, frames)
	for i := range data {
		data[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/48000))
	}
	return sample.FromFloat32([][]float32{data}, 48000)
}

// sustainEnv holds full level until released.
func sustainEnv() dsp.ADSRParams {
	return dsp.ADSRParams{Attack: 0.001, Decay: 0.01, Sustain: 1, Release: 0.01}
}

// setupSingle builds one part with one group holding the given zones.
func setupSingle(t *testing.T, e *Engine, gcfg GroupConfig, zones ...ZoneConfig) *Group {
	t.Helper()
	ctx := context.Background()
	pi, err := e.AddPart(ctx, PartConfig{Name: "part", Channel: -1})
	if err != nil {
		t.Fatalf("add part: %v", err)
	}
	gi, err := e.AddGroup(ctx, pi, gcfg)
	if err != nil {
		t.Fatalf("add group: %v", err)
	}
	for _, zc := range zones {
		z, err := NewZone(zc)
		if err != nil {
			t.Fatalf("new zone: %v", err)
		}
		if _, err := e.AddZone(ctx, pi, gi, z); err != nil {
			t.Fatalf("add zone: %v", err)
		}
	}
	return e.Part(pi).Groups()[gi]
}

func longZone(name string) ZoneConfig {
	return ZoneConfig{
		Name:     name,
		Variants: []Variant{{Sample: constSample(48000, 0.25)}},
		Envelope: sustainEnv(),
	}
}

func renderBlocks(e *Engine, n int) []float32 {
	var out []float32
	for i := 0; i < n; i++ {
		out = append(out, e.Process(BlockSize)...)
	}
	return out
}

func mustNoteOn(t *testing.T, e *Engine, key int) {
	t.Helper()
	if err := e.NoteOn(0, key, -1, 1); err != nil {
		t.Fatalf("note on %d: %v", key, err)
	}
}

// soundingKeys returns the keys of assigned voices that are not fading.
func soundingKeys(e *Engine) map[int]bool {
	keys := map[int]bool{}
	for i := range e.pool.voices {
		v := &e.pool.voices[i]
		if !v.Free() && !v.Terminating() {
			keys[v.Key] = true
		}
	}
	return keys
}

func newestVoice(e *Engine) *Voice {
	var newest *Voice
	for i := range e.pool.voices {
		v := &e.pool.voices[i]
		if !v.Free() && (newest == nil || v.started > newest.started) {
			newest = v
		}
	}
	return newest
}

func peakAbs(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	return peak
}

// tailProbe is an effect that passes audio through and reports a fixed tail.
type tailProbe struct {
	tail      int
	processed int
	resets    int
}

func (p *tailProbe) Process(left, right []float32) { p.processed += len(left) }
func (p *tailProbe) TailSamples() int              { return p.tail }
func (p *tailProbe) Reset()                        { p.resets++ }
