package preset

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/algo-sampler/engine"
	"github.com/cwbudde/algo-sampler/generator"
	"github.com/cwbudde/algo-sampler/internal/wavio"
	"github.com/cwbudde/algo-sampler/sample"
)

const yamlLayout = `
engine:
  sample_rate: 48000
  polyphony: 16
  seed: 7
polyphony_groups:
  1: 2
buses:
  - index: 1
    level: 0.5
    effects:
      - type: convolution
        room:
          duration_s: 0.05
        wet: 0.3
        dry: 1
parts:
  - name: keys
    channel: 0
    groups:
      - name: body
        polyphony_group: 1
        lfo:
          shape: triangle
          rate: 5
          depth: 0.2
        effects:
          - type: delay
            delay_ms: 10
            feedback: 0.3
            mix: 0.2
        zones:
          - name: low
            key_high: 63
            root_key: 60
            variant_mode: round_robin
            interpolation: cubic
            variants:
              - synth:
                  fundamental_hz: 261.63
                  duration_s: 0.5
              - synth:
                  fundamental_hz: 261.63
                  duration_s: 0.5
                  seed: 2
                mode: loop
                loop_start: 1000
                loop_end: 2000
      - name: air
        bus: 1
        zones:
          - key_low: 64
            filter:
              mode: lowpass
              cutoff: 2000
            variants:
              - synth:
                  fundamental_hz: 440
                  duration_s: 0.3
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writePreset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	return path
}

func TestLoadYAMLAppliesEngineSettings(t *testing.T) {
	f, err := Load(writePreset(t, "layout.yaml", yamlLayout))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := engine.DefaultConfig()
	if err := f.Apply(&cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.Polyphony != 16 || cfg.Seed != 7 || cfg.SampleRate != 48000 {
		t.Fatalf("engine settings mismatch: %+v", cfg)
	}
	if cfg.QueueSize != engine.DefaultConfig().QueueSize {
		t.Fatalf("expected unset fields to keep defaults, queue=%d", cfg.QueueSize)
	}
	if f.PolyphonyGroups[1] != 2 {
		t.Fatalf("expected polyphony group limit, got=%v", f.PolyphonyGroups)
	}
}

func TestBuildCreatesTreeAndPlays(t *testing.T) {
	f, err := Load(writePreset(t, "layout.yml", yamlLayout))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := engine.DefaultConfig()
	cfg.Logger = discardLogger()
	if err := f.Apply(&cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	e := engine.New(cfg)
	mgr := sample.NewManager(cfg.SampleRate)
	mgr.SetLogger(discardLogger())

	st, err := f.Build(context.Background(), e, mgr, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if st != (Stats{Parts: 1, Groups: 2, Zones: 2, Variants: 3}) {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if mgr.Len() != 3 {
		t.Fatalf("expected 3 synthesized samples, got=%d", mgr.Len())
	}

	groups := e.Part(0).Groups()
	if groups[1].Routing != engine.RouteToBus || groups[1].Bus != 1 {
		t.Fatalf("expected second group routed to bus 1")
	}
	z := groups[0].Zones()[0]
	if z.Mapping.KeyHigh != 63 || z.Interpolation != generator.Cubic || z.NumVariants() != 2 {
		t.Fatalf("unexpected zone: %+v", z.Mapping)
	}
	if v, _ := z.Variant(1); v.Mode != generator.Loop || v.LoopEnd != 2000 {
		t.Fatalf("expected loop variant, got mode=%s end=%d", v.Mode, v.LoopEnd)
	}

	if err := e.NoteOn(0, 60, 1, 1); err != nil {
		t.Fatalf("note on: %v", err)
	}
	if err := e.NoteOn(0, 70, 2, 1); err != nil {
		t.Fatalf("note on: %v", err)
	}
	out := e.Process(2048)
	peak := 0.0
	for _, v := range out {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if peak == 0 {
		t.Fatalf("expected sound from the built layout")
	}
	if e.Pool().Active() != 2 {
		t.Fatalf("expected two voices, got=%d", e.Pool().Active())
	}
}

func TestBuildLoadsRelativeSamplePaths(t *testing.T) {
	dir := t.TempDir()
	data := make([]float32, 4800)
	for i := range data {
		data[i] = float32(0.5 * math.Sin(2*math.Pi*220*float64(i)/48000))
	}
	if err := wavio.WriteStereo(filepath.Join(dir, "a.wav"), data, data, 48000); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	content := `{
  "parts": [{
    "groups": [{
      "zones": [
        {"root_key": 57, "variants": [{"path": "a.wav"}]},
        {"root_key": 69, "variants": [{"path": "a.wav", "reverse": true}]}
      ]
    }]
  }]
}`
	path := filepath.Join(dir, "layout.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := engine.DefaultConfig()
	cfg.Logger = discardLogger()
	e := engine.New(cfg)
	mgr := sample.NewManager(cfg.SampleRate)
	mgr.SetLogger(discardLogger())
	if _, err := f.Build(context.Background(), e, mgr, dir); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if mgr.Len() != 1 {
		t.Fatalf("expected the shared file loaded once, got=%d", mgr.Len())
	}
	z := e.Part(0).Groups()[0].Zones()[1]
	v, _ := z.Variant(0)
	if !v.Reverse || v.Sample.Refs() != 2 {
		t.Fatalf("expected reversed variant sharing the sample, refs=%d", v.Sample.Refs())
	}
}

func TestValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"bad key", `{"parts":[{"groups":[{"zones":[{"key_low":200,"variants":[{"path":"a.wav"}]}]}]}]}`, "key_low"},
		{"variant source", `{"parts":[{"groups":[{"zones":[{"variants":[{}]}]}]}]}`, "exactly one of path or synth"},
		{"variant mode", `{"parts":[{"groups":[{"zones":[{"variant_mode":"shuffle"}]}]}]}`, "variant_mode"},
		{"effect type", `{"buses":[{"index":1,"effects":[{"type":"chorus"}]}]}`, "chorus"},
		{"convolution source", `{"parts":[{"effects":[{"type":"convolution"}]}]}`, "ir_path or room"},
		{"bus index", `{"parts":[{"groups":[{"bus":9}]}]}`, "bus 9"},
		{"play mode", `{"parts":[{"groups":[{"zones":[{"variants":[{"path":"a","mode":"pingpong"}]}]}]}]}`, "pingpong"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.content), ".json")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got=%v", tc.want, err)
			}
		})
	}
}

func TestApplyRejectsOutOfRangeEngineSettings(t *testing.T) {
	f, err := Parse([]byte(`{"engine":{"polyphony":0}}`), "json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg := engine.DefaultConfig()
	if err := f.Apply(&cfg); err == nil {
		t.Fatalf("expected polyphony 0 to be rejected")
	}
}

func TestUnknownFormatAndYAMLFieldsRejected(t *testing.T) {
	if _, err := Parse([]byte(`{}`), ".toml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
	if _, err := Parse([]byte("parts:\n  - nmae: typo\n"), ".yaml"); err == nil {
		t.Fatalf("expected strict YAML decoding to reject unknown fields")
	}
}
