package irsynth

import (
	"math"
	"testing"
)

func peakAndEnergy(t *testing.T, xs ...[]float32) (float64, float64) {
	t.Helper()
	peak, energy := 0.0, 0.0
	for _, x := range xs {
		for i, v := range x {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				t.Fatalf("non-finite sample at %d", i)
			}
			peak = math.Max(peak, math.Abs(f))
			energy += f * f
		}
	}
	return peak, energy
}

func TestGenerateRoomBasic(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.DurationS = 0.5
	cfg.Seed = 42
	cfg.NormalizePeak = 0.8

	l, r, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatalf("GenerateRoom: %v", err)
	}
	if len(l) != int(0.5*48000) || len(r) != len(l) {
		t.Fatalf("unexpected output lengths: L=%d R=%d", len(l), len(r))
	}
	peak, energy := peakAndEnergy(t, l, r)
	if energy <= 1e-8 {
		t.Fatalf("expected non-zero energy")
	}
	if peak > 0.81 {
		t.Fatalf("unexpected normalization peak: %.6f", peak)
	}
}

func TestGenerateRoomHonoursPreDelay(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.DurationS = 0.3
	cfg.PreDelayS = 0.02
	cfg.DirectLevel = 0
	l, _, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatalf("GenerateRoom: %v", err)
	}
	for i := 0; i < int(0.02*48000); i++ {
		if l[i] != 0 {
			t.Fatalf("expected silence before the pre-delay, sample %d=%f", i, l[i])
		}
	}
}

func TestGenerateRoomDeterministicForSeed(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.SampleRate = 32000
	cfg.DurationS = 0.2
	cfg.Seed = 99

	l1, r1, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatalf("first GenerateRoom: %v", err)
	}
	l2, r2, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatalf("second GenerateRoom: %v", err)
	}
	for i := range l1 {
		if l1[i] != l2[i] || r1[i] != r2[i] {
			t.Fatalf("non-deterministic output at %d", i)
		}
	}
}

func TestRoomValidateRejectsBadConfig(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.SampleRate = 4000
	if _, _, err := GenerateRoom(cfg); err == nil {
		t.Fatalf("expected low sample rate to be rejected")
	}
	cfg = DefaultRoomConfig()
	cfg.PreDelayS = cfg.DurationS
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected pre-delay beyond the IR to be rejected")
	}
}

func TestGenerateToneDecaysAndNormalizes(t *testing.T) {
	cfg := DefaultToneConfig()
	cfg.DurationS = 1
	x, err := GenerateTone(cfg)
	if err != nil {
		t.Fatalf("GenerateTone: %v", err)
	}
	peak, _ := peakAndEnergy(t, x)
	if math.Abs(peak-cfg.NormalizePeak) > 1e-3 {
		t.Fatalf("expected peak %.3f, got=%.6f", cfg.NormalizePeak, peak)
	}
	_, head := peakAndEnergy(t, x[:4800])
	_, tail := peakAndEnergy(t, x[len(x)-4800:])
	if tail >= head*0.5 {
		t.Fatalf("expected the tone to decay, head=%g tail=%g", head, tail)
	}
}

func TestGenerateToneSkipsPartialsAboveNyquist(t *testing.T) {
	cfg := DefaultToneConfig()
	cfg.FundamentalHz = 15000
	cfg.Partials = 8
	cfg.DurationS = 0.1
	if _, err := GenerateTone(cfg); err != nil {
		t.Fatalf("expected high tones to render with a single partial: %v", err)
	}
	cfg.FundamentalHz = 30000
	if _, err := GenerateTone(cfg); err == nil {
		t.Fatalf("expected fundamental above nyquist to be rejected")
	}
}
