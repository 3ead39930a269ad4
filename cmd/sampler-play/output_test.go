package main

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/cwbudde/algo-sampler/engine"
	"github.com/cwbudde/algo-sampler/sample"
)

func newToneEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(cfg)

	data := make([]float32, 48000)
	for i := range data {
		data[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000))
	}
	z, err := engine.NewZone(engine.ZoneConfig{
		Name:     "tone",
		Variants: []engine.Variant{{Sample: sample.FromFloat32([][]float32{data}, 48000)}},
	})
	if err != nil {
		t.Fatalf("new zone: %v", err)
	}
	ctx := context.Background()
	if _, err := e.AddPart(ctx, engine.PartConfig{Name: "p", Channel: -1}); err != nil {
		t.Fatalf("add part: %v", err)
	}
	if _, err := e.AddGroup(ctx, 0, engine.GroupConfig{Name: "g"}); err != nil {
		t.Fatalf("add group: %v", err)
	}
	if _, err := e.AddZone(ctx, 0, 0, z); err != nil {
		t.Fatalf("add zone: %v", err)
	}
	if err := e.NoteOn(0, 69, -1, 1); err != nil {
		t.Fatalf("note on: %v", err)
	}
	return e
}

func TestDeviceReaderMatchesProcessAcrossChunks(t *testing.T) {
	const frames = 1000
	want := newToneEngine(t).Process(frames)

	r := newDeviceReader(newToneEngine(t), 64)
	p := make([]byte, frames*2*4+4)
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != frames*2*4 {
		t.Fatalf("expected %d bytes, got=%d", frames*2*4, n)
	}
	var peak float64
	for i, w := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != w {
			t.Fatalf("sample %d: expected %f, got=%f", i, w, got)
		}
		peak = math.Max(peak, math.Abs(float64(got)))
	}
	if peak == 0 {
		t.Fatalf("expected audible output")
	}
}

func TestDeviceReaderDoesNotAllocate(t *testing.T) {
	r := newDeviceReader(newToneEngine(t), 64)
	p := make([]byte, 4096*2*4)
	allocs := testing.AllocsPerRun(20, func() {
		_, _ = r.Read(p)
	})
	if allocs != 0 {
		t.Fatalf("expected no allocations per Read, got=%v", allocs)
	}
}
