package engine

import (
	"context"
	"math/rand/v2"
	"testing"
)

func TestRandomCycleBagFollowsLoadedSet(t *testing.T) {
	s := variantSelector{mode: RandomCycle}
	s.reset()
	rng := rand.New(rand.NewPCG(3, 4))
	var dst [MaxVariants]int

	s.pick([]int{0, 1, 2}, rng, dst[:])
	loaded := []int{1, 2, 3}
	seen := map[int]int{}
	for i := 0; i < 9; i++ {
		if s.pick(loaded, rng, dst[:]) != 1 {
			t.Fatalf("expected one pick")
		}
		if dst[0] == 0 {
			t.Fatalf("draw %d: picked variant 0 after it was unloaded", i)
		}
		seen[dst[0]]++
	}
	for _, idx := range loaded {
		if seen[idx] != 3 {
			t.Fatalf("expected each loaded variant three times, got=%v", seen)
		}
	}
}

func TestRandomCycleSurvivesSwapsThatKeepTheCount(t *testing.T) {
	ctx := context.Background()
	for seed := uint64(1); seed <= 20; seed++ {
		cfg := DefaultConfig()
		cfg.Seed = seed
		cfg.Logger = discardLogger()
		e := New(cfg)
		setupSingle(t, e, GroupConfig{Name: "g"}, ZoneConfig{
			Name: "rc",
			Variants: []Variant{
				{Sample: constSample(4800, 0.1)},
				{Sample: constSample(4800, 0.2)},
				{Sample: constSample(4800, 0.3)},
				{Sample: nil},
			},
			VariantMode: RandomCycle,
			Envelope:    sustainEnv(),
		})
		mustNoteOn(t, e, 60)
		renderBlocks(e, 1)

		if err := e.SwapVariantSample(ctx, 0, 0, 0, 0, nil); err != nil {
			t.Fatalf("unload variant 0: %v", err)
		}
		if err := e.SwapVariantSample(ctx, 0, 0, 0, 3, constSample(4800, 0.4)); err != nil {
			t.Fatalf("load variant 3: %v", err)
		}

		seen := map[int]bool{}
		for i := 0; i < 3; i++ {
			before := e.pool.Active()
			mustNoteOn(t, e, 60)
			renderBlocks(e, 1)
			if e.pool.Active() != before+1 {
				t.Fatalf("seed %d: expected a new voice, active %d -> %d", seed, before, e.pool.Active())
			}
			idx := newestVoice(e).VariantIndex()
			if idx == 0 {
				t.Fatalf("seed %d: voice started on the unloaded variant", seed)
			}
			seen[idx] = true
		}
		if len(seen) != 3 {
			t.Fatalf("seed %d: expected variants 1-3 once each, got=%v", seed, seen)
		}
	}
}

func TestInitiateSkipsUnloadedVariant(t *testing.T) {
	e := newTestEngine(4)
	g := setupSingle(t, e, GroupConfig{Name: "g"}, ZoneConfig{
		Name:     "z",
		Variants: []Variant{{Sample: constSample(4800, 0.1)}, {Sample: nil}},
		Envelope: sustainEnv(),
	})
	z := g.Zones()[0]
	if v := e.pool.initiate(noteStart{channel: 0, key: 60, noteID: -1, velocity: 1}, z, 1); v != nil {
		t.Fatalf("expected no voice for an unloaded variant")
	}
	if e.pool.Active() != 0 {
		t.Fatalf("expected no slot taken, active=%d", e.pool.Active())
	}
	e.PollControl()
	if e.DiagnosticCount(DiagUnloadedVariant) != 1 {
		t.Fatalf("expected unloaded variant reported, got=%d", e.DiagnosticCount(DiagUnloadedVariant))
	}
}
