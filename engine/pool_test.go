package engine

import (
	"context"
	"math/rand/v2"
	"testing"
)

func TestGlobalPolyphonyFadesOldestVoice(t *testing.T) {
	e := newTestEngine(4)
	setupSingle(t, e, GroupConfig{Name: "g"}, longZone("z"))

	for key := 60; key < 64; key++ {
		mustNoteOn(t, e, key)
		renderBlocks(e, 1)
	}
	if got := e.pool.Active(); got != 4 {
		t.Fatalf("expected 4 voices after four notes, got=%d", got)
	}

	mustNoteOn(t, e, 64)
	renderBlocks(e, 1)

	keys := soundingKeys(e)
	if len(keys) != 4 || keys[60] {
		t.Fatalf("expected keys 61-64 sounding, sounding=%v", keys)
	}
	var fading *Voice
	for i := range e.pool.voices {
		if v := &e.pool.voices[i]; v.Terminating() {
			fading = v
		}
	}
	if fading == nil || fading.Key != 60 {
		t.Fatalf("expected key 60 fading in a headroom slot")
	}
	if got := e.pool.Active(); got != 5 || got > e.pool.Capacity() {
		t.Fatalf("expected 5 assigned slots within capacity %d, got=%d", e.pool.Capacity(), got)
	}
	if e.pool.ForcedTerminations() != 1 || e.pool.HardKills() != 0 {
		t.Fatalf("expected one forced termination and no hard kill, forced=%d kills=%d",
			e.pool.ForcedTerminations(), e.pool.HardKills())
	}

	renderBlocks(e, e.cfg.ForcedFadeBlocks+1)
	if got := e.pool.Active(); got != 4 {
		t.Fatalf("expected the faded voice freed, active=%d", got)
	}
}

func TestZeroFadeHeadroomReusesFadingSlot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Polyphony = 4
	cfg.FadeHeadroom = 0
	cfg.Logger = discardLogger()
	e := New(cfg)
	setupSingle(t, e, GroupConfig{Name: "g"}, longZone("z"))

	for key := 60; key < 65; key++ {
		mustNoteOn(t, e, key)
		renderBlocks(e, 1)
	}
	if e.pool.Capacity() != 4 || e.pool.Active() != 4 {
		t.Fatalf("expected a full pool of 4, capacity=%d active=%d", e.pool.Capacity(), e.pool.Active())
	}
	keys := soundingKeys(e)
	if keys[60] || !keys[64] {
		t.Fatalf("expected key 60 replaced by key 64, sounding=%v", keys)
	}
	if e.pool.HardKills() != 0 {
		t.Fatalf("expected the fading slot reused without a hard kill, got=%d", e.pool.HardKills())
	}
}

func TestRandomNoteSequenceStaysWithinPoolLimits(t *testing.T) {
	const polyLimit = 4
	for seed := uint64(1); seed <= 5; seed++ {
		cfg := DefaultConfig()
		cfg.Polyphony = 6
		cfg.FadeHeadroom = 2
		cfg.Seed = seed
		cfg.Logger = discardLogger()
		e := New(cfg)
		setupSingle(t, e, GroupConfig{Name: "g", PolyphonyGroup: 1}, longZone("a"), longZone("b"))
		if err := e.SetPolyphonyLimit(context.Background(), 1, polyLimit); err != nil {
			t.Fatalf("polyphony limit: %v", err)
		}

		rng := rand.New(rand.NewPCG(seed, 99))
		sustain := false
		for step := 0; step < 400; step++ {
			key := 48 + rng.IntN(24)
			var err error
			switch op := rng.IntN(10); {
			case op < 5:
				err = e.NoteOn(0, key, -1, rng.Float32())
			case op < 8:
				err = e.NoteOff(0, key, -1, 0)
			case op == 8:
				sustain = !sustain
				err = e.SetSustain(0, sustain)
			default:
				err = e.AllSoundOff(0)
			}
			if err != nil {
				t.Fatalf("seed %d step %d: %v", seed, step, err)
			}
			renderBlocks(e, 1)

			assigned, playing := 0, 0
			for i := range e.pool.voices {
				v := &e.pool.voices[i]
				if v.Free() {
					continue
				}
				assigned++
				if !v.Terminating() {
					playing++
				}
			}
			if assigned != e.pool.Active() || assigned > e.pool.Capacity() {
				t.Fatalf("seed %d step %d: assigned=%d active=%d capacity=%d",
					seed, step, assigned, e.pool.Active(), e.pool.Capacity())
			}
			if playing > polyLimit {
				t.Fatalf("seed %d step %d: %d voices exceed the polyphony group limit", seed, step, playing)
			}
		}
	}
}

func TestPartVoiceLimitUberReleasesOldest(t *testing.T) {
	e := newTestEngine(16)
	g := setupSingle(t, e, GroupConfig{Name: "g"}, longZone("z"))
	g.part.VoiceLimit = 4

	for key := 60; key < 64; key++ {
		mustNoteOn(t, e, key)
	}
	renderBlocks(e, 1)
	mustNoteOn(t, e, 64)
	renderBlocks(e, 1)

	var fading *Voice
	for i := range e.pool.voices {
		v := &e.pool.voices[i]
		if v.Terminating() {
			fading = v
		}
	}
	if fading == nil || fading.Key != 60 {
		t.Fatalf("expected key 60 to be fading, got=%+v", fading)
	}
	if e.pool.Active() != 5 {
		t.Fatalf("expected fading voice to keep its slot during the fade, active=%d", e.pool.Active())
	}

	renderBlocks(e, e.cfg.ForcedFadeBlocks-1)
	if e.pool.Active() != 4 {
		t.Fatalf("expected fading voice freed after %d blocks, active=%d", e.cfg.ForcedFadeBlocks, e.pool.Active())
	}
	if soundingKeys(e)[60] {
		t.Fatalf("expected key 60 gone")
	}
}

func TestPolyphonyGroupLimit(t *testing.T) {
	e := newTestEngine(16)
	setupSingle(t, e, GroupConfig{Name: "hats", PolyphonyGroup: 1}, longZone("z"))
	if err := e.SetPolyphonyLimit(t.Context(), 1, 1); err != nil {
		t.Fatalf("set limit: %v", err)
	}

	mustNoteOn(t, e, 42)
	renderBlocks(e, 1)
	mustNoteOn(t, e, 44)
	renderBlocks(e, 1)

	keys := soundingKeys(e)
	if len(keys) != 1 || !keys[44] {
		t.Fatalf("expected only the newest note in the polyphony group, got=%v", keys)
	}
}

func TestReleaseVoiceWildcards(t *testing.T) {
	e := newTestEngine(8)
	setupSingle(t, e, GroupConfig{Name: "g"}, longZone("z"))

	mustNoteOn(t, e, 60)
	mustNoteOn(t, e, 61)
	renderBlocks(e, 1)

	if n := e.pool.ReleaseVoice(-1, 60, -1, 0); n != 1 {
		t.Fatalf("expected one voice released for key 60, got=%d", n)
	}
	if n := e.pool.ReleaseVoice(-1, -1, -1, 0); n != 1 {
		t.Fatalf("expected the remaining gated voice released, got=%d", n)
	}
	if n := e.pool.ReleaseVoice(-1, -1, -1, 0); n != 0 {
		t.Fatalf("expected nothing left to release, got=%d", n)
	}
	renderBlocks(e, 100)
	if e.pool.Active() != 0 {
		t.Fatalf("expected released voices to finish, active=%d", e.pool.Active())
	}
}

func TestImmediatelyTerminateAllVoices(t *testing.T) {
	e := newTestEngine(8)
	g := setupSingle(t, e, GroupConfig{Name: "g"}, longZone("z"))

	for key := 60; key < 64; key++ {
		mustNoteOn(t, e, key)
	}
	renderBlocks(e, 1)
	e.pool.ImmediatelyTerminateAllVoices()

	if e.pool.Active() != 0 {
		t.Fatalf("expected empty pool, active=%d", e.pool.Active())
	}
	if g.VoiceCount() != 0 || g.GatedCount() != 0 {
		t.Fatalf("expected group counters reset, voices=%d gated=%d", g.VoiceCount(), g.GatedCount())
	}
	if g.Zones()[0].ActiveVoices() != 0 {
		t.Fatalf("expected zone voice set empty")
	}
}

func TestInitiateVoiceRejectsBadPath(t *testing.T) {
	e := newTestEngine(4)
	setupSingle(t, e, GroupConfig{Name: "g"}, longZone("z"))

	if v := e.pool.InitiateVoice(VoicePath{Part: 0, Group: 0, Zone: 3}, 0, 60, -1, 1); v != nil {
		t.Fatalf("expected nil voice for missing zone")
	}
	if v := e.pool.InitiateVoice(VoicePath{Part: 0, Group: 0, Zone: 0, Variant: 2}, 0, 60, -1, 1); v != nil {
		t.Fatalf("expected nil voice for missing variant")
	}
	v := e.pool.InitiateVoice(VoicePath{}, 0, 60, 7, 0.5)
	if v == nil {
		t.Fatalf("expected voice for valid path")
	}
	if v.NoteID != 7 || v.Key != 60 || !v.Gated() {
		t.Fatalf("unexpected voice state: key=%d id=%d gated=%v", v.Key, v.NoteID, v.Gated())
	}
}

func TestSustainPedalDefersRelease(t *testing.T) {
	e := newTestEngine(8)
	setupSingle(t, e, GroupConfig{Name: "g"}, longZone("z"))

	if err := e.SetSustain(0, true); err != nil {
		t.Fatalf("sustain: %v", err)
	}
	mustNoteOn(t, e, 60)
	renderBlocks(e, 1)
	if err := e.NoteOff(0, 60, -1, 0); err != nil {
		t.Fatalf("note off: %v", err)
	}
	renderBlocks(e, 200)
	if e.pool.Active() != 1 {
		t.Fatalf("expected pedal to hold the voice, active=%d", e.pool.Active())
	}

	if err := e.SetSustain(0, false); err != nil {
		t.Fatalf("sustain off: %v", err)
	}
	renderBlocks(e, 200)
	if e.pool.Active() != 0 {
		t.Fatalf("expected voice released with pedal up, active=%d", e.pool.Active())
	}
}
