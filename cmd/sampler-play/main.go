package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cwbudde/algo-sampler/engine"
	"github.com/cwbudde/algo-sampler/internal/score"
	"github.com/cwbudde/algo-sampler/preset"
	"github.com/cwbudde/algo-sampler/sample"
)

func main() {
	presetPath := flag.String("preset", "assets/presets/default.yaml", "Instrument layout (.json, .yaml)")
	midiPath := flag.String("midi", "", "Standard MIDI file to play instead of -notes")
	notes := flag.String("notes", "60,64,67,72", "Comma separated MIDI notes")
	velocity := flag.Int("velocity", 100, "MIDI velocity (1-127)")
	spacing := flag.Float64("spacing", 0.25, "Seconds between note starts")
	hold := flag.Float64("hold", 0.8, "Seconds each note is held")
	tail := flag.Duration("tail", 2*time.Second, "Time to keep playing after the score ends")
	bufferMs := flag.Int("buffer-ms", 20, "Device buffer length in milliseconds")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sc, err := loadScore(*midiPath, *notes, *velocity, *spacing, *hold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sampler-play: %v\n", err)
		os.Exit(1)
	}
	if err := run(ctx, *presetPath, sc, *tail, time.Duration(*bufferMs)*time.Millisecond, logger); err != nil {
		fmt.Fprintf(os.Stderr, "sampler-play: %v\n", err)
		os.Exit(1)
	}
}

func loadScore(midiPath, notes string, velocity int, spacing, hold float64) (*score.Score, error) {
	if midiPath != "" {
		return score.LoadSMF(midiPath)
	}
	var keys []uint8
	for _, f := range strings.Split(notes, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 0 || n > 127 {
			return nil, errors.Errorf("invalid note %q", f)
		}
		keys = append(keys, uint8(n))
	}
	return score.Chord(0, keys, uint8(max(1, min(velocity, 127))), spacing, hold), nil
}

func run(ctx context.Context, presetPath string, sc *score.Score, tail, buffer time.Duration, logger *slog.Logger) error {
	layout, err := preset.Load(presetPath)
	if err != nil {
		return err
	}
	cfg := engine.DefaultConfig()
	if err := layout.Apply(&cfg); err != nil {
		return err
	}
	cfg.Logger = logger
	e := engine.New(cfg)
	mgr := sample.NewManager(cfg.SampleRate)
	mgr.SetLogger(logger)
	if _, err := layout.Build(ctx, e, mgr, filepath.Dir(presetPath)); err != nil {
		return err
	}

	out, err := newOutput(e, cfg.SampleRate, buffer)
	if err != nil {
		return err
	}
	defer out.Close()
	out.Start()
	logger.Info("playing", "events", len(sc.Events), "sample_rate", cfg.SampleRate)

	// The score runs on the control thread against wall-clock time; the
	// device callback only drains the queue at block starts.
	cursor := score.NewCursor(sc, 1000)
	start := time.Now()
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	var quietSince time.Time
	for {
		select {
		case <-ctx.Done():
			_ = e.AllSoundOff(-1)
			return nil
		case <-ticker.C:
		}
		elapsedMs := time.Since(start).Milliseconds()
		if err := cursor.Due(elapsedMs+1, func(m midi.Message) error { return e.HandleMIDI(m) }); err != nil {
			logger.Warn("event dropped", "err", err)
		}
		e.PollControl()

		if !cursor.Done() || e.ActiveVoices() > 0 {
			quietSince = time.Time{}
			continue
		}
		if quietSince.IsZero() {
			quietSince = time.Now()
		}
		if time.Since(quietSince) >= tail {
			break
		}
	}

	out.Stop()
	ids, err := e.PurgeSamples(ctx, mgr)
	if err != nil {
		return err
	}
	logger.Debug("done", "purged", len(ids), "forced", e.Pool().ForcedTerminations(), "hard_kills", e.Pool().HardKills())
	return nil
}
