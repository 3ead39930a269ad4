package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cwbudde/algo-sampler/analysis"
	"github.com/cwbudde/algo-sampler/engine"
	"github.com/cwbudde/algo-sampler/internal/score"
	"github.com/cwbudde/algo-sampler/internal/wavio"
	"github.com/cwbudde/algo-sampler/preset"
	"github.com/cwbudde/algo-sampler/sample"
)

type options struct {
	presetPath  string
	midiPath    string
	notes       string
	channel     int
	velocity    int
	spacing     float64
	hold        float64
	duration    float64
	decayDBFS   float64
	decayHoldMs float64
	maxDuration float64
	blockFrames int
	output      string
	comparePath string
	verbose     bool
}

func main() {
	var o options
	flag.StringVar(&o.presetPath, "preset", "assets/presets/default.yaml", "Instrument layout (.json, .yaml)")
	flag.StringVar(&o.midiPath, "midi", "", "Standard MIDI file to render instead of -notes")
	flag.StringVar(&o.notes, "notes", "60", "Comma separated MIDI notes to play")
	flag.IntVar(&o.channel, "channel", 0, "MIDI channel for -notes (0-15)")
	flag.IntVar(&o.velocity, "velocity", 100, "MIDI velocity (1-127)")
	flag.Float64Var(&o.spacing, "spacing", 0, "Seconds between note starts (0 = chord)")
	flag.Float64Var(&o.hold, "hold", 1.0, "Seconds each note is held")
	flag.Float64Var(&o.duration, "duration", 0, "Fixed render length in seconds; 0 renders until the output decays")
	flag.Float64Var(&o.decayDBFS, "decay-dbfs", -90, "Auto-stop threshold in dBFS")
	flag.Float64Var(&o.decayHoldMs, "decay-hold-ms", 50, "Time below the threshold before auto-stop")
	flag.Float64Var(&o.maxDuration, "max-duration", 30, "Upper bound on the render length in seconds")
	flag.IntVar(&o.blockFrames, "block", 128, "Host buffer size in frames")
	flag.StringVar(&o.output, "output", "output.wav", "Output WAV file path")
	flag.StringVar(&o.comparePath, "compare", "", "Reference WAV to compare the render against")
	flag.BoolVar(&o.verbose, "v", false, "Verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(context.Background(), o, logger); err != nil {
		fmt.Fprintf(os.Stderr, "sampler-render: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, logger *slog.Logger) error {
	layout, err := preset.Load(o.presetPath)
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
	st, err := layout.Build(ctx, e, mgr, filepath.Dir(o.presetPath))
	if err != nil {
		return err
	}
	logger.Info("layout built", "parts", st.Parts, "groups", st.Groups, "zones", st.Zones, "variants", st.Variants)

	sc, err := buildScore(o)
	if err != nil {
		return err
	}

	samples, err := render(e, sc, o, logger)
	if err != nil {
		return err
	}
	if err := wavio.WriteInterleaved(o.output, samples, 2, cfg.SampleRate); err != nil {
		return err
	}

	var m analysis.Meter
	m.Add(samples)
	fmt.Printf("Wrote %s (%d frames, %.3fs) peak %.1f dBFS, rms %.1f dBFS\n",
		o.output, len(samples)/2, float64(len(samples)/2)/float64(cfg.SampleRate), m.PeakDBFS(), m.RMSDBFS())
	if m.Clipped() {
		logger.Warn("output clipped", "peak", m.Peak())
	}
	fmt.Printf("Voices: forced terminations %d, hard kills %d\n", e.Pool().ForcedTerminations(), e.Pool().HardKills())

	if o.comparePath != "" {
		return compare(o.comparePath, samples, cfg.SampleRate)
	}
	return nil
}

func buildScore(o options) (*score.Score, error) {
	if o.midiPath != "" {
		return score.LoadSMF(o.midiPath)
	}
	if o.channel < 0 || o.channel > 15 {
		return nil, errors.Errorf("channel %d out of range", o.channel)
	}
	if o.velocity < 1 || o.velocity > 127 {
		return nil, errors.Errorf("velocity %d out of range", o.velocity)
	}
	var keys []uint8
	for _, f := range strings.Split(o.notes, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 0 || n > 127 {
			return nil, errors.Errorf("invalid note %q", f)
		}
		keys = append(keys, uint8(n))
	}
	return score.Chord(uint8(o.channel), keys, uint8(o.velocity), o.spacing, o.hold), nil
}

// render drives the engine the way an audio host would: fixed-size buffers,
// score events dispatched at buffer starts, control messages polled between
// buffers.
func render(e *engine.Engine, sc *score.Score, o options, logger *slog.Logger) ([]float32, error) {
	sr := e.Config().SampleRate
	block := max(o.blockFrames, 1)
	maxFrames := int64(o.maxDuration * float64(sr))
	if o.duration > 0 {
		maxFrames = int64(o.duration * float64(sr))
	}
	decay := analysis.NewDecayDetector(o.decayDBFS, int(o.decayHoldMs*float64(sr)/1000))
	cursor := score.NewCursor(sc, sr)
	buf := make([]float32, block*2)
	var out []float32

	e.Start()
	defer e.Stop()
	for frame := int64(0); frame < maxFrames; frame += int64(block) {
		if err := cursor.Due(frame+int64(block), func(m midi.Message) error { return e.HandleMIDI(m) }); err != nil {
			return nil, err
		}
		n := int(min(int64(block), maxFrames-frame))
		e.ProcessInto(buf[:n*2])
		out = append(out, buf[:n*2]...)
		e.PollControl()

		decayed := decay.Feed(buf[:n*2], 2)
		if o.duration > 0 || !cursor.Done() {
			continue
		}
		if decayed || (!decay.Heard() && e.ActiveVoices() == 0) {
			logger.Debug("auto-stop", "frames", frame+int64(n))
			break
		}
	}
	return out, nil
}

func compare(path string, samples []float32, sampleRate int) error {
	ref, err := wavio.Read(path)
	if err != nil {
		return err
	}
	refMono := make([]float64, ref.Frames())
	for _, ch := range ref.Channels {
		for i, v := range ch {
			refMono[i] += float64(v) / float64(len(ref.Channels))
		}
	}
	if ref.SampleRate != sampleRate {
		return errors.Errorf("reference rate %d differs from render rate %d", ref.SampleRate, sampleRate)
	}
	m := analysis.Compare(refMono, analysis.Mixdown(samples, 2), sampleRate)
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	if math.IsNaN(m.Score) {
		return errors.New("comparison failed")
	}
	return nil
}
