package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-sampler/analysis"
	"github.com/cwbudde/algo-sampler/internal/wavio"
	"github.com/cwbudde/algo-sampler/irsynth"
)

func main() {
	room := irsynth.DefaultRoomConfig()
	tone := irsynth.DefaultToneConfig()

	kind := flag.String("kind", "room", "What to synthesize: room (stereo reverb IR) or tone (mono instrument sample)")
	output := flag.String("output", "assets/ir/room_48k.wav", "Output WAV path")
	sampleRate := flag.Int("sample-rate", room.SampleRate, "Output sample rate")
	duration := flag.Float64("duration", room.DurationS, "Length in seconds")
	seed := flag.Uint64("seed", room.Seed, "Random seed")
	brightness := flag.Float64("brightness", room.Brightness, "Spectral brightness control (>0)")
	normalize := flag.Float64("normalize", room.NormalizePeak, "Peak normalization target")

	flag.Float64Var(&room.PreDelayS, "pre-delay", room.PreDelayS, "Room: pre-delay in seconds")
	flag.Float64Var(&room.StereoWidth, "stereo-width", room.StereoWidth, "Room: stereo decorrelation width")
	flag.Float64Var(&room.DirectLevel, "direct", room.DirectLevel, "Room: direct impulse level")
	flag.IntVar(&room.EarlyCount, "early", room.EarlyCount, "Room: number of early reflections")
	flag.Float64Var(&room.LateLevel, "late", room.LateLevel, "Room: diffuse late-tail level")
	flag.Float64Var(&room.LowDecayS, "low-decay", room.LowDecayS, "Room: low-frequency decay time (s)")
	flag.Float64Var(&room.HighDecayS, "high-decay", room.HighDecayS, "Room: high-frequency decay time (s)")

	flag.Float64Var(&tone.FundamentalHz, "f0", tone.FundamentalHz, "Tone: fundamental in Hz")
	flag.IntVar(&tone.Partials, "partials", tone.Partials, "Tone: number of partials")
	flag.Float64Var(&tone.Inharmonicity, "inharmonicity", tone.Inharmonicity, "Tone: stiffness coefficient")
	flag.Float64Var(&tone.DecayS, "decay", tone.DecayS, "Tone: fundamental decay time constant (s)")
	flag.Parse()

	var left, right []float32
	var err error
	switch *kind {
	case "room":
		room.SampleRate, room.DurationS, room.Seed = *sampleRate, *duration, *seed
		room.Brightness, room.NormalizePeak = *brightness, *normalize
		left, right, err = irsynth.GenerateRoom(room)
	case "tone":
		tone.SampleRate, tone.DurationS, tone.Seed = *sampleRate, *duration, *seed
		tone.Brightness, tone.NormalizePeak = *brightness, *normalize
		left, err = irsynth.GenerateTone(tone)
		right = left
	default:
		err = fmt.Errorf("unknown kind %q", *kind)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ir-synth error: %v\n", err)
		os.Exit(1)
	}

	if err := wavio.WriteStereo(*output, left, right, *sampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "wav write error: %v\n", err)
		os.Exit(1)
	}

	var m analysis.Meter
	m.Add(left)
	m.Add(right)
	fmt.Printf("Wrote %s\n", *output)
	fmt.Printf("SampleRate: %d Hz, Duration: %.3f s, Samples: %d\n", *sampleRate, *duration, len(left))
	fmt.Printf("Peak: %.6f, RMS: %.6f, Tail(-60 dB): %.3f s\n", m.Peak(), m.RMS(), analysis.TailSeconds(analysis.Mixdown(left, 1), *sampleRate, 60))
}
