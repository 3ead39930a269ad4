// Package irsynth generates synthetic audio for the sampler: stereo room
// impulse responses for the convolution effect and decaying modal tones that
// serve as instrument samples when no recordings are at hand.
package irsynth

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
)

// RoomConfig controls stereo room/reverb IR generation.
type RoomConfig struct {
	SampleRate  int
	DurationS   float64 // Typically 0.3-3.0s
	Seed        uint64
	PreDelayS   float64
	DirectLevel float64
	EarlyCount  int
	LateLevel   float64
	StereoWidth float64
	Brightness  float64
	LowDecayS   float64
	HighDecayS  float64
	FadeOutS    float64 // Cosine fade-out at the end; 0 = no fade

	NormalizePeak float64
}

// DefaultRoomConfig returns a medium hall.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		SampleRate:    48000,
		DurationS:     1.5,
		Seed:          1,
		PreDelayS:     0.008,
		DirectLevel:   0,
		EarlyCount:    24,
		LateLevel:     0.06,
		StereoWidth:   0.6,
		Brightness:    0.8,
		LowDecayS:     1.2,
		HighDecayS:    0.25,
		FadeOutS:      0.02,
		NormalizePeak: 0.5,
	}
}

func (c *RoomConfig) Validate() error {
	switch {
	case c.SampleRate < 8000:
		return errors.Errorf("sample rate too low: %d", c.SampleRate)
	case c.DurationS <= 0:
		return errors.New("duration must be > 0")
	case c.PreDelayS < 0 || c.PreDelayS >= c.DurationS:
		return errors.Errorf("pre-delay %.3fs outside [0, duration)", c.PreDelayS)
	case c.DirectLevel < 0:
		return errors.New("direct level must be >= 0")
	case c.EarlyCount < 0:
		return errors.New("early count must be >= 0")
	case c.LateLevel < 0:
		return errors.New("late level must be >= 0")
	case c.StereoWidth < 0:
		return errors.New("stereo width must be >= 0")
	case c.Brightness <= 0:
		return errors.New("brightness must be > 0")
	case c.LowDecayS <= 0 || c.HighDecayS <= 0:
		return errors.New("decay seconds must be > 0")
	case c.NormalizePeak <= 0:
		return errors.New("normalize peak must be > 0")
	}
	return nil
}

// GenerateRoom synthesizes a stereo room IR: an optional direct impulse,
// early reflections after the pre-delay and a two-band diffuse tail.
func GenerateRoom(cfg RoomConfig) ([]float32, []float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	sr := float64(cfg.SampleRate)
	n := max(1, int(math.Round(cfg.DurationS*sr)))
	left := make([]float64, n)
	right := make([]float64, n)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5eed))

	left[0] += cfg.DirectLevel
	right[0] += cfg.DirectLevel

	pre := int(cfg.PreDelayS * sr)
	for i := 0; i < cfg.EarlyCount; i++ {
		t := 0.001 + 0.049*rng.Float64()
		idx := pre + int(t*sr)
		if idx <= 0 || idx >= n {
			continue
		}
		amp := (0.10 + 0.35*rng.Float64()) * math.Exp(-t*20.0)
		amp *= math.Pow(0.5+0.5*rng.Float64(), 1.0/cfg.Brightness)
		pan := (rng.Float64()*2.0 - 1.0) * cfg.StereoWidth
		left[idx] += amp * (1.0 - 0.5*pan)
		right[idx] += amp * (1.0 + 0.5*pan)
	}

	if cfg.LateLevel > 0 {
		air := max(0, 0.3*(cfg.Brightness-0.3))
		var lpL, lpR, hpL, hpR float64
		for i := pre; i < n; i++ {
			t := float64(i-pre) / sr
			lowEnv := math.Exp(-t / (0.75 * cfg.LowDecayS))
			highEnv := math.Exp(-t / (0.75 * cfg.HighDecayS))
			nL := rng.NormFloat64()
			nR := rng.NormFloat64()
			lpL = 0.985*lpL + 0.015*nL
			lpR = 0.985*lpR + 0.015*nR
			hpL = 0.15*nL - 0.15*hpL
			hpR = 0.15*nR - 0.15*hpR
			left[i] += cfg.LateLevel * (lowEnv*lpL + air*highEnv*hpL)
			right[i] += cfg.LateLevel * (lowEnv*lpR + air*highEnv*hpR)
		}
	}

	highpassDC(left, 0.995)
	highpassDC(right, 0.995)
	applyFadeOut(left, cfg.FadeOutS, cfg.SampleRate)
	applyFadeOut(right, cfg.FadeOutS, cfg.SampleRate)

	s := cfg.NormalizePeak / max(maxAbs(left), maxAbs(right), 1e-12)
	return scaled(left, s), scaled(right, s), nil
}

// ToneConfig controls modal tone generation.
type ToneConfig struct {
	SampleRate    int
	DurationS     float64
	FundamentalHz float64
	Partials      int
	Inharmonicity float64 // stiff-string B coefficient; 0 = harmonic
	Brightness    float64
	DecayS        float64 // fundamental decay time constant
	AttackS       float64
	Seed          uint64

	NormalizePeak float64
}

// DefaultToneConfig returns a plucked middle C.
func DefaultToneConfig() ToneConfig {
	return ToneConfig{
		SampleRate:    48000,
		DurationS:     2.0,
		FundamentalHz: 261.63,
		Partials:      24,
		Inharmonicity: 0.0004,
		Brightness:    1.0,
		DecayS:        0.8,
		AttackS:       0.002,
		Seed:          1,
		NormalizePeak: 0.8,
	}
}

func (c *ToneConfig) Validate() error {
	switch {
	case c.SampleRate < 8000:
		return errors.Errorf("sample rate too low: %d", c.SampleRate)
	case c.DurationS <= 0:
		return errors.New("duration must be > 0")
	case c.FundamentalHz <= 0 || c.FundamentalHz >= 0.5*float64(c.SampleRate):
		return errors.Errorf("fundamental %.2f Hz outside (0, nyquist)", c.FundamentalHz)
	case c.Partials < 1:
		return errors.New("partials must be >= 1")
	case c.Inharmonicity < 0:
		return errors.New("inharmonicity must be >= 0")
	case c.Brightness <= 0:
		return errors.New("brightness must be > 0")
	case c.DecayS <= 0:
		return errors.New("decay seconds must be > 0")
	case c.AttackS < 0:
		return errors.New("attack must be >= 0")
	case c.NormalizePeak <= 0:
		return errors.New("normalize peak must be > 0")
	}
	return nil
}

// GenerateTone synthesizes a mono tone as a sum of exponentially decaying
// partials. Higher partials decay faster; partials above 0.47*sr are skipped.
func GenerateTone(cfg ToneConfig) ([]float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sr := float64(cfg.SampleRate)
	n := max(1, int(math.Round(cfg.DurationS*sr)))
	buf := make([]float64, n)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x70e))

	maxF := 0.47 * sr
	for k := 1; k <= cfg.Partials; k++ {
		fk := float64(k)
		f := cfg.FundamentalHz * fk * math.Sqrt(1+cfg.Inharmonicity*fk*fk)
		if f >= maxF {
			break
		}
		amp := math.Pow(fk, -1.5/cfg.Brightness) * (0.8 + 0.4*rng.Float64())
		tau := cfg.DecayS / math.Sqrt(fk)
		decay := math.Exp(-1.0 / (tau * sr))
		addModeRec(buf, amp, f, rng.Float64()*2*math.Pi, decay, cfg.SampleRate)
	}

	if attack := int(cfg.AttackS * sr); attack > 0 {
		for i := 0; i < min(attack, n); i++ {
			buf[i] *= float64(i) / float64(attack)
		}
	}
	highpassDC(buf, 0.995)

	return scaled(buf, cfg.NormalizePeak/max(maxAbs(buf), 1e-12)), nil
}

// addModeRec adds a decaying cosine using the two-term recurrence.
func addModeRec(out []float64, amp float64, freq float64, phase float64, decay float64, sampleRate int) {
	if len(out) == 0 {
		return
	}
	w := 2.0 * math.Pi * freq / float64(sampleRate)
	cw := math.Cos(w)
	x0 := math.Cos(phase)
	x1 := math.Cos(phase + w)
	env := 1.0

	out[0] += amp * env * x0
	env *= decay
	if len(out) == 1 {
		return
	}
	out[1] += amp * env * x1
	env *= decay
	for i := 2; i < len(out); i++ {
		x2 := 2.0*cw*x1 - x0
		x0 = x1
		x1 = x2
		out[i] += amp * env * x2
		env *= decay
	}
}

func highpassDC(x []float64, r float64) {
	prevIn, prevOut := 0.0, 0.0
	for i := range x {
		y := x[i] - prevIn + r*prevOut
		prevIn = x[i]
		prevOut = y
		x[i] = y
	}
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// applyFadeOut applies a cosine fade-out to the last fadeS seconds of buf.
func applyFadeOut(buf []float64, fadeS float64, sampleRate int) {
	if fadeS <= 0 || len(buf) == 0 {
		return
	}
	fadeSamples := min(len(buf), int(math.Round(fadeS*float64(sampleRate))))
	start := len(buf) - fadeSamples
	for i := 0; i < fadeSamples; i++ {
		t := float64(i) / float64(fadeSamples)
		buf[start+i] *= 0.5 * (1.0 + math.Cos(t*math.Pi))
	}
}

func scaled(x []float64, s float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v * s)
	}
	return out
}
