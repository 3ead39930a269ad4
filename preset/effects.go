package preset

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/cwbudde/algo-sampler/dsp"
	"github.com/cwbudde/algo-sampler/engine"
	"github.com/cwbudde/algo-sampler/irsynth"
)

// EffectSpec describes one processor in a chain. Type is "delay",
// "convolution" or "filter"; the other fields apply per type.
type EffectSpec struct {
	Type string `json:"type" yaml:"type"`

	// delay
	DelayMs  float32 `json:"delay_ms" yaml:"delay_ms"`
	Feedback float32 `json:"feedback" yaml:"feedback"`
	Mix      float32 `json:"mix" yaml:"mix"`

	// convolution: either an IR file or a synthesized room
	IRPath string    `json:"ir_path" yaml:"ir_path"`
	Room   *RoomSpec `json:"room" yaml:"room"`
	Wet    *float32  `json:"wet" yaml:"wet"`
	Dry    *float32  `json:"dry" yaml:"dry"`

	// filter
	Mode   string  `json:"mode" yaml:"mode"`
	Cutoff float32 `json:"cutoff" yaml:"cutoff"`
	Q      float32 `json:"q" yaml:"q"`
}

// RoomSpec overrides irsynth.DefaultRoomConfig.
type RoomSpec struct {
	DurationS  *float64 `json:"duration_s" yaml:"duration_s"`
	PreDelayS  *float64 `json:"pre_delay_s" yaml:"pre_delay_s"`
	LowDecayS  *float64 `json:"low_decay_s" yaml:"low_decay_s"`
	HighDecayS *float64 `json:"high_decay_s" yaml:"high_decay_s"`
	Brightness *float64 `json:"brightness" yaml:"brightness"`
	Seed       *uint64  `json:"seed" yaml:"seed"`
}

func validateEffects(specs []EffectSpec, where string, args ...any) error {
	for i, s := range specs {
		var err error
		switch s.Type {
		case "delay":
			if s.DelayMs <= 0 {
				err = errors.New("delay_ms must be > 0")
			} else if s.Feedback < 0 || s.Feedback >= 1 {
				err = errors.New("feedback must be in [0,1)")
			}
		case "convolution":
			if (s.IRPath == "") == (s.Room == nil) {
				err = errors.New("convolution needs exactly one of ir_path or room")
			}
		case "filter":
			if m, ok := parseFilterMode(s.Mode); !ok || m == dsp.FilterOff {
				err = errors.Errorf("unknown filter mode %q", s.Mode)
			}
		default:
			err = errors.Errorf("unknown effect type %q", s.Type)
		}
		if err != nil {
			return errors.Wrapf(err, "%s.effects[%d]", fmt.Sprintf(where, args...), i)
		}
	}
	return nil
}

// buildChain turns specs into processors running at sampleRate. Relative IR
// paths resolve against baseDir.
func buildChain(specs []EffectSpec, sampleRate int, baseDir string) (dsp.Chain, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	chain := make(dsp.Chain, 0, len(specs))
	for i, s := range specs {
		p, err := buildEffect(s, sampleRate, baseDir)
		if err != nil {
			return nil, errors.Wrapf(err, "effect %d (%s)", i, s.Type)
		}
		chain = append(chain, p)
	}
	return chain, nil
}

func buildEffect(s EffectSpec, sampleRate int, baseDir string) (dsp.Processor, error) {
	switch s.Type {
	case "delay":
		n := int(s.DelayMs * float32(sampleRate) / 1000)
		return dsp.NewFeedbackDelay(n, s.Feedback, s.Mix), nil
	case "filter":
		mode, _ := parseFilterMode(s.Mode)
		return dsp.NewFilter(mode, s.Cutoff, s.Q, float32(sampleRate)), nil
	case "convolution":
		c := dsp.NewConvolver(sampleRate, engine.BlockSize)
		wet, dry := float32(1), float32(0)
		if s.Wet != nil {
			wet = *s.Wet
		}
		if s.Dry != nil {
			dry = *s.Dry
		}
		c.SetMix(wet, dry)
		if s.IRPath != "" {
			path := s.IRPath
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			return c, c.SetIRFromWAV(path)
		}
		l, r, err := irsynth.GenerateRoom(roomConfig(s.Room, sampleRate))
		if err != nil {
			return nil, err
		}
		return c, c.SetIR(l, r)
	}
	return nil, errors.Errorf("unknown effect type %q", s.Type)
}

func roomConfig(r *RoomSpec, sampleRate int) irsynth.RoomConfig {
	cfg := irsynth.DefaultRoomConfig()
	cfg.SampleRate = sampleRate
	if r == nil {
		return cfg
	}
	setIf(&cfg.DurationS, r.DurationS)
	setIf(&cfg.PreDelayS, r.PreDelayS)
	setIf(&cfg.LowDecayS, r.LowDecayS)
	setIf(&cfg.HighDecayS, r.HighDecayS)
	setIf(&cfg.Brightness, r.Brightness)
	setIf(&cfg.Seed, r.Seed)
	return cfg
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
