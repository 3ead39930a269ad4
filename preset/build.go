package preset

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/cwbudde/algo-sampler/dsp"
	"github.com/cwbudde/algo-sampler/engine"
	"github.com/cwbudde/algo-sampler/generator"
	"github.com/cwbudde/algo-sampler/irsynth"
	"github.com/cwbudde/algo-sampler/sample"
)

// Stats counts what Build created.
type Stats struct {
	Parts    int
	Groups   int
	Zones    int
	Variants int
}

// Build loads the layout's samples through mgr and creates the tree in e
// through the control API. Relative sample and IR paths resolve against
// baseDir. The engine may already be running.
func (f *File) Build(ctx context.Context, e *engine.Engine, mgr *sample.Manager, baseDir string) (Stats, error) {
	var st Stats
	sr := e.Config().SampleRate

	for _, b := range f.Buses {
		chain, err := buildChain(b.Effects, sr, baseDir)
		if err != nil {
			return st, errors.Wrapf(err, "bus %d", b.Index)
		}
		if err := e.SetBusEffects(ctx, b.Index, chain); err != nil {
			return st, errors.Wrapf(err, "bus %d", b.Index)
		}
		if b.Level != nil {
			if err := e.SetParam(engine.ParamBusLevel, b.Index, 0, *b.Level); err != nil {
				return st, errors.Wrapf(err, "bus %d level", b.Index)
			}
		}
	}
	for pg, limit := range f.PolyphonyGroups {
		if err := e.SetPolyphonyLimit(ctx, pg, limit); err != nil {
			return st, err
		}
	}

	for pi, ps := range f.Parts {
		pcfg := engine.PartConfig{
			Name:       ps.Name,
			Channel:    -1,
			Level:      1,
			Pan:        ps.Pan,
			VoiceLimit: ps.VoiceLimit,
			Bus:        ps.Bus,
		}
		setIf(&pcfg.Channel, ps.Channel)
		setIf(&pcfg.Level, ps.Level)
		chain, err := buildChain(ps.Effects, sr, baseDir)
		if err != nil {
			return st, errors.Wrapf(err, "part %d", pi)
		}
		pcfg.Effects = chain
		part, err := e.AddPart(ctx, pcfg)
		if err != nil {
			return st, errors.Wrapf(err, "part %d", pi)
		}
		st.Parts++

		for gi, gs := range ps.Groups {
			gcfg, err := groupConfig(gs, sr, baseDir)
			if err != nil {
				return st, errors.Wrapf(err, "part %d group %d", pi, gi)
			}
			group, err := e.AddGroup(ctx, part, gcfg)
			if err != nil {
				return st, errors.Wrapf(err, "part %d group %d", pi, gi)
			}
			st.Groups++

			for zi, zs := range gs.Zones {
				z, err := zs.build(mgr, sr, baseDir)
				if err != nil {
					return st, errors.Wrapf(err, "part %d group %d zone %d", pi, gi, zi)
				}
				if _, err := e.AddZone(ctx, part, group, z); err != nil {
					return st, errors.Wrapf(err, "part %d group %d zone %d", pi, gi, zi)
				}
				st.Zones++
				st.Variants += z.NumVariants()
			}
		}
	}
	return st, nil
}

func groupConfig(gs GroupSpec, sampleRate int, baseDir string) (engine.GroupConfig, error) {
	cfg := engine.GroupConfig{
		Name:           gs.Name,
		Level:          1,
		Pan:            gs.Pan,
		Mono:           gs.Mono,
		PolyphonyGroup: gs.PolyphonyGroup,
	}
	setIf(&cfg.Level, gs.Level)
	if gs.Bus != nil {
		cfg.Routing = engine.RouteToBus
		cfg.Bus = *gs.Bus
	}
	if gs.Envelope != nil {
		env := gs.Envelope.params()
		cfg.Envelope = &env
	}
	if gs.LFO != nil {
		shape, _ := parseLFOShape(gs.LFO.Shape)
		cfg.LFO = engine.LFOSettings{Shape: shape, Rate: gs.LFO.Rate, Depth: gs.LFO.Depth}
	}
	chain, err := buildChain(gs.Effects, sampleRate, baseDir)
	if err != nil {
		return cfg, err
	}
	cfg.Effects = chain
	return cfg, nil
}

func (z *ZoneSpec) build(mgr *sample.Manager, sampleRate int, baseDir string) (*engine.Zone, error) {
	m := engine.DefaultMapping()
	setIf(&m.RootKey, z.RootKey)
	setIf(&m.KeyLow, z.KeyLow)
	setIf(&m.KeyHigh, z.KeyHigh)
	setIf(&m.VelLow, z.VelLow)
	setIf(&m.VelHigh, z.VelHigh)
	setIf(&m.Amplitude, z.Amplitude)
	m.KeyFadeLow, m.KeyFadeHigh = z.KeyFadeLow, z.KeyFadeHigh
	m.VelFadeLow, m.VelFadeHigh = z.VelFadeLow, z.VelFadeHigh
	m.PitchCents = z.PitchCents
	m.Pan = z.Pan

	mode, _ := engine.ParseVariantMode(z.VariantMode)
	interp, _ := parseInterpolation(z.Interpolation)
	cfg := engine.ZoneConfig{
		Name:          z.Name,
		Mapping:       m,
		VariantMode:   mode,
		Interpolation: interp,
	}
	if z.Envelope != nil {
		cfg.Envelope = z.Envelope.params()
	}
	if z.Filter != nil {
		fm, _ := parseFilterMode(z.Filter.Mode)
		cfg.Filter = engine.FilterSettings{Mode: fm, Cutoff: z.Filter.Cutoff, Q: z.Filter.Q}
	}
	for i, vs := range z.Variants {
		v, err := vs.build(mgr, sampleRate, baseDir)
		if err != nil {
			return nil, errors.Wrapf(err, "variant %d", i)
		}
		cfg.Variants = append(cfg.Variants, v)
	}
	return engine.NewZone(cfg)
}

func (vs *VariantSpec) build(mgr *sample.Manager, sampleRate int, baseDir string) (engine.Variant, error) {
	var s *sample.Sample
	if vs.Synth != nil {
		tone := irsynth.DefaultToneConfig()
		tone.SampleRate = sampleRate
		setIf(&tone.FundamentalHz, vs.Synth.FundamentalHz)
		setIf(&tone.DurationS, vs.Synth.DurationS)
		setIf(&tone.Partials, vs.Synth.Partials)
		setIf(&tone.Brightness, vs.Synth.Brightness)
		setIf(&tone.DecayS, vs.Synth.DecayS)
		setIf(&tone.Seed, vs.Synth.Seed)
		data, err := irsynth.GenerateTone(tone)
		if err != nil {
			return engine.Variant{}, err
		}
		s = sample.FromFloat32([][]float32{data}, sampleRate)
		mgr.Add(s)
	} else {
		path := vs.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		var err error
		if s, err = mgr.Load(path); err != nil {
			return engine.Variant{}, err
		}
	}

	mode, _ := parsePlayMode(vs.Mode)
	v := engine.Variant{
		Sample:      s,
		StartSample: vs.Start,
		EndSample:   vs.End,
		LoopStart:   vs.LoopStart,
		LoopEnd:     vs.LoopEnd,
		Mode:        mode,
		Reverse:     vs.Reverse,
		PitchCents:  vs.PitchCents,
		Amplitude:   vs.Amplitude,
	}
	if vs.LoopStart == 0 && vs.LoopEnd == 0 && s.LoopEnd > 0 {
		v.LoopStart, v.LoopEnd = s.LoopStart, s.LoopEnd
	}
	return v, nil
}

func (e *EnvelopeSpec) params() dsp.ADSRParams {
	return dsp.ADSRParams{Attack: e.Attack, Decay: e.Decay, Sustain: e.Sustain, Release: e.Release}
}

func parsePlayMode(s string) (generator.PlayMode, bool) {
	for m := generator.Normal; m <= generator.Shot; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return generator.Normal, s == ""
}

func parseInterpolation(s string) (generator.Interpolation, bool) {
	switch s {
	case "", "sinc":
		return generator.Sinc, true
	case "cubic":
		return generator.Cubic, true
	case "linear":
		return generator.Linear, true
	}
	return generator.Sinc, false
}

func parseFilterMode(s string) (dsp.FilterMode, bool) {
	switch s {
	case "", "off":
		return dsp.FilterOff, true
	case "lowpass":
		return dsp.FilterLowpass, true
	case "highpass":
		return dsp.FilterHighpass, true
	case "bandpass":
		return dsp.FilterBandpass, true
	}
	return dsp.FilterOff, false
}

func parseLFOShape(s string) (dsp.LFOShape, bool) {
	switch s {
	case "", "sine":
		return dsp.LFOSine, true
	case "triangle":
		return dsp.LFOTriangle, true
	case "square":
		return dsp.LFOSquare, true
	}
	return dsp.LFOSine, false
}
