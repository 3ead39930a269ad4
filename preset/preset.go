// Package preset loads instrument layouts from JSON or YAML and builds them
// into a running engine. Optional settings are pointers so a file only
// overrides what it names.
package preset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/cwbudde/algo-sampler/engine"
)

// File is the preset schema.
type File struct {
	Engine          EngineSettings `json:"engine" yaml:"engine"`
	Buses           []BusSpec      `json:"buses" yaml:"buses"`
	PolyphonyGroups map[int]int    `json:"polyphony_groups" yaml:"polyphony_groups"`
	Parts           []PartSpec     `json:"parts" yaml:"parts"`
}

// EngineSettings overrides engine.DefaultConfig.
type EngineSettings struct {
	SampleRate       *int     `json:"sample_rate" yaml:"sample_rate"`
	Polyphony        *int     `json:"polyphony" yaml:"polyphony"`
	FadeHeadroom     *int     `json:"fade_headroom" yaml:"fade_headroom"`
	QueueSize        *int     `json:"queue_size" yaml:"queue_size"`
	Seed             *uint64  `json:"seed" yaml:"seed"`
	ForcedFadeBlocks *int     `json:"forced_fade_blocks" yaml:"forced_fade_blocks"`
	GroupFadeBlocks  *int     `json:"group_fade_blocks" yaml:"group_fade_blocks"`
	OversampleRatio  *float64 `json:"oversample_ratio" yaml:"oversample_ratio"`
	MasterLevel      *float32 `json:"master_level" yaml:"master_level"`
}

// BusSpec configures an output bus. Index 0 is the main output.
type BusSpec struct {
	Index   int          `json:"index" yaml:"index"`
	Level   *float32     `json:"level" yaml:"level"`
	Effects []EffectSpec `json:"effects" yaml:"effects"`
}

// PartSpec is one part of the layout.
type PartSpec struct {
	Name       string       `json:"name" yaml:"name"`
	Channel    *int         `json:"channel" yaml:"channel"`
	Level      *float32     `json:"level" yaml:"level"`
	Pan        float32      `json:"pan" yaml:"pan"`
	VoiceLimit int          `json:"voice_limit" yaml:"voice_limit"`
	Bus        int          `json:"bus" yaml:"bus"`
	Effects    []EffectSpec `json:"effects" yaml:"effects"`
	Groups     []GroupSpec  `json:"groups" yaml:"groups"`
}

// GroupSpec is one group of a part. Setting Bus routes the group straight to
// that bus instead of through the part.
type GroupSpec struct {
	Name           string        `json:"name" yaml:"name"`
	Level          *float32      `json:"level" yaml:"level"`
	Pan            float32       `json:"pan" yaml:"pan"`
	Mono           bool          `json:"mono" yaml:"mono"`
	PolyphonyGroup int           `json:"polyphony_group" yaml:"polyphony_group"`
	Bus            *int          `json:"bus" yaml:"bus"`
	Envelope       *EnvelopeSpec `json:"envelope" yaml:"envelope"`
	LFO            *LFOSpec      `json:"lfo" yaml:"lfo"`
	Effects        []EffectSpec  `json:"effects" yaml:"effects"`
	Zones          []ZoneSpec    `json:"zones" yaml:"zones"`
}

// ZoneSpec maps a key/velocity range to variants.
type ZoneSpec struct {
	Name          string        `json:"name" yaml:"name"`
	RootKey       *int          `json:"root_key" yaml:"root_key"`
	KeyLow        *int          `json:"key_low" yaml:"key_low"`
	KeyHigh       *int          `json:"key_high" yaml:"key_high"`
	KeyFadeLow    int           `json:"key_fade_low" yaml:"key_fade_low"`
	KeyFadeHigh   int           `json:"key_fade_high" yaml:"key_fade_high"`
	VelLow        *int          `json:"vel_low" yaml:"vel_low"`
	VelHigh       *int          `json:"vel_high" yaml:"vel_high"`
	VelFadeLow    int           `json:"vel_fade_low" yaml:"vel_fade_low"`
	VelFadeHigh   int           `json:"vel_fade_high" yaml:"vel_fade_high"`
	PitchCents    float32       `json:"pitch_cents" yaml:"pitch_cents"`
	Amplitude     *float32      `json:"amplitude" yaml:"amplitude"`
	Pan           float32       `json:"pan" yaml:"pan"`
	VariantMode   string        `json:"variant_mode" yaml:"variant_mode"`
	Interpolation string        `json:"interpolation" yaml:"interpolation"`
	Envelope      *EnvelopeSpec `json:"envelope" yaml:"envelope"`
	Filter        *FilterSpec   `json:"filter" yaml:"filter"`
	Variants      []VariantSpec `json:"variants" yaml:"variants"`
}

// VariantSpec names a sample file or a synthesized tone. Frame positions
// are in file frames at the engine rate; End 0 means the last frame.
type VariantSpec struct {
	Path       string    `json:"path" yaml:"path"`
	Synth      *ToneSpec `json:"synth" yaml:"synth"`
	Start      int       `json:"start" yaml:"start"`
	End        int       `json:"end" yaml:"end"`
	LoopStart  int       `json:"loop_start" yaml:"loop_start"`
	LoopEnd    int       `json:"loop_end" yaml:"loop_end"`
	Mode       string    `json:"mode" yaml:"mode"`
	Reverse    bool      `json:"reverse" yaml:"reverse"`
	PitchCents float32   `json:"pitch_cents" yaml:"pitch_cents"`
	Amplitude  float32   `json:"amplitude" yaml:"amplitude"`
}

// ToneSpec overrides irsynth.DefaultToneConfig for a synthesized variant.
type ToneSpec struct {
	FundamentalHz *float64 `json:"fundamental_hz" yaml:"fundamental_hz"`
	DurationS     *float64 `json:"duration_s" yaml:"duration_s"`
	Partials      *int     `json:"partials" yaml:"partials"`
	Brightness    *float64 `json:"brightness" yaml:"brightness"`
	DecayS        *float64 `json:"decay_s" yaml:"decay_s"`
	Seed          *uint64  `json:"seed" yaml:"seed"`
}

// EnvelopeSpec is an ADSR in seconds.
type EnvelopeSpec struct {
	Attack  float32 `json:"attack" yaml:"attack"`
	Decay   float32 `json:"decay" yaml:"decay"`
	Sustain float32 `json:"sustain" yaml:"sustain"`
	Release float32 `json:"release" yaml:"release"`
}

// FilterSpec is a voice filter.
type FilterSpec struct {
	Mode   string  `json:"mode" yaml:"mode"`
	Cutoff float32 `json:"cutoff" yaml:"cutoff"`
	Q      float32 `json:"q" yaml:"q"`
}

// LFOSpec is a group amplitude LFO.
type LFOSpec struct {
	Shape string  `json:"shape" yaml:"shape"`
	Rate  float32 `json:"rate" yaml:"rate"`
	Depth float32 `json:"depth" yaml:"depth"`
}

// Load reads a preset by extension: .json, .yaml or .yml.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read preset %s", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	f, err := Parse(b, ext)
	if err != nil {
		return nil, errors.Wrapf(err, "preset %s", path)
	}
	return f, nil
}

// Parse decodes preset data. format is ".json", ".yaml" or ".yml".
func Parse(data []byte, format string) (*File, error) {
	var f File
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, errors.Wrap(err, "decode json")
		}
	case "yaml", "yml":
		if err := yaml.UnmarshalStrict(data, &f); err != nil {
			return nil, errors.Wrap(err, "decode yaml")
		}
	default:
		return nil, errors.Errorf("unsupported preset format %q", format)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Apply copies the engine settings onto cfg.
func (f *File) Apply(cfg *engine.Config) error {
	if cfg == nil {
		return errors.New("nil destination config")
	}
	s := f.Engine
	if s.SampleRate != nil {
		if *s.SampleRate < 8000 || *s.SampleRate > 384000 {
			return errors.Errorf("engine.sample_rate %d out of range", *s.SampleRate)
		}
		cfg.SampleRate = *s.SampleRate
	}
	if s.Polyphony != nil {
		if *s.Polyphony < 1 || *s.Polyphony > engine.MaxVoices {
			return errors.Errorf("engine.polyphony must be in [1,%d]", engine.MaxVoices)
		}
		cfg.Polyphony = *s.Polyphony
	}
	if s.FadeHeadroom != nil {
		if *s.FadeHeadroom < 0 || cfg.Polyphony+*s.FadeHeadroom > engine.MaxVoices {
			return errors.Errorf("engine.fade_headroom must be in [0,%d]", engine.MaxVoices-cfg.Polyphony)
		}
		cfg.FadeHeadroom = *s.FadeHeadroom
	}
	if s.QueueSize != nil {
		if *s.QueueSize < 1 {
			return errors.New("engine.queue_size must be > 0")
		}
		cfg.QueueSize = *s.QueueSize
	}
	if s.Seed != nil {
		cfg.Seed = *s.Seed
	}
	if s.ForcedFadeBlocks != nil {
		if *s.ForcedFadeBlocks < 1 {
			return errors.New("engine.forced_fade_blocks must be >= 1")
		}
		cfg.ForcedFadeBlocks = *s.ForcedFadeBlocks
	}
	if s.GroupFadeBlocks != nil {
		if *s.GroupFadeBlocks < 1 {
			return errors.New("engine.group_fade_blocks must be >= 1")
		}
		cfg.GroupFadeBlocks = *s.GroupFadeBlocks
	}
	if s.OversampleRatio != nil {
		if *s.OversampleRatio < 1 {
			return errors.New("engine.oversample_ratio must be >= 1")
		}
		cfg.OversampleRatio = *s.OversampleRatio
	}
	if s.MasterLevel != nil {
		if *s.MasterLevel < 0 {
			return errors.New("engine.master_level must be >= 0")
		}
		cfg.MasterLevel = *s.MasterLevel
	}
	return nil
}

// Validate checks ranges and names that do not depend on loaded samples.
func (f *File) Validate() error {
	if len(f.Parts) > engine.MaxParts {
		return errors.Errorf("%d parts exceed the limit of %d", len(f.Parts), engine.MaxParts)
	}
	for i, b := range f.Buses {
		if b.Index < 0 || b.Index > engine.MaxAuxBuses {
			return errors.Errorf("buses[%d].index %d out of range", i, b.Index)
		}
		if b.Level != nil && *b.Level < 0 {
			return errors.Errorf("buses[%d].level must be >= 0", i)
		}
		if err := validateEffects(b.Effects, "buses[%d]", i); err != nil {
			return err
		}
	}
	for pg := range f.PolyphonyGroups {
		if pg < 1 || pg > engine.MaxPolyphonyGroups {
			return errors.Errorf("polyphony group %d out of range", pg)
		}
	}
	for pi, p := range f.Parts {
		if p.Channel != nil && (*p.Channel < -1 || *p.Channel > 15) {
			return errors.Errorf("parts[%d].channel must be -1 or 0..15", pi)
		}
		if len(p.Groups) > engine.MaxGroupsPerPart {
			return errors.Errorf("parts[%d] has too many groups", pi)
		}
		if err := validateEffects(p.Effects, "parts[%d]", pi); err != nil {
			return err
		}
		for gi, g := range p.Groups {
			if err := g.validate(); err != nil {
				return errors.Wrapf(err, "parts[%d].groups[%d]", pi, gi)
			}
		}
	}
	return nil
}

func (g *GroupSpec) validate() error {
	if len(g.Zones) > engine.MaxZonesPerGroup {
		return errors.New("too many zones")
	}
	if g.PolyphonyGroup < 0 || g.PolyphonyGroup > engine.MaxPolyphonyGroups {
		return errors.Errorf("polyphony_group %d out of range", g.PolyphonyGroup)
	}
	if g.Bus != nil && (*g.Bus < 0 || *g.Bus > engine.MaxAuxBuses) {
		return errors.Errorf("bus %d out of range", *g.Bus)
	}
	if g.LFO != nil {
		if _, ok := parseLFOShape(g.LFO.Shape); !ok {
			return errors.Errorf("unknown lfo shape %q", g.LFO.Shape)
		}
	}
	if err := validateEffects(g.Effects, "effects"); err != nil {
		return err
	}
	for zi, z := range g.Zones {
		if err := z.validate(); err != nil {
			return errors.Wrapf(err, "zones[%d]", zi)
		}
	}
	return nil
}

func (z *ZoneSpec) validate() error {
	for name, v := range map[string]*int{"root_key": z.RootKey, "key_low": z.KeyLow, "key_high": z.KeyHigh, "vel_low": z.VelLow, "vel_high": z.VelHigh} {
		if v != nil && (*v < 0 || *v > 127) {
			return errors.Errorf("%s must be in 0..127", name)
		}
	}
	if len(z.Variants) > engine.MaxVariants {
		return errors.Errorf("%d variants exceed the limit of %d", len(z.Variants), engine.MaxVariants)
	}
	if _, ok := engine.ParseVariantMode(z.VariantMode); !ok {
		return errors.Errorf("unknown variant_mode %q", z.VariantMode)
	}
	if _, ok := parseInterpolation(z.Interpolation); !ok {
		return errors.Errorf("unknown interpolation %q", z.Interpolation)
	}
	if z.Filter != nil {
		if _, ok := parseFilterMode(z.Filter.Mode); !ok {
			return errors.Errorf("unknown filter mode %q", z.Filter.Mode)
		}
	}
	for vi, v := range z.Variants {
		if (v.Path == "") == (v.Synth == nil) {
			return errors.Errorf("variants[%d] needs exactly one of path or synth", vi)
		}
		if _, ok := parsePlayMode(v.Mode); !ok {
			return errors.Errorf("variants[%d] unknown mode %q", vi, v.Mode)
		}
		if v.Start < 0 || v.End < 0 || v.LoopStart < 0 || v.LoopEnd < 0 {
			return errors.Errorf("variants[%d] frame positions must be >= 0", vi)
		}
	}
	return nil
}
