package engine

import "log/slog"

const (
	// BlockSize is the number of frames processed per internal block.
	BlockSize = 32

	// MaxParts is the number of parts an engine can hold.
	MaxParts = 16
	// MaxGroupsPerPart bounds the groups in one part.
	MaxGroupsPerPart = 64
	// MaxZonesPerGroup bounds the zones in one group.
	MaxZonesPerGroup = 512
	// MaxVoicesPerZone bounds the voices sounding through one zone.
	MaxVoicesPerZone = 32
	// MaxVariants bounds the sample variants of one zone.
	MaxVariants = 16
	// MaxAuxBuses is the number of auxiliary buses next to the main bus.
	MaxAuxBuses = 4
	// MaxPolyphonyGroups is the number of named voice ceilings.
	MaxPolyphonyGroups = 16
	// MaxVoices is the largest pool capacity.
	MaxVoices = 512

	maxLaunchesPerNote = 64
)

// Config holds engine-wide settings.
type Config struct {
	SampleRate int
	// Polyphony is the global ceiling on voices that are not fading out.
	Polyphony int
	// FadeHeadroom is the number of extra pool slots kept for voices fading
	// after an uber-release. With zero headroom a forced termination hands
	// its slot straight to the new note.
	FadeHeadroom int
	// QueueSize is the capacity of each message ring.
	QueueSize int
	// Seed initializes the variant-selection RNG.
	Seed uint64
	// ForcedFadeBlocks is the length of an uber-release fade.
	ForcedFadeBlocks int
	// GroupFadeBlocks is the length of a group termination fade.
	GroupFadeBlocks int
	// OversampleRatio is the playback ratio above which voices render at
	// twice the engine rate and decimate.
	OversampleRatio float64
	// MasterLevel scales the main bus output.
	MasterLevel float32

	Logger *slog.Logger
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:       48000,
		Polyphony:        64,
		FadeHeadroom:     8,
		QueueSize:        1024,
		Seed:             1,
		ForcedFadeBlocks: 4,
		GroupFadeBlocks:  8,
		OversampleRatio:  2.0,
		MasterLevel:      1.0,
	}
}

// Capacity returns the number of voice slots the pool allocates.
func (c Config) Capacity() int { return c.Polyphony + c.FadeHeadroom }

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Polyphony <= 0 {
		c.Polyphony = d.Polyphony
	}
	c.Polyphony = min(c.Polyphony, MaxVoices)
	c.FadeHeadroom = max(0, min(c.FadeHeadroom, MaxVoices-c.Polyphony))
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.ForcedFadeBlocks <= 0 {
		c.ForcedFadeBlocks = d.ForcedFadeBlocks
	}
	if c.GroupFadeBlocks <= 0 {
		c.GroupFadeBlocks = d.GroupFadeBlocks
	}
	if c.OversampleRatio <= 0 {
		c.OversampleRatio = d.OversampleRatio
	}
	if c.MasterLevel <= 0 {
		c.MasterLevel = d.MasterLevel
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
