package sample

import (
	"github.com/pkg/errors"

	"github.com/cwbudde/algo-sampler/internal/wavio"
)

// LoadWAV decodes a WAV file and converts it to targetRate. Sources of 16 bits
// or less are stored as int16; everything else stays float32. A targetRate of
// zero keeps the file rate.
func LoadWAV(path string, targetRate int) (*Sample, error) {
	a, err := wavio.Read(path)
	if err != nil {
		return nil, err
	}
	channels := a.Channels
	if len(channels) > 2 {
		channels = channels[:2]
	}
	rate := a.SampleRate
	if targetRate > 0 && targetRate != rate {
		for c := range channels {
			channels[c], err = wavio.Resample(channels[c], rate, targetRate)
			if err != nil {
				return nil, errors.Wrapf(err, "resample %s", path)
			}
		}
		rate = targetRate
	}

	var s *Sample
	if a.BitDepth > 0 && a.BitDepth <= 16 {
		s = FromInt16(toInt16(channels), rate)
	} else {
		s = FromFloat32(channels, rate)
	}
	s.Path = path
	return s, nil
}
