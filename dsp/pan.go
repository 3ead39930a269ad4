package dsp

import "math"

// PanGains returns equal-power left/right gains for pan in [-1, 1].
func PanGains(pan float32) (float32, float32) {
	p := max(-1, min(pan, 1))
	angle := (float64(p) + 1) * math.Pi / 4
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

// ApplyLevelPan scales a stereo block by level and equal-power pan.
// Centre pan keeps unity gain on both sides.
func ApplyLevelPan(left, right []float32, level, pan float32) {
	gl, gr := float32(1), float32(1)
	if pan != 0 {
		gl, gr = PanGains(pan)
		gl *= math.Sqrt2
		gr *= math.Sqrt2
	}
	gl *= level
	gr *= level
	if gl == 1 && gr == 1 {
		return
	}
	for i := range left {
		left[i] *= gl
		right[i] *= gr
	}
}
