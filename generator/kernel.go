package generator

import (
	"math"
	"sync"
)

const (
	// SincTaps is the windowed-sinc kernel width in samples.
	SincTaps = 16
	// SincRows is the number of tabulated fractional positions.
	SincRows = 256

	sincHalf    = SincTaps / 2
	rowShift    = FracBits - 8
	rowFracMask = (1 << rowShift) - 1
	rowFracNorm = 1.0 / float32(1<<rowShift)
)

// kernelTable holds one coefficient row per fractional position plus the
// per-tap delta to the next row, so the inner loop only needs a multiply-add.
type kernelTable struct {
	coeff [SincRows + 1][SincTaps]float32
	delta [SincRows][SincTaps]float32
}

var (
	kernelOnce sync.Once
	kernel     *kernelTable
)

func sincKernel() *kernelTable {
	kernelOnce.Do(func() {
		kernel = buildKernel()
	})
	return kernel
}

// buildKernel tabulates a Blackman-windowed sinc. Row r interpolates at
// fractional offset r/SincRows between tap sincHalf-1 and tap sincHalf.
func buildKernel() *kernelTable {
	t := &kernelTable{}
	for r := 0; r <= SincRows; r++ {
		frac := float64(r) / SincRows
		var sum float64
		var row [SincTaps]float64
		for k := 0; k < SincTaps; k++ {
			x := float64(k-(sincHalf-1)) - frac
			w := blackman(x + float64(sincHalf))
			row[k] = sinc(x) * w
			sum += row[k]
		}
		if sum == 0 {
			sum = 1
		}
		for k := 0; k < SincTaps; k++ {
			t.coeff[r][k] = float32(row[k] / sum)
		}
	}
	for r := 0; r < SincRows; r++ {
		for k := 0; k < SincTaps; k++ {
			t.delta[r][k] = t.coeff[r+1][k] - t.coeff[r][k]
		}
	}
	return t
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// blackman evaluates the window over [0, SincTaps].
func blackman(n float64) float64 {
	if n < 0 || n > SincTaps {
		return 0
	}
	a := 2 * math.Pi * n / SincTaps
	return 0.42 - 0.5*math.Cos(a) + 0.08*math.Cos(2*a)
}
