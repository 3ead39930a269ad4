package dsp

// Lagrange4 performs third-order Lagrange interpolation between x1 and x2 at
// fractional position frac in [0, 1).
func Lagrange4(x0, x1, x2, x3, frac float32) float32 {
	c0 := x1
	c1 := x2 - x0/3.0 - x1/2.0 - x3/6.0
	c2 := x0/2.0 - x1 + x2/2.0
	c3 := x1/2.0 - x2/2.0 + (x3-x0)/6.0
	return c0 + frac*(c1+frac*(c2+frac*c3))
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b, frac float32) float32 {
	return a + frac*(b-a)
}
