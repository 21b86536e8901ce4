package arf

// Smoothstep is the cubic Hermite ramp of x between edge0 and edge1.
// It returns 0 at edge0, 1 at edge1 and is clamped outside. edge0 may be
// greater than edge1, which yields a descending ramp. Equal edges produce a
// step at the edge.
func Smoothstep(x, edge0, edge1 float64) float64 {
	t := rampParam(x, edge0, edge1)
	return t * t * (3 - 2*t)
}

// Smootherstep is the quintic variant of Smoothstep with zero first and
// second derivatives at both edges.
func Smootherstep(x, edge0, edge1 float64) float64 {
	t := rampParam(x, edge0, edge1)
	return t * t * t * (t*(t*6-15) + 10)
}

// Lerp returns a + (b-a)*t without clamping t.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// ClampedLerp is Lerp with t clamped to [0, 1].
func ClampedLerp(a, b, t float64) float64 {
	return Lerp(a, b, clamp(t, 0, 1))
}

func rampParam(x, edge0, edge1 float64) float64 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	return clamp((x-edge0)/(edge1-edge0), 0, 1)
}

// clamp limits v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if v < lo || v != v {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
