package arf

import "math"

// AccelMultiplier maps raw acceleration to a radius sizing multiplier in
// [0, 2]. It is 1 when acceleration is zero, falls toward 0 under
// deceleration and rises toward 2 under acceleration.
//
// The ramps span K = AccelMultVelocityOverride/6 on either side of zero. With
// CompressAccelMult set, the rising ramp's input is divided by
// ln(((prevVelocity/c)+1)^c) + 1, which flattens the response when the
// stroke is already fast.
func AccelMultiplier(accel, prevVelocity float64, cfg FilterConfig) float64 {
	k := cfg.AccelMultVelocityOverride / 6
	rising := accel
	if cfg.CompressAccelMult {
		c := cfg.AccelMultCompression
		rising = accel / (math.Log(math.Pow(prevVelocity/c+1, c)) + 1)
	}
	return clamp(Smoothstep(accel, -k, 0)+Smoothstep(rising, 0, k), 0, 2)
}
