package arf

import "math"

const (
	// kneeHardScale is the soft knee scale at or below which the knee
	// degenerates to a hard clamp.
	kneeHardScale = 0.0001

	// radiusEpsilon keeps the outer radius strictly above the inner one.
	radiusEpsilon = 0.0001
)

// RadialKnee maps the distance between cursor and report to the distance the
// cursor should move this cycle.
//
// Inside the inner radius the cursor stays put. Between the radii the
// remaining distance is compressed by a soft knee (ln(tanh(e^x))), so the
// cursor eases out toward the pen. Beyond the outer radius the cursor trails
// the report at roughly the outer radius, with SmoothingLeak letting a
// fraction of the excess through the knee.
//
// Both radii scale with effective velocity, so a resting pen gets the full
// dead zone and fast strokes get almost none.
type RadialKnee struct {
	inner     float64
	outer     float64
	smoothing float64
	scale     float64
	leak      float64
	offset    float64
	scaleComp float64
}

// NewRadialKnee sizes the knee for the given working velocity and
// acceleration multiplier.
func NewRadialKnee(velocity, accelMult float64, cfg FilterConfig) RadialKnee {
	effective := velocity * math.Pow(accelMult, cfg.AccelMultPower)
	factor := math.Max(math.Min(math.Pow(effective/cfg.VelocityDivisor, cfg.RadialMultPower), 1), cfg.MinimumRadiusMultiplier)

	// Smoothing is strongest at rest and relaxes as velocity approaches
	// the divisor.
	unsmooth := 1 + Smoothstep(velocity*accelMult, cfg.VelocityDivisor, 0)*(cfg.MinimumSmoothingDivisor-1)

	k := RadialKnee{
		inner:     factor * cfg.InnerRadius,
		outer:     factor * math.Max(cfg.OuterRadius, cfg.InnerRadius+radiusEpsilon),
		smoothing: cfg.SmoothingCoefficient / unsmooth,
		scale:     cfg.SoftKneeScale,
		leak:      cfg.SmoothingLeak,
	}
	k.offset, k.scaleComp = kneeNormalization(k.scale)
	return k
}

// InnerAdjusted returns the velocity-scaled inner radius.
func (k RadialKnee) InnerAdjusted() float64 { return k.inner }

// OuterAdjusted returns the velocity-scaled outer radius.
func (k RadialKnee) OuterAdjusted() float64 { return k.outer }

// SmoothingCoefficient returns the effective smoothing coefficient after
// low-velocity desensitization.
func (k RadialKnee) SmoothingCoefficient() float64 { return k.smoothing }

// SampleCurve returns how far the cursor moves toward a report that is
// distance away. It is zero up to the inner radius.
func (k RadialKnee) SampleCurve(distance float64) float64 {
	if distance <= k.inner {
		return 0
	}
	return distance - k.scaleToOuter(distance-k.inner) - k.inner
}

// scaleToOuter maps x into [0, outer-inner] through the smoothed knee.
// Collapsed radii leave nothing to compress.
func (k RadialKnee) scaleToOuter(x float64) float64 {
	w := k.outer - k.inner
	if w <= 0 {
		return 0
	}
	return w * k.smoothed(x/w)
}

func (k RadialKnee) smoothed(x float64) float64 {
	return k.leaked(x * k.smoothing / k.scaleComp)
}

func (k RadialKnee) leaked(x float64) float64 {
	return kneeScaled(x+k.offset, k.scale)*(1-k.leak) + x*k.leak*k.scaleComp
}

// kneeFunc is ln(tanh(e^x)) with linear and flat tails.
func kneeFunc(x float64) float64 {
	switch {
	case x < -3:
		return x
	case x < 3:
		return math.Log(math.Tanh(math.Exp(x)))
	default:
		return 0
	}
}

// kneeScaled is the knee stretched by scale and lifted so it saturates at 1.
func kneeScaled(x, scale float64) float64 {
	if scale > kneeHardScale {
		return scale*kneeFunc(x/scale) + 1
	}
	if x > 0 {
		return 1
	}
	return 1 + x
}

// kneeNormalization returns the input offset at which the scaled knee is
// zero and the knee's slope there, so the curve starts at the origin with
// unit slope.
//
// Below roughly 1.34e-3 exp(-1/scale) underflows; such a knee is a hard
// clamp in all but name and gets the hard clamp's normalization.
func kneeNormalization(scale float64) (offset, scaleComp float64) {
	if scale <= kneeHardScale {
		// 1+x crosses zero at -1 with slope 1.
		return -1, 1
	}
	offset = scale * math.Log(math.Atanh(math.Exp(-1/scale)))
	e := math.Exp(offset / scale)
	t := math.Tanh(e)
	scaleComp = (e - e*t*t) / t
	if !isFinite(offset) || !isFinite(scaleComp) || scaleComp <= 0 {
		return -1, 1
	}
	return offset, scaleComp
}
