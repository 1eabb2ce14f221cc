// Package dist implements the parametric distribution families used to
// sample timeouts, durations, limits and counter values throughout a
// machine (spec.md §4.1). Every family is clamped to [Start, Max] after
// sampling, with Max == 0 meaning "no upper clamp".
package dist

import (
	"fmt"
	"math"

	"github.com/zoobzio/maybenot/rng"
)

// Kind selects one of the eleven supported parametric families.
type Kind uint8

const (
	Uniform Kind = iota
	Normal
	SkewNormal
	LogNormal
	Binomial
	Geometric
	Pareto
	Poisson
	Weibull
	Gamma
	Beta
)

func (k Kind) String() string {
	switch k {
	case Uniform:
		return "Uniform"
	case Normal:
		return "Normal"
	case SkewNormal:
		return "SkewNormal"
	case LogNormal:
		return "LogNormal"
	case Binomial:
		return "Binomial"
	case Geometric:
		return "Geometric"
	case Pareto:
		return "Pareto"
	case Poisson:
		return "Poisson"
	case Weibull:
		return "Weibull"
	case Gamma:
		return "Gamma"
	case Beta:
		return "Beta"
	default:
		return "Unknown"
	}
}

// Dist is a validated parametric distribution. Param1/Param2/Param3 hold the
// kind-specific parameters (see Validate for the meaning of each per Kind);
// unused params are ignored. Start and Max bound every sample:
// clamp(raw+Start, Start, Max), with Max == 0 meaning unbounded above.
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type Dist struct {
	Kind   Kind
	Param1 float64
	Param2 float64
	Param3 float64
	Start  float64
	Max    float64
}

// Validate rejects NaN/out-of-domain parameters before any sample is ever
// drawn, so that Sample itself can never panic on a validated Dist (spec.md
// §4.1, §8).
func (d Dist) Validate() error {
	if math.IsNaN(d.Start) || d.Start < 0 {
		return fmt.Errorf("dist: start must be a non-negative number, got %v", d.Start)
	}
	if math.IsNaN(d.Max) || d.Max < 0 {
		return fmt.Errorf("dist: max must be a non-negative number, got %v", d.Max)
	}
	if d.Max > 0 && d.Max < d.Start {
		return fmt.Errorf("dist: max (%v) must be >= start (%v) when max > 0", d.Max, d.Start)
	}

	switch d.Kind {
	case Uniform:
		// Param1 = low, Param2 = high.
		if math.IsNaN(d.Param1) || math.IsNaN(d.Param2) || d.Param2 < d.Param1 {
			return fmt.Errorf("dist: uniform requires high (%v) >= low (%v)", d.Param2, d.Param1)
		}
	case Normal, SkewNormal:
		// Param1 = mean, Param2 = stddev, (Param3 = skew shape for SkewNormal).
		if math.IsNaN(d.Param1) || d.Param2 <= 0 || math.IsNaN(d.Param2) {
			return fmt.Errorf("dist: normal/skew-normal requires stddev > 0, got %v", d.Param2)
		}
		if d.Kind == SkewNormal && (math.IsNaN(d.Param3) || math.IsInf(d.Param3, 0)) {
			return fmt.Errorf("dist: skew-normal requires a finite shape parameter")
		}
	case LogNormal:
		// Param1 = mu, Param2 = sigma.
		if math.IsNaN(d.Param1) || d.Param2 <= 0 || math.IsNaN(d.Param2) {
			return fmt.Errorf("dist: log-normal requires sigma > 0, got %v", d.Param2)
		}
	case Binomial:
		// Param1 = trials (n), Param2 = probability of success.
		if d.Param1 <= 0 || math.IsNaN(d.Param1) {
			return fmt.Errorf("dist: binomial requires trials > 0, got %v", d.Param1)
		}
		if math.IsNaN(d.Param2) || d.Param2 < 0 || d.Param2 > 1 {
			return fmt.Errorf("dist: binomial requires probability in [0,1], got %v", d.Param2)
		}
	case Geometric:
		// Param1 = probability of success per trial.
		if math.IsNaN(d.Param1) || d.Param1 <= 0 || d.Param1 > 1 {
			return fmt.Errorf("dist: geometric requires probability in (0,1], got %v", d.Param1)
		}
	case Pareto:
		// Param1 = scale, Param2 = shape.
		if d.Param1 <= 0 || math.IsNaN(d.Param1) {
			return fmt.Errorf("dist: pareto requires scale > 0, got %v", d.Param1)
		}
		if d.Param2 <= 0 || math.IsNaN(d.Param2) {
			return fmt.Errorf("dist: pareto requires shape > 0, got %v", d.Param2)
		}
	case Poisson:
		// Param1 = lambda.
		if d.Param1 <= 0 || math.IsNaN(d.Param1) {
			return fmt.Errorf("dist: poisson requires lambda > 0, got %v", d.Param1)
		}
	case Weibull:
		// Param1 = scale, Param2 = shape.
		if math.IsNaN(d.Param1) || math.IsNaN(d.Param2) || d.Param1 <= 0 || d.Param2 <= 0 {
			return fmt.Errorf("dist: weibull requires scale > 0 and shape > 0")
		}
	case Gamma:
		// Param1 = shape, Param2 = rate.
		if math.IsNaN(d.Param1) || math.IsNaN(d.Param2) || d.Param1 <= 0 || d.Param2 <= 0 {
			return fmt.Errorf("dist: gamma requires shape > 0 and rate > 0")
		}
	case Beta:
		// Param1 = alpha, Param2 = beta.
		if math.IsNaN(d.Param1) || math.IsNaN(d.Param2) || d.Param1 <= 0 || d.Param2 <= 0 {
			return fmt.Errorf("dist: beta requires alpha > 0 and beta > 0")
		}
	default:
		return fmt.Errorf("dist: unknown kind %v", d.Kind)
	}
	return nil
}

// Sample draws one value from the distribution and clamps it into
// [Start, Max] (or [Start, +Inf) if Max == 0). d must have passed Validate;
// Sample never panics on a validated Dist, including at the extremes of
// discrete families (large Poisson lambda, small Pareto shape, etc) which
// use guarded, loop-bounded implementations (spec.md §4.1, §8).
func (d Dist) Sample(src rng.Source) float64 {
	raw := d.rawSample(src)
	v := raw + d.Start
	if v < d.Start {
		v = d.Start
	}
	if d.Max > 0 && v > d.Max {
		v = d.Max
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		// Defensive fallback: a validated Dist should never reach here, but
		// sampling must never hand the engine a non-finite value.
		v = d.Start
	}
	return v
}
