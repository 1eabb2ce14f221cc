package dist

import (
	"math"

	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/zoobzio/maybenot/rng"
)

// sourceAdapter lets an rng.Source stand in for golang.org/x/exp/rand.Source,
// which distuv's distributions expect on their Src field. x/exp/rand.Source
// requires Uint64() uint64 (which rng.Source already provides) and
// Seed(uint64); Seed is a no-op here because the engine's Framework owns
// exactly one seed per instance (spec.md §5) and reseeding mid-sample would
// break the determinism every caller of this adapter relies on.
type sourceAdapter struct{ rng.Source }

func (sourceAdapter) Seed(uint64) {}

var _ xrand.Source = sourceAdapter{}

// rawSample draws one unclamped value for d.Kind, before Start/Max are
// applied by Sample. Discrete families (Binomial, Geometric, Poisson) use
// closed-form or gonum-vetted algorithms with no unbounded loops, so that
// extreme but validated parameters (huge lambda, tiny shape) can't hang
// (spec.md §4.1, §8).
func (d Dist) rawSample(src rng.Source) float64 {
	adapted := sourceAdapter{src}

	switch d.Kind {
	case Uniform:
		low, high := d.Param1, d.Param2
		return low + src.Float64()*(high-low)

	case Normal:
		n := distuv.Normal{Mu: d.Param1, Sigma: d.Param2, Src: adapted}
		return n.Rand()

	case SkewNormal:
		return skewNormalSample(src, d.Param1, d.Param2, d.Param3)

	case LogNormal:
		ln := distuv.LogNormal{Mu: d.Param1, Sigma: d.Param2, Src: adapted}
		return ln.Rand()

	case Binomial:
		b := distuv.Binomial{N: d.Param1, P: d.Param2, Src: adapted}
		return b.Rand()

	case Geometric:
		// Inverse-transform sampling, O(1): no loop regardless of how small
		// Param1 (success probability) is.
		p := d.Param1
		u := src.Float64()
		if u <= 0 {
			u = math.SmallestNonzeroFloat64
		}
		if p >= 1 {
			return 0
		}
		return math.Floor(math.Log(u) / math.Log(1-p))

	case Pareto:
		p := distuv.Pareto{Xm: d.Param1, Alpha: d.Param2, Src: adapted}
		return p.Rand()

	case Poisson:
		p := distuv.Poisson{Lambda: d.Param1, Src: adapted}
		return p.Rand()

	case Weibull:
		w := distuv.Weibull{K: d.Param2, Lambda: d.Param1, Src: adapted}
		return w.Rand()

	case Gamma:
		g := distuv.Gamma{Alpha: d.Param1, Beta: d.Param2, Src: adapted}
		return g.Rand()

	case Beta:
		b := distuv.Beta{Alpha: d.Param1, Beta: d.Param2, Src: adapted}
		return b.Rand()

	default:
		return 0
	}
}

// skewNormalSample uses the standard two-normal construction for the skew
// normal family: no ecosystem package in this pack exposes it (gonum's
// distuv does not), so it's hand-rolled from independent standard normal
// draws produced via Box-Muller.
func skewNormalSample(src rng.Source, mean, sigma, shape float64) float64 {
	u0 := stdNormal(src)
	u1 := stdNormal(src)
	delta := shape / math.Sqrt(1+shape*shape)
	z := delta*math.Abs(u0) + math.Sqrt(1-delta*delta)*u1
	return mean + sigma*z
}

// stdNormal draws one N(0,1) sample via the Box-Muller transform.
func stdNormal(src rng.Source) float64 {
	u1 := src.Float64()
	if u1 <= 0 {
		u1 = math.SmallestNonzeroFloat64
	}
	u2 := src.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
