// Package resonance computes the adaptive-curvature phase-resonance score used
// to triage candidates before any expensive certification.
//
// For every composite n >= 4 the scan range [2, floor(sqrt n)] contains a true
// divisor k, for which n mod k == 0, the phase defect is exactly zero and the
// score is exactly 1 whatever the curvature and sharpness parameters. The score
// is therefore an exact composite detector; primes are only separated from
// composites by how far below 1 their scores fall.
package resonance

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/oracle"
)

// AdaptivePi is pi corrected by the 6th-order small-circle series for
// curvature K and radius r. K == 0 yields math.Pi exactly.
func AdaptivePi(K, r float64) float64 {
	r2 := r * r
	return math.Pi * (1 - K*r2/6 + K*K*r2*r2/120 - K*K*K*r2*r2*r2/5040)
}

// PhaseDefect is |wrap(2*piA*(n mod k)/n)| with wrap reducing into [-pi, pi).
// The result lies in [0, pi].
func PhaseDefect(n, k uint64, piA float64) float64 {
	x := 2 * piA * float64(n%k) / float64(n)
	w := math.Mod(x+math.Pi, 2*math.Pi)
	if w < 0 {
		w += 2 * math.Pi
	}
	return math.Abs(w - math.Pi)
}

// Score is the maximum of exp(-beta*d(n,k)^2) over k in [2, floor(sqrt n)].
// For n < 4 the range is empty and the score is 0.
func Score(n uint64, piA, beta float64) float64 {
	lim := oracle.Isqrt(n)
	if lim < 2 {
		return 0
	}
	best := 0.0
	for k := uint64(2); k <= lim; k++ {
		d := PhaseDefect(n, k, piA)
		if s := math.Exp(-beta * d * d); s > best {
			best = s
			if best == 1 {
				break
			}
		}
	}
	return best
}

// Amplify maps a score S onto the capped accumulation response
// G = (alpha/mu)*S*(1 - exp(-mu*t)).
func Amplify(S, alpha, mu, t float64) (float64, error) {
	if mu == 0 {
		return 0, eris.Wrap(model.ErrDomain, "resonance: mu must be non-zero")
	}
	for _, v := range []float64{S, alpha, mu, t} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, eris.Wrapf(model.ErrDomain, "resonance: non-finite amplification input %v", v)
		}
	}
	return (alpha / mu) * S * (1 - math.Exp(-mu*t)), nil
}

// Classify labels g against thresh.
func Classify(g, thresh float64) model.Label {
	if g >= thresh {
		return model.LabelComposite
	}
	return model.LabelPrimeCandidate
}
