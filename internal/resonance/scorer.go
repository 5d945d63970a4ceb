package resonance

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/oracle"
)

// Defaults match the reference ablation settings.
const (
	DefaultK      = -0.8
	DefaultR      = 1.0
	DefaultBeta   = 250.0
	DefaultAlpha  = 1.0
	DefaultMu     = 0.5
	DefaultT      = 5.0
	DefaultThresh = 0.5
)

// Params is the immutable parameter bundle for scoring, amplification and
// classification.
type Params struct {
	K      float64 `json:"K" yaml:"k" mapstructure:"k"`           // curvature
	R      float64 `json:"r" yaml:"r" mapstructure:"r"`           // radius
	Beta   float64 `json:"beta" yaml:"beta" mapstructure:"beta"` // sharpness of exp(-beta*d^2)
	Alpha  float64 `json:"alpha" yaml:"alpha" mapstructure:"alpha"`
	Mu     float64 `json:"mu" yaml:"mu" mapstructure:"mu"`
	T      float64 `json:"t" yaml:"t" mapstructure:"t"`
	Thresh float64 `json:"thresh" yaml:"thresh" mapstructure:"thresh"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		K:      DefaultK,
		R:      DefaultR,
		Beta:   DefaultBeta,
		Alpha:  DefaultAlpha,
		Mu:     DefaultMu,
		T:      DefaultT,
		Thresh: DefaultThresh,
	}
}

// Validate rejects parameters that would leave S outside [0,1], make G
// negative or make amplification undefined.
func (p Params) Validate() error {
	for name, v := range map[string]float64{
		"K": p.K, "r": p.R, "beta": p.Beta, "alpha": p.Alpha,
		"mu": p.Mu, "t": p.T, "thresh": p.Thresh,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrapf(model.ErrDomain, "resonance: %s is not finite", name)
		}
	}
	if p.Mu <= 0 {
		return eris.Wrapf(model.ErrDomain, "resonance: mu must be > 0 (got %v)", p.Mu)
	}
	if p.Beta < 0 {
		return eris.Wrapf(model.ErrDomain, "resonance: beta must be >= 0 (got %v)", p.Beta)
	}
	if p.Alpha < 0 {
		return eris.Wrapf(model.ErrDomain, "resonance: alpha must be >= 0 (got %v)", p.Alpha)
	}
	if p.T < 0 {
		return eris.Wrapf(model.ErrDomain, "resonance: t must be >= 0 (got %v)", p.T)
	}
	return nil
}

// Plain returns p with the curvature forced to zero (pi_a == pi).
func (p Params) Plain() Params {
	p.K = 0
	return p
}

// Scorer evaluates the resonance pipeline for a fixed, validated Params.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	params Params
	piA    float64
}

// NewScorer validates p once so that evaluation cannot fail afterwards.
func NewScorer(p Params) (*Scorer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{params: p, piA: AdaptivePi(p.K, p.R)}, nil
}

// Params returns the scorer's parameter bundle.
func (s *Scorer) Params() Params { return s.params }

// PiA returns the adaptive pi in use.
func (s *Scorer) PiA() float64 { return s.piA }

// Score returns S(n).
func (s *Scorer) Score(n uint64) float64 {
	return Score(n, s.piA, s.params.Beta)
}

// Amplitude returns G(n).
func (s *Scorer) Amplitude(n uint64) float64 {
	return s.amplify(s.Score(n))
}

func (s *Scorer) amplify(S float64) float64 {
	p := s.params
	return (p.Alpha / p.Mu) * S * (1 - math.Exp(-p.Mu*p.T))
}

// Evaluate scores, amplifies and labels n.
func (s *Scorer) Evaluate(n uint64) model.ResonanceResult {
	S := s.Score(n)
	g := s.amplify(S)
	return model.ResonanceResult{
		N:     n,
		S:     S,
		G:     g,
		Label: Classify(g, s.params.Thresh),
	}
}

// Predict returns COMPOSITE iff G(n) >= thresh.
func (s *Scorer) Predict(n uint64) model.Label {
	return s.Evaluate(n).Label
}

// ClassifiedRow pairs a prediction with the trial-division ground truth.
type ClassifiedRow struct {
	N     uint64
	G     float64
	Pred  model.Label
	Prime bool
}

// Truth returns the ground-truth label ("PRIME" or "COMPOSITE").
func (r ClassifiedRow) Truth() string {
	if r.Prime {
		return "PRIME"
	}
	return string(model.LabelComposite)
}

// ClassifyRange evaluates every n in [2, N].
func (s *Scorer) ClassifyRange(ctx context.Context, N uint64) ([]ClassifiedRow, error) {
	if N < 2 {
		return nil, nil
	}
	rows := make([]ClassifiedRow, 0, N-1)
	for n := uint64(2); n <= N; n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "resonance: classify cancelled")
			}
		}
		res := s.Evaluate(n)
		rows = append(rows, ClassifiedRow{N: n, G: res.G, Pred: res.Label, Prime: oracle.IsPrime(n)})
	}
	return rows, nil
}
