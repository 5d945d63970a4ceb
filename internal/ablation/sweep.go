package ablation

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/oracle"
	"github.com/sells-group/proth-cli/internal/resonance"
)

// Grid is the Cartesian parameter grid for a sweep.
type Grid struct {
	Ks         []float64
	Rs         []float64
	Betas      []float64
	Thresholds []float64
}

// DefaultGrid returns the 81-point reference grid.
func DefaultGrid() Grid {
	return Grid{
		Ks:         []float64{-1.2, -0.8, -0.5},
		Rs:         []float64{0.7, 1.0, 1.3},
		Betas:      []float64{150, 250, 400},
		Thresholds: []float64{0.4, 0.5, 0.6},
	}
}

// Size is the number of grid points.
func (g Grid) Size() int {
	return len(g.Ks) * len(g.Rs) * len(g.Betas) * len(g.Thresholds)
}

// SweepRow is one grid point's metrics for the adaptive scorer.
type SweepRow struct {
	N       uint64
	Params  resonance.Params
	Metrics model.AblationMetrics
}

// Sweep evaluates the adaptive scorer on [2, N] at every grid point. The
// alpha, mu and t of base are held fixed. Rows follow grid order
// (K, then r, then beta, then thresh).
func Sweep(ctx context.Context, N uint64, base resonance.Params, grid Grid, workers int) ([]SweepRow, error) {
	if N < 2 {
		return nil, ErrEmptyRange
	}
	if grid.Size() == 0 {
		return nil, eris.New("ablation: sweep grid is empty")
	}
	if workers <= 0 {
		workers = 1
	}

	truth := make([]bool, N-1)
	for i := range truth {
		truth[i] = !oracle.IsPrime(uint64(i) + 2)
	}

	var points []resonance.Params
	for _, k := range grid.Ks {
		for _, r := range grid.Rs {
			for _, beta := range grid.Betas {
				for _, th := range grid.Thresholds {
					p := base
					p.K, p.R, p.Beta, p.Thresh = k, r, beta, th
					if err := p.Validate(); err != nil {
						return nil, err
					}
					points = append(points, p)
				}
			}
		}
	}

	out := make([]SweepRow, len(points))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range points {
		g.Go(func() error {
			s, err := resonance.NewScorer(p)
			if err != nil {
				return err
			}
			pred := make([]bool, len(truth))
			for j := range pred {
				if j%1024 == 0 && gctx.Err() != nil {
					return eris.Wrap(gctx.Err(), "ablation: sweep cancelled")
				}
				pred[j] = s.Predict(uint64(j)+2) == model.LabelComposite
			}
			m, err := ComputeMetrics(truth, pred)
			if err != nil {
				return err
			}
			out[i] = SweepRow{N: N, Params: p, Metrics: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
