// Package ablation measures how well the resonance triage signal agrees with
// trial-division ground truth, comparing the adaptive-pi scorer against the
// same scorer with curvature forced to zero.
//
// Composite scores collapse to exactly 1 for any curvature, so the two
// variants always agree on composites; any disagreement comes from primes.
// This is kept as is: the ablation exists to show the prime-side difference.
package ablation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/oracle"
	"github.com/sells-group/proth-cli/internal/resonance"
)

// blockSize is the number of consecutive integers handled by one worker task.
const blockSize = 4096

// Config selects the range [2, N] and the parameter bundle.
type Config struct {
	N       uint64
	Params  resonance.Params
	Workers int
}

// Row is the per-integer outcome under both variants.
type Row struct {
	N              uint64
	TruthComposite bool
	GAdaptive      float64
	PredAdaptive   bool
	GPlain         float64
	PredPlain      bool
}

// Report is the output of Run: per-integer rows in ascending order plus the
// persisted summary.
type Report struct {
	model.AblationRun
	Rows []Row
}

// Run evaluates every n in [2, cfg.N]. Rows are written by index so the
// output order never depends on scheduling.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.N < 2 {
		return nil, ErrEmptyRange
	}
	adaptive, err := resonance.NewScorer(cfg.Params)
	if err != nil {
		return nil, eris.Wrap(err, "ablation: adaptive scorer")
	}
	plain, err := resonance.NewScorer(cfg.Params.Plain())
	if err != nil {
		return nil, eris.Wrap(err, "ablation: plain scorer")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	log := zap.L().With(zap.String("component", "ablation"))
	log.Info("starting ablation",
		zap.Uint64("n", cfg.N),
		zap.Float64("K", cfg.Params.K),
		zap.Float64("beta", cfg.Params.Beta),
		zap.Float64("pi_a", adaptive.PiA()),
		zap.Int("workers", workers),
	)

	start := time.Now()
	total := cfg.N - 1
	rows := make([]Row, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := uint64(0); lo < total; lo += blockSize {
		hi := min(lo+blockSize, total)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%256 == 0 && gctx.Err() != nil {
					return eris.Wrap(gctx.Err(), "ablation: cancelled")
				}
				n := i + 2
				ra, rp := adaptive.Evaluate(n), plain.Evaluate(n)
				rows[i] = Row{
					N:              n,
					TruthComposite: !oracle.IsPrime(n),
					GAdaptive:      ra.G,
					PredAdaptive:   ra.Label == model.LabelComposite,
					GPlain:         rp.G,
					PredPlain:      rp.Label == model.LabelComposite,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	truth := make([]bool, len(rows))
	predA := make([]bool, len(rows))
	predP := make([]bool, len(rows))
	for i, r := range rows {
		truth[i], predA[i], predP[i] = r.TruthComposite, r.PredAdaptive, r.PredPlain
	}
	mA, err := ComputeMetrics(truth, predA)
	if err != nil {
		return nil, err
	}
	mP, err := ComputeMetrics(truth, predP)
	if err != nil {
		return nil, err
	}

	p := cfg.Params
	rep := &Report{
		AblationRun: model.AblationRun{
			ID: uuid.New().String(),
			Meta: model.AblationMeta{
				N: cfg.N, K: p.K, R: p.R, Beta: p.Beta, Thresh: p.Thresh,
				Alpha: p.Alpha, Mu: p.Mu, T: p.T,
				RuntimeSec: time.Since(start).Seconds(),
			},
			Adaptive:  mA,
			Plain:     mP,
			CreatedAt: time.Now().UTC(),
		},
		Rows: rows,
	}

	log.Info("ablation complete",
		zap.Float64("accuracy_pi_a", mA.Accuracy),
		zap.Float64("accuracy_pi", mP.Accuracy),
		zap.Float64("crr_pi_a", mA.CRR),
		zap.Int("survivors_pi_a", mA.Survivors),
		zap.Float64("runtime_sec", rep.Meta.RuntimeSec),
	)
	return rep, nil
}
