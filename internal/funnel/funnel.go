// Package funnel runs candidates through the certification tiers in order of
// cost: resonance triage, Proth witness search, the probabilistic certifier
// and finally the external full-rigor certifier.
//
// A failing or inconclusive tier never prevents the others from recording
// their evidence; every candidate yields a record.
package funnel

import (
	"context"
	"math/rand"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/proth-cli/internal/ecpp"
	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/proth"
	"github.com/sells-group/proth-cli/internal/prp"
	"github.com/sells-group/proth-cli/internal/resilience"
	"github.com/sells-group/proth-cli/internal/resonance"
)

// Config is the immutable parameter set shared by every candidate in a run.
type Config struct {
	Resonance resonance.Params
	// ResonanceMaxN bounds triage: the O(sqrt N) scan is skipped above it.
	ResonanceMaxN uint64
	Trials        int
	Seed          int64
	// RequireRigor sends every candidate not already proven or refuted to
	// the external certifier.
	RequireRigor bool
	// CrossCheck runs the probabilistic certifier even after a Proth proof.
	CrossCheck  bool
	Concurrency int
	// ExternalRetry relaunches the external certifier when it could not be
	// started. Every attempt is kept on the record. The zero value runs it once.
	ExternalRetry resilience.RetryConfig
}

// Funnel evaluates candidates. It is safe for concurrent use.
type Funnel struct {
	cfg       Config
	scorer    *resonance.Scorer
	certifier ecpp.Certifier
}

// New validates cfg. certifier may be nil when no external tool is configured.
func New(cfg Config, certifier ecpp.Certifier) (*Funnel, error) {
	scorer, err := resonance.NewScorer(cfg.Resonance)
	if err != nil {
		return nil, eris.Wrap(err, "funnel: resonance params")
	}
	if cfg.Trials < 0 {
		return nil, eris.Errorf("funnel: trials must be >= 0 (got %d)", cfg.Trials)
	}
	if cfg.RequireRigor && certifier == nil {
		return nil, eris.New("funnel: require_rigor set without an external certifier")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Funnel{cfg: cfg, scorer: scorer, certifier: certifier}, nil
}

// Certify runs c through every applicable tier using rng for the witness
// search. The only error is cancellation before any work starts.
func (f *Funnel) Certify(ctx context.Context, c model.Candidate, rng *rand.Rand) (*model.CertificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "funnel: cancelled")
	}
	rec := model.NewRecord(c)
	log := zap.L().With(zap.String("component", "funnel"), zap.String("record_id", rec.ID), zap.Int("digits", rec.Digits))

	// Tier 0: resonance triage, an auxiliary signal only.
	if n, ok := c.Uint64(); ok && n <= f.cfg.ResonanceMaxN {
		res := f.scorer.Evaluate(n)
		f.set(log, "resonance", rec.SetResonance(res))
		log.Debug("resonance triage", zap.Float64("S", res.S), zap.Float64("G", res.G), zap.String("label", string(res.Label)))
	}

	// Tier 1: Proth's theorem.
	N := c.N()
	k, exp, tagged := c.Decomposition()
	if !tagged {
		k, exp, tagged = proth.Decompose(N)
	}
	if tagged {
		var (
			pw  model.ProthWitnessResult
			err error
		)
		if a := c.Witness(); a != nil {
			pw, err = proth.CheckWitness(N, k, exp, a)
		} else {
			pw, err = proth.Test(N, k, exp, f.cfg.Trials, rng)
		}
		if err != nil {
			log.Warn("proth tier failed", zap.Error(err))
		} else {
			f.set(log, "proth_witness", rec.SetProthWitness(pw))
			log.Debug("proth tier", zap.Bool("applicable", pw.Applicable), zap.Bool("proven", pw.Proven), zap.Int("trials", pw.Trials))
		}
	}

	// Tier 2: strong-pseudoprime rounds.
	proven := rec.ProthWitness != nil && rec.ProthWitness.Proven
	if !proven || f.cfg.CrossCheck {
		res, err := prp.Certify(N)
		if err != nil {
			log.Warn("prp tier failed", zap.Error(err))
		} else {
			f.set(log, "prp", rec.SetPRP(res))
			if proven && !res.Passed() {
				log.Error("prp cross-check contradicts proth proof", zap.String("N", c.String()))
			}
		}
	}

	// Tier 3: external full-rigor certifier.
	if f.certifier != nil && f.cfg.RequireRigor {
		switch rec.Verdict() {
		case model.VerdictProbablePrime, model.VerdictUndetermined:
			retry := f.cfg.ExternalRetry
			if retry.OnRetry == nil {
				retry.OnRetry = resilience.RetryLogger("external certifier")
			}
			_ = resilience.Do(ctx, retry, func(ctx context.Context) error {
				ext := f.certifier.Certify(ctx, N)
				rec.AppendExternal(ext)
				if ext.Status == model.ExternalOK {
					return nil
				}
				log.Warn("external certifier did not succeed",
					zap.String("status", string(ext.Status)),
					zap.Int("exit_code", ext.ExitCode),
				)
				if ext.Status == model.ExternalError {
					return eris.Wrap(resilience.ErrTransient, "funnel: external certifier launch")
				}
				return nil
			})
		}
	}

	log.Info("candidate certified", zap.String("verdict", string(rec.Verdict())), zap.Bool("certified", rec.Certified()))
	return rec, nil
}

// Run certifies candidates with bounded parallelism. Candidate i uses the
// generator stream (Seed, i), and the output slice is in input order, so the
// result does not depend on Concurrency.
func (f *Funnel) Run(ctx context.Context, cands []model.Candidate) ([]*model.CertificationRecord, error) {
	out := make([]*model.CertificationRecord, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, c := range cands {
		g.Go(func() error {
			rec, err := f.Certify(gctx, c, proth.NewRand(f.cfg.Seed, uint64(i)))
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("funnel run complete", zap.Int("candidates", len(cands)))
	return out, nil
}

// set logs a write-once violation; the funnel writes each field once, so this
// only fires on a programming error.
func (f *Funnel) set(log *zap.Logger, field string, err error) {
	if err != nil {
		log.Error("record field rejected", zap.String("field", field), zap.Error(err))
	}
}
