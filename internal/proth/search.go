package proth

import (
	"context"
	"math/big"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/proth-cli/internal/model"
)

// SearchConfig drives a random Proth prime hunt over an exponent range.
type SearchConfig struct {
	NMin    uint
	NMax    uint
	Samples int   // random odd k drawn per exponent
	Trials  int   // witness draws per candidate
	Seed    int64 // base seed; sample i of the run uses stream i
	Workers int
}

// Hit is a proven Proth prime.
type Hit struct {
	Exp     uint     `json:"n"`
	K       *big.Int `json:"k"`
	Digits  int      `json:"digits"`
	Witness *big.Int `json:"a_base"`
	N       *big.Int `json:"N"`
}

// Validate checks the search bounds.
func (c SearchConfig) Validate() error {
	if c.NMin < 1 {
		return eris.New("proth: n_min must be >= 1")
	}
	if c.NMax < c.NMin {
		return eris.Errorf("proth: n_max (%d) < n_min (%d)", c.NMax, c.NMin)
	}
	if c.Samples < 0 || c.Trials < 0 {
		return eris.New("proth: samples and trials must be >= 0")
	}
	return nil
}

// Search draws Samples odd k in [1, 2^n) for every n in [NMin, NMax] and
// keeps the candidates proven prime. Each sample owns a generator derived
// from (Seed, sample index), so hits are identical for any worker count and
// are returned in generation order.
func Search(ctx context.Context, cfg SearchConfig) ([]Hit, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	log := zap.L().With(zap.String("component", "proth_search"))
	start := time.Now()

	perExp := cfg.Samples
	total := int(cfg.NMax-cfg.NMin+1) * perExp
	slots := make([]*Hit, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for idx := 0; idx < total; idx++ {
		n := cfg.NMin + uint(idx/perExp)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "proth: search cancelled")
			}
			rng := NewRand(cfg.Seed, uint64(idx))
			// Odd k in [1, 2^n): 2*j + 1 with j in [0, 2^(n-1)).
			half := new(big.Int).Lsh(one, n-1)
			k := new(big.Int).Rand(rng, half)
			k.Lsh(k, 1).Add(k, one)

			c, err := model.NewProthCandidate(k, n)
			if err != nil {
				return err
			}
			N := c.N()
			res, err := Test(N, k, n, cfg.Trials, rng)
			if err != nil {
				return eris.Wrapf(err, "proth: test k=%s n=%d", k, n)
			}
			if res.Proven {
				slots[idx] = &Hit{Exp: n, K: k, Digits: c.Digits(), Witness: res.Witness, N: N}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0)
	for _, h := range slots {
		if h != nil {
			hits = append(hits, *h)
		}
	}

	log.Info("proth search complete",
		zap.Uint("n_min", cfg.NMin),
		zap.Uint("n_max", cfg.NMax),
		zap.Int("samples", cfg.Samples),
		zap.Int("hits", len(hits)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return hits, nil
}
