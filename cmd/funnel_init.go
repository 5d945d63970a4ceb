package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/sells-group/proth-cli/internal/config"
	"github.com/sells-group/proth-cli/internal/ecpp"
	"github.com/sells-group/proth-cli/internal/funnel"
	"github.com/sells-group/proth-cli/internal/resilience"
	"github.com/sells-group/proth-cli/internal/resonance"
	"github.com/sells-group/proth-cli/internal/store"
)

// addResonanceFlags registers the parameter overrides shared by the
// scoring commands. Unset flags keep the configured values.
func addResonanceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("K", resonance.DefaultK, "curvature")
	f.Float64("r", resonance.DefaultR, "radius")
	f.Float64("beta", resonance.DefaultBeta, "resonance sharpness")
	f.Float64("alpha", resonance.DefaultAlpha, "amplifier gain")
	f.Float64("mu", resonance.DefaultMu, "amplifier damping (> 0)")
	f.Float64("t", resonance.DefaultT, "amplifier time")
	f.Float64("thresh", resonance.DefaultThresh, "COMPOSITE threshold on G")
}

// resonanceParams merges changed flags over the configured parameters.
func resonanceParams(cmd *cobra.Command, base resonance.Params) (resonance.Params, error) {
	p := base
	f := cmd.Flags()
	for name, dst := range map[string]*float64{
		"K": &p.K, "r": &p.R, "beta": &p.Beta, "alpha": &p.Alpha,
		"mu": &p.Mu, "t": &p.T, "thresh": &p.Thresh,
	} {
		if f.Lookup(name) == nil || !f.Changed(name) {
			continue
		}
		v, err := f.GetFloat64(name)
		if err != nil {
			return p, eris.Wrapf(err, "flag --%s", name)
		}
		*dst = v
	}
	return p, p.Validate()
}

// newCertifier builds the external bridge from config, or nil when no
// command template is set.
func newCertifier(c config.CertifyConfig) ecpp.Certifier {
	if c.ECPPCmd == "" {
		return nil
	}
	opts := []ecpp.Option{ecpp.WithTimeout(c.Timeout())}
	if len(c.CertSuffixes) > 0 {
		opts = append(opts, ecpp.WithSuffixes(c.CertSuffixes...))
	}
	if c.MaxLaunchesPerSec > 0 {
		opts = append(opts, ecpp.WithLimiter(rate.NewLimiter(rate.Limit(c.MaxLaunchesPerSec), 1)))
	}
	return ecpp.NewCommandBridge(c.ECPPCmd, opts...)
}

// initFunnel assembles the funnel from the loaded config.
func initFunnel(c *config.Config, params resonance.Params) (*funnel.Funnel, error) {
	return funnel.New(funnel.Config{
		Resonance:     params,
		ResonanceMaxN: c.Certify.ResonanceMaxN,
		Trials:        c.Proth.Trials,
		Seed:          c.Proth.Seed,
		RequireRigor:  c.Certify.RequireRigor,
		CrossCheck:    c.Certify.CrossCheck,
		Concurrency:   c.Batch.MaxConcurrent,
		ExternalRetry: externalRetry(c.Certify),
	}, newCertifier(c.Certify))
}

// externalRetry overrides the default relaunch policy with the configured
// attempt count and initial backoff.
func externalRetry(c config.CertifyConfig) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		rc.MaxAttempts = c.MaxAttempts
	}
	if c.RetryBackoffMs > 0 {
		rc.InitialBackoff = time.Duration(c.RetryBackoffMs) * time.Millisecond
	}
	return rc
}

// initStore opens and migrates the configured store. Callers close it.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// openOutput returns stdout for "" or "-", otherwise a created file.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "create %s", path)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
