package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proth-cli/internal/proth"
	"github.com/sells-group/proth-cli/internal/report"
)

var (
	searchNMin    uint
	searchNMax    uint
	searchSamples int
	searchOut     string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Hunt for Proth primes with random odd k over an exponent range",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sc := proth.SearchConfig{
			NMin:    cfg.Proth.NMin,
			NMax:    cfg.Proth.NMax,
			Samples: cfg.Proth.Samples,
			Trials:  cfg.Proth.Trials,
			Seed:    cfg.Proth.Seed,
			Workers: cfg.Batch.MaxConcurrent,
		}
		if cmd.Flags().Changed("n-min") {
			sc.NMin = searchNMin
		}
		if cmd.Flags().Changed("n-max") {
			sc.NMax = searchNMax
		}
		if cmd.Flags().Changed("samples") {
			sc.Samples = searchSamples
		}

		start := time.Now()
		hits, err := proth.Search(ctx, sc)
		if err != nil {
			return err
		}

		out, err := openOutput(searchOut)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck
		if err := report.WriteHits(out, hits); err != nil {
			return err
		}

		zap.L().Info("search complete",
			zap.Uint("n_min", sc.NMin),
			zap.Uint("n_max", sc.NMax),
			zap.Int("hits", len(hits)),
			zap.Duration("elapsed", time.Since(start)),
		)
		if searchOut != "" && searchOut != "-" {
			fmt.Fprintf(os.Stderr, "Found %d Proth primes, wrote %s\n", len(hits), searchOut)
		}
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.UintVar(&searchNMin, "n-min", 8, "smallest exponent")
	f.UintVar(&searchNMax, "n-max", 22, "largest exponent")
	f.IntVar(&searchSamples, "samples", 400, "random k drawn per exponent")
	f.StringVar(&searchOut, "out", "proth_hits.csv", "hits CSV path (- for stdout)")
	rootCmd.AddCommand(searchCmd)
}
