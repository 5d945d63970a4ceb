package main

import (
	"math/big"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/proth"
	"github.com/sells-group/proth-cli/internal/report"
)

var (
	prothK       string
	prothExp     uint
	prothTrials  int
	prothSeed    int64
	prothWitness string
	prothFormat  string
)

var prothCmd = &cobra.Command{
	Use:   "proth",
	Short: "Run Proth's theorem on N = k*2^n + 1",
	Long: `Searches for a base a with a^((N-1)/2) = -1 (mod N), which proves N
prime. A failed search is inconclusive. With --witness-a only that base is
checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		k, ok := new(big.Int).SetString(prothK, 10)
		if !ok {
			return eris.Errorf("proth: --k %q is not an integer", prothK)
		}
		c, err := model.NewProthCandidate(k, prothExp)
		if err != nil {
			return err
		}

		var res model.ProthWitnessResult
		if prothWitness != "" {
			a, ok := new(big.Int).SetString(prothWitness, 10)
			if !ok {
				return eris.Errorf("proth: --witness-a %q is not an integer", prothWitness)
			}
			res, err = proth.CheckWitness(c.N(), k, prothExp, a)
		} else {
			trials := prothTrials
			if !cmd.Flags().Changed("trials") {
				trials = cfg.Proth.Trials
			}
			seed := prothSeed
			if !cmd.Flags().Changed("seed") {
				seed = cfg.Proth.Seed
			}
			res, err = proth.Test(c.N(), k, prothExp, trials, proth.NewRand(seed, 0))
		}
		if err != nil {
			return err
		}

		zap.L().Debug("proth test complete",
			zap.String("k", k.String()),
			zap.Uint("n", prothExp),
			zap.Bool("proven", res.Proven),
			zap.Int("trials", res.Trials),
		)

		format, err := report.ParseFormat(prothFormat)
		if err != nil {
			return err
		}
		return report.Encode(os.Stdout, format, res)
	},
}

func init() {
	f := prothCmd.Flags()
	f.StringVar(&prothK, "k", "", "odd multiplier k (required)")
	f.UintVar(&prothExp, "n", 0, "exponent n (required)")
	f.IntVar(&prothTrials, "trials", 10, "random bases to try")
	f.Int64Var(&prothSeed, "seed", 2025, "generator seed")
	f.StringVar(&prothWitness, "witness-a", "", "check this base only")
	f.StringVar(&prothFormat, "format", "json", "output format (json, yaml)")
	_ = prothCmd.MarkFlagRequired("k")
	_ = prothCmd.MarkFlagRequired("n")
	rootCmd.AddCommand(prothCmd)
}
