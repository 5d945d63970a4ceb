package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/report"
	"github.com/sells-group/proth-cli/internal/resonance"
)

var (
	scoreN      uint64
	scoreOut    string
	scoreFormat string
)

var scoreCmd = &cobra.Command{
	Use:   "score [n]",
	Short: "Score one integer, or classify every integer in [2, N]",
	Long: `With an argument, prints the resonance score S, amplitude G and label
for that integer. With --N, writes one classification row per integer in
[2, N] (n, G_score, pred, truth) as CSV.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		params, err := resonanceParams(cmd, cfg.Resonance)
		if err != nil {
			return err
		}
		scorer, err := resonance.NewScorer(params)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			n, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return eris.Wrapf(err, "score: parse %q", args[0])
			}
			format, err := report.ParseFormat(scoreFormat)
			if err != nil {
				return err
			}
			return report.Encode(os.Stdout, format, scorer.Evaluate(n))
		}

		if scoreN < 2 {
			return eris.New("score: give an integer argument or --N >= 2")
		}

		rows, err := scorer.ClassifyRange(ctx, scoreN)
		if err != nil {
			return err
		}

		out, err := openOutput(scoreOut)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		if err := report.WriteClassification(out, rows); err != nil {
			return err
		}

		flagged := 0
		for _, r := range rows {
			if r.Pred == model.LabelComposite {
				flagged++
			}
		}
		zap.L().Info("classification complete",
			zap.Uint64("n", scoreN),
			zap.Int("rows", len(rows)),
			zap.Int("flagged_composite", flagged),
			zap.Float64("pi_a", scorer.PiA()),
		)
		if scoreOut != "" && scoreOut != "-" {
			fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", len(rows), scoreOut)
		}
		return nil
	},
}

func init() {
	scoreCmd.Flags().Uint64Var(&scoreN, "N", 0, "classify every integer in [2, N]")
	scoreCmd.Flags().StringVar(&scoreOut, "out", "", "classification CSV path (default stdout)")
	scoreCmd.Flags().StringVar(&scoreFormat, "format", "json", "single-score output format (json, yaml)")
	addResonanceFlags(scoreCmd)
	rootCmd.AddCommand(scoreCmd)
}
