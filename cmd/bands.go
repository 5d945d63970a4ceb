package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proth-cli/internal/bands"
	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/report"
)

var (
	bandsKMax int
	bandsRun  bool
	bandsAll  bool
	bandsSave bool
)

var bandsCmd = &cobra.Command{
	Use:   "bands <digits>",
	Short: "List (n, k) pairs whose k*2^n + 1 has the given digit count",
	Long: `Prints the exponent bands for an exact decimal digit count. With --run,
every Proth-form candidate in the bands is certified through the funnel.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		digits, err := strconv.Atoi(args[0])
		if err != nil {
			return eris.Wrapf(err, "bands: parse digits %q", args[0])
		}
		out, err := bands.ForDigits(digits, bandsKMax)
		if err != nil {
			return err
		}

		if !bandsRun {
			formatBands(os.Stdout, out)
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var cands []model.Candidate
		for _, b := range out {
			cs, err := b.Candidates(bandsAll)
			if err != nil {
				return err
			}
			cands = append(cands, cs...)
		}
		zap.L().Info("certifying band candidates", zap.Int("digits", digits), zap.Int("candidates", len(cands)))

		params, err := resonanceParams(cmd, cfg.Resonance)
		if err != nil {
			return err
		}
		fn, err := initFunnel(cfg, params)
		if err != nil {
			return err
		}
		recs, err := fn.Run(ctx, cands)
		if err != nil {
			return err
		}

		if bandsSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			for _, r := range recs {
				if err := st.SaveRecord(ctx, r); err != nil {
					return eris.Wrapf(err, "bands: save record for N=%s", r.N)
				}
			}
		}

		list := make([]model.CertificationRecord, len(recs))
		for i, r := range recs {
			list[i] = *r
		}
		report.FormatRecordsTable(os.Stdout, list)
		return nil
	},
}

func formatBands(out io.Writer, bs []bands.Band) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tK")
	fmt.Fprintln(w, "-\t-")
	for _, b := range bs {
		ks := make([]string, len(b.Ks))
		for i, k := range b.Ks {
			ks[i] = strconv.Itoa(k)
		}
		fmt.Fprintf(w, "%d\t%s\n", b.Exp, strings.Join(ks, ","))
	}
	w.Flush()
}

func init() {
	bandsCmd.Flags().IntVar(&bandsKMax, "k-max", 9, "largest odd multiplier considered")
	bandsCmd.Flags().BoolVar(&bandsRun, "run", false, "certify every candidate in the bands")
	bandsCmd.Flags().BoolVar(&bandsAll, "all", false, "with --run, include pairs with k >= 2^n")
	bandsCmd.Flags().BoolVar(&bandsSave, "save", false, "with --run, persist the records")
	addResonanceFlags(bandsCmd)
	rootCmd.AddCommand(bandsCmd)
}
