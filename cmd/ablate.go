package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proth-cli/internal/ablation"
	"github.com/sells-group/proth-cli/internal/report"
)

var (
	ablateN       uint64
	ablateWorkers int
	ablateCSV     string
	ablateMetrics string
	ablateXLSX    string
	ablateSave    bool
)

var ablateCmd = &cobra.Command{
	Use:   "ablate",
	Short: "Compare adaptive-pi and plain-pi scoring against ground truth",
	Long: `Scores every integer in [2, N] with the configured curvature and again
with K=0, then reports a confusion matrix per variant (COMPOSITE is the
positive class). Writes a gzipped per-integer CSV and a metrics JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		params, err := resonanceParams(cmd, cfg.Resonance)
		if err != nil {
			return err
		}

		n := ablateN
		if n == 0 {
			n = cfg.Ablation.N
		}
		workers := ablateWorkers
		if workers == 0 {
			workers = cfg.Ablation.Workers
		}

		rep, err := ablation.Run(ctx, ablation.Config{N: n, Params: params, Workers: workers})
		if err != nil {
			return err
		}

		if ablateCSV != "" {
			if err := writeFile(ablateCSV, func(f *os.File) error {
				return report.WriteAblationCSVGz(f, rep.Rows)
			}); err != nil {
				return err
			}
		}
		if ablateMetrics != "" {
			if err := writeFile(ablateMetrics, func(f *os.File) error {
				return report.WriteAblationMetrics(f, rep.AblationRun)
			}); err != nil {
				return err
			}
		}
		if ablateXLSX != "" {
			if err := report.WriteAblationXLSX(ablateXLSX, rep.AblationRun, nil); err != nil {
				return err
			}
		}

		if ablateSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.SaveAblation(ctx, &rep.AblationRun); err != nil {
				return eris.Wrap(err, "ablate: save run")
			}
			zap.L().Info("ablation saved", zap.String("run_id", rep.ID))
		}

		report.FormatAblationTable(os.Stdout, rep.AblationRun)
		if rep.ID != "" {
			fmt.Fprintf(os.Stdout, "\nRun ID: %s\n", rep.ID)
		}
		return nil
	},
}

// writeFile creates path and hands it to write, closing it afterwards.
func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	ablateCmd.Flags().Uint64Var(&ablateN, "N", 0, "upper bound of the evaluated range (default from config)")
	ablateCmd.Flags().IntVar(&ablateWorkers, "workers", 0, "parallel workers (default from config)")
	ablateCmd.Flags().StringVar(&ablateCSV, "csv", "ablation_minimal.csv.gz", "gzipped per-integer CSV path (empty to skip)")
	ablateCmd.Flags().StringVar(&ablateMetrics, "metrics", "ablation_metrics.json", "metrics JSON path (empty to skip)")
	ablateCmd.Flags().StringVar(&ablateXLSX, "xlsx", "", "optional XLSX workbook path")
	ablateCmd.Flags().BoolVar(&ablateSave, "save", false, "persist the run summary to the store")
	addResonanceFlags(ablateCmd)
	rootCmd.AddCommand(ablateCmd)
}
