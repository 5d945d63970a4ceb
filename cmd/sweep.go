package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proth-cli/internal/ablation"
	"github.com/sells-group/proth-cli/internal/report"
)

var (
	sweepN       uint64
	sweepWorkers int
	sweepOut     string
	sweepXLSX    string
	sweepGrid    ablation.Grid
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Grid-search K, r, beta and thresh over [2, N]",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		base, err := resonanceParams(cmd, cfg.Resonance)
		if err != nil {
			return err
		}
		workers := sweepWorkers
		if workers == 0 {
			workers = cfg.Ablation.Workers
		}

		zap.L().Info("starting sweep", zap.Uint64("n", sweepN), zap.Int("points", sweepGrid.Size()))
		rows, err := ablation.Sweep(ctx, sweepN, base, sweepGrid, workers)
		if err != nil {
			return err
		}

		out, err := openOutput(sweepOut)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck
		if err := report.WriteSweepCSV(out, rows); err != nil {
			return err
		}

		if sweepXLSX != "" {
			run, err := ablation.Run(ctx, ablation.Config{N: sweepN, Params: base, Workers: workers})
			if err != nil {
				return err
			}
			if err := report.WriteAblationXLSX(sweepXLSX, run.AblationRun, rows); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote workbook to %s\n", sweepXLSX)
		}
		return nil
	},
}

func init() {
	def := ablation.DefaultGrid()
	f := sweepCmd.Flags()
	f.Uint64Var(&sweepN, "N", 5000, "upper bound of the evaluated range")
	f.IntVar(&sweepWorkers, "workers", 0, "parallel workers (default from config)")
	f.StringVar(&sweepOut, "out", "", "sweep CSV path (default stdout)")
	f.StringVar(&sweepXLSX, "xlsx", "", "optional workbook with the base ablation and the sweep")
	f.Float64SliceVar(&sweepGrid.Ks, "Ks", def.Ks, "curvature grid")
	f.Float64SliceVar(&sweepGrid.Rs, "rs", def.Rs, "radius grid")
	f.Float64SliceVar(&sweepGrid.Betas, "betas", def.Betas, "sharpness grid")
	f.Float64SliceVar(&sweepGrid.Thresholds, "threshes", def.Thresholds, "threshold grid")
	addResonanceFlags(sweepCmd)
	rootCmd.AddCommand(sweepCmd)
}
