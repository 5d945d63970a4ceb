package main

import (
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/proth"
	"github.com/sells-group/proth-cli/internal/report"
)

var (
	certifyIn      string
	certifyOut     string
	certifyN       string
	certifyK       string
	certifyExp     uint
	certifyWitness string
	certifyECPP    string
	certifyRigor   bool
	certifyFormat  string
	certifySave    bool
)

var certifyCmd = &cobra.Command{
	Use:   "certify",
	Short: "Certify one candidate through the funnel, or PRP-check a hits CSV",
	Long: `Single candidate: pass --N, or --k and --n for a Proth-form candidate.
The record shows every tier that ran: resonance triage, Proth witness, the
strong probable-prime rounds and any external ECPP attempts.

CSV mode: --in reads a CSV with an N column and writes it back with a
PRP_pass column appended.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if certifyIn != "" {
			return certifyCSV()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := certifyCandidate(cmd)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("ecpp-cmd") {
			cfg.Certify.ECPPCmd = certifyECPP
		}
		if cmd.Flags().Changed("require-rigor") {
			cfg.Certify.RequireRigor = certifyRigor
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		params, err := resonanceParams(cmd, cfg.Resonance)
		if err != nil {
			return err
		}
		f, err := initFunnel(cfg, params)
		if err != nil {
			return err
		}

		rec, err := f.Certify(ctx, c, proth.NewRand(cfg.Proth.Seed, 0))
		if err != nil {
			return err
		}

		if certifySave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.SaveRecord(ctx, rec); err != nil {
				return eris.Wrap(err, "certify: save record")
			}
			zap.L().Info("record saved", zap.String("record_id", rec.ID), zap.String("verdict", string(rec.Verdict())))
		}

		format, err := report.ParseFormat(certifyFormat)
		if err != nil {
			return err
		}
		return report.Encode(os.Stdout, format, rec)
	},
}

func certifyCandidate(cmd *cobra.Command) (model.Candidate, error) {
	var (
		c   model.Candidate
		err error
	)
	switch {
	case certifyN != "":
		c, err = model.ParseCandidate(certifyN)
		if err != nil {
			return c, err
		}
		if cmd.Flags().Changed("k") || cmd.Flags().Changed("n") {
			k, ok := new(big.Int).SetString(certifyK, 10)
			if !ok || !cmd.Flags().Changed("n") {
				return c, eris.New("certify: --k and --n must be given together")
			}
			c = c.WithDecomposition(k, certifyExp)
		}
	case certifyK != "":
		k, ok := new(big.Int).SetString(certifyK, 10)
		if !ok {
			return c, eris.Errorf("certify: --k %q is not an integer", certifyK)
		}
		if !cmd.Flags().Changed("n") {
			return c, eris.New("certify: --k and --n must be given together")
		}
		c, err = model.NewProthCandidate(k, certifyExp)
		if err != nil {
			return c, err
		}
	default:
		return c, eris.New("certify: one of --N, --k/--n or --in is required")
	}

	if certifyWitness != "" {
		a, ok := new(big.Int).SetString(certifyWitness, 10)
		if !ok {
			return c, eris.Errorf("certify: --witness-a %q is not an integer", certifyWitness)
		}
		c = c.WithWitness(a)
	}
	return c, nil
}

func certifyCSV() error {
	in, err := os.Open(certifyIn)
	if err != nil {
		return eris.Wrapf(err, "open %s", certifyIn)
	}
	defer in.Close() //nolint:errcheck

	out, err := openOutput(certifyOut)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	sum, err := report.CertifyHitsCSV(in, out)
	if err != nil {
		return err
	}
	zap.L().Info("prp certification complete", zap.String("in", certifyIn), zap.Int("rows", sum.Rows), zap.Int("passed", sum.Passed))
	if certifyOut != "" && certifyOut != "-" {
		fmt.Fprintf(os.Stderr, "%d of %d rows passed, wrote %s\n", sum.Passed, sum.Rows, certifyOut)
	}
	return nil
}

func init() {
	f := certifyCmd.Flags()
	f.StringVar(&certifyIn, "in", "", "CSV with an N column to PRP-check")
	f.StringVar(&certifyOut, "out", "", "output CSV path for --in (default stdout)")
	f.StringVar(&certifyN, "N", "", "candidate as a decimal integer")
	f.StringVar(&certifyK, "k", "", "Proth multiplier k")
	f.UintVar(&certifyExp, "n", 0, "Proth exponent n")
	f.StringVar(&certifyWitness, "witness-a", "", "check this Proth base instead of searching")
	f.StringVar(&certifyECPP, "ecpp-cmd", "", "external certifier command with a {N} placeholder")
	f.BoolVar(&certifyRigor, "require-rigor", false, "run the external certifier when no deterministic proof exists")
	f.StringVar(&certifyFormat, "format", "json", "output format (json, yaml)")
	f.BoolVar(&certifySave, "save", false, "persist the record to the store")
	addResonanceFlags(certifyCmd)
	rootCmd.AddCommand(certifyCmd)
}
