package main

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/report"
)

var (
	batchIn     string
	batchSave   bool
	batchFormat string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Certify every candidate in a file",
	Long: `Reads one candidate per line: a decimal N, or "k n" (comma or space
separated) for N = k*2^n + 1. Blank lines and lines starting with # are
skipped. Records are printed in input order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var in io.Reader = os.Stdin
		if batchIn != "" && batchIn != "-" {
			f, err := os.Open(batchIn)
			if err != nil {
				return eris.Wrapf(err, "open %s", batchIn)
			}
			defer f.Close() //nolint:errcheck
			in = f
		}
		cands, err := parseCandidates(in)
		if err != nil {
			return err
		}
		if len(cands) == 0 {
			fmt.Fprintln(os.Stderr, "No candidates found.")
			return nil
		}

		params, err := resonanceParams(cmd, cfg.Resonance)
		if err != nil {
			return err
		}
		fn, err := initFunnel(cfg, params)
		if err != nil {
			return err
		}

		start := time.Now()
		recs, err := fn.Run(ctx, cands)
		if err != nil {
			return err
		}

		counts := make(map[model.Verdict]int)
		for _, r := range recs {
			counts[r.Verdict()]++
		}
		zap.L().Info("batch complete",
			zap.Int("candidates", len(recs)),
			zap.Int("proven_prime", counts[model.VerdictProvenPrime]),
			zap.Int("probable_prime", counts[model.VerdictProbablePrime]),
			zap.Int("composite", counts[model.VerdictComposite]),
			zap.Duration("elapsed", time.Since(start)),
		)

		if batchSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			for _, r := range recs {
				if err := st.SaveRecord(ctx, r); err != nil {
					return eris.Wrapf(err, "batch: save record for N=%s", r.N)
				}
			}
		}

		if batchFormat == "table" {
			out := make([]model.CertificationRecord, len(recs))
			for i, r := range recs {
				out[i] = *r
			}
			report.FormatRecordsTable(os.Stdout, out)
			return nil
		}
		format, err := report.ParseFormat(batchFormat)
		if err != nil {
			return err
		}
		return report.Encode(os.Stdout, format, recs)
	},
}

// parseCandidates reads the batch input format.
func parseCandidates(r io.Reader) ([]model.Candidate, error) {
	var cands []model.Candidate
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		switch len(fields) {
		case 1:
			c, err := model.ParseCandidate(fields[0])
			if err != nil {
				return nil, eris.Wrapf(err, "line %d", line)
			}
			cands = append(cands, c)
		case 2:
			k, ok := new(big.Int).SetString(fields[0], 10)
			if !ok {
				return nil, eris.Errorf("line %d: k %q is not an integer", line, fields[0])
			}
			exp, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, eris.Wrapf(err, "line %d: exponent", line)
			}
			c, err := model.NewProthCandidate(k, uint(exp))
			if err != nil {
				return nil, eris.Wrapf(err, "line %d", line)
			}
			cands = append(cands, c)
		default:
			return nil, eris.Errorf("line %d: expected N or \"k n\"", line)
		}
	}
	return cands, eris.Wrap(sc.Err(), "read candidates")
}

func init() {
	batchCmd.Flags().StringVar(&batchIn, "in", "", "candidate file (default stdin)")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "persist every record to the store")
	batchCmd.Flags().StringVar(&batchFormat, "format", "table", "output format (table, json, yaml)")
	addResonanceFlags(batchCmd)
	rootCmd.AddCommand(batchCmd)
}
