package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/report"
	"github.com/sells-group/proth-cli/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect stored certification records and ablation runs",
}

// -- records list --

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List certification records, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		verdict, _ := cmd.Flags().GetString("verdict")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		format, _ := cmd.Flags().GetString("format")

		recs, err := st.ListRecords(ctx, store.RecordFilter{
			Verdict: model.Verdict(verdict),
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			return eris.Wrap(err, "records list")
		}

		if format != "table" {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			return report.Encode(os.Stdout, f, recs)
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}
		report.FormatRecordsTable(os.Stdout, recs)
		return nil
	},
}

// -- records show --

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show the full evidence trail of a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetRecord(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return eris.Errorf("record %s not found", args[0])
		}
		if err != nil {
			return eris.Wrap(err, "records show")
		}

		format, _ := cmd.Flags().GetString("format")
		f, err := report.ParseFormat(format)
		if err != nil {
			return err
		}
		return report.Encode(os.Stdout, f, rec)
	},
}

// -- records ecpp --

var recordsECPPCmd = &cobra.Command{
	Use:   "ecpp <record-id>",
	Short: "Run the external certifier on a stored record and append the attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if c, _ := cmd.Flags().GetString("ecpp-cmd"); c != "" {
			cfg.Certify.ECPPCmd = c
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		certifier := newCertifier(cfg.Certify)
		if certifier == nil {
			return eris.New("records ecpp: no certifier command (set --ecpp-cmd or certify.ecpp_cmd)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetRecord(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return eris.Errorf("record %s not found", args[0])
		}
		if err != nil {
			return eris.Wrap(err, "records ecpp")
		}

		res := certifier.Certify(ctx, rec.N)
		if err := st.AppendExternalResult(ctx, rec.ID, res); err != nil {
			return eris.Wrap(err, "records ecpp: append attempt")
		}
		rec.AppendExternal(res)

		zap.L().Info("external attempt recorded",
			zap.String("record_id", rec.ID),
			zap.String("status", string(res.Status)),
			zap.Bool("certified", rec.Certified()),
		)

		format, _ := cmd.Flags().GetString("format")
		f, err := report.ParseFormat(format)
		if err != nil {
			return err
		}
		return report.Encode(os.Stdout, f, res)
	},
}

// -- records ablations --

var recordsAblationsCmd = &cobra.Command{
	Use:   "ablations",
	Short: "List saved ablation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListAblations(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "records ablations")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No ablation runs found.")
			return nil
		}
		for i, run := range runs {
			if i > 0 {
				fmt.Fprintln(os.Stdout)
			}
			fmt.Fprintf(os.Stdout, "Run %s (%s)\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04"))
			report.FormatAblationTable(os.Stdout, run)
		}
		return nil
	},
}

func init() {
	recordsListCmd.Flags().String("verdict", "", "filter by verdict (proven_prime, probable_prime, composite, undetermined)")
	recordsListCmd.Flags().Int("limit", 20, "max records to show")
	recordsListCmd.Flags().Int("offset", 0, "records to skip")
	recordsListCmd.Flags().String("format", "table", "output format (table, json, yaml)")

	recordsShowCmd.Flags().String("format", "yaml", "output format (json, yaml)")

	recordsECPPCmd.Flags().String("ecpp-cmd", "", "external certifier command with a {N} placeholder")
	recordsECPPCmd.Flags().String("format", "json", "output format (json, yaml)")

	recordsAblationsCmd.Flags().Int("limit", 10, "max runs to show")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	recordsCmd.AddCommand(recordsECPPCmd)
	recordsCmd.AddCommand(recordsAblationsCmd)
	rootCmd.AddCommand(recordsCmd)
}
