package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/proth-cli/internal/model"
)

// Format selects a structured output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json" (the default for "") or "yaml"/"yml".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("report: unknown format %q (want json or yaml)", s)
	}
}

// Encode writes v in the given format.
func Encode(w io.Writer, f Format, v any) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: close yaml encoder")
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "report: encode json")
	}
}

// printer formats counts with thousands separators.
var printer = message.NewPrinter(language.English)

// FormatRecordsTable writes a compact listing of records to out.
func FormatRecordsTable(out io.Writer, recs []model.CertificationRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tN\tDIGITS\tVERDICT\tWITNESS\tECPP\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-\t------\t-------\t-------\t----\t-------")

	for _, r := range recs {
		witness := ""
		if r.ProthWitness != nil && r.ProthWitness.Witness != nil {
			witness = r.ProthWitness.Witness.String()
		}
		ext := "-"
		if n := len(r.ECPP); n > 0 {
			ext = fmt.Sprintf("%d (%s)", n, r.ECPP[n-1].Status)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			abbreviate(r.N.String(), 24),
			printer.Sprintf("%d", r.Digits),
			r.Verdict(),
			abbreviate(witness, 12),
			ext,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// FormatAblationTable writes both variants' metrics side by side.
func FormatAblationTable(out io.Writer, run model.AblationRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = printer.Fprintf(w, "N:\t%d\n", run.Meta.N)
	_, _ = fmt.Fprintf(w, "Params:\tK=%g r=%g beta=%g thresh=%g alpha=%g mu=%g t=%g\n",
		run.Meta.K, run.Meta.R, run.Meta.Beta, run.Meta.Thresh, run.Meta.Alpha, run.Meta.Mu, run.Meta.T)
	_, _ = fmt.Fprintf(w, "Runtime:\t%.2fs\n", run.Meta.RuntimeSec)
	_, _ = fmt.Fprintln(w, "\t\t")
	_, _ = fmt.Fprintln(w, "METRIC\tPI_A\tPI")
	row := func(name string, a, b float64) {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, ratio(a), ratio(b))
	}
	count := func(name string, a, b int) {
		_, _ = printer.Fprintf(w, "%s\t%d\t%d\n", name, a, b)
	}
	a, p := run.Adaptive, run.Plain
	row("accuracy", a.Accuracy, p.Accuracy)
	row("precision_composite", float64(a.PrecisionComposite), float64(p.PrecisionComposite))
	row("recall_composite", float64(a.RecallComposite), float64(p.RecallComposite))
	row("CRR", a.CRR, p.CRR)
	count("survivors", a.Survivors, p.Survivors)
	count("TP", a.TP, p.TP)
	count("FP", a.FP, p.FP)
	count("TN", a.TN, p.TN)
	count("FN", a.FN, p.FN)
	_ = w.Flush()
}

func ratio(x float64) string {
	if math.IsNaN(x) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", x)
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// abbreviate keeps the head and tail of long numbers.
func abbreviate(s string, max int) string {
	if len(s) <= max || max < 5 {
		return s
	}
	keep := (max - 3) / 2
	return s[:keep] + "..." + s[len(s)-keep:]
}
