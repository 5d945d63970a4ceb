// Package report renders funnel, ablation and search output as CSV, JSON,
// YAML, XLSX and terminal tables.
package report

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/proth-cli/internal/ablation"
	"github.com/sells-group/proth-cli/internal/model"
)

// AblationCSVHeader is the column set of the minimal per-integer ablation CSV.
var AblationCSVHeader = []string{"n", "G_pi_a", "pred_comp_pi_a", "G_pi", "pred_comp_pi"}

// SweepCSVHeader is the column set of the parameter sweep CSV.
var SweepCSVHeader = []string{"N", "K", "r", "beta", "thresh", "accuracy", "precision_comp", "recall_comp", "TP", "FP", "TN", "FN"}

// WriteAblationCSVGz writes the per-integer rows as gzip-compressed CSV.
func WriteAblationCSVGz(w io.Writer, rows []ablation.Row) error {
	zw := gzip.NewWriter(w)
	cw := csv.NewWriter(zw)

	if err := cw.Write(AblationCSVHeader); err != nil {
		return eris.Wrap(err, "report: write ablation header")
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatUint(r.N, 10),
			strconv.FormatFloat(r.GAdaptive, 'f', 6, 64),
			boolDigit(r.PredAdaptive),
			strconv.FormatFloat(r.GPlain, 'f', 6, 64),
			boolDigit(r.PredPlain),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrapf(err, "report: write ablation row %d", r.N)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "report: flush ablation csv")
	}
	return eris.Wrap(zw.Close(), "report: close gzip stream")
}

// metricsDocument is the on-disk layout of an ablation metrics file.
type metricsDocument struct {
	Meta     model.AblationMeta    `json:"meta"`
	Adaptive model.AblationMetrics `json:"pi_a"`
	Plain    model.AblationMetrics `json:"pi"`
}

// WriteAblationMetrics writes {"meta", "pi_a", "pi"} as indented JSON.
// Undefined ratios are written as null.
func WriteAblationMetrics(w io.Writer, run model.AblationRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	doc := metricsDocument{Meta: run.Meta, Adaptive: run.Adaptive, Plain: run.Plain}
	return eris.Wrap(enc.Encode(doc), "report: encode ablation metrics")
}

// ReadAblationMetrics parses a file written by WriteAblationMetrics.
func ReadAblationMetrics(r io.Reader) (model.AblationRun, error) {
	var doc metricsDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return model.AblationRun{}, eris.Wrap(err, "report: decode ablation metrics")
	}
	return model.AblationRun{Meta: doc.Meta, Adaptive: doc.Adaptive, Plain: doc.Plain}, nil
}

// WriteSweepCSV writes one row per grid point.
func WriteSweepCSV(w io.Writer, rows []ablation.SweepRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SweepCSVHeader); err != nil {
		return eris.Wrap(err, "report: write sweep header")
	}
	for _, r := range rows {
		m := r.Metrics
		rec := []string{
			strconv.FormatUint(r.N, 10),
			formatFloat(r.Params.K),
			formatFloat(r.Params.R),
			formatFloat(r.Params.Beta),
			formatFloat(r.Params.Thresh),
			formatFloat(m.Accuracy),
			formatFloat(float64(m.PrecisionComposite)),
			formatFloat(float64(m.RecallComposite)),
			strconv.Itoa(m.TP),
			strconv.Itoa(m.FP),
			strconv.Itoa(m.TN),
			strconv.Itoa(m.FN),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "report: write sweep row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush sweep csv")
}

// WriteAblationXLSX saves a workbook with a "summary" sheet comparing the two
// variants and, when sweep is non-empty, a "sweep" sheet.
func WriteAblationXLSX(path string, run model.AblationRun, sweep []ablation.SweepRow) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	addRow(summary, "variant", "accuracy", "precision_composite", "recall_composite", "CRR", "survivors", "total", "TP", "FP", "TN", "FN")
	for _, v := range []struct {
		name string
		m    model.AblationMetrics
	}{{"pi_a", run.Adaptive}, {"pi", run.Plain}} {
		row := summary.AddRow()
		row.AddCell().SetString(v.name)
		addFloat(row, v.m.Accuracy)
		addFloat(row, float64(v.m.PrecisionComposite))
		addFloat(row, float64(v.m.RecallComposite))
		addFloat(row, v.m.CRR)
		for _, n := range []int{v.m.Survivors, v.m.Total, v.m.TP, v.m.FP, v.m.TN, v.m.FN} {
			row.AddCell().SetInt(n)
		}
	}
	summary.AddRow()
	meta := run.Meta
	for _, kv := range []struct {
		k string
		v float64
	}{
		{"N", float64(meta.N)}, {"K", meta.K}, {"r", meta.R}, {"beta", meta.Beta},
		{"thresh", meta.Thresh}, {"alpha", meta.Alpha}, {"mu", meta.Mu}, {"t", meta.T},
		{"runtime_sec", meta.RuntimeSec},
	} {
		row := summary.AddRow()
		row.AddCell().SetString(kv.k)
		addFloat(row, kv.v)
	}

	if len(sweep) > 0 {
		sheet, err := f.AddSheet("sweep")
		if err != nil {
			return eris.Wrap(err, "xlsx: add sweep sheet")
		}
		addRow(sheet, SweepCSVHeader...)
		for _, r := range sweep {
			row := sheet.AddRow()
			row.AddCell().SetInt64(int64(r.N))
			for _, x := range []float64{
				r.Params.K, r.Params.R, r.Params.Beta, r.Params.Thresh,
				r.Metrics.Accuracy, float64(r.Metrics.PrecisionComposite), float64(r.Metrics.RecallComposite),
			} {
				addFloat(row, x)
			}
			for _, n := range []int{r.Metrics.TP, r.Metrics.FP, r.Metrics.TN, r.Metrics.FN} {
				row.AddCell().SetInt(n)
			}
		}
	}

	return eris.Wrap(f.Save(path), "xlsx: save workbook")
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// addFloat writes x, or an empty cell when it is NaN.
func addFloat(row *xlsx.Row, x float64) {
	cell := row.AddCell()
	if math.IsNaN(x) {
		return
	}
	cell.SetFloat(x)
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
