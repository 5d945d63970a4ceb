package report

import (
	"encoding/csv"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proth-cli/internal/model"
	"github.com/sells-group/proth-cli/internal/proth"
	"github.com/sells-group/proth-cli/internal/prp"
	"github.com/sells-group/proth-cli/internal/resonance"
)

// ClassificationCSVHeader is the column set of the classify export.
var ClassificationCSVHeader = []string{"n", "G_score", "pred", "truth"}

// HitsCSVHeader is the column set of the search output.
var HitsCSVHeader = []string{"n", "k", "digits", "a_base", "N"}

// PRPColumn is appended by CertifyHitsCSV.
const PRPColumn = "PRP_pass"

// WriteClassification writes rows with G to nine decimals.
func WriteClassification(w io.Writer, rows []resonance.ClassifiedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ClassificationCSVHeader); err != nil {
		return eris.Wrap(err, "report: write classification header")
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatUint(r.N, 10),
			strconv.FormatFloat(r.G, 'f', 9, 64),
			string(r.Pred),
			r.Truth(),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrapf(err, "report: write classification row %d", r.N)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush classification csv")
}

// WriteHits writes proven Proth primes in search order.
func WriteHits(w io.Writer, hits []proth.Hit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HitsCSVHeader); err != nil {
		return eris.Wrap(err, "report: write hits header")
	}
	for _, h := range hits {
		rec := []string{
			strconv.FormatUint(uint64(h.Exp), 10),
			h.K.String(),
			strconv.Itoa(h.Digits),
			h.Witness.String(),
			h.N.String(),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "report: write hit row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush hits csv")
}

// CertifySummary counts the data rows CertifyHitsCSV wrote and how many of
// them passed.
type CertifySummary struct {
	Rows   int
	Passed int
}

// CertifyHitsCSV copies a CSV with an "N" column from r to w, appending a
// PRP_pass column of YES/NO from the probabilistic certifier. Other columns
// pass through unchanged.
func CertifyHitsCSV(r io.Reader, w io.Writer) (CertifySummary, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return CertifySummary{}, eris.New("report: certify input is empty")
	}
	if err != nil {
		return CertifySummary{}, eris.Wrap(err, "report: read certify header")
	}

	col := -1
	for i, h := range header {
		if strings.TrimSpace(h) == "N" {
			col = i
			break
		}
	}
	if col < 0 {
		return CertifySummary{}, eris.Errorf("report: certify input has no N column (header %v)", header)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, header...), PRPColumn)); err != nil {
		return CertifySummary{}, eris.Wrap(err, "report: write certify header")
	}

	var sum CertifySummary
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sum, eris.Wrapf(err, "report: read certify row %d", sum.Rows+1)
		}
		n, ok := new(big.Int).SetString(strings.TrimSpace(rec[col]), 10)
		if !ok {
			return sum, eris.Wrapf(model.ErrInvalidCandidate, "report: row %d: N=%q", sum.Rows+1, rec[col])
		}
		pass := "NO"
		if res, err := prp.Certify(n); err == nil && res.Passed() {
			pass = "YES"
			sum.Passed++
		}
		if err := cw.Write(append(rec, pass)); err != nil {
			return sum, eris.Wrap(err, "report: write certify row")
		}
		sum.Rows++
	}
	cw.Flush()
	return sum, eris.Wrap(cw.Error(), "report: flush certify csv")
}
