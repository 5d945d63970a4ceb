// Package bands lists (n, k) pairs for which k*2^n + 1 has a target number
// of decimal digits, so searches can be queued without manual log math.
package bands

import (
	"math"
	"math/big"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proth-cli/internal/model"
)

// Log10Of2 is the rounded log10(2) used for band boundaries.
const Log10Of2 = 0.30103

// Band is one exponent and the odd multipliers that land on the target
// digit count.
type Band struct {
	Exp uint  `json:"n" yaml:"n"`
	Ks  []int `json:"k" yaml:"k"`
}

// ForDigits returns the bands for an exact digit count, considering odd k in
// [1, kMax], sorted by decreasing n. Exponents below 1 are never returned.
func ForDigits(digits, kMax int) ([]Band, error) {
	if digits < 1 {
		return nil, eris.Errorf("bands: digits must be >= 1 (got %d)", digits)
	}
	if kMax < 1 {
		return nil, eris.Errorf("bands: k_max must be >= 1 (got %d)", kMax)
	}

	nMin := int(math.Ceil((float64(digits) - 1 - math.Log10(float64(kMax))) / Log10Of2))
	nMax := int(math.Floor((float64(digits) - 1e-12) / Log10Of2))
	if nMin < 1 {
		nMin = 1
	}

	var out []Band
	for n := nMax; n >= nMin; n-- {
		var ks []int
		for k := 1; k <= kMax; k += 2 {
			if int(math.Floor(math.Log10(float64(k))+Log10Of2*float64(n)))+1 == digits {
				ks = append(ks, k)
			}
		}
		if len(ks) > 0 {
			out = append(out, Band{Exp: uint(n), Ks: ks})
		}
	}
	return out, nil
}

// Candidates expands the band into tagged candidates. Pairs with k >= 2^n
// are skipped unless all is set, since Proth's theorem does not apply to them.
func (b Band) Candidates(all bool) ([]model.Candidate, error) {
	out := make([]model.Candidate, 0, len(b.Ks))
	for _, k := range b.Ks {
		kb := big.NewInt(int64(k))
		if !all && kb.BitLen() > int(b.Exp) {
			continue
		}
		c, err := model.NewProthCandidate(kb, b.Exp)
		if err != nil {
			return nil, eris.Wrapf(err, "bands: k=%d n=%d", k, b.Exp)
		}
		out = append(out, c)
	}
	return out, nil
}
