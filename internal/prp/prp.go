// Package prp is the probabilistic certifier: a small-prime table followed by
// strong-pseudoprime (Miller-Rabin) rounds over a fixed base list.
//
// The base list is a heuristic choice. It is not a proven deterministic set
// for all magnitudes, so a pass is reported as model.PRPProbablePrime and must
// not be treated as a proof.
package prp

import (
	"math/big"

	"github.com/sells-group/proth-cli/internal/model"
)

// SmallPrimes decide tiny N and obvious composites exactly.
var SmallPrimes = []int64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}

// WitnessBases are the Miller-Rabin bases, tried in order.
var WitnessBases = []int64{2, 3, 5, 7, 11, 13, 17}

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// Certify runs the small-prime table and then every witness base below N.
func Certify(N *big.Int) (model.PRPResult, error) {
	if N == nil || N.Cmp(two) < 0 {
		return model.PRPResult{}, model.ErrInvalidCandidate
	}

	mod := new(big.Int)
	for _, p := range SmallPrimes {
		bp := big.NewInt(p)
		if N.Cmp(bp) == 0 {
			return model.PRPResult{Status: model.PRPProbablePrime}, nil
		}
		if mod.Mod(N, bp).Sign() == 0 {
			return model.PRPResult{Status: model.PRPComposite, RejectedBy: p}, nil
		}
	}

	res := model.PRPResult{Status: model.PRPProbablePrime}
	for _, a := range WitnessBases {
		if N.Cmp(big.NewInt(a)) <= 0 {
			break
		}
		res.Rounds++
		if !StrongProbablePrime(N, a) {
			res.Status = model.PRPComposite
			res.RejectedBy = a
			return res, nil
		}
	}
	return res, nil
}

// StrongProbablePrime runs one Miller-Rabin round for base a. N must be odd
// and greater than a; N divisible by a passes only when N == a.
func StrongProbablePrime(N *big.Int, a int64) bool {
	ba := big.NewInt(a)
	if new(big.Int).Mod(N, ba).Sign() == 0 {
		return N.Cmp(ba) == 0
	}

	nm1 := new(big.Int).Sub(N, one)
	s := nm1.TrailingZeroBits()
	d := new(big.Int).Rsh(nm1, s)

	x := new(big.Int).Exp(ba, d, N)
	if x.Cmp(one) == 0 || x.Cmp(nm1) == 0 {
		return true
	}
	for i := uint(1); i < s; i++ {
		x.Mul(x, x).Mod(x, N)
		if x.Cmp(nm1) == 0 {
			return true
		}
	}
	return false
}
