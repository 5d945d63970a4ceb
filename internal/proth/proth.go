// Package proth implements Proth's theorem: N = k*2^n + 1 with k odd and
// k < 2^n is prime iff some base a satisfies a^((N-1)/2) ≡ -1 (mod N).
//
// A found witness is a deterministic proof. Failing to find one within a
// bounded number of random draws is inconclusive and is never reported as
// compositeness.
package proth

import (
	"math/big"
	"math/rand"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proth-cli/internal/model"
)

var (
	one   = big.NewInt(1)
	two   = big.NewInt(2)
	three = big.NewInt(3)
	four  = big.NewInt(4)
)

// IsProthForm reports whether k is odd, k < 2^n and N == k*2^n + 1.
func IsProthForm(N, k *big.Int, n uint) bool {
	if N == nil || k == nil || k.Sign() <= 0 || k.Bit(0) == 0 {
		return false
	}
	if uint64(k.BitLen()) > uint64(n) {
		return false
	}
	// k*2^n + 1 has exactly BitLen(k)+n bits once k < 2^n. Comparing sizes
	// first keeps a huge tagged exponent from being materialized.
	if uint64(N.BitLen()) != uint64(k.BitLen())+uint64(n) {
		return false
	}
	want := new(big.Int).Lsh(k, n)
	want.Add(want, one)
	return want.Cmp(N) == 0
}

// Decompose writes N-1 as k*2^n with k odd and reports whether that makes N
// a Proth number (k < 2^n). The decomposition is unique, so an untagged N
// needs no external (k, n).
func Decompose(N *big.Int) (*big.Int, uint, bool) {
	if N == nil || N.Cmp(three) < 0 {
		return nil, 0, false
	}
	nm1 := new(big.Int).Sub(N, one)
	n := nm1.TrailingZeroBits()
	k := new(big.Int).Rsh(nm1, n)
	return k, n, IsProthForm(N, k, n)
}

// VerifyWitness checks a^((N-1)/2) mod N == N-1.
func VerifyWitness(N, a *big.Int) bool {
	if N == nil || a == nil || N.Cmp(three) < 0 {
		return false
	}
	nm1 := new(big.Int).Sub(N, one)
	e := new(big.Int).Rsh(nm1, 1)
	return new(big.Int).Exp(a, e, N).Cmp(nm1) == 0
}

// Verify re-checks a stored result from its own fields, without searching.
// A result claiming Proven with a witness that fails the identity, or with an
// N that is not of the recorded Proth form, does not verify.
func Verify(res model.ProthWitnessResult) bool {
	if !res.Proven || res.Witness == nil {
		return false
	}
	return IsProthForm(res.N, res.K, res.Exp) && VerifyWitness(res.N, res.Witness)
}

// Test searches for a Proth witness for N = k*2^n + 1, drawing up to trials
// bases uniformly from [2, N-2] with rng (a = 2 when N <= 4). The caller owns
// rng; the search draws nothing from any shared source.
func Test(N, k *big.Int, n uint, trials int, rng *rand.Rand) (model.ProthWitnessResult, error) {
	if N == nil || N.Cmp(two) < 0 {
		return model.ProthWitnessResult{}, model.ErrInvalidCandidate
	}
	res := model.ProthWitnessResult{N: new(big.Int).Set(N), Exp: n}
	if k != nil {
		res.K = new(big.Int).Set(k)
	}
	if !IsProthForm(N, k, n) {
		return res, nil
	}
	res.Applicable = true
	if trials <= 0 {
		return res, nil
	}
	if rng == nil {
		return res, eris.New("proth: nil random source")
	}

	nm1 := new(big.Int).Sub(N, one)
	e := new(big.Int).Rsh(nm1, 1)
	// Bases are 2 + [0, N-3), i.e. [2, N-2].
	span := new(big.Int).Sub(N, three)
	x := new(big.Int)

	for i := 0; i < trials; i++ {
		var a *big.Int
		if N.Cmp(four) <= 0 {
			a = big.NewInt(2)
		} else {
			a = new(big.Int).Rand(rng, span)
			a.Add(a, two)
		}
		res.Trials = i + 1
		if x.Exp(a, e, N).Cmp(nm1) == 0 {
			res.Witness = a
			res.Proven = true
			return res, nil
		}
	}
	return res, nil
}

// CheckWitness evaluates a caller-supplied base instead of searching.
func CheckWitness(N, k *big.Int, n uint, a *big.Int) (model.ProthWitnessResult, error) {
	if N == nil || N.Cmp(two) < 0 {
		return model.ProthWitnessResult{}, model.ErrInvalidCandidate
	}
	res := model.ProthWitnessResult{N: new(big.Int).Set(N), Exp: n}
	if k != nil {
		res.K = new(big.Int).Set(k)
	}
	if a != nil {
		res.Witness = new(big.Int).Set(a)
	}
	if !IsProthForm(N, k, n) {
		return res, nil
	}
	res.Applicable = true
	res.Trials = 1
	res.Proven = VerifyWitness(N, a)
	if !res.Proven {
		res.Witness = nil
	}
	return res, nil
}

// DeriveSeed mixes a base seed with a stream index (splitmix64) so every
// parallel unit gets its own reproducible generator.
func DeriveSeed(seed int64, stream uint64) int64 {
	z := uint64(seed) + (stream+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}

// NewRand returns a generator for the given seed and stream index.
func NewRand(seed int64, stream uint64) *rand.Rand {
	return rand.New(rand.NewSource(DeriveSeed(seed, stream)))
}
