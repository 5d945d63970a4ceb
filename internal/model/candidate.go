package model

import (
	"math/big"
	"strings"

	"github.com/rotisserie/eris"
)

// Sentinel errors shared by every tier of the funnel.
var (
	// ErrInvalidCandidate is returned when N < 2 (or N is missing) is handed to a tester.
	ErrInvalidCandidate = eris.New("candidate: N must be >= 2")

	// ErrDomain is returned when a parameter makes a computation undefined (e.g. mu == 0).
	ErrDomain = eris.New("parameter outside domain")

	// ErrFieldAlreadySet is returned when a write-once record field is written twice.
	ErrFieldAlreadySet = eris.New("record: field already set")
)

// MaxProthExp bounds the exponent NewProthCandidate will materialize
// (2^26 bits is 8 MiB per N, above every known Proth prime).
const MaxProthExp = 1 << 26

// Candidate is an integer N >= 2, optionally tagged with a k*2^n+1 decomposition.
// Candidates are immutable: constructors and accessors copy their big.Int values.
type Candidate struct {
	n       *big.Int
	k       *big.Int
	exp     uint
	tagged  bool
	witness *big.Int
}

// NewCandidate validates and wraps N.
func NewCandidate(n *big.Int) (Candidate, error) {
	if n == nil || n.Cmp(big.NewInt(2)) < 0 {
		return Candidate{}, ErrInvalidCandidate
	}
	return Candidate{n: new(big.Int).Set(n)}, nil
}

// NewProthCandidate builds N = k*2^exp + 1 and tags it with its decomposition.
func NewProthCandidate(k *big.Int, exp uint) (Candidate, error) {
	if k == nil || k.Sign() <= 0 {
		return Candidate{}, eris.Wrap(ErrInvalidCandidate, "candidate: k must be positive")
	}
	if exp > MaxProthExp {
		return Candidate{}, eris.Wrapf(ErrInvalidCandidate, "candidate: exponent %d exceeds %d", exp, MaxProthExp)
	}
	n := new(big.Int).Lsh(k, exp)
	n.Add(n, big.NewInt(1))
	c, err := NewCandidate(n)
	if err != nil {
		return Candidate{}, err
	}
	c.k = new(big.Int).Set(k)
	c.exp = exp
	c.tagged = true
	return c, nil
}

// ParseCandidate parses a base-10 integer string.
func ParseCandidate(s string) (Candidate, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Candidate{}, eris.Wrapf(ErrInvalidCandidate, "candidate: parse %q", s)
	}
	return NewCandidate(n)
}

// WithDecomposition returns a copy of c tagged with (k, exp). The tag is not
// checked against N here; the Proth tester reports a mismatched tag as inapplicable.
func (c Candidate) WithDecomposition(k *big.Int, exp uint) Candidate {
	out := c
	if k != nil {
		out.k = new(big.Int).Set(k)
		out.exp = exp
		out.tagged = true
	}
	return out
}

// WithWitness returns a copy of c carrying a caller-supplied Proth witness to
// check instead of running a random base search.
func (c Candidate) WithWitness(a *big.Int) Candidate {
	out := c
	if a != nil {
		out.witness = new(big.Int).Set(a)
	}
	return out
}

// N returns a copy of the candidate value.
func (c Candidate) N() *big.Int {
	if c.n == nil {
		return nil
	}
	return new(big.Int).Set(c.n)
}

// Decomposition returns (k, exp, true) when the candidate carries a k*2^n+1 tag.
func (c Candidate) Decomposition() (*big.Int, uint, bool) {
	if !c.tagged {
		return nil, 0, false
	}
	return new(big.Int).Set(c.k), c.exp, true
}

// Witness returns the caller-supplied witness, or nil.
func (c Candidate) Witness() *big.Int {
	if c.witness == nil {
		return nil
	}
	return new(big.Int).Set(c.witness)
}

// Digits returns the decimal digit count floor(log10 N)+1.
func (c Candidate) Digits() int {
	return DigitCount(c.n)
}

// Uint64 returns N as a uint64 when it fits.
func (c Candidate) Uint64() (uint64, bool) {
	if c.n == nil || !c.n.IsUint64() {
		return 0, false
	}
	return c.n.Uint64(), true
}

// String returns N in base 10.
func (c Candidate) String() string {
	if c.n == nil {
		return ""
	}
	return c.n.String()
}

// DigitCount returns the number of decimal digits of |n|; zero for nil.
func DigitCount(n *big.Int) int {
	if n == nil {
		return 0
	}
	return len(new(big.Int).Abs(n).String())
}
