// Package oracle is the deterministic ground truth used to validate the
// resonance triage signal. It costs O(sqrt(n)) divisions per call and is
// never part of the certification path.
package oracle

import "math"

// IsPrime reports whether n is prime by trial division with odd divisors.
func IsPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	r := Isqrt(n)
	for f := uint64(3); f <= r; f += 2 {
		if n%f == 0 {
			return false
		}
	}
	return true
}

// Isqrt returns floor(sqrt(n)) exactly for every uint64.
func Isqrt(n uint64) uint64 {
	if n < 2 {
		return n
	}
	r := uint64(math.Sqrt(float64(n)))
	// float64 rounding can be off by one in either direction near 2^64.
	for r > 0 && (r > math.MaxUint32 || r*r > n) {
		r--
	}
	for r < math.MaxUint32 && (r+1)*(r+1) <= n {
		r++
	}
	return r
}
