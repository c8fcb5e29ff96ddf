// Package productive implements the productive-number predicate.
//
// N is productive when N+1 is prime and, for every split of N's decimal
// digits into a left part A and a right part B, A*B+1 is prime as well.
package productive

import (
	"math/bits"

	"github.com/withObsrvr/productive-numbers/internal/primality"
)

// pow10 holds 10^0 through 10^19, every power of ten that fits in a uint64.
var pow10 = [20]uint64{
	1,
	10,
	100,
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
	100_000_000_000,
	1_000_000_000_000,
	10_000_000_000_000,
	100_000_000_000_000,
	1_000_000_000_000_000,
	10_000_000_000_000_000,
	100_000_000_000_000_000,
	1_000_000_000_000_000_000,
	10_000_000_000_000_000_000,
}

// Oracle is the primality test the predicate relies on.
type Oracle interface {
	IsPrime(n uint64) bool
}

// Predicate decides whether candidates are productive.
type Predicate struct {
	oracle Oracle
}

// New creates a predicate using the given oracle.
// A nil oracle selects primality.New(nil).
func New(o Oracle) *Predicate {
	if o == nil {
		o = primality.New(nil)
	}
	return &Predicate{oracle: o}
}

// IsProductive reports whether n is a productive number.
func (p *Predicate) IsProductive(n uint64) bool {
	if n == 0 {
		return false
	}

	// For odd n > 1, n+1 is an even number above 2. 1 is kept since 2 is prime.
	if n > 1 && n&1 == 1 {
		return false
	}

	if !p.oracle.IsPrime(n + 1) {
		return false
	}

	digits := DigitCount(n)
	if digits == 1 {
		return true
	}

	for k := 1; k < digits; k++ {
		c, ok := splitCandidate(n, k)
		if !ok || !p.oracle.IsPrime(c) {
			return false
		}
	}

	return true
}

// splitCandidate returns A*B+1 for the split at position k, where
// A = n / 10^k and B = n % 10^k. ok is false when the value overflows.
func splitCandidate(n uint64, k int) (candidate uint64, ok bool) {
	return mulAddOne(n/pow10[k], n%pow10[k])
}

// mulAddOne returns a*b+1, with ok false if either step overflows.
func mulAddOne(a, b uint64) (uint64, bool) {
	hi, product := bits.Mul64(a, b)
	if hi != 0 {
		return 0, false
	}

	sum, carry := bits.Add64(product, 1, 0)
	if carry != 0 {
		return 0, false
	}

	return sum, true
}

// DigitCount returns the number of decimal digits in n. Zero has one digit.
func DigitCount(n uint64) int {
	for d := 1; d < len(pow10); d++ {
		if n < pow10[d] {
			return d
		}
	}
	return len(pow10)
}
