// Package primality decides primality of 64-bit unsigned integers.
//
// Small values are answered from a sieve. Larger values go through trial
// division by the primes up to 37 and then a Miller-Rabin test whose base
// set is chosen from the candidate's magnitude, so every verdict is
// deterministic across the full uint64 range.
package primality

import (
	"math/bits"

	"github.com/withObsrvr/productive-numbers/internal/sieve"
)

// Oracle answers primality queries. It is immutable and safe for
// concurrent use.
type Oracle struct {
	small *sieve.Sieve
	limit uint64
}

// New creates an oracle backed by the given sieve.
// A nil sieve selects sieve.Shared().
func New(s *sieve.Sieve) *Oracle {
	if s == nil {
		s = sieve.Shared()
	}
	return &Oracle{small: s, limit: s.Max()}
}

// IsPrime reports whether n is prime.
func (o *Oracle) IsPrime(n uint64) bool {
	if n <= o.limit {
		return o.small.IsPrime(n)
	}

	for _, p := range smallPrimes {
		if n%p == 0 {
			return n == p
		}
	}

	d := n - 1
	r := bits.TrailingZeros64(d)
	d >>= uint(r)

	return millerRabin(n, d, r, Witnesses(n))
}

// millerRabin runs one round per base. n must be odd and greater than 2,
// with n-1 = d * 2^r and d odd.
func millerRabin(n, d uint64, r int, bases []uint64) bool {
	nm1 := n - 1

nextBase:
	for _, a := range bases {
		if a >= n {
			continue
		}

		x := powMod(a, d, n)
		if x == 1 || x == nm1 {
			continue
		}

		for i := 1; i < r; i++ {
			x = mulMod(x, x, n)
			if x == nm1 {
				continue nextBase
			}
		}

		return false
	}

	return true
}

// mulMod returns a*b mod m using a 128-bit intermediate product.
func mulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return bits.Rem64(hi, lo, m)
}

// powMod returns base^exp mod m.
func powMod(base, exp, m uint64) uint64 {
	if m == 1 {
		return 0
	}

	result := uint64(1)
	base %= m
	for exp > 0 {
		if exp&1 == 1 {
			result = mulMod(result, base, m)
		}
		exp >>= 1
		base = mulMod(base, base, m)
	}
	return result
}
