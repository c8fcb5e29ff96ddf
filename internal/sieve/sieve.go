// Package sieve provides a precomputed primality table for small integers.
package sieve

import "sync"

// Limit is the largest value covered by the shared table.
const Limit = 65536

// Sieve is an immutable primality table for 0..=Limit.
// It is safe for concurrent use once constructed.
type Sieve struct {
	table []bool
}

// New builds a sieve of Eratosthenes covering 0..=limit.
func New(limit int) *Sieve {
	if limit < 1 {
		limit = 1
	}
	table := make([]bool, limit+1)
	for i := 2; i <= limit; i++ {
		table[i] = true
	}

	for i := 2; i*i <= limit; i++ {
		if !table[i] {
			continue
		}
		for j := i * i; j <= limit; j += i {
			table[j] = false
		}
	}

	return &Sieve{table: table}
}

var shared = sync.OnceValue(func() *Sieve { return New(Limit) })

// Shared returns the process-wide table covering 0..=Limit.
// The first caller builds it; concurrent callers wait for that build and
// all observe the same instance.
func Shared() *Sieve {
	return shared()
}

// IsPrime reports whether n is prime. Values outside the table are
// reported as not prime.
func (s *Sieve) IsPrime(n uint64) bool {
	if n >= uint64(len(s.table)) {
		return false
	}
	return s.table[n]
}

// Max returns the largest value the table covers.
func (s *Sieve) Max() uint64 {
	return uint64(len(s.table) - 1)
}

// Count returns the number of primes in the table.
func (s *Sieve) Count() int {
	n := 0
	for _, p := range s.table {
		if p {
			n++
		}
	}
	return n
}

// IsSmallPrime reports whether n is prime using the shared table.
// It is only meaningful for n <= Limit.
func IsSmallPrime(n uint64) bool {
	return Shared().IsPrime(n)
}
