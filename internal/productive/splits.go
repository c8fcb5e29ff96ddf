package productive

// Split describes one digit split of a number.
type Split struct {
	Number   uint64
	Position int // digits in the right part
	Left     uint64
	Right    uint64
	Value    uint64 // Left*Right+1, zero when Overflow is set
	Overflow bool
	Prime    bool
	Digits   int // decimal digits of Value
}

// Splits returns every digit split of n, from position 1 to D-1.
// Single-digit numbers have no splits.
func (p *Predicate) Splits(n uint64) []Split {
	digits := DigitCount(n)
	if digits < 2 {
		return nil
	}

	out := make([]Split, 0, digits-1)
	for k := 1; k < digits; k++ {
		s := Split{
			Number:   n,
			Position: k,
			Left:     n / pow10[k],
			Right:    n % pow10[k],
		}
		if c, ok := splitCandidate(n, k); ok {
			s.Value = c
			s.Prime = p.oracle.IsPrime(c)
			s.Digits = DigitCount(c)
		} else {
			s.Overflow = true
		}
		out = append(out, s)
	}
	return out
}
