package primality

// witnessSet is a deterministic Miller-Rabin base set valid for all n < bound.
type witnessSet struct {
	bound uint64
	bases []uint64
}

// witnessTable is ordered by bound. Each set is the smallest published
// base set proven to have no pseudoprimes below its bound.
var witnessTable = []witnessSet{
	{bound: 2_047, bases: []uint64{2}},
	{bound: 1_373_653, bases: []uint64{2, 3}},
	{bound: 9_080_191, bases: []uint64{31, 73}},
	{bound: 25_326_001, bases: []uint64{2, 3, 5}},
	{bound: 3_215_031_751, bases: []uint64{2, 3, 5, 7}},
	{bound: 4_759_123_141, bases: []uint64{2, 7, 61}},
	{bound: 1_122_004_669_633, bases: []uint64{2, 13, 23, 1662803}},
	{bound: 2_152_302_898_747, bases: []uint64{2, 3, 5, 7, 11}},
	{bound: 3_474_749_660_383, bases: []uint64{2, 3, 5, 7, 11, 13}},
	{bound: 341_550_071_728_321, bases: []uint64{2, 3, 5, 7, 11, 13, 17}},
}

// fullRangeBases covers every uint64.
var fullRangeBases = []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37}

// smallPrimes are the trial divisors applied before Miller-Rabin.
var smallPrimes = [...]uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37}

// Witnesses returns the base set used for n. The returned slice is shared
// and must not be modified.
func Witnesses(n uint64) []uint64 {
	for i := range witnessTable {
		if n < witnessTable[i].bound {
			return witnessTable[i].bases
		}
	}
	return fullRangeBases
}

// Bounds returns the upper bounds of the range-specific witness sets, in
// increasing order.
func Bounds() []uint64 {
	out := make([]uint64, len(witnessTable))
	for i, ws := range witnessTable {
		out[i] = ws.bound
	}
	return out
}
