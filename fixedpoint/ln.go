// Copyright 2025 The go-animica Authors
// This file is part of the go-animica library.
//
// The go-animica library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-animica library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-animica library. If not, see <http://www.gnu.org/licenses/>.

package fixedpoint

import "github.com/holiman/uint256"

// ln2 = ln(2) pinned as a fixed-point literal, computed once at init from its
// known decimal expansion via ParseDecimal — never from math.Log, keeping the
// whole Ln path free of floating point.
var ln2 = MustParseDecimal("0.6931471805599453094172321214581765680755001343602552")

// seriesTerms bounds the atanh-series expansion used by NegLn. t = (m-1)/(m+1)
// for m in [1,2) lies in [0, 1/3], so the series converges quickly; with 14
// terms the truncation error of 2*atanh(t) stays near 1e-15 (about 2^-50) in
// the worst case t -> 1/3, and below that for smaller t.
const seriesTerms = 14

// NegLn computes -ln(u) for u in (0, 1], returning a non-negative Fixed. u=0
// is rejected: callers must derive u via DeriveU, which guarantees u>0 by
// construction.
//
// Method: range-reduce u = m * 2^e with m in [1,2) by normalizing the raw
// Q64.64 integer on its highest set bit, then evaluate ln(m) with the
// standard atanh series ln(m) = 2*atanh(t), t=(m-1)/(m+1), and recombine
// -ln(u) = (-e)*ln2 - ln(m).
func NegLn(u Fixed) (Fixed, error) {
	if u.IsZero() {
		return Zero, ErrDomainZero
	}
	if u.Cmp(One) > 0 {
		return Zero, ErrDomainRange
	}

	raw := u.u
	p := raw.BitLen() - 1 // position of the highest set bit, 0-indexed
	// e = p - FracBits; since u <= 1, raw <= 2^64 so p <= 64 and e <= 0.
	e := p - FracBits

	var mRaw uint256.Int
	shift := FracBits - p
	if shift >= 0 {
		mRaw.Lsh(&raw, uint(shift))
	} else {
		mRaw.Rsh(&raw, uint(-shift))
	}
	m := Fixed{u: mRaw} // m in [1,2)

	lnm := lnSeries(m)

	negE := uint64(-e)
	term1 := FromUint64(negE).Mul(ln2)
	result, err := term1.Sub(lnm)
	if err != nil {
		// Mathematically term1 >= lnm always: u = 1 gives e = 0 and m = 1, and
		// any u < 1 gives e <= -1, so term1 >= ln2 > ln(m). An underflow
		// here indicates a normalization bug, not a runtime input error.
		return Zero, err
	}
	return result, nil
}

// lnSeries evaluates ln(m) for m in [1,2) via 2*atanh((m-1)/(m+1)).
func lnSeries(m Fixed) Fixed {
	num, _ := m.Sub(One)
	den := m.Add(One)
	t := num.Div(den)

	t2 := t.Mul(t)
	term := t
	sum := t
	for k := 1; k < seriesTerms; k++ {
		term = term.Mul(t2)
		denom := uint64(2*k + 1)
		sum = sum.Add(term.DivUint(denom))
	}
	return sum.Add(sum) // *2
}
