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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func approxEqual(t *testing.T, got, want Fixed, tolerance string) {
	t.Helper()
	tol := MustParseDecimal(tolerance)
	diff := got.SubClamped(want).Max(want.SubClamped(got))
	require.True(t, diff.Cmp(tol) <= 0, "got %s want %s (diff %s > tol %s)", got, want, diff, tol)
}

func TestParseDecimal(t *testing.T) {
	cases := map[string]string{
		"0":       "0.000000000",
		"1":       "1.000000000",
		"0.5":     "0.500000000",
		"1.25":    "1.250000000",
		"4":       "4.000000000",
		"0.125":   "0.125000000",
		"12.0001": "12.000100000",
	}
	for in, want := range cases {
		f, err := ParseDecimal(in)
		require.NoError(t, err)
		require.Equal(t, want, f.String())
	}
}

func TestParseDecimalRejectsNegative(t *testing.T) {
	_, err := ParseDecimal("-1")
	require.Error(t, err)
}

func TestAddSubMulDiv(t *testing.T) {
	a := MustParseDecimal("1.5")
	b := MustParseDecimal("0.5")

	require.Equal(t, "2.000000000", a.Add(b).String())
	sub, err := a.Sub(b)
	require.NoError(t, err)
	require.Equal(t, "1.000000000", sub.String())

	_, err = b.Sub(a)
	require.ErrorIs(t, err, ErrUnderflow)
	require.True(t, b.SubClamped(a).IsZero())

	require.Equal(t, "0.750000000", a.Mul(b).String())
	require.Equal(t, "3.000000000", a.Div(b).String())
}

func TestMinMaxCmp(t *testing.T) {
	a := FromUint64(3)
	b := FromUint64(5)
	require.Equal(t, a, a.Min(b))
	require.Equal(t, b, a.Max(b))
	require.Equal(t, -1, a.Cmp(b))
	require.True(t, b.GTE(a))
}

func TestDeriveUIsNeverZero(t *testing.T) {
	var zeroDigest [32]byte
	u := DeriveU(zeroDigest)
	require.False(t, u.IsZero())

	var maxDigest [32]byte
	for i := range maxDigest {
		maxDigest[i] = 0xff
	}
	u = DeriveU(maxDigest)
	require.True(t, u.Cmp(One) == 0)
}

func TestNegLnOfOneIsZero(t *testing.T) {
	got, err := NegLn(One)
	require.NoError(t, err)
	require.True(t, got.IsZero())
}

func TestNegLnMatchesKnownValues(t *testing.T) {
	// -ln(0.5) ~= 0.693147180559945
	half := MustParseDecimal("0.5")
	got, err := NegLn(half)
	require.NoError(t, err)
	approxEqual(t, got, MustParseDecimal("0.693147181"), "0.000001")

	// -ln(0.25) ~= 1.3862943611198906
	quarter := MustParseDecimal("0.25")
	got, err = NegLn(quarter)
	require.NoError(t, err)
	approxEqual(t, got, MustParseDecimal("1.386294361"), "0.000001")

	// -ln(0.1) ~= 2.302585092994046
	tenth := MustParseDecimal("0.1")
	got, err = NegLn(tenth)
	require.NoError(t, err)
	approxEqual(t, got, MustParseDecimal("2.302585093"), "0.00001")
}

func TestNegLnRejectsOutOfDomain(t *testing.T) {
	_, err := NegLn(Zero)
	require.ErrorIs(t, err, ErrDomainZero)

	_, err = NegLn(FromUint64(2))
	require.ErrorIs(t, err, ErrDomainRange)
}

func TestNegLnMonotoneDecreasing(t *testing.T) {
	// Smaller u (closer to 0) must yield a strictly larger -ln(u).
	u1 := MustParseDecimal("0.9")
	u2 := MustParseDecimal("0.1")
	n1, err := NegLn(u1)
	require.NoError(t, err)
	n2, err := NegLn(u2)
	require.NoError(t, err)
	require.True(t, n2.Cmp(n1) > 0)
}
